package uci

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/corvidchess/corvid/internal/board"
	"github.com/corvidchess/corvid/internal/engine"
)

func captureStdout(t *testing.T, f func()) string {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	old := os.Stdout
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestHandlePositionMalformedFEN(t *testing.T) {
	u := New(engine.NewEngine(4))
	before := u.position.Hash

	u.handlePosition([]string{"fen", "not-a-fen"})

	if u.position.Hash != before {
		t.Error("malformed FEN changed the current position")
	}
}

func TestHandlePositionIllegalMove(t *testing.T) {
	u := New(engine.NewEngine(4))

	u.handlePosition([]string{"startpos", "moves", "e2e4", "e7e5", "e4e5"})

	// e4e5 is not a legal move (the e4 pawn is blocked by nothing but e5 is
	// occupied by a black pawn with no diagonal capture available), so
	// application should have stopped after e7e5.
	want, err := board.ParseFEN("rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	if u.position.Hash != want.Hash {
		t.Errorf("position after illegal move = %s, want %s", u.position.ToFEN(), want.ToFEN())
	}
	if len(u.positionHashes) != 3 {
		t.Errorf("positionHashes has %d entries, want 3 (start + 2 legal moves)", len(u.positionHashes))
	}
}

func TestHandlePositionUnknownMoveStopsHashHistory(t *testing.T) {
	u := New(engine.NewEngine(4))

	u.handlePosition([]string{"startpos", "moves", "e2e4", "zzzz"})

	if len(u.positionHashes) != 2 {
		t.Errorf("positionHashes has %d entries, want 2 (start + e2e4)", len(u.positionHashes))
	}
}

func TestRunLoopSurvivesUnrecognizedCommand(t *testing.T) {
	u := New(engine.NewEngine(4))

	input := strings.NewReader("nonsense\nisready\n")
	out := captureStdout(t, func() {
		u.runLoop(input)
	})

	if !strings.Contains(out, "readyok") {
		t.Errorf("expected readyok after unrecognized command, got %q", out)
	}
}

func TestHandleUCIAdvertisesHashOption(t *testing.T) {
	u := New(engine.NewEngine(4))

	out := captureStdout(t, func() {
		u.handleUCI()
	})

	if !strings.Contains(out, "uciok") {
		t.Error("handleUCI did not print uciok")
	}
	if !strings.Contains(out, "option name Hash") {
		t.Error("handleUCI did not advertise the Hash option")
	}
}

func TestHandleGoReportsGameOverImmediately(t *testing.T) {
	u := New(engine.NewEngine(4))

	// Fool's mate: white to move is checkmated.
	pos, err := board.ParseFEN("rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	u.position = pos

	out := captureStdout(t, func() {
		u.handleGo(nil)
	})

	if strings.TrimSpace(out) != "bestmove 0000" {
		t.Errorf("handleGo on a finished game = %q, want bestmove 0000", out)
	}
}
