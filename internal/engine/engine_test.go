package engine

import (
	"testing"
	"time"

	"github.com/corvidchess/corvid/internal/board"
)

func TestMultiPV(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	limits := SearchLimits{
		Depth:    4,
		MoveTime: 2 * time.Second,
		MultiPV:  3,
	}

	results := eng.SearchMultiPV(pos, limits)

	if len(results) < 2 {
		t.Fatalf("Expected at least 2 PVs, got %d", len(results))
	}

	if results[0].Move == results[1].Move {
		t.Errorf("First two PVs have same move: %s", results[0].Move.String())
	}

	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("PV %d has higher score than PV %d (%d > %d)",
				i+1, i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestGoBasic(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	limits := UCILimits{MoveTime: 200 * time.Millisecond}
	move := eng.Go(pos, limits)
	if move == board.NoMove {
		t.Error("Go returned NoMove for starting position")
	}
	t.Logf("Best move: %s", move.String())
}

func TestGoDepthLimited(t *testing.T) {
	eng := NewEngine(16)

	positions := []string{
		board.StartFEN,
		"r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3",
		"8/8/8/4k3/8/4K3/4P3/8 w - - 0 1",
	}

	for i, fen := range positions {
		pos, err := board.ParseFEN(fen)
		if err != nil {
			t.Fatalf("Failed to parse position %d: %v", i, err)
		}

		move := eng.Go(pos, UCILimits{Depth: 5})
		if move == board.NoMove {
			if !pos.InCheck() || pos.GenerateLegalMoves().Len() > 0 {
				t.Errorf("Position %d: Go returned NoMove", i)
			}
		}
	}
}

func TestNewGameClearsHash(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(4)

	eng.Go(pos, UCILimits{Depth: 6})
	if eng.HashFull() == 0 {
		t.Skip("hash table did not fill within the test's depth budget")
	}

	eng.NewGame()
	if eng.HashFull() != 0 {
		t.Error("NewGame did not clear the transposition table")
	}
}

func TestPerftEngine(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	got := eng.Perft(pos, 3)
	if got != 8902 {
		t.Errorf("Perft(3) = %d, want 8902", got)
	}
}

func TestPawnHashTable(t *testing.T) {
	pt := NewPawnTable(1)

	pos := board.NewPosition()

	_, _, found := pt.Probe(pos.PawnKey)
	if found {
		t.Error("Expected cache miss on first probe")
	}

	pt.Store(pos.PawnKey, -15, -20)

	mg, eg, found := pt.Probe(pos.PawnKey)
	if !found {
		t.Error("Expected cache hit after store")
	}
	if mg != -15 || eg != -20 {
		t.Errorf("Wrong values: got mg=%d, eg=%d, want -15, -20", mg, eg)
	}

	oldKey := pos.PawnKey
	move := board.NewMove(board.E2, board.E4)
	undo := pos.MakeMove(move)
	if pos.PawnKey == oldKey {
		t.Error("PawnKey should change when pawn moves")
	}

	pos.UnmakeMove(move, undo)
	if pos.PawnKey != oldKey {
		t.Error("PawnKey should be restored on unmake")
	}
}

func TestScoreToString(t *testing.T) {
	if got := ScoreToString(150); got != "1.50" {
		t.Errorf("ScoreToString(150) = %q, want 1.50", got)
	}
	if got := ScoreToString(-75); got != "-0.75" {
		t.Errorf("ScoreToString(-75) = %q, want -0.75", got)
	}
	if got := ScoreToString(MateScore - 3); got != "Mate in 2" {
		t.Errorf("ScoreToString(MateScore-3) = %q, want Mate in 2", got)
	}
}
