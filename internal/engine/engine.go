package engine

import (
	"time"

	"github.com/corvidchess/corvid/internal/board"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("corvid/engine")

// SearchInfo carries one iterative-deepening progress snapshot.
type SearchInfo struct {
	Depth    int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // permille of hash table in use
}

// SearchLimits specifies constraints on a fixed-depth or fixed-time search,
// used by Multi-PV analysis.
type SearchLimits struct {
	Depth    int
	Nodes    uint64
	MoveTime time.Duration
	Infinite bool
	MultiPV  int
}

// SearchResult is a single principal variation found by SearchMultiPV.
type SearchResult struct {
	Move  board.Move
	Score int
	PV    []board.Move
	Depth int
}

// Engine is the single-threaded search driver: it owns the transposition
// table and a searcher, and exposes the operations a UCI-style protocol
// shell needs (new_game, set_position, go, perft).
type Engine struct {
	tt       *TranspositionTable
	searcher *Searcher

	rootHistory []uint64

	// OnInfo is called after each completed iterative-deepening depth.
	OnInfo func(SearchInfo)
}

// NewEngine creates a new engine with a transposition table of the given
// size in megabytes.
func NewEngine(ttSizeMB int) *Engine {
	tt := NewTranspositionTable(ttSizeMB)
	e := &Engine{
		tt:       tt,
		searcher: NewSearcher(tt),
	}
	log.Infof("engine created, hash=%dMB", ttSizeMB)
	return e
}

// NewGame resets the transposition table and move-ordering tables for a
// fresh game, per spec.md §4.H.
func (e *Engine) NewGame() {
	e.tt.Clear()
	e.searcher.ClearOrderer()
	e.rootHistory = nil
}

// SetPositionHistory installs the Zobrist-key history of the game played so
// far (one key per position reached via `position ... moves`), used for
// threefold-repetition detection during search.
func (e *Engine) SetPositionHistory(hashes []uint64) {
	e.rootHistory = make([]uint64, len(hashes))
	copy(e.rootHistory, hashes)
}

// Go runs iterative deepening under the given UCI time controls and returns
// the chosen move. Progress is reported through OnInfo as each depth
// completes.
func (e *Engine) Go(pos *board.Position, limits UCILimits) board.Move {
	tm := NewTimeManager()
	tm.Init(limits, pos.SideToMove)

	e.searcher.SetRootHistory(e.rootHistory)
	e.searcher.OnInfo = e.OnInfo

	maxDepth := limits.Depth
	return e.searcher.RunIterativeDeepening(pos, tm, maxDepth, limits.Nodes)
}

// Stop aborts the in-progress search at its next node-count checkpoint.
func (e *Engine) Stop() {
	e.searcher.Stop()
}

// Clear empties the transposition table (`setoption name Clear Hash`).
func (e *Engine) Clear() {
	e.tt.Clear()
}

// ResizeHash reallocates the transposition table (`setoption name Hash`).
func (e *Engine) ResizeHash(sizeMB int) {
	e.tt.Resize(sizeMB)
}

// HashFull returns the permille of the transposition table in use.
func (e *Engine) HashFull() int {
	return e.tt.HashFull()
}

// Perft performs an exhaustive legal-move count to the given depth, for move
// generation validation (spec.md §4.H).
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}

	moves := pos.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}

	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		undo := pos.MakeMove(move)
		nodes += e.Perft(pos, depth-1)
		pos.UnmakeMove(move, undo)
	}
	return nodes
}

// Evaluate returns the static evaluation of a position, from White's
// perspective.
func (e *Engine) Evaluate(pos *board.Position) int {
	return Evaluate(pos)
}

// SearchMultiPV finds the best numPV distinct principal variations, used by
// analysis tooling built on top of the engine.
func (e *Engine) SearchMultiPV(pos *board.Position, limits SearchLimits) []SearchResult {
	numPV := limits.MultiPV
	if numPV <= 0 {
		numPV = 1
	}

	results := make([]SearchResult, 0, numPV)
	excludedMoves := make([]board.Move, 0, numPV)

	for i := 0; i < numPV; i++ {
		move, score, pv, depth := e.searchWithExclusions(pos, limits, excludedMoves)
		if move == board.NoMove {
			break
		}

		results = append(results, SearchResult{Move: move, Score: score, PV: pv, Depth: depth})
		excludedMoves = append(excludedMoves, move)
	}

	for i := 0; i < len(results)-1; i++ {
		maxIdx := i
		for j := i + 1; j < len(results); j++ {
			if results[j].Score > results[maxIdx].Score {
				maxIdx = j
			}
		}
		if maxIdx != i {
			results[i], results[maxIdx] = results[maxIdx], results[i]
		}
	}

	return results
}

// searchWithExclusions runs fixed-depth iterative deepening excluding a set
// of root moves, used to find the second/third/... best move for Multi-PV.
func (e *Engine) searchWithExclusions(pos *board.Position, limits SearchLimits, excluded []board.Move) (board.Move, int, []board.Move, int) {
	e.searcher.Reset()
	e.searcher.SetExcludedMoves(excluded)
	e.searcher.SetRootHistory(e.rootHistory)
	e.tt.NewSearch()

	startTime := time.Now()
	var bestMove board.Move
	var bestScore int
	var bestDepth int

	maxDepth := MaxPly - 1
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	var deadline time.Time
	if limits.MoveTime > 0 {
		deadline = startTime.Add(limits.MoveTime)
	}

	for depth := 1; depth <= maxDepth; depth++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		move, score := e.searcher.Search(pos, depth)
		if e.searcher.IsStopped() {
			break
		}

		if move != board.NoMove {
			bestMove = move
			bestScore = score
			bestDepth = depth
		}

		if score > MateScore-MaxPly || score < -MateScore+MaxPly {
			break
		}
	}

	pv := e.searcher.GetPV()
	e.searcher.SetExcludedMoves(nil)

	return bestMove, bestScore, pv, bestDepth
}

// ScoreToString renders a centipawn or mate score for human-facing output.
func ScoreToString(score int) string {
	if score > MateScore-MaxPly {
		mateIn := (MateScore - score + 1) / 2
		return "Mate in " + itoa(mateIn)
	}
	if score < -MateScore+MaxPly {
		mateIn := (MateScore + score + 1) / 2
		return "Mated in " + itoa(mateIn)
	}

	sign := ""
	if score < 0 {
		sign = "-"
		score = -score
	}
	pawns := score / 100
	centipawns := score % 100
	frac := itoa(centipawns)
	if len(frac) < 2 {
		frac = "0" + frac
	}
	return sign + itoa(pawns) + "." + frac
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + itoa(-n)
	}
	s := ""
	for n > 0 {
		s = string('0'+byte(n%10)) + s
		n /= 10
	}
	return s
}
