package engine

import (
	"math"
	"sync/atomic"

	"github.com/corvidchess/corvid/internal/board"
)

// Search constants.
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128

	nodeCheckMask = 2047 // check the deadline every 2048 nodes; the stop flag is read at every node

	reverseFutilityDepth  = 7
	reverseFutilityMargin = 85 // per ply, against static_eval - c*depth >= beta

	futilityDepth = 7

	moveCountBase = 4 // i >= depth*depth + moveCountBase triggers move-count pruning
)

var futilityMargins [futilityDepth + 1]int

// reductions[depth][i] is the precomputed LMR baseline, rounded from
// 0.75 + ln(depth)*ln(i)/2.25.
var reductions [MaxPly][MaxPly]int

func init() {
	for d := 1; d <= futilityDepth; d++ {
		futilityMargins[d] = 80 + 60*d
	}
	for d := 1; d < MaxPly; d++ {
		for i := 1; i < MaxPly; i++ {
			r := 0.75 + math.Log(float64(d))*math.Log(float64(i))/2.25
			reductions[d][i] = int(math.Round(r))
		}
	}
}

// PVTable stores the principal variation collected during the last search.
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}

// Searcher performs iterative-deepening PVS alpha-beta search from a single
// root position. It is single-threaded; one Searcher drives one `go` command.
type Searcher struct {
	pos     *board.Position
	tt      *TranspositionTable
	orderer *MoveOrderer

	nodes    uint64
	stopFlag atomic.Bool

	tm *TimeManager

	// rootHistory holds Zobrist keys of the game played so far (owned by the
	// driver), used together with keys pushed during the current search line
	// to detect threefold repetition.
	rootHistory []uint64
	lineKeys    [MaxPly]uint64

	excludedRoot []board.Move

	pv PVTable

	// OnInfo, when set, is called after every completed iterative-deepening
	// depth with a progress snapshot.
	OnInfo func(SearchInfo)
}

// NewSearcher creates a searcher sharing the given transposition table.
func NewSearcher(tt *TranspositionTable) *Searcher {
	return &Searcher{
		tt:      tt,
		orderer: NewMoveOrderer(),
	}
}

// Stop signals the search to abandon at the next node-count checkpoint.
func (s *Searcher) Stop() {
	s.stopFlag.Store(true)
}

// IsStopped reports whether the search has been signalled to stop.
func (s *Searcher) IsStopped() bool {
	return s.stopFlag.Load()
}

// Reset clears per-search bookkeeping: node counter, stop flag, killers and
// history (via MoveOrderer.Clear, which keeps half of each history score).
func (s *Searcher) Reset() {
	s.stopFlag.Store(false)
	s.nodes = 0
	s.orderer.Clear()
}

// ClearOrderer resets killer and history tables entirely (new_game).
func (s *Searcher) ClearOrderer() {
	s.orderer = NewMoveOrderer()
}

// Nodes returns the number of nodes searched so far.
func (s *Searcher) Nodes() uint64 {
	return s.nodes
}

// SetRootHistory installs the game's Zobrist-key history (for repetition
// detection), one key per position actually reached in the game so far.
func (s *Searcher) SetRootHistory(hashes []uint64) {
	s.rootHistory = hashes
}

// SetExcludedMoves excludes root moves from consideration, used by Multi-PV.
func (s *Searcher) SetExcludedMoves(moves []board.Move) {
	s.excludedRoot = moves
}

// Search runs a single fixed-depth root search (used by Multi-PV, which
// drives its own iterative-deepening loop one depth at a time).
func (s *Searcher) Search(pos *board.Position, depth int) (board.Move, int) {
	s.pos = pos.Copy()
	score := s.negamax(depth, 0, -Infinity, Infinity, false)

	var bestMove board.Move
	if s.pv.length[0] > 0 {
		bestMove = s.pv.moves[0][0]
	}
	return bestMove, score
}

// RunIterativeDeepening drives the full `go` search shell described by
// spec.md §4.G: it deepens depth by depth against tm's time budget, reports
// progress via OnInfo, and returns the best move found.
func (s *Searcher) RunIterativeDeepening(pos *board.Position, tm *TimeManager, maxDepth int, maxNodes uint64) board.Move {
	s.pos = pos.Copy()
	s.tm = tm
	s.Reset()
	s.tt.NewSearch()

	if maxDepth <= 0 || maxDepth > MaxPly-1 {
		maxDepth = MaxPly - 1
	}

	var bestMove board.Move
	var lastDepthElapsed, totalElapsed int64

	for depth := 1; depth <= maxDepth; depth++ {
		iterStart := tm.Elapsed()

		score := s.negamax(depth, 0, -Infinity, Infinity, false)

		if s.stopFlag.Load() {
			break
		}

		if s.pv.length[0] > 0 {
			bestMove = s.pv.moves[0][0]
		}

		if s.OnInfo != nil {
			s.OnInfo(SearchInfo{
				Depth:    depth,
				Score:    score,
				Nodes:    s.nodes,
				Time:     tm.Elapsed(),
				PV:       s.GetPV(),
				HashFull: s.tt.HashFull(),
			})
		}

		totalElapsed = int64(tm.Elapsed())
		lastDepthElapsed = int64(tm.Elapsed()) - int64(iterStart)

		if score > MateScore-MaxPly || score < -MateScore+MaxPly {
			break
		}
		if maxNodes > 0 && s.nodes >= maxNodes {
			break
		}
		if tm.ShouldStop() {
			break
		}
		if tm.PastOptimum() {
			break
		}
		// the last depth alone consumed more than half of what remains
		if lastDepthElapsed*2 > int64(tm.MaximumTime())-totalElapsed {
			break
		}
	}

	if bestMove == board.NoMove {
		moves := s.pos.GenerateLegalMoves()
		if moves.Len() > 0 {
			bestMove = moves.Get(0)
		}
	}
	return bestMove
}

// checkStop polls the deadline and stop flag at a coarse node granularity.
func (s *Searcher) checkStop() bool {
	if s.nodes&nodeCheckMask != 0 {
		return s.stopFlag.Load()
	}
	if s.stopFlag.Load() {
		return true
	}
	if s.tm != nil && s.tm.ShouldStop() {
		s.stopFlag.Store(true)
		return true
	}
	return false
}

// isRepetitionOrFifty reports whether the current position is a draw by
// threefold repetition (same side to move, two prior occurrences), by the
// fifty-move rule or by insufficient material.
func (s *Searcher) isRepetitionOrFifty(ply int) bool {
	if s.pos.HalfMoveClock >= 100 {
		return true
	}
	if s.pos.IsInsufficientMaterial() {
		return true
	}

	key := s.pos.Hash

	// The driver's history ends with the root position, which is also
	// lineKeys[0]; drop that copy so each combined index is one ply.
	history := s.rootHistory
	if n := len(history); n > 0 && history[n-1] == s.lineKeys[0] {
		history = history[:n-1]
	}

	combinedLen := len(history) + ply
	limit := s.pos.HalfMoveClock
	if limit > combinedLen {
		limit = combinedLen
	}

	get := func(k int) uint64 {
		if k < len(history) {
			return history[k]
		}
		return s.lineKeys[k-len(history)]
	}

	count := 0
	for k := combinedLen - 2; k >= combinedLen-limit; k -= 2 {
		if get(k) == key {
			count++
			if count >= 2 {
				return true
			}
		}
	}
	return false
}

// negamax implements PVS alpha-beta search with null-move, futility, LMR and
// the rest of the pruning machinery described by spec.md §4.G.
func (s *Searcher) negamax(depth, ply int, alpha, beta int, cutNode bool) int {
	s.nodes++
	if s.checkStop() {
		return 0
	}

	pvNode := beta-alpha > 1
	s.pv.length[ply] = ply
	s.lineKeys[ply] = s.pos.Hash

	if ply > 0 && s.isRepetitionOrFifty(ply) {
		return 0
	}
	if ply >= 100 {
		return EvaluateRelative(s.pos)
	}
	if depth <= 0 {
		return s.quiescence(ply, alpha, beta)
	}

	origAlpha := alpha

	var ttMove board.Move
	entry, found := s.tt.Probe(s.pos.Hash)
	if found {
		ttMove = entry.Move()
		if !pvNode && entry.Depth() >= depth {
			score := AdjustScoreFromTT(entry.Value(), ply)
			switch entry.Bound() {
			case BoundExact:
				return score
			case BoundLower:
				if score >= beta {
					return score
				}
			case BoundUpper:
				if score <= alpha {
					return score
				}
			}
		}
	}

	inCheck := s.pos.InCheck()

	staticEval := 0
	if !inCheck {
		staticEval = EvaluateRelative(s.pos)
	}

	// Null-move pruning.
	if !pvNode && !inCheck && depth >= 3 && s.pos.HasNonPawnMaterial() &&
		(!found || entry.Bound() != BoundUpper || entry.Value() >= beta) {
		r := 3 + depth/4
		nullUndo := s.pos.MakeNullMove()
		newDepth := depth - r - 1
		var nullScore int
		if newDepth <= 0 {
			nullScore = -s.quiescence(ply+1, -beta, -beta+1)
		} else {
			nullScore = -s.negamax(newDepth, ply+1, -beta, -beta+1, !cutNode)
		}
		s.pos.UnmakeNullMove(nullUndo)

		if s.stopFlag.Load() {
			return 0
		}
		if nullScore >= beta {
			if nullScore > MateScore-MaxPly {
				nullScore = beta
			}
			return nullScore
		}
	}

	// Reverse futility / static null-move pruning.
	if !pvNode && !inCheck && depth <= reverseFutilityDepth {
		margin := reverseFutilityMargin * depth
		if staticEval-margin >= beta {
			return staticEval
		}
	}

	moves := s.pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	scores := s.orderer.ScoreMoves(s.pos, moves, ply, ttMove)

	bestScore := -Infinity
	bestMove := board.NoMove
	bound := BoundUpper
	legalCount := 0

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		if ply == 0 && containsMove(s.excludedRoot, move) {
			continue
		}

		isCapture := move.IsCapture(s.pos)
		isPromotion := move.IsPromotion()
		isQuiet := !isCapture && !isPromotion
		isKiller := move == s.orderer.killers[ply][0] || move == s.orderer.killers[ply][1]

		if !pvNode && !inCheck && isQuiet {
			if i >= depth*depth+moveCountBase {
				break
			}
			if depth <= futilityDepth && staticEval+futilityMargins[depth] <= alpha {
				continue
			}
		}

		extension := 0
		if inCheck {
			extension = 1
		}

		undo := s.pos.MakeMove(move)
		if !undo.Valid {
			s.pos.UnmakeMove(move, undo)
			continue
		}
		legalCount++

		givesCheck := s.pos.InCheck()
		newDepth := depth + extension - 1

		var score int
		if legalCount == 1 {
			score = -s.negamax(newDepth, ply+1, -beta, -alpha, false)
		} else {
			r := 0
			if !isCapture && !isPromotion && !isKiller && !givesCheck && depth < MaxPly && i < MaxPly {
				r = reductions[depth][i]
				if pvNode {
					r--
				}
				if cutNode {
					r++
				}
				if move == ttMove {
					r -= 2
				}
				if r > newDepth-1 {
					r = newDepth - 1
				}
				if r < 0 {
					r = 0
				}
			}

			score = -s.negamax(newDepth-r, ply+1, -alpha-1, -alpha, true)
			if score > alpha && r > 0 {
				score = -s.negamax(newDepth, ply+1, -alpha-1, -alpha, !cutNode)
			}
			if score > alpha && score < beta {
				score = -s.negamax(newDepth, ply+1, -beta, -alpha, false)
			}
		}

		s.pos.UnmakeMove(move, undo)

		if s.stopFlag.Load() {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = move

			if score > alpha {
				alpha = score
				bound = BoundExact

				s.pv.moves[ply][ply] = move
				for j := ply + 1; j < s.pv.length[ply+1]; j++ {
					s.pv.moves[ply][j] = s.pv.moves[ply+1][j]
				}
				s.pv.length[ply] = s.pv.length[ply+1]
			}
		}

		if score >= beta {
			bound = BoundLower
			if isQuiet {
				s.orderer.UpdateKillers(move, ply)
				s.orderer.UpdateHistory(s.pos.SideToMove, move, depth, true)
			}
			break
		}

		if isQuiet && score <= origAlpha {
			s.orderer.UpdateHistory(s.pos.SideToMove, move, depth/2, false)
		}
	}

	if legalCount == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	entry, _ = s.tt.Probe(s.pos.Hash)
	s.tt.Save(entry, s.pos.Hash, AdjustScoreToTT(bestScore, ply), staticEval, pvNode, bound, depth, bestMove)

	return bestScore
}

func containsMove(moves []board.Move, m board.Move) bool {
	for _, x := range moves {
		if x == m {
			return true
		}
	}
	return false
}

const maxQuiescencePly = 100

// quiescence searches captures, en-passants and promotions only, to reach a
// quiet position before evaluating (spec.md §4.G Quiescence).
func (s *Searcher) quiescence(ply int, alpha, beta int) int {
	s.nodes++
	if s.checkStop() {
		return 0
	}
	if ply >= maxQuiescencePly {
		return EvaluateRelative(s.pos)
	}

	standPat := EvaluateRelative(s.pos)
	if standPat >= beta {
		return beta
	}
	if standPat > alpha {
		alpha = standPat
	}
	if standPat+200 < alpha {
		return alpha
	}

	moves := s.pos.GenerateCaptures()
	scores := s.orderer.ScoreMoves(s.pos, moves, ply, board.NoMove)

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		if !s.pos.InCheck() && SEE(s.pos, move) < -50 {
			continue
		}

		undo := s.pos.MakeMove(move)
		if !undo.Valid {
			s.pos.UnmakeMove(move, undo)
			continue
		}

		score := -s.quiescence(ply+1, -beta, -alpha)
		s.pos.UnmakeMove(move, undo)

		if s.stopFlag.Load() {
			return 0
		}

		if score >= beta {
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}

	return alpha
}

// GetPV returns the principal variation from the last completed search.
func (s *Searcher) GetPV() []board.Move {
	pv := make([]board.Move, s.pv.length[0])
	for i := 0; i < s.pv.length[0]; i++ {
		pv[i] = s.pv.moves[0][i]
	}
	return pv
}
