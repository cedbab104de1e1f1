package engine

import (
	"github.com/corvidchess/corvid/internal/board"
)

// Move ordering tiers, highest score searched first.
const (
	ttMoveScore       = 30000
	promotionBase     = 22000
	captureBase       = 20000
	castlingScore     = 15000
	killerScore1      = 9000
	killerScore2      = 8000
	badCaptureScore   = 7000 // losing captures (SEE < 0), ordered below killers
	historyClampUpper = 6000
	historyClampLower = -6000
)

// MoveOrderer holds the search's killer-move and history tables. It is
// reused across the whole search and cleared between independent searches.
type MoveOrderer struct {
	killers [MaxPly][2]board.Move
	history [2][64][64]int
}

// NewMoveOrderer creates a new, empty move orderer.
func NewMoveOrderer() *MoveOrderer {
	return &MoveOrderer{}
}

// Clear resets killers and halves history scores for a new search.
func (mo *MoveOrderer) Clear() {
	for i := range mo.killers {
		mo.killers[i][0] = board.NoMove
		mo.killers[i][1] = board.NoMove
	}
	for c := range mo.history {
		for i := range mo.history[c] {
			for j := range mo.history[c][i] {
				mo.history[c][i][j] /= 2
			}
		}
	}
}

// ScoreMoves assigns an ordering score to every move in the list.
func (mo *MoveOrderer) ScoreMoves(pos *board.Position, moves *board.MoveList, ply int, ttMove board.Move) []int {
	scores := make([]int, moves.Len())
	for i := 0; i < moves.Len(); i++ {
		scores[i] = mo.scoreMove(pos, moves.Get(i), ply, ttMove)
	}
	return scores
}

// scoreMove implements the six-tier ordering: TT move, promotions, captures
// (MVV/LVA), castling, killers, then the history heuristic.
func (mo *MoveOrderer) scoreMove(pos *board.Position, m board.Move, ply int, ttMove board.Move) int {
	if m == ttMove {
		return ttMoveScore
	}

	if m.IsPromotion() {
		capturedValue := 0
		if captured := pos.PieceAt(m.To()); captured != board.NoPiece {
			capturedValue = board.PieceValue[captured.Type()]
		}
		return promotionBase + int(m.Promotion())*100 + capturedValue
	}

	if m.IsCapture(pos) {
		if SEE(pos, m) < 0 {
			return badCaptureScore
		}

		var victimValue, attackerValue int
		if m.IsEnPassant() {
			victimValue = board.PieceValue[board.Pawn]
		} else if captured := pos.PieceAt(m.To()); captured != board.NoPiece {
			victimValue = board.PieceValue[captured.Type()]
		}
		if attacker := pos.PieceAt(m.From()); attacker != board.NoPiece {
			attackerValue = board.PieceValue[attacker.Type()]
		}
		return captureBase + 10*victimValue - attackerValue
	}

	if m.IsCastling() {
		return castlingScore
	}

	if m == mo.killers[ply][0] {
		return killerScore1
	}
	if m == mo.killers[ply][1] {
		return killerScore2
	}

	return mo.history[pos.SideToMove][m.From()][m.To()]
}

// SortMoves sorts moves by descending score. Selection sort is fine for the
// small move counts (well under 256) seen in chess positions.
func SortMoves(moves *board.MoveList, scores []int) {
	n := moves.Len()
	for i := 0; i < n-1; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if scores[j] > scores[best] {
				best = j
			}
		}
		if best != i {
			moves.Swap(i, best)
			scores[i], scores[best] = scores[best], scores[i]
		}
	}
}

// PickMove moves the best-scoring remaining move (from index onward) into
// position index, enabling lazy incremental sorting during move iteration.
func PickMove(moves *board.MoveList, scores []int, index int) {
	best := index
	for j := index + 1; j < moves.Len(); j++ {
		if scores[j] > scores[best] {
			best = j
		}
	}
	if best != index {
		moves.Swap(index, best)
		scores[index], scores[best] = scores[best], scores[index]
	}
}

// UpdateKillers records a quiet move that caused a beta cutoff at ply.
func (mo *MoveOrderer) UpdateKillers(m board.Move, ply int) {
	if ply >= MaxPly {
		return
	}
	if mo.killers[ply][0] == m {
		return
	}
	mo.killers[ply][1] = mo.killers[ply][0]
	mo.killers[ply][0] = m
}

// UpdateHistory adjusts the history score for a quiet move by side to move,
// rewarding cutoffs and penalizing quiet moves that were tried and failed,
// clamped to keep the heuristic from swamping capture/killer ordering.
func (mo *MoveOrderer) UpdateHistory(side board.Color, m board.Move, depth int, isGood bool) {
	from, to := m.From(), m.To()
	bonus := depth * depth

	if isGood {
		mo.history[side][from][to] += bonus
	} else {
		mo.history[side][from][to] -= bonus
	}

	if mo.history[side][from][to] > historyClampUpper {
		mo.history[side][from][to] = historyClampUpper
	}
	if mo.history[side][from][to] < historyClampLower {
		mo.history[side][from][to] = historyClampLower
	}
}

// GetHistoryScore returns the current history score for a move.
func (mo *MoveOrderer) GetHistoryScore(side board.Color, m board.Move) int {
	return mo.history[side][m.From()][m.To()]
}
