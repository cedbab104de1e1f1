// Package engine implements the chess search and evaluation engine.
package engine

import (
	"github.com/corvidchess/corvid/internal/board"
)

// Tapered material values (middlegame, endgame), indexed by PieceType for
// Pawn..Queen. The king contributes no material term; its safety is scored
// separately via PST and shelter terms.
var materialMg = [5]int{124, 781, 825, 1276, 2538}
var materialEg = [5]int{206, 854, 915, 1380, 2682}

// phaseWeight is the non-pawn-material phase contribution per piece type.
var phaseWeight = [6]int{0, 1, 1, 2, 4, 0}

const maxPhase = 24

const tempoBonus = 15

// Mobility weights per piece type, applied in both phases.
var mobilityMgWeight = [6]int{0, 4, 5, 2, 1, 0}
var mobilityEgWeight = [6]int{0, 3, 4, 4, 2, 0}

const (
	knightRimPenalty    = -10
	knightCornerPenalty = -20
	knightGoodPenalty   = 10 // bonus for c3/f3/c6/f6-type squares
	centerPawnBonus     = 15
)

const (
	pawnShieldBonus   = 10
	pawnShieldMissing = -15
)

const (
	doubledPawnPenalty  = -10
	isolatedPawnPenalty = -15
)

// passedPawnBonus is indexed by rank from the pawn's own side (0 = own back
// rank, 7 = promotion rank, never reached by a pawn still on the board).
var passedPawnBonusMg = [8]int{0, 5, 10, 20, 35, 60, 100, 0}
var passedPawnBonusEg = [8]int{0, 10, 20, 40, 70, 120, 200, 0}

// pawnCache holds tapered pawn-structure scores (doubled/isolated/passed),
// keyed by Position.PawnKey. Pawn structure is the same across many search
// lines that only differ in piece placement elsewhere, so this is worth
// caching independently of the rest of Evaluate.
var pawnCache = NewPawnTable(4)

// Piece-square tables, values from White's perspective; Black indexes via
// sq^56 (board.Square.Mirror). Applied identically in both phases except
// for the king, which has separate middlegame/endgame tables.
var pawnPST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	50, 50, 50, 50, 50, 50, 50, 50,
	10, 10, 20, 30, 30, 20, 10, 10,
	5, 5, 10, 25, 25, 10, 5, 5,
	0, 0, 0, 20, 20, 0, 0, 0,
	5, -5, -10, 0, 0, -10, -5, 5,
	5, 10, 10, -20, -20, 10, 10, 5,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var knightPST = [64]int{
	-50, -40, -30, -30, -30, -30, -40, -50,
	-40, -20, 0, 0, 0, 0, -20, -40,
	-30, 0, 10, 15, 15, 10, 0, -30,
	-30, 5, 15, 20, 20, 15, 5, -30,
	-30, 0, 15, 20, 20, 15, 0, -30,
	-30, 5, 10, 15, 15, 10, 5, -30,
	-40, -20, 0, 5, 5, 0, -20, -40,
	-50, -40, -30, -30, -30, -30, -40, -50,
}

var bishopPST = [64]int{
	-20, -10, -10, -10, -10, -10, -10, -20,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-10, 0, 5, 10, 10, 5, 0, -10,
	-10, 5, 5, 10, 10, 5, 5, -10,
	-10, 0, 10, 10, 10, 10, 0, -10,
	-10, 10, 10, 10, 10, 10, 10, -10,
	-10, 5, 0, 0, 0, 0, 5, -10,
	-20, -10, -10, -10, -10, -10, -10, -20,
}

var rookPST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	5, 10, 10, 10, 10, 10, 10, 5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	0, 0, 0, 5, 5, 0, 0, 0,
}

var queenPST = [64]int{
	-20, -10, -10, -5, -5, -10, -10, -20,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-10, 0, 5, 5, 5, 5, 0, -10,
	-5, 0, 5, 5, 5, 5, 0, -5,
	0, 0, 5, 5, 5, 5, 0, -5,
	-10, 5, 5, 5, 5, 5, 0, -10,
	-10, 0, 5, 0, 0, 0, 0, -10,
	-20, -10, -10, -5, -5, -10, -10, -20,
}

var kingMidgamePST = [64]int{
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-20, -30, -30, -40, -40, -30, -30, -20,
	-10, -20, -20, -20, -20, -20, -20, -10,
	20, 20, 0, 0, 0, 0, 20, 20,
	20, 30, 10, 0, 0, 10, 30, 20,
}

var kingEndgamePST = [64]int{
	-50, -40, -30, -20, -20, -30, -40, -50,
	-30, -20, -10, 0, 0, -10, -20, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -30, 0, 0, 0, 0, -30, -30,
	-50, -30, -30, -30, -30, -30, -30, -50,
}

var psts = [5][64]int{pawnPST, knightPST, bishopPST, rookPST, queenPST}

// Evaluate returns the tapered static evaluation of pos, positive favoring
// White, as an absolute (not side-relative) centipawn score.
func Evaluate(pos *board.Position) int {
	var mg, eg, phase int

	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		them := c.Other()

		for pt := board.Pawn; pt < board.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()

				mg += sign * materialMg[pt]
				eg += sign * materialEg[pt]
				phase += phaseWeight[pt]

				pstSq := sq
				if c == board.Black {
					pstSq = sq.Mirror()
				}
				pstValue := psts[pt][pstSq]
				mg += sign * pstValue
				eg += sign * pstValue

				mobAttacks := pieceAttacks(pos, pt, sq)
				mob := (mobAttacks &^ pos.Occupied[c]).PopCount()
				mg += sign * mob * mobilityMgWeight[pt]
				eg += sign * mob * mobilityEgWeight[pt]

				if pt == board.Knight {
					mg += sign * knightPlacementBonus(sq)
				}
			}
		}

		// King: PST only, tapered via separate mg/eg tables, plus shelter in
		// both phases. The king's mobility term is computed, but its mobility
		// weights are zero, so it adds nothing.
		ksq := pos.KingSquare[c]
		kPstSq := ksq
		if c == board.Black {
			kPstSq = ksq.Mirror()
		}
		mg += sign * kingMidgamePST[kPstSq]
		eg += sign * kingEndgamePST[kPstSq]

		kingMob := (board.KingAttacks(ksq) &^ pos.Occupied[c]).PopCount()
		mg += sign * kingMob * mobilityMgWeight[board.King]
		eg += sign * kingMob * mobilityEgWeight[board.King]

		shelter := kingShelter(pos, c, ksq)
		mg += sign * shelter
		eg += sign * shelter

		_ = them
	}

	mg += centerControl(pos)

	pawnMg, pawnEg := pawnStructureScore(pos)
	mg += pawnMg
	eg += pawnEg

	if phase > maxPhase {
		phase = maxPhase
	}
	score := (mg*phase + eg*(maxPhase-phase)) / maxPhase

	if pos.SideToMove == board.White {
		score += tempoBonus
	} else {
		score -= tempoBonus
	}

	return score
}

// EvaluateRelative returns Evaluate from the perspective of the side to
// move: positive means the side to move is better off.
func EvaluateRelative(pos *board.Position) int {
	score := Evaluate(pos)
	if pos.SideToMove == board.Black {
		score = -score
	}
	return score
}

func pieceAttacks(pos *board.Position, pt board.PieceType, sq board.Square) board.Bitboard {
	switch pt {
	case board.Knight:
		return board.KnightAttacks(sq)
	case board.Bishop:
		return board.BishopAttacks(sq, pos.AllOccupied)
	case board.Rook:
		return board.RookAttacks(sq, pos.AllOccupied)
	case board.Queen:
		return board.QueenAttacks(sq, pos.AllOccupied)
	default:
		return 0
	}
}

// knightPlacementBonus penalizes rim/corner knights and rewards the classic
// c3/f3/c6/f6-type outposts, middlegame only.
func knightPlacementBonus(sq board.Square) int {
	file, rank := sq.File(), sq.Rank()
	if (file == 0 || file == 7) && (rank == 0 || rank == 7) {
		return knightCornerPenalty
	}
	if file == 0 || file == 7 || rank == 0 || rank == 7 {
		return knightRimPenalty
	}
	if (file == 2 || file == 5) && (rank == 2 || rank == 5) {
		return knightGoodPenalty
	}
	return 0
}

// centerControl rewards White for occupying d4/e4 and penalizes Black for
// occupying d5/e5 (mirrored), middlegame only.
func centerControl(pos *board.Position) int {
	score := 0
	whiteCenter := (pos.Occupied[board.White]) & (board.SquareBB(board.D4) | board.SquareBB(board.E4))
	score += whiteCenter.PopCount() * centerPawnBonus

	blackCenter := (pos.Occupied[board.Black]) & (board.SquareBB(board.D5) | board.SquareBB(board.E5))
	score -= blackCenter.PopCount() * centerPawnBonus

	return score
}

// kingShelter rewards friendly pawns on the king's file and the two
// adjacent files, one rank further from the back rank, in both phases.
func kingShelter(pos *board.Position, c board.Color, ksq board.Square) int {
	file := ksq.File()
	shield := board.AdjacentFilesBB[file] | board.FileMask[file]

	var frontRank board.Bitboard
	if c == board.White {
		frontRank = board.ForwardRanksBB[board.White][ksq.Rank()] & board.RankMask[min8(ksq.Rank()+1, 7)]
	} else {
		frontRank = board.ForwardRanksBB[board.Black][ksq.Rank()] & board.RankMask[max8(ksq.Rank()-1, 0)]
	}

	shieldSquares := shield & frontRank
	pawns := pos.Pieces[c][board.Pawn] & shieldSquares
	present := pawns.PopCount()
	missing := shieldSquares.PopCount() - present

	return present*pawnShieldBonus + missing*pawnShieldMissing
}

// pawnStructureScore returns the tapered (mg, eg) score for doubled,
// isolated and passed pawns, White-relative, cached by PawnKey.
func pawnStructureScore(pos *board.Position) (int, int) {
	if mg, eg, found := pawnCache.Probe(pos.PawnKey); found {
		return mg, eg
	}

	var mg, eg int
	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		them := c.Other()
		ownPawns := pos.Pieces[c][board.Pawn]
		enemyPawns := pos.Pieces[them][board.Pawn]

		for f := 0; f < 8; f++ {
			count := (ownPawns & board.FileMask[f]).PopCount()
			if count > 1 {
				mg += sign * doubledPawnPenalty * (count - 1)
				eg += sign * doubledPawnPenalty * (count - 1)
			}
		}

		bb := ownPawns
		for bb != 0 {
			sq := bb.PopLSB()
			file, rank := sq.File(), sq.Rank()

			if ownPawns&board.AdjacentFilesBB[file] == 0 {
				mg += sign * isolatedPawnPenalty
				eg += sign * isolatedPawnPenalty
			}

			front := board.ForwardRanksBB[c][rank]
			blockers := (board.FileMask[file] | board.AdjacentFilesBB[file]) & front
			if enemyPawns&blockers == 0 {
				relRank := rank
				if c == board.Black {
					relRank = 7 - rank
				}
				mg += sign * passedPawnBonusMg[relRank]
				eg += sign * passedPawnBonusEg[relRank]
			}
		}
	}

	pawnCache.Store(pos.PawnKey, mg, eg)
	return mg, eg
}

func min8(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max8(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// SEE (static exchange evaluation) estimates the material outcome of the
// full capture sequence on m's target square, from the moving side's
// perspective, by repeatedly resolving least-valuable attackers.
func SEE(pos *board.Position, m board.Move) int {
	from := m.From()
	to := m.To()

	attacker := pos.PieceAt(from)
	if attacker == board.NoPiece {
		return 0
	}

	var capturedValue int
	if m.IsEnPassant() {
		capturedValue = board.PieceValue[board.Pawn]
	} else {
		victim := pos.PieceAt(to)
		if victim == board.NoPiece {
			return 0
		}
		capturedValue = board.PieceValue[victim.Type()]
	}

	if m.IsPromotion() {
		capturedValue += board.PieceValue[m.Promotion()] - board.PieceValue[board.Pawn]
	}

	return seeSwap(pos, to, from, attacker, capturedValue)
}

// seeSwap runs the classic swap-list algorithm: alternately resolve the
// least valuable attacker on target, recording gains, then fold the list
// from the back via negamax to find the best line for the side on move.
func seeSwap(pos *board.Position, target, excludeFrom board.Square, firstAttacker board.Piece, initialGain int) int {
	var gain [32]int
	d := 0
	gain[d] = initialGain

	occupied := pos.AllOccupied &^ board.SquareBB(excludeFrom)
	attackerValue := board.PieceValue[firstAttacker.Type()]
	side := firstAttacker.Color().Other()

	for {
		d++
		gain[d] = attackerValue - gain[d-1]

		if maxInt(-gain[d-1], gain[d]) < 0 {
			break
		}

		attackerSq, attackerPiece := getLeastValuableAttacker(pos, target, side, occupied)
		if attackerSq == board.NoSquare {
			break
		}

		occupied &^= board.SquareBB(attackerSq)
		attackerValue = board.PieceValue[attackerPiece.Type()]
		side = side.Other()
	}

	for d--; d > 0; d-- {
		gain[d-1] = -maxInt(-gain[d-1], gain[d])
	}

	return gain[0]
}

// getLeastValuableAttacker finds side's cheapest attacker of target among
// occupied pieces, checked in ascending value order.
func getLeastValuableAttacker(pos *board.Position, target board.Square, side board.Color, occupied board.Bitboard) (board.Square, board.Piece) {
	pawns := pos.Pieces[side][board.Pawn]
	pawnAttacks := board.PawnAttacks(target, side.Other())
	if attackers := pawns & pawnAttacks & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Pawn, side)
	}

	knights := pos.Pieces[side][board.Knight]
	if attackers := knights & board.KnightAttacks(target) & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Knight, side)
	}

	bishopAttacks := board.BishopAttacks(target, occupied)
	if attackers := pos.Pieces[side][board.Bishop] & bishopAttacks & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Bishop, side)
	}

	rookAttacks := board.RookAttacks(target, occupied)
	if attackers := pos.Pieces[side][board.Rook] & rookAttacks & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Rook, side)
	}

	if attackers := pos.Pieces[side][board.Queen] & (bishopAttacks | rookAttacks) & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Queen, side)
	}

	if attackers := pos.Pieces[side][board.King] & board.KingAttacks(target) & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.King, side)
	}

	return board.NoSquare, board.NoPiece
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
