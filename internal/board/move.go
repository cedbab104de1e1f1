package board

import "fmt"

// Move encodes a chess move in 16 bits:
// bits 0-5:   to square (0-63)
// bits 6-11:  from square (0-63)
// bits 12-13: move kind (Normal, Promotion, EnPassant, Castling)
// bits 14-15: promotion type offset (0=Knight, 1=Bishop, 2=Rook, 3=Queen),
//
//	meaningful only when the kind is Promotion.
type Move uint16

// Move kinds.
const (
	KindNormal    uint16 = 0 << 12
	KindPromotion uint16 = 1 << 12
	KindEnPassant uint16 = 2 << 12
	KindCastling  uint16 = 3 << 12
)

// NoMove is the sentinel for "no move" (from == to == A1, unreachable as a
// real move since a piece never moves to its own square).
const NoMove Move = 0

// NullMove is the sentinel for a passed ("null") move, used by null-move
// pruning bookkeeping. It never decodes to a valid from/to pair.
const NullMove Move = 65

// NewMove creates a normal move.
func NewMove(from, to Square) Move {
	return Move(to) | Move(from)<<6
}

// NewPromotion creates a promotion move.
func NewPromotion(from, to Square, promo PieceType) Move {
	promoIdx := promo - Knight
	return Move(to) | Move(from)<<6 | Move(KindPromotion) | Move(promoIdx)<<14
}

// NewEnPassant creates an en passant capture move.
func NewEnPassant(from, to Square) Move {
	return Move(to) | Move(from)<<6 | Move(KindEnPassant)
}

// NewCastling creates a castling move (king's movement only; rook relocation
// is derived from the king's from/to squares during make/unmake).
func NewCastling(from, to Square) Move {
	return Move(to) | Move(from)<<6 | Move(KindCastling)
}

// To returns the destination square.
func (m Move) To() Square {
	return Square(m & 0x3F)
}

// From returns the origin square.
func (m Move) From() Square {
	return Square((m >> 6) & 0x3F)
}

// Kind returns the move kind bits.
func (m Move) Kind() uint16 {
	return uint16(m) & 0x3000
}

// Promotion returns the promotion piece type; only meaningful if IsPromotion().
func (m Move) Promotion() PieceType {
	return PieceType((m>>14)&3) + Knight
}

// IsPromotion returns true if this is a promotion move.
func (m Move) IsPromotion() bool {
	return m.Kind() == KindPromotion
}

// IsCastling returns true if this is a castling move.
func (m Move) IsCastling() bool {
	return m.Kind() == KindCastling
}

// IsEnPassant returns true if this is an en passant capture.
func (m Move) IsEnPassant() bool {
	return m.Kind() == KindEnPassant
}

// IsCapture returns true if this move captures a piece.
func (m Move) IsCapture(pos *Position) bool {
	if m.IsEnPassant() {
		return true
	}
	return !pos.IsEmpty(m.To())
}

// IsQuiet returns true if this is not a capture or promotion.
func (m Move) IsQuiet(pos *Position) bool {
	return !m.IsCapture(pos) && !m.IsPromotion()
}

// String returns the UCI notation of the move (e.g., "e2e4", "e7e8q").
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	if m == NullMove {
		return "0000"
	}

	s := m.From().String() + m.To().String()
	if m.IsPromotion() {
		promoChars := []byte{'n', 'b', 'r', 'q'}
		s += string(promoChars[m.Promotion()-Knight])
	}
	return s
}

// ParseMove parses a UCI notation move string in the context of pos, which
// supplies the piece identity needed to disambiguate castling/en-passant
// from an otherwise-plain from/to pair.
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	if len(s) == 5 {
		var promo PieceType
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		return NewPromotion(from, to, promo), nil
	}

	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("no piece at %s", from)
	}
	pt := piece.Type()

	if pt == King && abs(int(to)-int(from)) == 2 {
		return NewCastling(from, to), nil
	}
	if pt == Pawn && to == pos.EnPassant {
		return NewEnPassant(from, to), nil
	}

	return NewMove(from, to), nil
}

// MoveList is a fixed-capacity move buffer to avoid per-position allocation.
type MoveList struct {
	moves [256]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList {
	return &MoveList{}
}

// Add appends a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

// Set overwrites the move at index i.
func (ml *MoveList) Set(i int, m Move) {
	ml.moves[i] = m
}

// Swap exchanges two moves in the list.
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

// Clear empties the list without releasing the backing array.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains performs a linear scan for m.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns the list's contents as a slice sharing the backing array.
func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}

// UndoInfo is the state-stack record a search frame owns for the lifetime of
// one do/undo pair: castling rights, en-passant square, halfmove clock,
// captured piece, checkers and the pre-move hash, pawn key and material key.
// MakeMove does not fill KingSquare, Pieces, Occupied or AllOccupied;
// UnmakeMove restores the board by moving the pieces back. Search allocates
// these on its own call-stack frames (one per ply); they never survive the
// search.
type UndoInfo struct {
	CapturedPiece  Piece
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	Hash           uint64
	PawnKey        uint64
	MaterialKey    uint64
	Checkers       Bitboard
	KingSquare     [2]Square
	Pieces         [2][6]Bitboard
	Occupied       [2]Bitboard
	AllOccupied    Bitboard
	Valid          bool
}
