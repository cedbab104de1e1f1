package engine

import (
	"github.com/corvidchess/corvid/internal/board"
)

// Bound indicates what kind of score a transposition entry stores.
type Bound uint8

const (
	BoundNone  Bound = 0
	BoundUpper Bound = 1 // Score is an upper bound (failed low)
	BoundLower Bound = 2 // Score is a lower bound (failed high / beta cutoff)
	BoundExact Bound = 3 // Score is exact
)

// ttEntry is one 10-byte slot. Three of these plus two padding bytes make a
// 32-byte cache-line-friendly cluster.
type ttEntry struct {
	key16     uint16
	move      board.Move
	value     int16
	eval      int16
	genBound8 uint8 // top 5 bits: generation; bit2: pv flag; bits0-1: bound
	depth8    uint8
}

const (
	genCycleLength = 8 // NewSearch() advances the generation counter by this
	genMask        = uint8(0xF8)
)

func (e *ttEntry) isEmpty() bool {
	return e.depth8 == 0
}

func (e *ttEntry) generation() uint8 {
	return e.genBound8 & genMask
}

func (e *ttEntry) bound() Bound {
	return Bound(e.genBound8 & 0x3)
}

func (e *ttEntry) isPV() bool {
	return e.genBound8&0x4 != 0
}

// Move returns the stored best/refutation move.
func (e *ttEntry) Move() board.Move { return e.move }

// Value returns the stored score (relative to the side to move, TT-adjusted).
func (e *ttEntry) Value() int { return int(e.value) }

// Eval returns the stored static evaluation.
func (e *ttEntry) Eval() int { return int(e.eval) }

// Depth returns the stored search depth.
func (e *ttEntry) Depth() int { return int(e.depth8) }

// Bound returns the stored bound type.
func (e *ttEntry) Bound() Bound { return e.bound() }

// IsPV returns whether this entry was stored from a PV node.
func (e *ttEntry) IsPV() bool { return e.isPV() }

// replacementScore computes how "worth keeping" an occupied entry is; lower
// scores are preferred for eviction. Entries from stale generations are
// penalized via relativeAge, which costs 16 depth units per generation of age.
func (e *ttEntry) replacementScore(curGen uint8) int {
	relativeAge := (genCycleLength + curGen - e.generation()) & genMask
	return int(e.depth8) - int(relativeAge)*2
}

// ttCluster holds a small bucket of entries sharing the same index. Probing
// scans the whole cluster so that a handful of colliding keys can coexist.
type ttCluster struct {
	entries [3]ttEntry
	_       [2]byte // pad to 32 bytes
}

// TranspositionTable is a hash table for storing search results, organized
// as clusters of three entries to absorb index collisions cheaply.
type TranspositionTable struct {
	clusters   []ttCluster
	mask       uint64
	generation uint8

	hits   uint64
	probes uint64
}

// NewTranspositionTable creates a transposition table sized to approximately
// sizeMB megabytes, rounded down to a power-of-two cluster count.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	if sizeMB < 1 {
		sizeMB = 1
	}
	const clusterSize = 32
	numClusters := (uint64(sizeMB) * 1024 * 1024) / clusterSize
	numClusters = roundDownToPowerOf2(numClusters)
	if numClusters == 0 {
		numClusters = 1
	}

	return &TranspositionTable{
		clusters: make([]ttCluster, numClusters),
		mask:     numClusters - 1,
	}
}

func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// Probe looks up hash in the table. If found, it returns the matching entry
// pointer and true. If not found, it returns the best replacement candidate
// within the owning cluster (by lowest replacementScore) and false; callers
// pass that pointer to Save so the write lands in the same slot.
func (tt *TranspositionTable) Probe(hash uint64) (*ttEntry, bool) {
	tt.probes++
	cluster := &tt.clusters[hash&tt.mask]
	key16 := uint16(hash >> 48)

	var replace *ttEntry
	replaceScore := int(^uint(0) >> 1)

	for i := range cluster.entries {
		e := &cluster.entries[i]
		if e.isEmpty() || e.key16 == key16 {
			if !e.isEmpty() {
				tt.hits++
			}
			return e, !e.isEmpty()
		}
		if s := e.replacementScore(tt.generation); s < replaceScore {
			replaceScore = s
			replace = e
		}
	}
	return replace, false
}

// Save writes a search result into entry (as returned by Probe for the same
// hash). The move is kept from the previous occupant when the new move is
// None and the key is unchanged; the rest of the record is refreshed only
// when the key differs or the new data is at least as valuable as what's
// already stored.
func (tt *TranspositionTable) Save(entry *ttEntry, hash uint64, value, eval int, isPV bool, bound Bound, depth int, move board.Move) {
	key16 := uint16(hash >> 48)

	if move != board.NoMove || key16 != entry.key16 {
		entry.move = move
	}

	if key16 != entry.key16 ||
		depth+2 > int(entry.depth8)-4 ||
		bound == BoundExact {
		entry.key16 = key16
		entry.value = int16(value)
		entry.eval = int16(eval)
		pvBit := uint8(0)
		if isPV {
			pvBit = 0x4
		}
		entry.genBound8 = (tt.generation & genMask) | pvBit | uint8(bound)
		if depth < 0 {
			depth = 0
		}
		if depth > 255 {
			depth = 255
		}
		entry.depth8 = uint8(depth)
	}
}

// NewSearch advances the generation counter, marking all previously-stored
// entries as progressively stale for replacement purposes.
func (tt *TranspositionTable) NewSearch() {
	tt.generation += genCycleLength
}

// Clear empties the table and resets statistics.
func (tt *TranspositionTable) Clear() {
	for i := range tt.clusters {
		tt.clusters[i] = ttCluster{}
	}
	tt.generation = 0
	tt.hits = 0
	tt.probes = 0
}

// Resize reallocates the table to a new size in megabytes, discarding all
// stored entries.
func (tt *TranspositionTable) Resize(sizeMB int) {
	fresh := NewTranspositionTable(sizeMB)
	*tt = *fresh
}

// HashFull returns the permille (parts per thousand) of the table in use,
// sampled from the first 1000 clusters.
func (tt *TranspositionTable) HashFull() int {
	sampleSize := 1000
	if uint64(sampleSize) > uint64(len(tt.clusters)) {
		sampleSize = len(tt.clusters)
	}
	if sampleSize == 0 {
		return 0
	}

	used := 0
	for i := 0; i < sampleSize; i++ {
		for j := range tt.clusters[i].entries {
			e := &tt.clusters[i].entries[j]
			if !e.isEmpty() && e.generation() == tt.generation {
				used++
			}
		}
	}
	return (used * 1000) / (sampleSize * 3)
}

// HitRate returns the cache hit rate as a percentage, for diagnostics.
func (tt *TranspositionTable) HitRate() float64 {
	if tt.probes == 0 {
		return 0
	}
	return float64(tt.hits) / float64(tt.probes) * 100
}

// Size returns the number of clusters in the table.
func (tt *TranspositionTable) Size() uint64 {
	return uint64(len(tt.clusters))
}

// AdjustScoreFromTT converts a mate score stored relative to the TT-node's
// own ply back into a score relative to the root.
func AdjustScoreFromTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}

// AdjustScoreToTT converts a root-relative mate score into one relative to
// the node being stored, so it remains meaningful if probed at another ply.
func AdjustScoreToTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}
