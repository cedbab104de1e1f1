package engine

import (
	"time"

	"github.com/corvidchess/corvid/internal/board"
)

// UCILimits contains UCI time control parameters for a single `go` command.
type UCILimits struct {
	Time      [2]time.Duration // wtime, btime: remaining time for each color
	Inc       [2]time.Duration // winc, binc: increment per move
	MovesToGo int              // moves until next time control (0 = sudden death)
	MoveTime  time.Duration    // fixed time per move, overrides the formula below
	Depth     int              // maximum search depth, 0 = unlimited
	Nodes     uint64           // maximum nodes to search, 0 = unlimited
	Mate      int              // search for a mate in N moves, 0 = not requested
	Infinite  bool             // search until `stop`
}

// TimeManager allocates a time budget for one search and tracks elapsed time
// against it.
type TimeManager struct {
	optimumTime time.Duration
	maximumTime time.Duration
	startTime   time.Time
}

// NewTimeManager creates an unarmed time manager.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// Init computes the time budget for the side to move: the optimum is
// (remaining / moves_to_go) + 0.8*increment, clamped to [10ms, remaining/3].
// Fixed movetime and infinite/depth/node-limited modes bypass the formula.
func (tm *TimeManager) Init(limits UCILimits, us board.Color) {
	tm.startTime = time.Now()

	if limits.MoveTime > 0 {
		tm.optimumTime = limits.MoveTime
		tm.maximumTime = limits.MoveTime
		return
	}

	if limits.Infinite || limits.Depth > 0 || limits.Nodes > 0 || limits.Mate > 0 {
		tm.optimumTime = 365 * 24 * time.Hour
		tm.maximumTime = tm.optimumTime
		return
	}

	remaining := limits.Time[us]
	if remaining <= 0 {
		tm.optimumTime = 365 * 24 * time.Hour
		tm.maximumTime = tm.optimumTime
		return
	}

	mtg := limits.MovesToGo
	if mtg <= 0 {
		mtg = 30
	}

	inc := limits.Inc[us]
	optimum := remaining/time.Duration(mtg) + (inc*8)/10

	minBudget := 10 * time.Millisecond
	maxBudget := remaining / 3

	if optimum < minBudget {
		optimum = minBudget
	}
	if optimum > maxBudget {
		optimum = maxBudget
	}
	if optimum < 1 {
		optimum = 1
	}

	tm.optimumTime = optimum
	tm.maximumTime = optimum
}

// Elapsed returns the time elapsed since the search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// OptimumTime returns the target time for this move.
func (tm *TimeManager) OptimumTime() time.Duration {
	return tm.optimumTime
}

// MaximumTime returns the hard time limit for this move.
func (tm *TimeManager) MaximumTime() time.Duration {
	return tm.maximumTime
}

// ShouldStop reports whether the hard time limit has been reached.
func (tm *TimeManager) ShouldStop() bool {
	return tm.Elapsed() >= tm.maximumTime
}

// PastOptimum reports whether the soft (optimum) time budget has been used
// up; iterative deepening should not start another depth past this point.
func (tm *TimeManager) PastOptimum() bool {
	return tm.Elapsed() >= tm.optimumTime
}
