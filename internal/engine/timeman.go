package engine

import (
	"math"
	"time"

	"github.com/hailam/chessplay/internal/board"
)

// UCILimits contains UCI time control parameters.
type UCILimits struct {
	Time          [2]time.Duration // wtime, btime (remaining time for each color)
	Inc           [2]time.Duration // winc, binc (increment per move)
	MovesToGo     int              // moves until next time control (0 = sudden death)
	MoveTime      time.Duration    // fixed time per move (overrides other time controls)
	Depth         int              // maximum search depth
	Nodes         uint64           // maximum nodes to search
	Infinite      bool             // search until stopped
	Ponder        bool             // ponder mode
	MoveOverhead  time.Duration    // UCI "Move Overhead": communication lag to subtract
	MinThinkTime  time.Duration    // UCI "Minimum Thinking Time": floor on optimum
	NumRootMoves  int              // number of legal root moves (single-reply shortcut)
}

// bestMoveStabilityScale indexes the number of consecutive iterations the
// root bestmove has held; index 4+ reuses the last entry.
var bestMoveStabilityScale = [5]float64{2.50, 1.20, 0.90, 0.80, 0.75}

// TimeManager allocates the optimal/maximal search budget
// from clock/increment/movestogo and refines the optimal budget per
// completed iteration using bestmove stability and score volatility.
type TimeManager struct {
	optimumTime time.Duration // budget: stop a depth iteration past this
	maximumTime time.Duration // budget: hard stop mid-iteration
	baseOptimum time.Duration // optimum before per-iteration stability/score scaling
	startTime   time.Time

	ponder       bool
	minThinkTime time.Duration

	lastScore   int
	haveScore   bool
	bestmoveRun int // consecutive iterations the current bestmove has held
}

// NewTimeManager creates a new time manager.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// Init initializes the time manager for a new search. ply is the current
// game ply (half-move number); the budget does not depend on it, and a
// missing movestogo is always taken as 40.
func (tm *TimeManager) Init(limits UCILimits, us board.Color, ply int) {
	tm.startTime = time.Now()
	tm.ponder = limits.Ponder
	tm.minThinkTime = limits.MinThinkTime
	tm.haveScore = false
	tm.bestmoveRun = 0

	// Fixed move time mode.
	if limits.MoveTime > 0 {
		tm.optimumTime = limits.MoveTime
		tm.maximumTime = limits.MoveTime
		tm.baseOptimum = tm.optimumTime
		return
	}

	// Infinite, depth-limited, or node-limited mode: no clock budget.
	if limits.Infinite || limits.Time[us] == 0 {
		tm.optimumTime = time.Hour
		tm.maximumTime = time.Hour
		tm.baseOptimum = tm.optimumTime
		return
	}

	overhead := limits.MoveOverhead
	if overhead < 0 {
		overhead = 0
	}

	mtg := limits.MovesToGo
	if mtg == 0 {
		mtg = 40
	}

	timeLeft := limits.Time[us] - overhead
	if timeLeft < time.Millisecond {
		timeLeft = time.Millisecond
	}
	inc := limits.Inc[us]

	// avg = time_left/mtg + inc; max = time_left/mtg^0.4 + inc
	avg := timeLeft/time.Duration(mtg) + inc
	maxShare := time.Duration(float64(timeLeft)/math.Pow(float64(mtg), 0.4)) + inc

	if tm.ponder {
		avg = time.Duration(float64(avg) * 1.25)
	}

	if avg > timeLeft-time.Millisecond {
		avg = timeLeft - time.Millisecond
	}
	if maxShare > timeLeft-time.Millisecond {
		maxShare = timeLeft - time.Millisecond
	}
	if avg < 0 {
		avg = 0
	}
	if maxShare < 0 {
		maxShare = 0
	}

	// Single legal reply: no point thinking, per the 0.2 stability scale.
	if limits.NumRootMoves == 1 {
		avg = time.Duration(float64(avg) * 0.2)
	}

	tm.optimumTime = maxShare
	tm.maximumTime = maxShare
	tm.baseOptimum = avg

	if tm.optimumTime < tm.minThinkTime {
		tm.optimumTime = tm.minThinkTime
	}

	// Refine immediately so the very first iteration already sees the
	// per-iteration-adjusted optimum rather than the raw maximal share.
	tm.refineOptimum()
}

// refineOptimum recomputes optimumTime from baseOptimum using the
// bestmove-stability table and the score-delta scale.
func (tm *TimeManager) refineOptimum() {
	stabilityScale := bestMoveStabilityScale[len(bestMoveStabilityScale)-1]
	if tm.bestmoveRun < len(bestMoveStabilityScale) {
		stabilityScale = bestMoveStabilityScale[tm.bestmoveRun]
	}

	scaled := time.Duration(float64(tm.baseOptimum) * stabilityScale)
	if scaled > tm.maximumTime {
		scaled = tm.maximumTime
	}
	if scaled < tm.minThinkTime {
		scaled = tm.minThinkTime
	}
	tm.optimumTime = scaled
}

// OnIteration updates the time manager after a completed iterative-deepening
// iteration: whether the root bestmove changed, and the score delta since
// the previous iteration ("2^(-Δscore/100) clamped to [0.5, 2.0]").
func (tm *TimeManager) OnIteration(bestmoveChanged bool, score int) {
	if bestmoveChanged {
		tm.bestmoveRun = 0
	} else {
		tm.bestmoveRun++
	}

	scoreScale := 1.0
	if tm.haveScore {
		delta := float64(score - tm.lastScore)
		scoreScale = math.Pow(2, -delta/100)
		if scoreScale < 0.5 {
			scoreScale = 0.5
		}
		if scoreScale > 2.0 {
			scoreScale = 2.0
		}
	}
	tm.lastScore = score
	tm.haveScore = true

	tm.refineOptimum()
	tm.optimumTime = time.Duration(float64(tm.optimumTime) * scoreScale)
	if tm.optimumTime > tm.maximumTime {
		tm.optimumTime = tm.maximumTime
	}
	if tm.optimumTime < tm.minThinkTime {
		tm.optimumTime = tm.minThinkTime
	}
}

// Elapsed returns the time elapsed since search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// OptimumTime returns the target time for this move: crossing it should
// stop iterative deepening at the next depth boundary, never mid-iteration.
func (tm *TimeManager) OptimumTime() time.Duration {
	return tm.optimumTime
}

// MaximumTime returns the hard budget: crossing it must abort mid-iteration.
func (tm *TimeManager) MaximumTime() time.Duration {
	return tm.maximumTime
}

// ShouldStop reports the hard (maximal) stop condition. A pondering search
// is never hard-stopped by the clock. Elapsed time still counts from the
// start of the search, so after Ponderhit the maximal budget covers the
// pondering time too.
func (tm *TimeManager) ShouldStop() bool {
	if tm.ponder {
		return false
	}
	return tm.Elapsed() >= tm.maximumTime
}

// PastOptimum reports the soft (optimal) stop condition checked at
// iteration boundaries. Also disabled while pondering.
func (tm *TimeManager) PastOptimum() bool {
	if tm.ponder {
		return false
	}
	return tm.Elapsed() >= tm.optimumTime
}

// Ponderhit switches the time manager out of ponder mode, re-arming the
// normal optimal/maximal stop conditions from the current elapsed time.
func (tm *TimeManager) Ponderhit() {
	tm.ponder = false
}
