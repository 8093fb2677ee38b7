package engine

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hailam/chessplay/internal/board"
	"github.com/seekerror/logw"
)

// NumWorkers is the number of parallel search workers (matches CPU cores).
var NumWorkers = runtime.GOMAXPROCS(0)

// SearchInfo contains information about the current search.
type SearchInfo struct {
	Depth    int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // Permille of hash table used
}

// SearchLimits specifies constraints on the search.
type SearchLimits struct {
	Depth    int           // Maximum depth (0 = no limit)
	Nodes    uint64        // Maximum nodes (0 = no limit)
	MoveTime time.Duration // Time for this move (0 = no limit)
	Infinite bool          // Search until stopped
	MultiPV  int           // Number of principal variations to find (0 or 1 = single best move)
}

// SearchResult contains the result of a single PV search.
type SearchResult struct {
	Move  board.Move
	Score int
	PV    []board.Move
	Depth int
}

// Difficulty represents the AI difficulty level.
type Difficulty int

const (
	Easy   Difficulty = iota // 3 ply, 500ms
	Medium                   // 7 ply, 1s
	Hard                     // Maximum strength, 3s
)

// DifficultySettings maps difficulty to search limits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 3, MoveTime: 500 * time.Millisecond},
	Medium: {Depth: 7, MoveTime: 1 * time.Second},
	Hard:   {Depth: 40, MoveTime: 3 * time.Second}, // Max strength (time-limited)
}

// Pool is the Lazy SMP worker pool driving the search. Workers share only
// the transposition table and the pool's stop flag; node counts, move
// ordering and history state are kept per-worker, and the pool sums the
// workers' node counts when it needs a total.
type Pool struct {
	ctx       context.Context
	workers   []*Worker
	pawnTable *PawnTable
	tt        *TranspositionTable
	stopFlag  atomic.Bool

	difficulty Difficulty

	ttSizeMB     int
	multiPV      int
	moveOverhead time.Duration
	minThinkTime time.Duration
	chess960     bool

	// Position history for repetition detection
	rootPosHashes []uint64

	// Callbacks
	OnInfo func(SearchInfo)

	// activeTM is the time manager for the search currently in flight (nil
	// otherwise), guarded by activeTMMu so "ponderhit" can re-arm it.
	activeTMMu sync.Mutex
	activeTM   *TimeManager
}

// Ponderhit re-arms the clock on the in-flight search's time manager, if
// one is currently pondering. A no-op if nothing is in flight.
func (e *Pool) Ponderhit() {
	e.activeTMMu.Lock()
	tm := e.activeTM
	e.activeTMMu.Unlock()
	if tm != nil {
		tm.Ponderhit()
	}
}

// NewEngine creates a new chess engine with the given transposition table
// size in MB. ctx is threaded through to every log call the pool and its
// in-flight searches make; pass context.Background() if the caller has no
// narrower scope to offer.
func NewEngine(ctx context.Context, ttSizeMB int) *Pool {
	e := &Pool{
		ctx:          ctx,
		ttSizeMB:     ttSizeMB,
		tt:           NewTranspositionTable(ttSizeMB),
		pawnTable:    NewPawnTable(1),
		difficulty:   Medium,
		multiPV:      1,
		moveOverhead: 10 * time.Millisecond,
	}

	e.spawnWorkers(NumWorkers)

	return e
}

// spawnWorkers (re)builds the worker slice at the given pool size, wiring
// every worker to the pool's current transposition table.
func (e *Pool) spawnWorkers(n int) {
	if n < 1 {
		n = 1
	}
	logw.Infof(e.ctx, "[pool] creating %d workers (GOMAXPROCS=%d)", n, runtime.GOMAXPROCS(0))

	e.workers = make([]*Worker, n)
	for i := 0; i < n; i++ {
		workerPawnTable := NewPawnTable(1) // 1MB per worker
		e.workers[i] = NewWorker(i, e.tt, workerPawnTable, &e.stopFlag)
	}
}

// SetDifficulty sets the engine difficulty.
func (e *Pool) SetDifficulty(d Difficulty) {
	e.difficulty = d
}

// SetThreads resizes the worker pool (UCI "Threads" option). Any in-flight
// search must be stopped before calling this.
func (e *Pool) SetThreads(n int) {
	if n == len(e.workers) {
		return
	}
	e.spawnWorkers(n)
}

// ResizeHash reallocates the transposition table at the given size in MiB
// and rewires every worker to it (UCI "Hash" option). The table starts
// zero-filled, same as an explicit "Clear Hash".
func (e *Pool) ResizeHash(sizeMB int) {
	e.ttSizeMB = sizeMB
	e.tt = NewTranspositionTable(sizeMB)
	for _, w := range e.workers {
		w.tt = e.tt
	}
}

// SetMultiPV sets the number of principal variations to report.
func (e *Pool) SetMultiPV(n int) {
	if n < 1 {
		n = 1
	}
	e.multiPV = n
}

// SetMoveOverhead sets the per-move communication overhead subtracted from
// the time budget (UCI "Move Overhead", milliseconds).
func (e *Pool) SetMoveOverhead(ms int) {
	e.moveOverhead = time.Duration(ms) * time.Millisecond
}

// SetMinThinkTime sets the floor on time spent per move (UCI "Minimum
// Thinking Time", milliseconds).
func (e *Pool) SetMinThinkTime(ms int) {
	e.minThinkTime = time.Duration(ms) * time.Millisecond
}

// SetChess960 toggles Chess960 (Shredder-FEN castling) mode.
func (e *Pool) SetChess960(on bool) {
	e.chess960 = on
}

// MultiPV returns the configured MultiPV count.
func (e *Pool) MultiPV() int { return e.multiPV }

// SetPositionHistory sets the position history for repetition detection.
// This should be called before Search() with hashes from the game's move history.
func (e *Pool) SetPositionHistory(hashes []uint64) {
	e.rootPosHashes = make([]uint64, len(hashes))
	copy(e.rootPosHashes, hashes)

	for _, w := range e.workers {
		w.SetRootHistory(hashes)
	}
}

// Search finds the best move for the given position.
func (e *Pool) Search(pos *board.Position) board.Move {
	limits := DifficultySettings[e.difficulty]
	return e.SearchWithLimits(pos, limits)
}

// SearchWithLimits finds the best move with specific search limits.
// Uses Lazy SMP with multiple workers searching in parallel.
func (e *Pool) SearchWithLimits(pos *board.Position, limits SearchLimits) board.Move {
	e.stopFlag.Store(false)
	e.tt.NewSearch()

	for _, w := range e.workers {
		w.Reset()
	}

	startTime := time.Now()
	var bestMove board.Move
	var bestScore int
	var bestPV []board.Move
	var bestDepth int

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	var deadline time.Time
	if limits.MoveTime > 0 {
		deadline = startTime.Add(limits.MoveTime)
	}

	resultCh := make(chan WorkerResult, len(e.workers)*maxDepth)

	var wg sync.WaitGroup
	for i := 0; i < len(e.workers); i++ {
		wg.Add(1)
		go e.workerSearch(i, pos, maxDepth, resultCh, &wg)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(resultCh)
		close(done)
	}()

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

resultLoop:
	for {
		select {
		case <-ticker.C:
			if !deadline.IsZero() && time.Now().After(deadline) {
				e.stopFlag.Store(true)
				break resultLoop
			}

		case result, ok := <-resultCh:
			if !ok {
				break resultLoop
			}

			if result.Move != board.NoMove {
				if result.Depth > bestDepth ||
					(result.Depth == bestDepth && result.Score > bestScore) {
					bestMove = result.Move
					bestScore = result.Score
					bestPV = result.PV
					bestDepth = result.Depth

					if e.OnInfo != nil {
						elapsed := time.Since(startTime)
						e.OnInfo(SearchInfo{
							Depth:    bestDepth,
							Score:    bestScore,
							Nodes:    e.getTotalNodes(),
							Time:     elapsed,
							PV:       bestPV,
							HashFull: e.tt.HashFull(),
						})
					}

					if bestScore > MateScore-100 || bestScore < -MateScore+100 {
						e.stopFlag.Store(true)
						break resultLoop
					}
				}
			}

			if !deadline.IsZero() && time.Now().After(deadline) {
				e.stopFlag.Store(true)
				break resultLoop
			}

		case <-done:
			break resultLoop
		}
	}

	e.stopFlag.Store(true)
	<-done

	return bestMove
}

// SearchWithUCILimits finds the best move using UCI time controls.
// Supports wtime/btime/winc/binc for proper tournament time management.
func (e *Pool) SearchWithUCILimits(pos *board.Position, limits UCILimits, ply int) board.Move {
	limits.MoveOverhead = e.moveOverhead
	limits.MinThinkTime = e.minThinkTime
	limits.NumRootMoves = pos.GenerateLegalMoves().Len()

	tm := NewTimeManager()
	tm.Init(limits, pos.SideToMove, ply)

	e.activeTMMu.Lock()
	e.activeTM = tm
	e.activeTMMu.Unlock()
	defer func() {
		e.activeTMMu.Lock()
		e.activeTM = nil
		e.activeTMMu.Unlock()
	}()

	e.stopFlag.Store(false)
	e.tt.NewSearch()

	for _, w := range e.workers {
		w.Reset()
	}

	startTime := time.Now()
	var bestMove board.Move
	var bestScore int
	var bestPV []board.Move
	var bestDepth int
	var lastBestMove board.Move

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	resultCh := make(chan WorkerResult, len(e.workers)*maxDepth)

	var wg sync.WaitGroup
	for i := 0; i < len(e.workers); i++ {
		wg.Add(1)
		go e.workerSearch(i, pos, maxDepth, resultCh, &wg)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(resultCh)
		close(done)
	}()

	// Ticks independently of resultCh so a single iteration that runs past
	// the hard time budget gets aborted even with no new result pending.
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

resultLoop:
	for {
		select {
		case <-ticker.C:
			if tm.ShouldStop() {
				e.stopFlag.Store(true)
				break resultLoop
			}
			if limits.Nodes > 0 && e.getTotalNodes() >= limits.Nodes {
				e.stopFlag.Store(true)
				break resultLoop
			}

		case result, ok := <-resultCh:
			if !ok {
				break resultLoop
			}

			if result.Move != board.NoMove {
				if result.Depth > bestDepth ||
					(result.Depth == bestDepth && result.Score > bestScore) {

					bestmoveChanged := false
					if result.Depth > bestDepth {
						bestmoveChanged = result.Move != lastBestMove
						lastBestMove = result.Move
					}

					bestMove = result.Move
					bestScore = result.Score
					bestPV = result.PV
					bestDepth = result.Depth

					if e.OnInfo != nil {
						elapsed := time.Since(startTime)
						e.OnInfo(SearchInfo{
							Depth:    bestDepth,
							Score:    bestScore,
							Nodes:    e.getTotalNodes(),
							Time:     elapsed,
							PV:       bestPV,
							HashFull: e.tt.HashFull(),
						})
					}

					if bestScore > MateScore-100 || bestScore < -MateScore+100 {
						e.stopFlag.Store(true)
						break resultLoop
					}

					tm.OnIteration(bestmoveChanged, bestScore)
					if tm.PastOptimum() {
						e.stopFlag.Store(true)
						break resultLoop
					}
				}
			}

			if tm.ShouldStop() {
				e.stopFlag.Store(true)
				break resultLoop
			}

			if limits.Nodes > 0 && e.getTotalNodes() >= limits.Nodes {
				e.stopFlag.Store(true)
				break resultLoop
			}

		case <-done:
			break resultLoop
		}
	}

	e.stopFlag.Store(true)
	<-done

	return bestMove
}

// workerSearch runs iterative deepening search in a worker goroutine.
// Uses depth staggering: helper workers skip shallow depths to reduce
// redundant work across the pool (Lazy SMP).
func (e *Pool) workerSearch(workerID int, pos *board.Position, maxDepth int, resultCh chan<- WorkerResult, wg *sync.WaitGroup) {
	defer wg.Done()

	worker := e.workers[workerID]
	worker.InitSearch(pos.Copy())

	var prevScore int

	// Worker 0 (main): starts at depth 1
	// Workers 1-2: start at depth 2
	// Workers 3-5: start at depth 3
	// Workers 6+: start at depth 4
	startDepth := 1
	if workerID >= 6 {
		startDepth = 4
	} else if workerID >= 3 {
		startDepth = 3
	} else if workerID >= 1 {
		startDepth = 2
	}

	for depth := startDepth; depth <= maxDepth; depth++ {
		if e.stopFlag.Load() {
			return
		}

		var move board.Move
		var score int

		// Aspiration window: re-center on the previous iteration's score and
		// widen by 1.25x per failed probe until the true score is bracketed.
		if depth >= 5 {
			window := 15
			alpha := prevScore - window
			beta := prevScore + window

			for {
				move, score = worker.SearchDepth(depth, alpha, beta)

				if e.stopFlag.Load() {
					return
				}

				if score <= alpha {
					window = window * 5 / 4
					alpha = prevScore - window
					if alpha < -Infinity {
						alpha = -Infinity
					}
				} else if score >= beta {
					window = window * 5 / 4
					beta = prevScore + window
					if beta > Infinity {
						beta = Infinity
					}
				} else {
					break
				}

				if alpha <= -Infinity && beta >= Infinity {
					move, score = worker.SearchDepth(depth, -Infinity, Infinity)
					break
				}
			}
		} else {
			move, score = worker.SearchDepth(depth, -Infinity, Infinity)
		}

		if e.stopFlag.Load() {
			return
		}

		prevScore = score

		pv := worker.GetPV()
		resultCh <- WorkerResult{
			WorkerID: workerID,
			Depth:    depth,
			Score:    score,
			Move:     move,
			PV:       pv,
			Nodes:    worker.Nodes(),
		}
	}
}

// getTotalNodes returns the total nodes searched by all workers.
func (e *Pool) getTotalNodes() uint64 {
	var total uint64
	for _, w := range e.workers {
		total += w.Nodes()
	}
	return total
}

// SearchMultiPV finds multiple best moves (principal variations) for analysis.
// Each additional PV is found by re-running the main worker with the
// previously found moves excluded at the root.
func (e *Pool) SearchMultiPV(pos *board.Position, limits SearchLimits) []SearchResult {
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

		results = append(results, SearchResult{
			Move:  move,
			Score: score,
			PV:    pv,
			Depth: depth,
		})
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

// searchWithExclusions searches for the best move excluding certain moves at
// the root, using the pool's main worker single-threaded.
func (e *Pool) searchWithExclusions(pos *board.Position, limits SearchLimits, excluded []board.Move) (board.Move, int, []board.Move, int) {
	worker := e.workers[0]
	worker.Reset()
	worker.SetExcludedMoves(excluded)
	worker.InitSearch(pos.Copy())
	e.tt.NewSearch()

	startTime := time.Now()
	var bestMove board.Move
	var bestScore int
	var bestDepth int

	maxDepth := MaxPly
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

		move, score := worker.SearchDepth(depth, -Infinity, Infinity)

		if move != board.NoMove {
			bestMove = move
			bestScore = score
			bestDepth = depth
		}

		if score > MateScore-100 || score < -MateScore+100 {
			break
		}

		if !deadline.IsZero() {
			elapsed := time.Since(startTime)
			remaining := limits.MoveTime - elapsed
			if remaining < elapsed {
				break
			}
		}
	}

	pv := worker.GetPV()
	worker.SetExcludedMoves(nil)

	return bestMove, bestScore, pv, bestDepth
}

// Stop stops the current search.
func (e *Pool) Stop() {
	e.stopFlag.Store(true)
}

// Clear clears the transposition table and other caches.
func (e *Pool) Clear() {
	e.tt.Clear()
	for _, w := range e.workers {
		w.orderer.Clear()
	}
}

// Perft performs a perft test (for debugging move generation).
func (e *Pool) Perft(pos *board.Position, depth int) uint64 {
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

// Evaluate returns the static evaluation of a position.
func (e *Pool) Evaluate(pos *board.Position) int {
	return Evaluate(pos)
}

// ScoreToString converts a score to a human-readable string.
func ScoreToString(score int) string {
	if score > MateScore-100 {
		mateIn := (MateScore - score + 1) / 2
		return "Mate in " + itoa(mateIn)
	}
	if score < -MateScore+100 {
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

	return sign + itoa(pawns) + "." + itoa(centipawns)
}

// Simple integer to string (avoid fmt import)
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
