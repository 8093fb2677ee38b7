package engine

import (
	"math/bits"
	"sync/atomic"

	"github.com/hailam/chessplay/internal/board"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTExact      TTFlag = iota // Exact score
	TTLowerBound               // Failed high (beta cutoff)
	TTUpperBound               // Failed low
)

// TTEntry is the decoded view of a slot returned by Probe. The table itself
// never materializes this struct in storage; see ttSlot below.
type TTEntry struct {
	Key      uint32     // Upper 32 bits of the position key, for verification
	BestMove board.Move // Best move found
	Score    int16      // Score (bounded by flag), mate-distance-adjusted
	Depth    int8       // Search depth
	Flag     TTFlag     // Type of bound
	Age      uint8      // Generation this slot was last written in
	IsPV     bool       // Whether this slot was written from a PV node
}

// clusterSize is the number of slots sharing a probe bucket, chosen to pack
// a cluster into one 64-byte cache line (two 8-byte atomic words per slot).
const clusterSize = 4

// ttSlot is one lock-free transposition slot: a 64-bit key word and a 64-bit
// packed data word, each written and read with a single atomic 64-bit
// operation. There is no per-slot lock. A writer never touches the two
// words together under a mutex, so a concurrent reader can observe a key
// from one store paired with data from another ("torn" with respect to a
// single logical update) - Probe's key comparison rejects that pairing as a
// miss rather than returning corrupted data, which is the same tolerance a
// lock-free Zobrist-keyed table gets from XOR-ing the move into the key
// (the "lockless hashing" trick): a torn read just looks like a stale or
// absent entry, never like a different, valid one.
type ttSlot struct {
	key  atomic.Uint64
	data atomic.Uint64
}

// ttCluster groups clusterSize slots behind one probe index.
type ttCluster struct {
	slots [clusterSize]ttSlot
}

// TranspositionTable is a cluster-bucketed, generation-aged transposition
// table shared by every search worker with no locking: reads and writes on
// a slot's key/data pair are independent relaxed atomic loads/stores.
type TranspositionTable struct {
	clusters []ttCluster
	count    uint64 // number of clusters
	age      atomic.Uint32

	hits   atomic.Uint64
	probes atomic.Uint64
}

// packData encodes a decoded entry's non-key fields into a single 64-bit
// word: move(16) | score(16) | depth(8) | flag(2) | isPV(1) | age(8).
func packData(depth int, score int16, flag TTFlag, move board.Move, age uint8, isPV bool) uint64 {
	var pv uint64
	if isPV {
		pv = 1
	}
	return uint64(uint16(move)) |
		uint64(uint16(score))<<16 |
		uint64(uint8(int8(depth)))<<32 |
		uint64(flag)<<40 |
		pv<<42 |
		uint64(age)<<43
}

func unpackData(data uint64) (depth int, score int16, flag TTFlag, move board.Move, age uint8, isPV bool) {
	move = board.Move(uint16(data))
	score = int16(uint16(data >> 16))
	depth = int(int8(uint8(data >> 32)))
	flag = TTFlag((data >> 40) & 0x3)
	isPV = (data>>42)&0x1 != 0
	age = uint8((data >> 43) & 0xFF)
	return
}

// clusterIndex maps a 64-bit key to one of tt.count clusters via the high
// half of a 128-bit multiply, avoiding a modular division and working for
// any cluster count (not just a power of two).
func clusterIndex(key, count uint64) uint64 {
	hi, _ := bits.Mul64(key, count)
	return hi
}

// NewTranspositionTable creates a transposition table with the given size in MB.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	const clusterBytes = 64 // clusterSize slots * 2 atomic uint64 words each
	numClusters := (uint64(sizeMB) * 1024 * 1024) / clusterBytes
	if numClusters == 0 {
		numClusters = 1
	}

	return &TranspositionTable{
		clusters: make([]ttCluster, numClusters),
		count:    numClusters,
	}
}

// Probe looks up a position in the transposition table.
// Returns the entry and true if found, otherwise returns empty entry and false.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	tt.probes.Add(1)

	cluster := &tt.clusters[clusterIndex(hash, tt.count)]
	for i := range cluster.slots {
		slot := &cluster.slots[i]
		key := slot.key.Load()
		if key != hash {
			continue
		}
		data := slot.data.Load()
		depth, score, flag, move, age, isPV := unpackData(data)

		tt.hits.Add(1)
		return TTEntry{
			Key:      uint32(hash >> 32),
			BestMove: move,
			Score:    score,
			Depth:    int8(depth),
			Flag:     flag,
			Age:      age,
			IsPV:     isPV,
		}, true
	}

	return TTEntry{}, false
}

// Store saves a position in the transposition table. Inside the cluster, a
// matching key is always reused; otherwise the slot minimizing
// depth - 4*genDistance (older, shallower entries go first) is evicted,
// with TTExact entries charged half the age penalty so they last longer.
// The new entry's depth is not compared with the victim's.
func (tt *TranspositionTable) Store(hash uint64, depth int, score int, flag TTFlag, bestMove board.Move, isPV bool) {
	board.Assertf(flag == TTExact || flag == TTLowerBound || flag == TTUpperBound,
		"illegal transposition table bound flag %d", flag)

	cluster := &tt.clusters[clusterIndex(hash, tt.count)]
	currentAge := uint8(tt.age.Load())

	// First preference: reuse a slot already holding this key, or an empty
	// one. Only fall back to evicting an occupied slot if neither exists.
	var victim *ttSlot
	for i := range cluster.slots {
		slot := &cluster.slots[i]
		key := slot.key.Load()
		if key == hash || key == 0 {
			victim = slot
			break
		}
	}

	if victim == nil {
		worstScore := int(^uint(0) >> 1) // max int
		for i := range cluster.slots {
			slot := &cluster.slots[i]
			d, _, fl, _, age, _ := unpackData(slot.data.Load())
			genDist := int(currentAge - age)
			penalty := 4 * genDist
			if fl == TTExact {
				penalty /= 2 // exact bounds age out more slowly
			}
			evictScore := d - penalty
			if evictScore < worstScore {
				worstScore = evictScore
				victim = slot
			}
		}
	}

	// Preserve the existing best move when this store doesn't carry one and
	// it is merely refreshing the same key (e.g. a quiescence stand-pat
	// cutoff at a node whose PV move was already known).
	if bestMove == board.NoMove && victim.key.Load() == hash {
		if _, _, _, oldMove, _, _ := unpackData(victim.data.Load()); oldMove != board.NoMove {
			bestMove = oldMove
		}
	}

	victim.data.Store(packData(depth, int16(score), flag, bestMove, currentAge, isPV))
	victim.key.Store(hash)
}

// NewSearch advances the generation counter for a new search.
// This helps with replacement decisions.
func (tt *TranspositionTable) NewSearch() {
	tt.age.Add(1)
}

// Clear clears the transposition table.
func (tt *TranspositionTable) Clear() {
	for i := range tt.clusters {
		for j := range tt.clusters[i].slots {
			tt.clusters[i].slots[j].key.Store(0)
			tt.clusters[i].slots[j].data.Store(0)
		}
	}
	tt.age.Store(0)
	tt.hits.Store(0)
	tt.probes.Store(0)
}

// HashFull returns the permille (parts per thousand) of the table that is
// used, sampling the first 1000 clusters and counting slots whose
// generation matches the current one.
func (tt *TranspositionTable) HashFull() int {
	sampleSize := uint64(1000)
	if sampleSize > tt.count {
		sampleSize = tt.count
	}

	currentAge := uint8(tt.age.Load())
	used := 0
	for i := uint64(0); i < sampleSize; i++ {
		for j := range tt.clusters[i].slots {
			key := tt.clusters[i].slots[j].key.Load()
			if key == 0 {
				continue
			}
			_, _, _, _, age, _ := unpackData(tt.clusters[i].slots[j].data.Load())
			if age == currentAge {
				used++
			}
		}
	}

	return (used * 1000) / int(sampleSize*clusterSize)
}

// HitRate returns the cache hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	probes := tt.probes.Load()
	if probes == 0 {
		return 0
	}
	return float64(tt.hits.Load()) / float64(probes) * 100
}

// Size returns the number of clusters in the table.
func (tt *TranspositionTable) Size() uint64 {
	return tt.count
}

// AdjustScoreFromTT adjusts a score from the transposition table.
// Mate scores need to be adjusted based on ply distance.
func AdjustScoreFromTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}

// AdjustScoreToTT adjusts a score for storage in the transposition table.
func AdjustScoreToTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}
