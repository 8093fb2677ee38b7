package engine

import "github.com/hailam/chessplay/internal/board"

// PawnEntry stores cached pawn structure evaluation, keyed by the pawn-only
// Zobrist key. Besides the scalar scorepair, it carries the per-color attack,
// attack-span, and passed-pawn bitboards derived from the same pawn skeleton
// so that passed-pawn, outpost, and threat evaluation can reuse them instead
// of recomputing from the piece bitboards on every call.
type PawnEntry struct {
	Key      uint64
	MgScore  int16
	EgScore  int16
	AttackBB [2]board.Bitboard // squares attacked by each color's pawns
	SpanBB   [2]board.Bitboard // squares each color's pawns could ever attack as they advance
	PassedBB [2]board.Bitboard // each color's passed pawns
}

// PawnTable is a hash table for caching pawn structure evaluations.
// Each worker owns its own table; there is no cross-worker sharing.
type PawnTable struct {
	entries []PawnEntry
	mask    uint64
}

// NewPawnTable creates a new pawn hash table with the given size in MB.
func NewPawnTable(sizeMB int) *PawnTable {
	entrySize := 64 // size of PawnEntry: key, two int16 scores padded to 8 bytes, six bitboards
	numEntries := (sizeMB * 1024 * 1024) / entrySize

	// Round down to power of 2
	size := 1
	for size*2 <= numEntries {
		size *= 2
	}

	return &PawnTable{
		entries: make([]PawnEntry, size),
		mask:    uint64(size - 1),
	}
}

// Probe looks up a pawn structure entry in the hash table.
func (pt *PawnTable) Probe(key uint64) (PawnEntry, bool) {
	entry := &pt.entries[key&pt.mask]
	if entry.Key == key {
		return *entry, true
	}
	return PawnEntry{}, false
}

// Store saves a pawn structure entry in the hash table.
func (pt *PawnTable) Store(entry PawnEntry) {
	pt.entries[entry.Key&pt.mask] = entry
}

// Clear clears the pawn hash table.
func (pt *PawnTable) Clear() {
	for i := range pt.entries {
		pt.entries[i] = PawnEntry{}
	}
}
