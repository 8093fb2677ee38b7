package engine

import (
	"github.com/hailam/chessplay/internal/board"
)

// correctionBuckets is the number of pawn-key buckets per color. Keeping it
// a power of two lets the index be a mask instead of a modulo.
const correctionBuckets = 16384

// CorrectionHistory adjusts static evaluation based on search results.
// When the search discovers the static eval was wrong, we record the error
// and apply corrections to future positions sharing the same pawn skeleton.
// Indexed by [color][pawn-key bucket] rather than the full position hash,
// since the systematic eval error a pawn structure produces (a blocked
// passer, a weak color complex) tends to recur across many different piece
// placements built on top of the same pawns.
// Based on Stockfish's correction history.
type CorrectionHistory struct {
	buckets [2][correctionBuckets]int16
}

// NewCorrectionHistory creates a new correction history table.
func NewCorrectionHistory() *CorrectionHistory {
	return &CorrectionHistory{}
}

func correctionIndex(pos *board.Position) (color board.Color, bucket uint64) {
	return pos.SideToMove, pos.PawnKey & (correctionBuckets - 1)
}

// Get returns the correction value for a position.
// The correction should be added to the static evaluation.
func (ch *CorrectionHistory) Get(pos *board.Position) int {
	color, bucket := correctionIndex(pos)
	return int(ch.buckets[color][bucket])
}

// Update records a correction based on the difference between
// the static evaluation and the search result.
// Uses gravity update: new = old + (target - old) / 16
func (ch *CorrectionHistory) Update(pos *board.Position, searchScore, staticEval, depth int) {
	// Only update if we have meaningful data
	if depth < 1 {
		return
	}

	// Calculate the error
	diff := searchScore - staticEval

	// Scale bonus by depth (deeper searches are more reliable)
	bonus := diff * depth / 8

	// Clamp the bonus to prevent extreme updates
	if bonus > 256 {
		bonus = 256
	} else if bonus < -256 {
		bonus = -256
	}

	color, bucket := correctionIndex(pos)
	old := int(ch.buckets[color][bucket])

	// Gravity update: gradually move toward the target
	newVal := old + (bonus-old)/16

	// Clamp to int16 range but with reasonable limits
	if newVal > 16000 {
		newVal = 16000
	} else if newVal < -16000 {
		newVal = -16000
	}

	ch.buckets[color][bucket] = int16(newVal)
}

// Clear resets all correction values.
func (ch *CorrectionHistory) Clear() {
	for c := range ch.buckets {
		for i := range ch.buckets[c] {
			ch.buckets[c][i] = 0
		}
	}
}

// Age scales down all correction values (called between games/positions).
func (ch *CorrectionHistory) Age() {
	for c := range ch.buckets {
		for i := range ch.buckets[c] {
			ch.buckets[c][i] /= 2
		}
	}
}
