package board

// This file maintains the parts of the board-state stack frame that the
// original flat Position/UndoInfo pair (see move.go, movegen.go) didn't
// track: king-blockers/pinners, per-piecetype check squares, the
// material-signature key, and the repetition counter. MakeMove recomputes
// them for the new position and saves the previous values in its UndoInfo;
// UnmakeMove restores the saved values instead of recomputing them.

// materialKeyTable assigns each (color, piecetype, count-bucket) a
// distinct random 64-bit contribution, XORed together to form a signature
// of the piece-count multiset. Counts run 0..9 per piece type; a count
// above 9 (possible only through promotions) shares the bucket of 9.
var materialKeyTable [2][6][10]uint64

func init() {
	rng := prng{state: 0x7F4A7C15B142A3E1}
	for c := 0; c < 2; c++ {
		for pt := 0; pt < 6; pt++ {
			for n := 0; n < 10; n++ {
				materialKeyTable[c][pt][n] = rng.next()
			}
		}
	}
}

// computeMaterialKey builds the material-signature key from scratch by
// counting each piece type for each color.
func (p *Position) computeMaterialKey() uint64 {
	var key uint64
	for c := 0; c < 2; c++ {
		for pt := Pawn; pt <= King; pt++ {
			n := p.Pieces[c][pt].PopCount()
			if n > 9 {
				n = 9
			}
			key ^= materialKeyTable[c][pt][n]
		}
	}
	return key
}

// MaterialSignature computes the material-signature key for an arbitrary
// piece-count configuration (indexed Pawn..King per color), using the same
// table as Position.MaterialKey. Lets callers precompute the signature of a
// named endgame pattern (e.g. KBNK) once at startup and match it against
// Position.MaterialKey during search, without needing a live position.
func MaterialSignature(whiteCounts, blackCounts [6]int) uint64 {
	var key uint64
	counts := [2][6]int{whiteCounts, blackCounts}
	for c := 0; c < 2; c++ {
		for pt := 0; pt < 6; pt++ {
			n := counts[c][pt]
			if n > 9 {
				n = 9
			}
			key ^= materialKeyTable[c][pt][n]
		}
	}
	return key
}

// updateCheckInfo recomputes Pinners, KingBlockers and CheckSquares for
// the current side to move. Must be called whenever the side to move or
// the occupancy changes (i.e. after every MakeMove/UnmakeMove/null move).
func (p *Position) updateCheckInfo() {
	us := p.SideToMove
	them := us.Other()

	p.Pinners[White], p.KingBlockers[White] = p.sliderBlockers(White)
	p.Pinners[Black], p.KingBlockers[Black] = p.sliderBlockers(Black)

	theirKing := p.KingSquare[them]
	occ := p.AllOccupied

	p.CheckSquares[Pawn] = pawnAttacks[them][theirKing]
	p.CheckSquares[Knight] = KnightAttacks(theirKing)
	p.CheckSquares[Bishop] = BishopAttacks(theirKing, occ)
	p.CheckSquares[Rook] = RookAttacks(theirKing, occ)
	p.CheckSquares[Queen] = p.CheckSquares[Bishop] | p.CheckSquares[Rook]
	p.CheckSquares[King] = 0

	_ = us
}

// SetRepetition sets the frame's repetition counter from the caller's own
// ancestor-key history (the worker owns this history, not the board; see
// engine/worker.go's position-history buffer). Call immediately after
// MakeMove/MakeNullMove.
func (p *Position) SetRepetition(history []uint64) {
	p.Repetition = computeRepetition(history, p.Hash, p.PliesSinceNull)
}

// GivesCheck reports whether move m, if applied from the current
// position, would check the opponent's king. Uses the precomputed
// CheckSquares plus a discovered-check test along our sliders' lines to
// their king, avoiding a full make/unmake.
func (p *Position) GivesCheck(m Move) bool {
	us := p.SideToMove
	them := us.Other()
	from, to := m.From(), m.To()
	theirKing := p.KingSquare[them]

	piece := p.PieceAt(from)
	if piece == NoPiece {
		return false
	}
	pt := piece.Type()

	if pt != King && p.CheckSquares[pt]&SquareBB(to) != 0 {
		return true
	}

	// Discovered check: the moving piece vacates a blocking square on a
	// line to the opponent's king, and the destination doesn't stay on
	// that same line.
	// KingBlockers only holds the king's own pieces, so our blockers are
	// found here from our sliders' rays to their king.
	if !Aligned(from, to, theirKing) {
		snipers := (RookAttacks(theirKing, 0) & (p.Pieces[us][Rook] | p.Pieces[us][Queen])) |
			(BishopAttacks(theirKing, 0) & (p.Pieces[us][Bishop] | p.Pieces[us][Queen]))
		for snipers != 0 {
			if Between(snipers.PopLSB(), theirKing)&p.AllOccupied == SquareBB(from) {
				return true
			}
		}
	}

	if m.IsPromotion() {
		promoPt := m.Promotion()
		switch promoPt {
		case Knight:
			return KnightAttacks(to)&SquareBB(theirKing) != 0
		case Bishop:
			return BishopAttacks(to, p.AllOccupied&^SquareBB(from))&SquareBB(theirKing) != 0
		case Rook:
			return RookAttacks(to, p.AllOccupied&^SquareBB(from))&SquareBB(theirKing) != 0
		case Queen:
			occ := p.AllOccupied &^ SquareBB(from)
			return QueenAttacks(to, occ)&SquareBB(theirKing) != 0
		}
	}

	if m.IsEnPassant() {
		var capSq Square
		if us == White {
			capSq = to - 8
		} else {
			capSq = to + 8
		}
		occ := (p.AllOccupied &^ SquareBB(from) &^ SquareBB(capSq)) | SquareBB(to)
		if RookAttacks(theirKing, occ)&(p.Pieces[us][Rook]|p.Pieces[us][Queen]) != 0 {
			return true
		}
		if BishopAttacks(theirKing, occ)&(p.Pieces[us][Bishop]|p.Pieces[us][Queen]) != 0 {
			return true
		}
	}

	if m.IsCastling() {
		var rookTo Square
		if to > from {
			rookTo = NewSquare(5, from.Rank())
		} else {
			rookTo = NewSquare(3, from.Rank())
		}
		return RookAttacks(rookTo, p.AllOccupied)&SquareBB(theirKing) != 0
	}

	return false
}

// sliderBlockers returns, for the king of color kc: the enemy sliders
// that would check the king if the sole intervening piece were removed
// (pinners), and the intervening pieces themselves (blockers, which may
// belong to either color but here are restricted to the king's own color
// since only those are legality-relevant).
func (p *Position) sliderBlockers(kc Color) (pinners, blockers Bitboard) {
	enemy := kc.Other()
	ksq := p.KingSquare[kc]

	snipers := RookAttacks(ksq, 0) & (p.Pieces[enemy][Rook] | p.Pieces[enemy][Queen])
	snipers |= BishopAttacks(ksq, 0) & (p.Pieces[enemy][Bishop] | p.Pieces[enemy][Queen])

	for snipers != 0 {
		sq := snipers.PopLSB()
		between := Between(sq, ksq) & p.AllOccupied
		if between.PopCount() == 1 && between&p.Occupied[kc] != 0 {
			pinners |= SquareBB(sq)
			blockers |= between
		}
	}
	return
}

// computeRepetition scans the reversible-move window (bounded by
// PliesSinceNull) recorded in history for a matching Zobrist key, two
// plies at a time (same side to move). history holds the keys of
// ancestor positions in root-to-current order; it is supplied by the
// caller (the worker's position-history buffer) since Position itself
// does not own a full game history.
func computeRepetition(history []uint64, currentKey uint64, pliesSinceNull int) int {
	n := len(history)
	limit := pliesSinceNull
	if limit > n {
		limit = n
	}

	for i := 2; i <= limit; i += 2 {
		idx := n - i
		if idx < 0 {
			break
		}
		if history[idx] == currentKey {
			// A repeat was found at ply distance i. history carries only
			// keys, so whether that earlier frame was itself a repeat is
			// not known here and the result is never negative.
			return i
		}
	}
	return 0
}
