package board

// SEE (Static Exchange Evaluation) reports whether the capture sequence
// initiated by move m settles at or above threshold, in centipawns, from
// the mover's perspective. It simulates the full alternating exchange on
// the target square, negamaxing the per-ply gains, and excludes attackers
// that are pinned against their own king from recapturing (unless the
// capture stays on the pin ray). Piece values are the fixed table in
// piece.go, independent of positional evaluation.
func SEE(pos *Position, m Move, threshold int) bool {
	return SEEValue(pos, m) >= threshold
}

// SEEValue computes the full signed exchange value of m, in centipawns,
// from the mover's perspective.
func SEEValue(pos *Position, m Move) int {
	from := m.From()
	to := m.To()

	attacker := pos.PieceAt(from)
	if attacker == NoPiece {
		return 0
	}

	var capturedValue int
	if m.IsEnPassant() {
		capturedValue = PieceValue[Pawn]
	} else {
		victim := pos.PieceAt(to)
		if victim == NoPiece {
			return 0 // not a capture
		}
		capturedValue = PieceValue[victim.Type()]
	}
	if m.IsPromotion() {
		capturedValue += PieceValue[m.Promotion()] - PieceValue[Pawn]
	}

	occupied := pos.AllOccupied &^ SquareBB(from)
	if m.IsEnPassant() {
		var capSq Square
		if attacker.Color() == White {
			capSq = to - 8
		} else {
			capSq = to + 8
		}
		occupied &^= SquareBB(capSq)
	}

	var gain [32]int
	d := 0
	gain[d] = capturedValue

	attackerValue := PieceValue[attacker.Type()]
	if m.IsPromotion() {
		attackerValue = PieceValue[m.Promotion()]
	}
	side := attacker.Color().Other()

	for {
		d++
		gain[d] = attackerValue - gain[d-1]
		if max(-gain[d-1], gain[d]) < 0 {
			break
		}

		attackerSq, attackerPiece := leastValuableAttacker(pos, to, side, occupied)
		if attackerSq == NoSquare {
			break
		}

		occupied &^= SquareBB(attackerSq)
		attackerValue = PieceValue[attackerPiece.Type()]
		side = side.Other()

		if d >= len(gain)-1 {
			break
		}
	}

	for d--; d > 0; d-- {
		if -gain[d-1] > gain[d] {
			gain[d-1] = -gain[d-1]
		} else {
			gain[d-1] = gain[d]
		}
		gain[d-1] = -gain[d-1]
	}

	return gain[0]
}

// leastValuableAttacker finds the cheapest piece of side attacking target
// given occupied, skipping attackers pinned against their own king unless
// the capture would stay on the pin ray.
func leastValuableAttacker(pos *Position, target Square, side Color, occupied Bitboard) (Square, Piece) {
	ownKing := pos.KingSquare[side]
	pinned := pos.KingBlockers[side] & pos.Occupied[side] & occupied

	pick := func(bb Bitboard, pt PieceType) (Square, Piece, bool) {
		candidates := bb & occupied
		for candidates != 0 {
			sq := candidates.LSB()
			candidates &= candidates - 1
			if pinned&SquareBB(sq) != 0 && !Aligned(sq, target, ownKing) {
				continue
			}
			return sq, NewPiece(pt, side), true
		}
		return NoSquare, NoPiece, false
	}

	if sq, p, ok := pick(pos.Pieces[side][Pawn]&pawnAttacks[side.Other()][target], Pawn); ok {
		return sq, p
	}
	if sq, p, ok := pick(pos.Pieces[side][Knight]&knightAttacks[target], Knight); ok {
		return sq, p
	}

	bishopAtk := BishopAttacks(target, occupied)
	if sq, p, ok := pick(pos.Pieces[side][Bishop]&bishopAtk, Bishop); ok {
		return sq, p
	}

	rookAtk := RookAttacks(target, occupied)
	if sq, p, ok := pick(pos.Pieces[side][Rook]&rookAtk, Rook); ok {
		return sq, p
	}

	if sq, p, ok := pick(pos.Pieces[side][Queen]&(bishopAtk|rookAtk), Queen); ok {
		return sq, p
	}

	if sq, p, ok := pick(pos.Pieces[side][King]&kingAttacks[target], King); ok {
		return sq, p
	}

	return NoSquare, NoPiece
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
