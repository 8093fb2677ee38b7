package engine

import (
	"github.com/hailam/chessplay/internal/board"
)

// kpkResult is the classification of a (side-to-move, white king, black
// king, white pawn) state in the KPK bitbase: whether the
// position (with a lone white king+pawn against a lone black king) is won
// for White with best play by both sides.
type kpkResult uint8

const (
	kpkInvalid kpkResult = iota
	kpkUnknown
	kpkDraw
	kpkWin
)

// kpkTable[us][wksq][bksq][psq] holds the classification. Indexed directly
// by board.Square/board.Color rather than Stockfish's packed-index +
// file-normalization scheme, trading a few hundred KB of table size for a
// much simpler generator; correctness, not memory, is the target here.
var kpkTable [2][64][64][64]kpkResult

func init() {
	buildKPKBitbase()
}

// ProbeKPK reports whether the white-king/white-pawn/black-king endgame
// (from the side to move's perspective encoded in us) is a win for White.
// Only meaningful when called on a position that actually is KPK material;
// callers gate on the material signature first (see endgame.go).
func ProbeKPK(us board.Color, wksq, bksq, psq board.Square) bool {
	return kpkTable[us][wksq][bksq][psq] == kpkWin
}

// buildKPKBitbase fills kpkTable by iterative retrograde analysis: seed
// every reachable state as kpkUnknown (or kpkInvalid for non-positions),
// then repeatedly resolve states whose children are all decided until a
// full pass makes no further progress (fixpoint).
func buildKPKBitbase() {
	type state struct {
		us         board.Color
		wksq, bksq board.Square
		psq        board.Square
	}

	var all []state

	for psq := board.Square(8); psq < 56; psq++ { // pawn never starts on rank 1 or rank 8
		for wksq := board.Square(0); wksq < 64; wksq++ {
			if wksq == psq {
				continue
			}
			for bksq := board.Square(0); bksq < 64; bksq++ {
				if bksq == psq || bksq == wksq {
					continue
				}
				if board.SquareDistance(wksq, bksq) <= 1 {
					continue
				}
				for _, us := range [2]board.Color{board.White, board.Black} {
					// Invariant: the side not to move must not be in check.
					if us == board.White && board.PawnAttacks(psq, board.White).IsSet(bksq) {
						kpkTable[us][wksq][bksq][psq] = kpkInvalid
						continue
					}
					kpkTable[us][wksq][bksq][psq] = kpkUnknown
					all = append(all, state{us, wksq, bksq, psq})
				}
			}
		}
	}

	for {
		changed := false
		for _, s := range all {
			if kpkTable[s.us][s.wksq][s.bksq][s.psq] != kpkUnknown {
				continue
			}

			var result kpkResult
			if s.us == board.White {
				result = classifyWhiteToMove(s.wksq, s.bksq, s.psq)
			} else {
				result = classifyBlackToMove(s.wksq, s.bksq, s.psq)
			}

			if result != kpkUnknown {
				kpkTable[s.us][s.wksq][s.bksq][s.psq] = result
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	// Any state still unknown after the fixpoint has every line repeating
	// without progress (the pawn can never safely advance) and is a draw.
	for _, s := range all {
		if kpkTable[s.us][s.wksq][s.bksq][s.psq] == kpkUnknown {
			kpkTable[s.us][s.wksq][s.bksq][s.psq] = kpkDraw
		}
	}
}

// classifyWhiteToMove resolves a White-to-move state from its children.
// White wins if any legal move forces a Black-to-move win (or promotes the
// pawn, treated as an immediate win for White — a lone king can essentially
// never hold a king+queen ending, and the vanishingly rare stalemate
// exception is not modeled). White draws if every legal move is decided
// and none wins; stays unknown if a move leads to an undecided child.
func classifyWhiteToMove(wksq, bksq, psq board.Square) kpkResult {
	sawUnknown := false
	sawMove := false

	tryChild := func(child kpkResult) (stop bool) {
		sawMove = true
		if child == kpkWin {
			return true
		}
		if child == kpkUnknown {
			sawUnknown = true
		}
		return false
	}

	// King moves.
	destinations := board.KingAttacks(wksq)
	for destinations != 0 {
		dst := destinations.PopLSB()
		if dst == psq || board.SquareDistance(dst, bksq) <= 1 {
			continue
		}
		if tryChild(kpkTable[board.Black][dst][bksq][psq]) {
			return kpkWin
		}
	}

	// Pawn single push.
	if psq.Rank() < 7 {
		push := psq + 8
		if push != wksq && push != bksq {
			if push.Rank() == 7 {
				return kpkWin // promotion
			}
			if tryChild(kpkTable[board.Black][wksq][bksq][push]) {
				return kpkWin
			}

			// Pawn double push from the second rank.
			if psq.Rank() == 1 {
				doublePush := psq + 16
				if doublePush != wksq && doublePush != bksq {
					if tryChild(kpkTable[board.Black][wksq][bksq][doublePush]) {
						return kpkWin
					}
				}
			}
		}
	}

	if !sawMove {
		return kpkDraw // stalemate
	}
	if sawUnknown {
		return kpkUnknown
	}
	return kpkDraw
}

// classifyBlackToMove resolves a Black-to-move (defending) state. White
// wins only if every black reply is itself decided as a White win (or
// black is checkmated outright); black draws as soon as one reply escapes
// to a draw (including capturing the undefended pawn).
func classifyBlackToMove(wksq, bksq, psq board.Square) kpkResult {
	sawUnknown := false
	sawMove := false
	allWin := true

	destinations := board.KingAttacks(bksq)
	for destinations != 0 {
		dst := destinations.PopLSB()
		if dst == wksq || board.SquareDistance(dst, wksq) <= 1 {
			continue
		}
		if board.PawnAttacks(psq, board.White).IsSet(dst) {
			continue // moving into a square the pawn attacks
		}

		sawMove = true

		if dst == psq {
			// The adjacency filter above already excludes any destination
			// defended by the white king, so reaching here means the pawn
			// is undefended: capturing it collapses to a bare-kings draw.
			return kpkDraw
		}

		child := kpkTable[board.White][wksq][dst][psq]
		switch child {
		case kpkDraw:
			return kpkDraw
		case kpkUnknown:
			sawUnknown = true
			allWin = false
		case kpkWin:
			// stays a candidate win
		}
	}

	if !sawMove {
		inCheck := board.PawnAttacks(psq, board.White).IsSet(bksq)
		if inCheck {
			return kpkWin // checkmate
		}
		return kpkDraw // stalemate
	}
	if sawUnknown {
		return kpkUnknown
	}
	if allWin {
		return kpkWin
	}
	return kpkUnknown
}
