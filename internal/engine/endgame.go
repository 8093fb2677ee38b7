package engine

import (
	"github.com/hailam/chessplay/internal/board"
)

// endgameKind names a closed-form scorer dispatched by material signature
// bypassing the general positional evaluation for material
// balances whose outcome is dictated by well-known endgame theory rather
// than piece-square heuristics.
type endgameKind uint8

const (
	egKPK endgameKind = iota
	egKBNK
	egKRKP
	egMinorVsRookDraw // KRKN, KRKB
	egKQKP
	egKQKR
	egKNNKP
	egKBBK
	egInsufficientDraw // KNK, KBK, KNNK, KBKN: no side can force mate
)

// endgamePattern records which scorer applies to a material signature and
// which color holds the stronger side of that signature.
type endgamePattern struct {
	kind       endgameKind
	strongSide board.Color
}

var endgameTable = map[uint64]endgamePattern{}

// pieceCounts builds a [Pawn..King] count array; the king count is always 1.
func pieceCounts(pawns, knights, bishops, rooks, queens int) [6]int {
	return [6]int{pawns, knights, bishops, rooks, queens, 1}
}

var bareKing = pieceCounts(0, 0, 0, 0, 0)

func init() {
	registerPattern := func(kind endgameKind, strong, weak [6]int) {
		endgameTable[board.MaterialSignature(strong, weak)] = endgamePattern{kind, board.White}
		endgameTable[board.MaterialSignature(weak, strong)] = endgamePattern{kind, board.Black}
	}

	registerPattern(egKPK, pieceCounts(1, 0, 0, 0, 0), bareKing)
	registerPattern(egKBNK, pieceCounts(0, 1, 1, 0, 0), bareKing)
	registerPattern(egKRKP, pieceCounts(0, 0, 0, 1, 0), pieceCounts(1, 0, 0, 0, 0))
	registerPattern(egMinorVsRookDraw, pieceCounts(0, 0, 0, 1, 0), pieceCounts(0, 1, 0, 0, 0)) // KRKN
	registerPattern(egMinorVsRookDraw, pieceCounts(0, 0, 0, 1, 0), pieceCounts(0, 0, 1, 0, 0)) // KRKB
	registerPattern(egKQKP, pieceCounts(0, 0, 0, 0, 1), pieceCounts(1, 0, 0, 0, 0))
	registerPattern(egKQKR, pieceCounts(0, 0, 0, 0, 1), pieceCounts(0, 0, 0, 1, 0))
	registerPattern(egKNNKP, pieceCounts(0, 2, 0, 0, 0), pieceCounts(1, 0, 0, 0, 0))
	registerPattern(egKBBK, pieceCounts(0, 0, 2, 0, 0), bareKing)
	registerPattern(egInsufficientDraw, pieceCounts(0, 1, 0, 0, 0), bareKing)             // KNK
	registerPattern(egInsufficientDraw, pieceCounts(0, 0, 1, 0, 0), bareKing)             // KBK
	registerPattern(egInsufficientDraw, pieceCounts(0, 2, 0, 0, 0), bareKing)             // KNNK
	registerPattern(egInsufficientDraw, pieceCounts(0, 1, 0, 0, 0), pieceCounts(0, 0, 1, 0, 0)) // KNKB / KBKN
}

// ProbeSpecializedEndgame returns a closed-form centipawn score (White's
// perspective) for positions whose material signature matches a known
// endgame pattern, and whether a match was found at all.
func ProbeSpecializedEndgame(pos *board.Position) (int, bool) {
	pattern, ok := endgameTable[pos.MaterialKey]
	if !ok {
		return 0, false
	}

	weakSide := pattern.strongSide.Other()

	switch pattern.kind {
	case egKPK:
		return scoreKPK(pos, pattern.strongSide), true
	case egKBNK:
		return scoreKBNK(pos, pattern.strongSide, weakSide), true
	case egKRKP:
		return scoreKRKP(pos, pattern.strongSide, weakSide), true
	case egMinorVsRookDraw:
		return scoreMinorVsRookDraw(pattern.strongSide), true
	case egKQKP:
		return scoreKQKP(pos, pattern.strongSide, weakSide), true
	case egKQKR:
		return scoreKQKR(pattern.strongSide), true
	case egKNNKP:
		return scoreKNNKP(pattern.strongSide), true
	case egKBBK:
		return scoreKBBK(pos, pattern.strongSide, weakSide), true
	case egInsufficientDraw:
		return 0, true
	}
	return 0, false
}

func isDarkSquare(sq board.Square) bool {
	return (sq.File()+sq.Rank())%2 == 0
}

func cornerDistance(sq board.Square, dark bool) int {
	var corners [2]board.Square
	if dark {
		corners = [2]board.Square{board.A1, board.H8}
	} else {
		corners = [2]board.Square{board.A8, board.H1}
	}
	d0 := board.SquareDistance(sq, corners[0])
	d1 := board.SquareDistance(sq, corners[1])
	if d1 < d0 {
		return d1
	}
	return d0
}

func nearestCornerDistance(sq board.Square) int {
	corners := [4]board.Square{board.A1, board.A8, board.H1, board.H8}
	best := 8
	for _, c := range corners {
		if d := board.SquareDistance(sq, c); d < best {
			best = d
		}
	}
	return best
}

// scoreKPK probes the bitbase and scores a win by pawn value plus
// advancement (the bitbase itself only answers win/not-won, so the margin
// still needs a scalar for move ordering and search pruning to bite on).
func scoreKPK(pos *board.Position, strongSide board.Color) int {
	weakSide := strongSide.Other()
	wk := pos.KingSquare[strongSide]
	bk := pos.KingSquare[weakSide]
	psq := pos.Pieces[strongSide][board.Pawn].LSB()

	us := board.White
	if pos.SideToMove != strongSide {
		us = board.Black
	}

	solverWK, solverBK, solverPsq := wk, bk, psq
	if strongSide == board.Black {
		solverWK = wk.Mirror()
		solverBK = bk.Mirror()
		solverPsq = psq.Mirror()
	}

	var score int
	if ProbeKPK(us, solverWK, solverBK, solverPsq) {
		rank := solverPsq.Rank()
		score = PawnValue + rank*30
	}

	if strongSide == board.Black {
		return -score
	}
	return score
}

// scoreKBNK drives the defending king toward the corner matching the
// bishop's square color, the textbook KBNK mating technique; the "wrong"
// corner cannot be reached with only this material.
func scoreKBNK(pos *board.Position, strong, weak board.Color) int {
	strongKing := pos.KingSquare[strong]
	weakKing := pos.KingSquare[weak]
	bishopSq := pos.Pieces[strong][board.Bishop].LSB()

	cornerDist := cornerDistance(weakKing, isDarkSquare(bishopSq))
	kingDist := board.SquareDistance(strongKing, weakKing)

	score := KnightValue + BishopValue + (7-cornerDist)*20 + (7-kingDist)*10

	if strong == board.Black {
		return -score
	}
	return score
}

// scoreKRKP discounts the rook's material edge heavily when the defending
// king already shelters the pawn's queening square closer than the rook's
// own king can reach it — the classic drawn KRKP fortress.
func scoreKRKP(pos *board.Position, strong, weak board.Color) int {
	weakKing := pos.KingSquare[weak]
	strongKing := pos.KingSquare[strong]
	pawnSq := pos.Pieces[weak][board.Pawn].LSB()

	promoRank := 7
	if weak == board.Black {
		promoRank = 0
	}
	promoSq := board.NewSquare(pawnSq.File(), promoRank)

	score := RookValue - PawnValue
	if board.SquareDistance(weakKing, promoSq) <= board.SquareDistance(strongKing, promoSq) {
		score /= 3
	}

	if strong == board.Black {
		return -score
	}
	return score
}

// scoreMinorVsRookDraw covers KRKN and KRKB: both are textbook draws with
// accurate defense, so the rook's raw material edge is mostly discounted.
func scoreMinorVsRookDraw(strong board.Color) int {
	score := RookValue / 8
	if strong == board.Black {
		return -score
	}
	return score
}

// scoreKQKP is a near-certain win for the queen except the well-known
// rook-pawn/bishop-pawn-on-the-seventh exception where the defending king
// shelters directly in front of the pawn.
func scoreKQKP(pos *board.Position, strong, weak board.Color) int {
	pawnSq := pos.Pieces[weak][board.Pawn].LSB()
	weakKing := pos.KingSquare[weak]

	file := pawnSq.File()
	rookOrBishopFile := file == 0 || file == 2 || file == 5 || file == 7
	nearPromotion := pawnSq.Rank() == 6 || pawnSq.Rank() == 1

	promoRank := 7
	if weak == board.Black {
		promoRank = 0
	}
	kingShelters := board.SquareDistance(weakKing, board.NewSquare(file, promoRank)) <= 1

	score := QueenValue - PawnValue
	if rookOrBishopFile && nearPromotion && kingShelters {
		score = PawnValue / 2
	}

	if strong == board.Black {
		return -score
	}
	return score
}

// scoreKQKR favors the queen; converting the material edge takes real
// technique so the margin is discounted slightly versus raw material.
func scoreKQKR(strong board.Color) int {
	score := QueenValue - RookValue + 100
	if strong == board.Black {
		return -score
	}
	return score
}

// scoreKNNKP: two knights alone cannot force mate and rarely stop a far-
// advanced pawn either, so the position is close to level.
func scoreKNNKP(strong board.Color) int {
	score := KnightValue / 10
	if strong == board.Black {
		return -score
	}
	return score
}

// scoreKBBK forces mate only with opposite-colored bishops; same-colored
// bishops (both reachable only via under-promotion) leave no forced win.
func scoreKBBK(pos *board.Position, strong, weak board.Color) int {
	bishops := pos.Pieces[strong][board.Bishop]
	b1 := bishops.LSB()
	b2 := bishops.Clear(b1).LSB()

	score := 2 * BishopValue
	if isDarkSquare(b1) != isDarkSquare(b2) {
		weakKing := pos.KingSquare[weak]
		strongKing := pos.KingSquare[strong]
		score += (7-nearestCornerDistance(weakKing))*20 + (7-board.SquareDistance(strongKing, weakKing))*10
	}

	if strong == board.Black {
		return -score
	}
	return score
}

const noEndgameScale = 128

// EndgameScaleFactor returns a [0,128] multiplier applied to the endgame
// (egScore) evaluation component for drawish-tending material
// configurations that the tapered material/PST evaluation otherwise
// overrates; 128 means no scaling.
func EndgameScaleFactor(pos *board.Position) int {
	whiteBishops := pos.Pieces[board.White][board.Bishop]
	blackBishops := pos.Pieces[board.Black][board.Bishop]
	if whiteBishops.PopCount() == 1 && blackBishops.PopCount() == 1 {
		wb := whiteBishops.LSB()
		bb := blackBishops.LSB()
		if isDarkSquare(wb) != isDarkSquare(bb) {
			scale := 36 + 6*countMajorMinorPieces(pos)
			if scale > noEndgameScale {
				scale = noEndgameScale
			}
			return scale
		}
	}

	if isRookEndgameOneWingFarKing(pos) {
		return 64
	}

	return noEndgameScale
}

func countMajorMinorPieces(pos *board.Position) int {
	n := 0
	for c := board.White; c <= board.Black; c++ {
		n += pos.Pieces[c][board.Knight].PopCount()
		n += pos.Pieces[c][board.Rook].PopCount()
		n += pos.Pieces[c][board.Queen].PopCount()
	}
	return n
}

const queensideFiles = board.Bitboard(0x0F0F0F0F0F0F0F0F)

// isRookEndgameOneWingFarKing approximates the classic drawish rook ending
// where every pawn sits on one wing and the defending king has disengaged
// from the action; a real fortress detector would trace king distance to
// the pawn majority's files, but this proxy (overall king separation) is
// what the evaluation call site needs: a cheap, conservative signal that
// a raw material-based score overstates the winning side's chances.
func isRookEndgameOneWingFarKing(pos *board.Position) bool {
	for c := board.White; c <= board.Black; c++ {
		if pos.Pieces[c][board.Rook].PopCount() != 1 {
			return false
		}
		if pos.Pieces[c][board.Knight] != 0 || pos.Pieces[c][board.Bishop] != 0 || pos.Pieces[c][board.Queen] != 0 {
			return false
		}
	}

	allPawns := pos.Pieces[board.White][board.Pawn] | pos.Pieces[board.Black][board.Pawn]
	if allPawns == 0 {
		return false
	}

	kingsideFiles := ^queensideFiles
	oneWing := (allPawns&queensideFiles) == 0 || (allPawns&kingsideFiles) == 0
	if !oneWing {
		return false
	}

	return board.SquareDistance(pos.KingSquare[board.White], pos.KingSquare[board.Black]) >= 5
}
