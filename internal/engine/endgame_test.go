package engine

import (
	"testing"

	"github.com/hailam/chessplay/internal/board"
)

func mustParseFEN(t *testing.T, fen string) *board.Position {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return pos
}

func TestProbeSpecializedEndgameKPKMatch(t *testing.T) {
	pos := mustParseFEN(t, "1k6/8/1K6/1P6/8/8/8/8 w - - 0 1")
	score, ok := ProbeSpecializedEndgame(pos)
	if !ok {
		t.Fatal("expected KPK material signature to match")
	}
	if score <= 0 {
		t.Errorf("expected a positive score for White's won KPK position, got %d", score)
	}
}

func TestProbeSpecializedEndgameKBNKMatch(t *testing.T) {
	pos := mustParseFEN(t, "k7/8/1K6/8/3B4/3N4/8/8 w - - 0 1")
	score, ok := ProbeSpecializedEndgame(pos)
	if !ok {
		t.Fatal("expected KBNK material signature to match")
	}
	if score <= KnightValue {
		t.Errorf("expected KBNK score to clear bare material value, got %d", score)
	}
}

func TestProbeSpecializedEndgameInsufficientMaterialDraws(t *testing.T) {
	cases := []string{
		"k7/8/8/8/8/8/3N4/3K4 w - - 0 1", // KNK
		"k7/8/8/8/8/8/3B4/3K4 w - - 0 1", // KBK
	}
	for _, fen := range cases {
		pos := mustParseFEN(t, fen)
		score, ok := ProbeSpecializedEndgame(pos)
		if !ok {
			t.Fatalf("%s: expected insufficient-material signature to match", fen)
		}
		if score != 0 {
			t.Errorf("%s: expected a drawn score of 0, got %d", fen, score)
		}
	}
}

func TestProbeSpecializedEndgameNoMatchForMiddlegame(t *testing.T) {
	pos := board.NewPosition()
	if _, ok := ProbeSpecializedEndgame(pos); ok {
		t.Error("expected the starting position to have no specialized endgame match")
	}
}

func TestEndgameScaleFactorOppositeColorBishops(t *testing.T) {
	// White's bishop on d4 is a dark square, black's on d5 is light: opposite
	// colors, classic drawish scale-down even with extra pawns.
	pos := mustParseFEN(t, "4k3/8/8/3b4/3B4/8/8/4K3 w - - 0 1")
	scale := EndgameScaleFactor(pos)
	if scale >= noEndgameScale {
		t.Errorf("expected opposite-colored bishops to scale down the endgame score, got %d", scale)
	}
}

func TestEndgameScaleFactorDefaultNoScale(t *testing.T) {
	pos := board.NewPosition()
	if scale := EndgameScaleFactor(pos); scale != noEndgameScale {
		t.Errorf("expected no scaling for the starting position, got %d", scale)
	}
}
