package interaction

import (
	"errors"
	"testing"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-board/internal/board"
)

func sq(t *testing.T, s string) nchess.Square {
	t.Helper()
	v, err := board.ParseSquare(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestSelectThenMove(t *testing.T) {
	b := board.New()
	c := New(b)

	if out := c.LeftClick(sq(t, "e2")); out.Kind != Selected {
		t.Fatalf("first click = %v", out.Kind)
	}
	if got, ok := c.Selection(); !ok || got != sq(t, "e2") {
		t.Fatalf("selection = %v %v", got, ok)
	}
	out := c.LeftClick(sq(t, "e4"))
	if out.Kind != Moved || out.Move.UCI != "e2e4" || !out.Changed() {
		t.Fatalf("second click = %+v", out)
	}
	if _, ok := c.Selection(); ok {
		t.Fatalf("selection kept after move")
	}
	if b.Turn() != nchess.Black {
		t.Fatalf("turn did not advance")
	}
}

func TestIllegalAttemptClearsSelection(t *testing.T) {
	b := board.New()
	c := New(b)
	before := b.FEN()

	c.LeftClick(sq(t, "e2"))
	out := c.LeftClick(sq(t, "e5"))
	if out.Kind != Illegal || !errors.Is(out.Err, board.ErrIllegalMove) || out.Changed() {
		t.Fatalf("outcome = %+v", out)
	}
	if _, ok := c.Selection(); ok {
		t.Fatalf("selection kept after illegal attempt")
	}
	if b.FEN() != before {
		t.Fatalf("board changed")
	}
}

func TestClickSelectedSquareAgainIsAttempt(t *testing.T) {
	c := New(board.New())
	c.LeftClick(sq(t, "g1"))
	if out := c.LeftClick(sq(t, "g1")); out.Kind != Illegal {
		t.Fatalf("outcome = %v", out.Kind)
	}
	if _, ok := c.Selection(); ok {
		t.Fatalf("selection kept")
	}
}

func TestClicksThatDoNotSelect(t *testing.T) {
	c := New(board.New())
	for _, s := range []string{"e4", "e7"} { // empty, opponent piece
		if out := c.LeftClick(sq(t, s)); out.Kind != Ignored {
			t.Fatalf("click %s = %v", s, out.Kind)
		}
		if _, ok := c.Selection(); ok {
			t.Fatalf("click %s selected", s)
		}
	}
}

func TestRightClickKeepsSelection(t *testing.T) {
	c := New(board.New())
	c.LeftClick(sq(t, "b1"))
	if out := c.RightClick(sq(t, "d4")); out.Kind != PaletteOpened {
		t.Fatalf("right click = %v", out.Kind)
	}
	if got, ok := c.Palette(); !ok || got != sq(t, "d4") {
		t.Fatalf("palette = %v %v", got, ok)
	}
	if got, ok := c.Selection(); !ok || got != sq(t, "b1") {
		t.Fatalf("selection changed by right click")
	}
}

func TestChoosePlacesAndRemoves(t *testing.T) {
	b := board.New()
	c := New(b)

	c.RightClick(sq(t, "d4"))
	out := c.Choose(PaletteEntry{Type: nchess.Queen, Color: nchess.Black})
	if out.Kind != Edited || !out.Changed() {
		t.Fatalf("place = %+v", out)
	}
	if b.Piece(sq(t, "d4")) != nchess.BlackQueen {
		t.Fatalf("d4 = %v", b.Piece(sq(t, "d4")))
	}
	if _, open := c.Palette(); open {
		t.Fatalf("palette still open")
	}

	c.RightClick(sq(t, "d4"))
	if out := c.Choose(PaletteEntry{Remove: true}); out.Kind != Edited {
		t.Fatalf("remove = %+v", out)
	}
	if b.Piece(sq(t, "d4")) != nchess.NoPiece {
		t.Fatalf("d4 not emptied")
	}
	if b.Turn() != nchess.White {
		t.Fatalf("edit changed side to move")
	}
}

func TestEditingSelectedSquareClearsSelection(t *testing.T) {
	c := New(board.New())
	c.LeftClick(sq(t, "e2"))
	c.RightClick(sq(t, "e2"))
	c.Choose(PaletteEntry{Remove: true})
	if _, ok := c.Selection(); ok {
		t.Fatalf("selection references removed piece")
	}

	c.LeftClick(sq(t, "d2"))
	c.RightClick(sq(t, "h5"))
	c.Choose(PaletteEntry{Type: nchess.Knight, Color: nchess.White})
	if got, ok := c.Selection(); !ok || got != sq(t, "d2") {
		t.Fatalf("unrelated edit cleared selection")
	}
}

func TestLeftClickClosesPalette(t *testing.T) {
	c := New(board.New())
	c.RightClick(sq(t, "a3"))
	if out := c.LeftClick(sq(t, "e2")); out.Kind != PaletteClosed {
		t.Fatalf("outcome = %v", out.Kind)
	}
	if _, ok := c.Selection(); ok {
		t.Fatalf("closing click selected a piece")
	}
	if out := c.Choose(PaletteEntry{Remove: true}); out.Kind != Ignored || out.Err == nil {
		t.Fatalf("choose with closed palette = %+v", out)
	}
}

func TestParsePaletteCode(t *testing.T) {
	cases := map[string]nchess.Piece{
		"wq":     nchess.WhiteQueen,
		"BP":     nchess.BlackPawn,
		" wk ":   nchess.WhiteKing,
		"bn":     nchess.BlackKnight,
		"remove": nchess.NoPiece,
	}
	for in, want := range cases {
		e, err := ParsePaletteCode(in)
		if err != nil {
			t.Fatalf("ParsePaletteCode(%q): %v", in, err)
		}
		if e.Piece() != want {
			t.Fatalf("ParsePaletteCode(%q) = %v", in, e.Piece())
		}
	}
	for _, bad := range []string{"", "wx", "queen", "w"} {
		if _, err := ParsePaletteCode(bad); err == nil {
			t.Fatalf("ParsePaletteCode(%q) accepted", bad)
		}
	}
	if len(PaletteEntries) != 13 || !PaletteEntries[12].Remove {
		t.Fatalf("palette entries = %v", PaletteEntries)
	}
}

func TestIsPaletteCodePrefix(t *testing.T) {
	for _, in := range []string{"", "w", "B", "bq", "re", "remo", "x"} {
		if !IsPaletteCodePrefix(in) {
			t.Fatalf("IsPaletteCodePrefix(%q) = false", in)
		}
	}
	for _, in := range []string{"wx", "q", "bqq", "removed", "zz"} {
		if IsPaletteCodePrefix(in) {
			t.Fatalf("IsPaletteCodePrefix(%q) = true", in)
		}
	}
}
