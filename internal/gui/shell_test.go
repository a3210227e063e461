package gui

import (
	"context"
	"image"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/engine"
	"github.com/park285/cheese-board/internal/interaction"
	"github.com/park285/cheese-board/internal/panel"
	"github.com/park285/cheese-board/internal/render"
)

type quietAnalyzer struct{}

func (quietAnalyzer) Evaluate(ctx context.Context, q engine.Query) (engine.Result, error) {
	return engine.Result{QueryID: q.ID, FEN: q.FEN, BestMove: "e2e4", HasScore: true, Score: engine.Score{CP: 12}, Depth: 5}, nil
}
func (quietAnalyzer) Start(context.Context) error   { return nil }
func (quietAnalyzer) Restart(context.Context) error { return nil }
func (quietAnalyzer) Stop() error                   { return nil }
func (quietAnalyzer) DisabledReason() error         { return nil }
func (quietAnalyzer) Disable(error)                 {}
func (quietAnalyzer) ClampThink(d time.Duration) time.Duration {
	if d <= 0 {
		return 250 * time.Millisecond
	}
	return min(max(d, 50*time.Millisecond), 10*time.Second)
}

func newShell(t *testing.T) *Shell {
	t.Helper()
	p := panel.New(board.New(), quietAnalyzer{}, nil, nil)
	t.Cleanup(func() { _ = p.Shutdown() })
	s := New(p, render.NewLayout(render.DefaultSquareSize, 50*time.Millisecond, 10*time.Second))
	s.Update(Input{})
	return s
}

func centre(r image.Rectangle) image.Point {
	return r.Min.Add(image.Pt(r.Dx()/2, r.Dy()/2))
}

func (s *Shell) clickSquare(t *testing.T, name string, right bool) {
	t.Helper()
	sq, err := board.ParseSquare(name)
	if err != nil {
		t.Fatalf("ParseSquare(%q): %v", name, err)
	}
	pt := centre(s.layout.SquareRect(sq))
	s.Update(Input{X: pt.X, Y: pt.Y, LeftPressed: !right, LeftHeld: !right, RightPressed: right})
}

func (s *Shell) clickButton(b render.Button) {
	pt := centre(s.layout.Buttons[b])
	s.Update(Input{X: pt.X, Y: pt.Y, LeftPressed: true, LeftHeld: true})
}

func TestClickToMove(t *testing.T) {
	s := newShell(t)
	s.clickSquare(t, "e2", false)
	if _, ok := s.panel.Controller().Selection(); !ok {
		t.Fatalf("e2 not selected")
	}
	s.clickSquare(t, "e4", false)
	if got := s.panel.Board().Turn(); got != nchess.Black {
		t.Fatalf("side to move = %v after e2e4", got)
	}
}

func TestPaletteByTypingAndClicking(t *testing.T) {
	s := newShell(t)
	s.clickSquare(t, "d4", true)
	if _, ok := s.panel.Controller().Palette(); !ok {
		t.Fatalf("palette not open after right click")
	}
	s.Update(Input{Chars: []rune("bq")})
	d4, _ := board.ParseSquare("d4")
	if got := s.panel.Board().Piece(d4); got != nchess.BlackQueen {
		t.Fatalf("d4 = %v, want black queen", got)
	}

	s.clickSquare(t, "d4", true)
	for i, e := range interaction.PaletteEntries {
		if !e.Remove {
			continue
		}
		pt := centre(s.layout.PaletteCells[i])
		s.Update(Input{X: pt.X, Y: pt.Y, LeftPressed: true, LeftHeld: true})
	}
	if got := s.panel.Board().Piece(d4); got != nchess.NoPiece {
		t.Fatalf("d4 = %v after remove", got)
	}

	s.clickSquare(t, "a1", true)
	s.Update(Input{Keys: []Key{KeyEscape}})
	if _, ok := s.panel.Controller().Palette(); ok {
		t.Fatalf("escape did not close the palette")
	}
}

func TestPaletteTypingRecoversFromBadPair(t *testing.T) {
	s := newShell(t)
	e4, _ := board.ParseSquare("e4")
	e2, _ := board.ParseSquare("e2")

	// "w" then "x": the pair is no code, but "x" alone is Remove
	s.clickSquare(t, "e2", true)
	s.Update(Input{Chars: []rune("wx")})
	if got := s.panel.Board().Piece(e2); got != nchess.NoPiece {
		t.Fatalf("e2 = %v after typing wx", got)
	}
	if _, ok := s.panel.Controller().Palette(); ok {
		t.Fatalf("palette still open after x")
	}

	s.clickSquare(t, "e4", true)
	s.Update(Input{Chars: []rune("wn")})
	s.clickSquare(t, "e4", true)
	for _, r := range "remove" {
		s.Update(Input{Chars: []rune{r}})
	}
	if got := s.panel.Board().Piece(e4); got != nchess.NoPiece {
		t.Fatalf("e4 = %v after typing remove", got)
	}

	s.clickSquare(t, "e4", true)
	s.Update(Input{Chars: []rune("qbn")})
	if got := s.panel.Board().Piece(e4); got != nchess.BlackKnight {
		t.Fatalf("e4 = %v after typing qbn", got)
	}
}

func TestLoadFENTextBox(t *testing.T) {
	s := newShell(t)
	s.Update(Input{Chars: []rune{'l'}})
	if !s.Editing() || s.Frame().FENInput != board.StartFEN {
		t.Fatalf("text box not prefilled: %q", s.Frame().FENInput)
	}

	s.fenInput = nil
	s.Update(Input{Chars: []rune("8/8/8/4k3/8/8/8/4K3 w - -")})
	s.Update(Input{Keys: []Key{KeyEnter}})
	if !s.Editing() {
		t.Fatalf("malformed FEN closed the text box")
	}
	if s.panel.Board().FEN() != board.StartFEN {
		t.Fatalf("malformed FEN changed the board")
	}

	s.Update(Input{Chars: []rune(" 0 1")})
	s.Update(Input{Keys: []Key{KeyEnter}})
	if s.Editing() {
		t.Fatalf("valid FEN left the text box open")
	}
	if got := s.panel.Board().FEN(); got != "8/8/8/4k3/8/8/8/4K3 w - - 0 1" {
		t.Fatalf("FEN = %q", got)
	}
}

func TestFENBoxBackspaceAndEscape(t *testing.T) {
	s := newShell(t)
	pt := centre(s.layout.FENBox)
	s.Update(Input{X: pt.X, Y: pt.Y, LeftPressed: true, LeftHeld: true})
	if !s.Editing() {
		t.Fatalf("clicking the box did not start editing")
	}
	n := len(s.fenInput)
	s.Update(Input{Keys: []Key{KeyBackspace}})
	if len(s.fenInput) != n-1 {
		t.Fatalf("backspace: %d -> %d runes", n, len(s.fenInput))
	}
	s.Update(Input{Chars: []rune("r")})
	if s.panel.Board().FEN() != board.StartFEN {
		t.Fatalf("typing in the box triggered a shortcut")
	}
	s.Update(Input{Keys: []Key{KeyEscape}})
	if s.Editing() {
		t.Fatalf("escape did not close the box")
	}
}

func TestButtonsAndShortcuts(t *testing.T) {
	s := newShell(t)
	s.clickButton(render.ButtonClear)
	if err := s.panel.Board().Playable(); err == nil {
		t.Fatalf("clear button left kings on the board")
	}
	s.Update(Input{Chars: []rune{'r'}})
	if s.panel.Board().FEN() != board.StartFEN {
		t.Fatalf("reset shortcut: %q", s.panel.Board().FEN())
	}
	s.clickButton(render.ButtonFlip)
	if s.panel.Board().Turn() != nchess.Black {
		t.Fatalf("flip button did not change side")
	}
	s.clickButton(render.ButtonReset)

	s.clickButton(render.ButtonBest)
	deadline := time.Now().Add(2 * time.Second)
	for s.panel.Busy() && time.Now().Before(deadline) {
		s.Update(Input{})
		time.Sleep(2 * time.Millisecond)
	}
	if _, ok := s.panel.Result(); !ok {
		t.Fatalf("no result after best-move button")
	}
	s.Update(Input{Chars: []rune{'a'}})
	e4, _ := board.ParseSquare("e4")
	if s.panel.Board().Piece(e4) != nchess.WhitePawn {
		t.Fatalf("apply shortcut did not play e2e4")
	}
}

func TestSliderDrag(t *testing.T) {
	s := newShell(t)
	sl := s.layout.Slider
	y := sl.Min.Y + sl.Dy()/2
	s.Update(Input{X: sl.Min.X, Y: y, LeftPressed: true, LeftHeld: true})
	if got := s.panel.Think(); got != 50*time.Millisecond {
		t.Fatalf("think at slider start = %v", got)
	}
	// dragging keeps tracking x even off the track
	s.Update(Input{X: sl.Max.X + 40, Y: y + 200, LeftHeld: true})
	if got := s.panel.Think(); got != 10*time.Second {
		t.Fatalf("think after drag = %v", got)
	}
	s.Update(Input{X: sl.Min.X, Y: y})
	s.Update(Input{X: sl.Min.X, Y: y, LeftHeld: true})
	if got := s.panel.Think(); got != 10*time.Second {
		t.Fatalf("think changed after release: %v", got)
	}
	s.Update(Input{Keys: []Key{KeyMinus}})
	if got := s.panel.Think(); got != 10*time.Second-thinkStep {
		t.Fatalf("think after minus = %v", got)
	}
}

func TestUpdateReportsRedraw(t *testing.T) {
	s := newShell(t)
	if s.Update(Input{}) {
		t.Fatalf("idle frame asked for a redraw")
	}
	s.clickSquare(t, "e2", false)
	if s.Update(Input{}) {
		t.Fatalf("second idle frame asked for a redraw")
	}
	if !s.Update(Input{Keys: []Key{KeyEscape}}) {
		t.Fatalf("escape did not ask for a redraw")
	}
}
