// Package interaction turns square clicks into board moves and edits.
package interaction

import (
	"errors"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-board/internal/board"
)

type Kind int

const (
	Ignored Kind = iota
	Selected
	Moved
	Illegal
	Edited
	PaletteOpened
	PaletteClosed
)

func (k Kind) String() string {
	switch k {
	case Selected:
		return "selected"
	case Moved:
		return "moved"
	case Illegal:
		return "illegal"
	case Edited:
		return "edited"
	case PaletteOpened:
		return "palette_opened"
	case PaletteClosed:
		return "palette_closed"
	default:
		return "ignored"
	}
}

// Outcome reports what a click did.
type Outcome struct {
	Kind   Kind
	Square nchess.Square
	Move   board.Move
	Err    error
}

// Changed reports whether the position was mutated.
func (o Outcome) Changed() bool { return o.Kind == Moved || o.Kind == Edited }

type Controller struct {
	board *board.Board

	selected    nchess.Square
	hasSelected bool

	paletteSquare nchess.Square
	paletteOpen   bool
}

func New(b *board.Board) *Controller {
	return &Controller{board: b, selected: nchess.NoSquare, paletteSquare: nchess.NoSquare}
}

// Selection returns the selected square, if any.
func (c *Controller) Selection() (nchess.Square, bool) {
	return c.selected, c.hasSelected
}

// Palette returns the square the edit palette is open for, if any.
func (c *Controller) Palette() (nchess.Square, bool) {
	return c.paletteSquare, c.paletteOpen
}

func (c *Controller) ClearSelection() {
	c.selected, c.hasSelected = nchess.NoSquare, false
}

// Reset drops selection and palette state, e.g. after the board was replaced.
func (c *Controller) Reset() {
	c.ClearSelection()
	c.ClosePalette()
}

// LeftClick selects a piece of the side to move or attempts a move from the
// current selection. Any attempt, legal or not, clears the selection. While
// the palette is open a left click only closes it.
func (c *Controller) LeftClick(sq nchess.Square) Outcome {
	if c.paletteOpen {
		c.ClosePalette()
		return Outcome{Kind: PaletteClosed, Square: sq}
	}
	if !c.hasSelected {
		pc := c.board.Piece(sq)
		if pc == nchess.NoPiece || pc.Color() != c.board.Turn() {
			return Outcome{Kind: Ignored, Square: sq}
		}
		c.selected, c.hasSelected = sq, true
		return Outcome{Kind: Selected, Square: sq}
	}

	from := c.selected
	c.ClearSelection()
	mv, err := c.board.ApplyMove(from, sq)
	if err != nil {
		return Outcome{Kind: Illegal, Square: sq, Err: err}
	}
	return Outcome{Kind: Moved, Square: sq, Move: mv}
}

// RightClick opens the edit palette for sq. Selection is left alone.
func (c *Controller) RightClick(sq nchess.Square) Outcome {
	c.paletteSquare, c.paletteOpen = sq, true
	return Outcome{Kind: PaletteOpened, Square: sq}
}

func (c *Controller) ClosePalette() {
	c.paletteSquare, c.paletteOpen = nchess.NoSquare, false
}

var errPaletteClosed = errors.New("edit palette is not open")

// Choose applies a palette entry to the palette square and closes the
// palette. Replacing or removing the selected piece clears the selection.
func (c *Controller) Choose(e PaletteEntry) Outcome {
	if !c.paletteOpen {
		return Outcome{Kind: Ignored, Err: errPaletteClosed}
	}
	sq := c.paletteSquare
	c.ClosePalette()

	var err error
	if e.Remove {
		err = c.board.RemovePiece(sq)
	} else {
		err = c.board.PlacePiece(sq, e.Type, e.Color)
	}
	if err != nil {
		return Outcome{Kind: Ignored, Square: sq, Err: err}
	}
	if c.hasSelected && c.selected == sq {
		c.ClearSelection()
	}
	return Outcome{Kind: Edited, Square: sq}
}
