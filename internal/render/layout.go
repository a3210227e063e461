package render

import (
	"image"
	"math"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-board/internal/interaction"
)

// Button identifies a side-panel control.
type Button int

const (
	ButtonReset Button = iota
	ButtonClear
	ButtonFlip
	ButtonLoadFEN
	ButtonBest
	ButtonApply
	ButtonRestart
	buttonCount
)

// Buttons lists every control in panel order.
var Buttons = []Button{ButtonReset, ButtonClear, ButtonFlip, ButtonLoadFEN, ButtonBest, ButtonApply, ButtonRestart}

func (b Button) String() string {
	switch b {
	case ButtonReset:
		return "reset"
	case ButtonClear:
		return "clear"
	case ButtonFlip:
		return "flip"
	case ButtonLoadFEN:
		return "load_fen"
	case ButtonBest:
		return "best"
	case ButtonApply:
		return "apply"
	case ButtonRestart:
		return "restart"
	default:
		return "unknown"
	}
}

type HitKind int

const (
	HitNone HitKind = iota
	HitSquare
	HitButton
	HitSlider
	HitPalette
	HitFENBox
)

// Hit is what lies under a pointer position.
type Hit struct {
	Kind    HitKind
	Square  nchess.Square
	Button  Button
	Think   time.Duration
	Palette interaction.PaletteEntry
}

const (
	MinSquareSize     = 32
	MaxSquareSize     = 160
	DefaultSquareSize = 72
)

// Layout is the geometry shared by drawing and hit testing.
type Layout struct {
	Square int
	Margin int

	Board   image.Rectangle
	Panel   image.Rectangle
	Turn    image.Rectangle
	Eval    image.Rectangle
	Buttons [buttonCount]image.Rectangle
	Slider  image.Rectangle
	FENBox  image.Rectangle
	Status  image.Rectangle

	Palette      image.Rectangle
	PaletteCells []image.Rectangle

	minThink time.Duration
	maxThink time.Duration

	width  int
	height int
}

// NewLayout computes geometry for a square size, clamped to the supported
// range. The slider spans [minThink, maxThink] on a logarithmic scale.
func NewLayout(square int, minThink, maxThink time.Duration) Layout {
	if square <= 0 {
		square = DefaultSquareSize
	}
	square = max(MinSquareSize, min(MaxSquareSize, square))
	if minThink <= 0 {
		minThink = 50 * time.Millisecond
	}
	if maxThink < minThink {
		maxThink = minThink
	}

	l := Layout{Square: square, Margin: square / 2, minThink: minThink, maxThink: maxThink}
	boardSize := square * 8
	l.Board = image.Rect(l.Margin, l.Margin, l.Margin+boardSize, l.Margin+boardSize)

	panelWidth := max(square*4, 256)
	panelX := l.Board.Max.X + l.Margin
	rowH := max(square/2, 28)
	gap := 8

	y := l.Board.Min.Y
	l.Turn = image.Rect(panelX, y, panelX+panelWidth, y+rowH)
	y = l.Turn.Max.Y + gap
	l.Eval = image.Rect(panelX, y, panelX+panelWidth, y+rowH*2)
	y = l.Eval.Max.Y + gap*2

	colW := (panelWidth - gap) / 2
	for i, b := range Buttons {
		col, row := i%2, i/2
		x0 := panelX + col*(colW+gap)
		y0 := y + row*(rowH+gap)
		l.Buttons[b] = image.Rect(x0, y0, x0+colW, y0+rowH)
	}
	rows := (len(Buttons) + 1) / 2
	y += rows*(rowH+gap) + gap

	// label line sits above the track
	y += rowH / 2
	l.Slider = image.Rect(panelX, y, panelX+panelWidth, y+rowH/2)
	y = l.Slider.Max.Y + gap*2

	l.FENBox = image.Rect(panelX, y, panelX+panelWidth, y+rowH)
	y = l.FENBox.Max.Y

	l.Panel = image.Rect(panelX, l.Board.Min.Y, panelX+panelWidth, y)

	bottom := max(l.Board.Max.Y, l.Panel.Max.Y) + l.Margin
	l.Status = image.Rect(l.Margin, bottom, panelX+panelWidth, bottom+rowH)

	l.width = panelX + panelWidth + l.Margin
	l.height = l.Status.Max.Y + gap

	l.layoutPalette()
	return l
}

// palette: six pieces per colour in two rows plus a full-width remove row,
// centred on the board.
func (l *Layout) layoutPalette() {
	cell := l.Square
	headerH := max(l.Square/3, 18)
	w := cell*6 + 16
	h := headerH + cell*2 + cell/2 + 24
	cx := l.Board.Min.X + l.Board.Dx()/2
	cy := l.Board.Min.Y + l.Board.Dy()/2
	l.Palette = image.Rect(cx-w/2, cy-h/2, cx-w/2+w, cy-h/2+h)

	x0 := l.Palette.Min.X + 8
	y0 := l.Palette.Min.Y + headerH + 8
	l.PaletteCells = make([]image.Rectangle, len(interaction.PaletteEntries))
	for i, e := range interaction.PaletteEntries {
		if e.Remove {
			ry := y0 + cell*2 + 8
			l.PaletteCells[i] = image.Rect(x0, ry, x0+cell*6, ry+cell/2)
			continue
		}
		col, row := i%6, i/6
		l.PaletteCells[i] = image.Rect(x0+col*cell, y0+row*cell, x0+(col+1)*cell, y0+(row+1)*cell)
	}
}

func (l Layout) Size() (int, int) { return l.width, l.height }

func (l Layout) Bounds() image.Rectangle { return image.Rect(0, 0, l.width, l.height) }

// SquareRect is the pixel rectangle of sq, white at the bottom.
func (l Layout) SquareRect(sq nchess.Square) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	x := l.Board.Min.X + col*l.Square
	y := l.Board.Min.Y + row*l.Square
	return image.Rect(x, y, x+l.Square, y+l.Square)
}

func (l Layout) SquareAt(x, y int) (nchess.Square, bool) {
	if !(image.Point{X: x, Y: y}).In(l.Board) {
		return nchess.NoSquare, false
	}
	col := (x - l.Board.Min.X) / l.Square
	row := (y - l.Board.Min.Y) / l.Square
	return nchess.NewSquare(nchess.File(col), nchess.Rank(7-row)), true
}

// HitTest resolves a pointer position. While the palette is open it covers
// the board; points on the overlay but outside a cell hit nothing.
func (l Layout) HitTest(x, y int, paletteOpen bool) Hit {
	pt := image.Point{X: x, Y: y}
	if paletteOpen && pt.In(l.Palette) {
		for i, r := range l.PaletteCells {
			if pt.In(r) {
				return Hit{Kind: HitPalette, Palette: interaction.PaletteEntries[i]}
			}
		}
		return Hit{Kind: HitNone}
	}
	if sq, ok := l.SquareAt(x, y); ok {
		return Hit{Kind: HitSquare, Square: sq}
	}
	for _, b := range Buttons {
		if pt.In(l.Buttons[b]) {
			return Hit{Kind: HitButton, Button: b}
		}
	}
	// the slider grabs a few extra pixels vertically
	grab := l.Slider.Inset(-l.Slider.Dy() / 2)
	if pt.In(grab) {
		return Hit{Kind: HitSlider, Think: l.ThinkAt(x)}
	}
	if pt.In(l.FENBox) {
		return Hit{Kind: HitFENBox}
	}
	return Hit{Kind: HitNone}
}

// ThinkAt maps a slider x coordinate to a think time rounded to 10ms.
func (l Layout) ThinkAt(x int) time.Duration {
	if l.Slider.Dx() <= 0 || l.maxThink == l.minThink {
		return l.minThink
	}
	t := float64(x-l.Slider.Min.X) / float64(l.Slider.Dx()-1)
	t = math.Max(0, math.Min(1, t))
	lo := math.Log(float64(l.minThink))
	hi := math.Log(float64(l.maxThink))
	d := time.Duration(math.Exp(lo + t*(hi-lo)))
	d = d.Round(10 * time.Millisecond)
	return max(l.minThink, min(l.maxThink, d))
}

// SliderX is the inverse of ThinkAt, used to place the knob.
func (l Layout) SliderX(d time.Duration) int {
	if l.Slider.Dx() <= 0 || l.maxThink == l.minThink {
		return l.Slider.Min.X
	}
	d = max(l.minThink, min(l.maxThink, d))
	lo := math.Log(float64(l.minThink))
	hi := math.Log(float64(l.maxThink))
	t := (math.Log(float64(d)) - lo) / (hi - lo)
	return l.Slider.Min.X + int(math.Round(t*float64(l.Slider.Dx()-1)))
}
