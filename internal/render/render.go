// Package render projects editor state onto an RGBA image. It never mutates
// state; the GUI blits the result and uses Layout for hit testing.
package render

import (
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"io"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/interaction"
	"golang.org/x/image/font"
)

// Arrow marks a move from one square to another.
type Arrow struct {
	From nchess.Square
	To   nchess.Square
}

// Frame is everything one redraw needs.
type Frame struct {
	Position board.Position

	Selected     nchess.Square
	HasSelection bool
	Targets      map[nchess.Square]bool
	LastMove     *Arrow
	Best         *Arrow

	TurnLabel string
	Eval      string
	BestText  string
	Status    string
	Flash     string
	FlashBad  bool
	EngineOff bool

	Think      time.Duration
	ThinkLabel string
	Busy       bool

	PaletteOpen   bool
	PaletteSquare nchess.Square
	PaletteTitle  string
	RemoveLabel   string

	FENEditing bool
	FENInput   string
	FENPrompt  string

	Labels   map[Button]string
	Disabled map[Button]bool
}

var (
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	backgroundColor = color.RGBA{24, 26, 38, 255}
	boardShadow     = color.NRGBA{0, 0, 0, 60}
	selectedFill    = color.NRGBA{R: 255, G: 228, B: 120, A: 150}
	lastMoveFill    = color.NRGBA{R: 182, G: 184, B: 190, A: 110}
	targetDot       = color.NRGBA{R: 20, G: 85, B: 30, A: 120}
	bestArrow       = color.NRGBA{R: 148, G: 207, B: 255, A: 190}
	panelFill       = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	panelShadow     = color.NRGBA{0, 0, 0, 50}
	buttonFill      = color.NRGBA{R: 48, G: 54, B: 80, A: 255}
	buttonBusy      = color.NRGBA{R: 70, G: 62, B: 40, A: 255}
	buttonOff       = color.NRGBA{R: 40, G: 42, B: 52, A: 255}
	textPrimary     = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	textMuted       = color.NRGBA{R: 140, G: 146, B: 170, A: 255}
	textError       = color.NRGBA{R: 255, G: 120, B: 110, A: 255}
	textOK          = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
	sliderTrack     = color.NRGBA{R: 70, G: 76, B: 104, A: 255}
	sliderKnob      = color.NRGBA{R: 148, G: 207, B: 255, A: 255}
	coordinateText  = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
	paletteDim      = color.NRGBA{0, 0, 0, 120}
	paletteFill     = color.NRGBA{R: 36, G: 40, B: 58, A: 245}
	paletteCell     = color.NRGBA{R: 233, G: 207, B: 163, A: 255}
	turnWhite       = color.NRGBA{R: 248, G: 248, B: 248, A: 255}
	turnBlack       = color.NRGBA{R: 16, G: 16, B: 16, A: 255}
)

var defaultLabels = map[Button]string{
	ButtonReset:   "Reset",
	ButtonClear:   "Clear",
	ButtonFlip:    "Flip side",
	ButtonLoadFEN: "Load FEN",
	ButtonBest:    "Best move",
	ButtonApply:   "Apply",
	ButtonRestart: "Restart engine",
}

type Renderer struct {
	layout Layout
	faces  faces
	pieces *pieceSet
}

func New(l Layout) (*Renderer, error) {
	f, err := loadFaces(l.Square)
	if err != nil {
		return nil, err
	}
	return &Renderer{layout: l, faces: f, pieces: newPieceSet()}, nil
}

func (r *Renderer) Layout() Layout { return r.layout }

// Render draws f into a fresh image sized to the layout.
func (r *Renderer) Render(f Frame) *image.RGBA {
	l := r.layout
	img := image.NewRGBA(l.Bounds())
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	shadow := image.Rect(l.Board.Min.X+4, l.Board.Min.Y+8, l.Board.Max.X+10, l.Board.Max.Y+12)
	imagedraw.Draw(img, shadow, image.NewUniform(boardShadow), image.Point{}, imagedraw.Over)

	r.drawSquares(img)
	if f.LastMove != nil {
		r.fillSquare(img, f.LastMove.From, lastMoveFill)
		r.fillSquare(img, f.LastMove.To, lastMoveFill)
	}
	if f.HasSelection {
		r.fillSquare(img, f.Selected, selectedFill)
	}
	r.drawPieces(img, f.Position)
	r.drawTargets(img, f.Targets)
	if f.Best != nil {
		drawArrow(img, l.SquareRect(f.Best.From), l.SquareRect(f.Best.To), l.Square, bestArrow)
	}
	r.drawCoordinates(img)

	r.drawTurn(img, f)
	r.drawEval(img, f)
	r.drawButtons(img, f)
	r.drawSlider(img, f)
	r.drawFENBox(img, f)
	r.drawStatus(img, f)

	if f.PaletteOpen {
		r.drawPalette(img, f)
	}
	return img
}

// RenderPNG encodes one frame.
func (r *Renderer) RenderPNG(w io.Writer, f Frame) error {
	if err := png.Encode(w, r.Render(f)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func (r *Renderer) drawSquares(img *image.RGBA) {
	for i := 0; i < 64; i++ {
		sq := nchess.Square(i)
		imagedraw.Draw(img, r.layout.SquareRect(sq), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
	}
}

func (r *Renderer) fillSquare(img *image.RGBA, sq nchess.Square, clr color.Color) {
	if sq < nchess.A1 || sq > nchess.H8 {
		return
	}
	imagedraw.Draw(img, r.layout.SquareRect(sq), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func (r *Renderer) drawPieces(img *image.RGBA, pos board.Position) {
	for i := 0; i < 64; i++ {
		sq := nchess.Square(i)
		pc := pos.Piece(sq)
		if pc == nchess.NoPiece {
			continue
		}
		r.drawPiece(img, pc, r.layout.SquareRect(sq))
	}
}

// drawPiece falls back to a letter when the icon cannot be rasterised.
func (r *Renderer) drawPiece(img *image.RGBA, pc nchess.Piece, rect image.Rectangle) {
	size := min(rect.Dx(), rect.Dy())
	icon, err := r.pieces.image(pc, size)
	if err == nil {
		imagedraw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+size, rect.Min.Y+size), icon, image.Point{}, imagedraw.Over)
		return
	}
	letter := strings.ToUpper(pc.Type().String())
	clr := color.Color(color.White)
	if pc.Color() == nchess.Black {
		clr = color.Black
		letter = strings.ToLower(letter)
	}
	drawCentered(img, r.faces.glyph, rect, letter, clr)
}

func (r *Renderer) drawTargets(img *image.RGBA, targets map[nchess.Square]bool) {
	radius := r.layout.Square / 7
	for sq, ok := range targets {
		if !ok {
			continue
		}
		rect := r.layout.SquareRect(sq)
		center := image.Pt(rect.Min.X+rect.Dx()/2, rect.Min.Y+rect.Dy()/2)
		drawDisc(img, center, radius, targetDot)
	}
}

func (r *Renderer) drawCoordinates(img *image.RGBA) {
	l := r.layout
	face := r.faces.caption
	ascent := face.Metrics().Ascent.Ceil()
	for i := 0; i < 8; i++ {
		rank := nchess.Rank(i)
		rect := l.SquareRect(nchess.NewSquare(nchess.FileA, rank))
		drawTextCentered(img, face, rank.String(), l.Board.Min.X-l.Margin/2, rect.Min.Y+rect.Dy()/2+ascent/2, coordinateText)

		file := nchess.File(i)
		rect = l.SquareRect(nchess.NewSquare(file, nchess.Rank1))
		drawTextCentered(img, face, file.String(), rect.Min.X+rect.Dx()/2, l.Board.Max.Y+ascent+2, coordinateText)
	}
}

func (r *Renderer) drawEval(img *image.RGBA, f Frame) {
	rect := r.layout.Eval
	radius := r.layout.Square / 6
	drawRoundedPanel(img, rect.Add(image.Pt(0, 6)), radius, panelShadow)
	drawRoundedPanel(img, rect, radius, panelFill)

	top := image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+rect.Dy()/2)
	bottom := image.Rect(rect.Min.X, top.Max.Y, rect.Max.X, rect.Max.Y)
	pad := r.layout.Square / 4

	eval, clr := f.Eval, color.Color(textPrimary)
	if f.EngineOff {
		clr = textMuted
	}
	drawCentered(img, r.faces.title, top, truncate(r.faces.title, eval, top.Dx()-pad*2), clr)
	drawCentered(img, r.faces.label, bottom, truncate(r.faces.label, f.BestText, bottom.Dx()-pad*2), textMuted)
}

// drawTurn is a swatch in the side-to-move colour followed by its label.
func (r *Renderer) drawTurn(img *image.RGBA, f Frame) {
	rect := r.layout.Turn
	radius := max(rect.Dy()/4, 4)
	c := image.Pt(rect.Min.X+radius+2, rect.Min.Y+rect.Dy()/2)
	swatch := turnWhite
	if f.Position.Turn() == nchess.Black {
		swatch = turnBlack
	}
	drawDisc(img, c, radius+1, textMuted)
	drawDisc(img, c, radius, swatch)

	pad := radius*2 + 10
	drawLeft(img, r.faces.label, rect, pad, truncate(r.faces.label, f.TurnLabel, rect.Dx()-pad), textPrimary)
}

func (r *Renderer) label(f Frame, b Button) string {
	if s, ok := f.Labels[b]; ok && s != "" {
		return s
	}
	return defaultLabels[b]
}

func (r *Renderer) drawButtons(img *image.RGBA, f Frame) {
	radius := r.layout.Square / 8
	for _, b := range Buttons {
		rect := r.layout.Buttons[b]
		fill, clr := buttonFill, color.Color(textPrimary)
		switch {
		case f.Disabled[b]:
			fill, clr = buttonOff, textMuted
		case b == ButtonBest && f.Busy:
			fill = buttonBusy
		}
		drawRoundedPanel(img, rect, radius, fill)
		text := truncate(r.faces.label, r.label(f, b), rect.Dx()-8)
		drawCentered(img, r.faces.label, rect, text, clr)
	}
}

func (r *Renderer) drawSlider(img *image.RGBA, f Frame) {
	s := r.layout.Slider
	labelRect := image.Rect(s.Min.X, s.Min.Y-s.Dy()*2, s.Max.X, s.Min.Y)
	drawCentered(img, r.faces.caption, labelRect, f.ThinkLabel, textMuted)

	trackH := max(s.Dy()/3, 2)
	cy := s.Min.Y + s.Dy()/2
	track := image.Rect(s.Min.X, cy-trackH/2, s.Max.X, cy-trackH/2+trackH)
	drawRoundedPanel(img, track, trackH/2, sliderTrack)

	knobX := r.layout.SliderX(f.Think)
	filled := image.Rect(s.Min.X, track.Min.Y, knobX, track.Max.Y)
	drawRoundedPanel(img, filled, trackH/2, sliderKnob)
	drawDisc(img, image.Pt(knobX, cy), s.Dy()/2, sliderKnob)
}

func (r *Renderer) drawFENBox(img *image.RGBA, f Frame) {
	rect := r.layout.FENBox
	radius := r.layout.Square / 8
	fill := color.Color(buttonOff)
	if f.FENEditing {
		fill = panelFill
	}
	drawRoundedPanel(img, rect, radius, fill)

	pad := 8
	text, clr := f.FENInput, color.Color(textPrimary)
	if f.FENEditing {
		text += "_"
	} else if text == "" {
		text, clr = f.FENPrompt, textMuted
	}
	// keep the tail visible while typing
	drawLeft(img, r.faces.caption, rect, pad, truncateLeft(r.faces.caption, text, rect.Dx()-pad*2), clr)
}

func (r *Renderer) drawStatus(img *image.RGBA, f Frame) {
	rect := r.layout.Status
	text, clr := f.Status, color.Color(textPrimary)
	if f.Flash != "" {
		text, clr = f.Flash, textOK
		if f.FlashBad {
			clr = textError
		}
	}
	drawLeft(img, r.faces.label, rect, 0, truncate(r.faces.label, text, rect.Dx()), clr)
}

func (r *Renderer) drawPalette(img *image.RGBA, f Frame) {
	l := r.layout
	imagedraw.Draw(img, l.Board, image.NewUniform(paletteDim), image.Point{}, imagedraw.Over)
	radius := l.Square / 6
	drawRoundedPanel(img, l.Palette.Add(image.Pt(0, 6)), radius, panelShadow)
	drawRoundedPanel(img, l.Palette, radius, paletteFill)

	header := image.Rect(l.Palette.Min.X, l.Palette.Min.Y, l.Palette.Max.X, l.PaletteCells[0].Min.Y)
	drawCentered(img, r.faces.label, header, f.PaletteTitle, textPrimary)

	for i, e := range interaction.PaletteEntries {
		cell := l.PaletteCells[i]
		inner := cell.Inset(2)
		if e.Remove {
			drawRoundedPanel(img, inner, radius/2, buttonFill)
			label := f.RemoveLabel
			if label == "" {
				label = "Remove"
			}
			drawCentered(img, r.faces.label, inner, label, textPrimary)
			continue
		}
		drawRoundedPanel(img, inner, radius/2, paletteCell)
		r.drawPiece(img, e.Piece(), cell)
	}
}

func truncate(face font.Face, text string, maxWidth int) string {
	text = strings.TrimSpace(text)
	if text == "" || maxWidth <= 0 {
		return text
	}
	d := font.Drawer{Face: face}
	if d.MeasureString(text).Round() <= maxWidth {
		return text
	}
	const ellipsis = "..."
	if d.MeasureString(ellipsis).Round() > maxWidth {
		return ""
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if c := string(runes) + ellipsis; d.MeasureString(c).Round() <= maxWidth {
			return c
		}
	}
	return ellipsis
}

// truncateLeft drops leading runes so the end of text fits.
func truncateLeft(face font.Face, text string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	d := font.Drawer{Face: face}
	if d.MeasureString(text).Round() <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[1:]
		if c := "..." + string(runes); d.MeasureString(c).Round() <= maxWidth {
			return c
		}
	}
	return ""
}
