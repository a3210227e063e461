// Package window runs the editor in an ebiten window.
package window

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/park285/cheese-board/internal/gui"
	"github.com/park285/cheese-board/internal/render"
	"go.uber.org/zap"
)

// Game implements ebiten.Game. Update is the only place editor state changes.
type Game struct {
	shell    *gui.Shell
	renderer *render.Renderer
	logger   *zap.Logger

	canvas *ebiten.Image
	dirty  bool
	chars  []rune
}

func New(shell *gui.Shell, r *render.Renderer, logger *zap.Logger) *Game {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Game{shell: shell, renderer: r, logger: logger, dirty: true}
}

// Run opens the window and blocks until it is closed.
func Run(g *Game, title string) error {
	w, h := g.renderer.Layout().Size()
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowClosingHandled(true)
	// redraws happen on input and engine results, not every tick
	ebiten.SetScreenClearedEveryFrame(false)
	return ebiten.RunGame(g)
}

var specialKeys = []struct {
	key ebiten.Key
	gui gui.Key
}{
	{ebiten.KeyEscape, gui.KeyEscape},
	{ebiten.KeyEnter, gui.KeyEnter},
	{ebiten.KeyNumpadEnter, gui.KeyEnter},
	{ebiten.KeyArrowUp, gui.KeyPlus},
	{ebiten.KeyArrowDown, gui.KeyMinus},
}

// repeating reports a press on the first frame and then every few frames
// while the key is held.
func repeating(k ebiten.Key) bool {
	d := inpututil.KeyPressDuration(k)
	return d == 1 || (d >= 30 && d%4 == 0)
}

func (g *Game) readInput() gui.Input {
	x, y := ebiten.CursorPosition()
	in := gui.Input{
		X:            x,
		Y:            y,
		LeftPressed:  inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft),
		LeftHeld:     ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft),
		RightPressed: inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight),
	}
	for _, k := range specialKeys {
		if inpututil.IsKeyJustPressed(k.key) {
			in.Keys = append(in.Keys, k.gui)
		}
	}
	if repeating(ebiten.KeyBackspace) {
		in.Keys = append(in.Keys, gui.KeyBackspace)
	}
	g.chars = ebiten.AppendInputChars(g.chars[:0])
	in.Chars = g.chars
	return in
}

func (g *Game) Update() error {
	if ebiten.IsWindowBeingClosed() {
		g.logger.Info("window closed")
		return ebiten.Termination
	}
	if g.shell.Update(g.readInput()) {
		g.dirty = true
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.dirty || g.canvas == nil {
		img := g.renderer.Render(g.shell.Frame())
		g.blit(img)
		g.dirty = false
	}
	screen.DrawImage(g.canvas, nil)
}

func (g *Game) blit(img *image.RGBA) {
	if g.canvas == nil || g.canvas.Bounds().Size() != img.Bounds().Size() {
		g.canvas = ebiten.NewImageFromImage(img)
		return
	}
	g.canvas.WritePixels(img.Pix)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.renderer.Layout().Size()
}
