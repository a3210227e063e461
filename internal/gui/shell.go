// Package gui maps one frame of pointer and keyboard input onto panel
// actions. It has no window dependency; internal/gui/window feeds it from
// ebiten.
package gui

import (
	"time"

	"github.com/park285/cheese-board/internal/interaction"
	"github.com/park285/cheese-board/internal/panel"
	"github.com/park285/cheese-board/internal/render"
)

type Key int

const (
	KeyEscape Key = iota + 1
	KeyEnter
	KeyBackspace
	KeyPlus
	KeyMinus
)

const thinkStep = 50 * time.Millisecond

// Input is what happened since the previous frame.
type Input struct {
	X, Y         int
	LeftPressed  bool
	LeftHeld     bool
	RightPressed bool
	Chars        []rune
	Keys         []Key
}

func (in Input) pressed(k Key) bool {
	for _, x := range in.Keys {
		if x == k {
			return true
		}
	}
	return false
}

type Shell struct {
	panel  *panel.Panel
	layout render.Layout

	fenEditing  bool
	fenInput    []rune
	paletteCode []rune
	dragging    bool

	dirty     bool
	lastFlash string
	lastBusy  bool
}

func New(p *panel.Panel, l render.Layout) *Shell {
	return &Shell{panel: p, layout: l, dirty: true}
}

func (s *Shell) Panel() *panel.Panel { return s.panel }

func (s *Shell) Layout() render.Layout { return s.layout }

func (s *Shell) Editing() bool { return s.fenEditing }

// Update applies in and any finished background work. It reports whether
// the frame needs to be redrawn.
func (s *Shell) Update(in Input) bool {
	if s.panel.Poll() {
		s.dirty = true
	}
	if s.handleKeys(in) {
		s.dirty = true
	}
	if s.handlePointer(in) {
		s.dirty = true
	}

	// flash expiry and busy edges change the picture without any input
	msg, _, _ := s.panel.Flash()
	if msg != s.lastFlash || s.panel.Busy() != s.lastBusy {
		s.lastFlash, s.lastBusy = msg, s.panel.Busy()
		s.dirty = true
	}

	d := s.dirty
	s.dirty = false
	return d
}

func (s *Shell) handleKeys(in Input) bool {
	switch {
	case s.fenEditing:
		return s.editFEN(in)
	case s.paletteOpen():
		return s.typePalette(in)
	}

	changed := false
	for _, k := range in.Keys {
		switch k {
		case KeyEscape:
			s.panel.Controller().ClearSelection()
			changed = true
		case KeyPlus:
			s.panel.AdjustThink(thinkStep)
			changed = true
		case KeyMinus:
			s.panel.AdjustThink(-thinkStep)
			changed = true
		}
	}
	for _, r := range in.Chars {
		if s.shortcut(r) {
			changed = true
		}
	}
	return changed
}

func (s *Shell) shortcut(r rune) bool {
	switch r {
	case 'r', 'R':
		s.press(render.ButtonReset)
	case 'c', 'C':
		s.press(render.ButtonClear)
	case 'f', 'F':
		s.press(render.ButtonFlip)
	case 'l', 'L':
		s.press(render.ButtonLoadFEN)
	case 'b', 'B', ' ':
		s.press(render.ButtonBest)
	case 'a', 'A':
		s.press(render.ButtonApply)
	case 'e', 'E':
		s.press(render.ButtonRestart)
	case '+', '=':
		s.panel.AdjustThink(thinkStep)
	case '-', '_':
		s.panel.AdjustThink(-thinkStep)
	default:
		return false
	}
	return true
}

func (s *Shell) press(b render.Button) {
	switch b {
	case render.ButtonReset:
		s.panel.Reset()
	case render.ButtonClear:
		s.panel.Clear()
	case render.ButtonFlip:
		s.panel.FlipSide()
	case render.ButtonLoadFEN:
		s.startFEN()
	case render.ButtonBest:
		_, _ = s.panel.RequestBestMove()
	case render.ButtonApply:
		_ = s.panel.ApplyBestMove()
	case render.ButtonRestart:
		s.panel.RestartEngine()
	}
}

// startFEN opens the text box prefilled with the current position.
func (s *Shell) startFEN() {
	s.fenEditing = true
	s.fenInput = []rune(s.panel.Board().FEN())
}

func (s *Shell) editFEN(in Input) bool {
	changed := len(in.Chars) > 0
	for _, r := range in.Chars {
		if r == '\n' || r == '\r' {
			continue
		}
		s.fenInput = append(s.fenInput, r)
	}
	if in.pressed(KeyBackspace) && len(s.fenInput) > 0 {
		s.fenInput = s.fenInput[:len(s.fenInput)-1]
		changed = true
	}
	if in.pressed(KeyEscape) {
		s.fenEditing = false
		s.fenInput = nil
		return true
	}
	if in.pressed(KeyEnter) {
		// a rejected FEN keeps the box open for correction
		if err := s.panel.LoadFEN(string(s.fenInput)); err == nil {
			s.fenEditing = false
			s.fenInput = nil
		}
		return true
	}
	return changed
}

func (s *Shell) paletteOpen() bool {
	_, ok := s.panel.Controller().Palette()
	return ok
}

// typePalette accepts piece codes such as "wq", "x" or "remove" while the
// palette is open.
func (s *Shell) typePalette(in Input) bool {
	if in.pressed(KeyEscape) {
		s.panel.ClosePalette()
		s.paletteCode = nil
		return true
	}
	if in.pressed(KeyBackspace) && len(s.paletteCode) > 0 {
		s.paletteCode = s.paletteCode[:len(s.paletteCode)-1]
	}
	changed := false
	for _, r := range in.Chars {
		changed = true
		s.paletteCode = append(s.paletteCode, r)
		if !interaction.IsPaletteCodePrefix(string(s.paletteCode)) {
			// not going anywhere; start over with this rune
			s.paletteCode = []rune{r}
			if !interaction.IsPaletteCodePrefix(string(s.paletteCode)) {
				s.paletteCode = nil
				continue
			}
		}
		entry, err := interaction.ParsePaletteCode(string(s.paletteCode))
		if err == nil {
			s.panel.ChoosePalette(entry)
			s.paletteCode = nil
			return true
		}
	}
	return changed
}

func (s *Shell) handlePointer(in Input) bool {
	if s.dragging {
		if !in.LeftHeld {
			s.dragging = false
			return false
		}
		before := s.panel.Think()
		return s.panel.SetThink(s.layout.ThinkAt(in.X)) != before
	}

	if in.RightPressed {
		hit := s.layout.HitTest(in.X, in.Y, s.paletteOpen())
		if hit.Kind == render.HitSquare {
			s.panel.RightClick(hit.Square)
			s.paletteCode = nil
			return true
		}
	}
	if !in.LeftPressed {
		return false
	}

	hit := s.layout.HitTest(in.X, in.Y, s.paletteOpen())
	if s.fenEditing && hit.Kind != render.HitFENBox {
		// clicking elsewhere abandons the text box
		s.fenEditing = false
		s.fenInput = nil
	}
	switch hit.Kind {
	case render.HitSquare:
		s.panel.LeftClick(hit.Square)
	case render.HitPalette:
		s.panel.ChoosePalette(hit.Palette)
		s.paletteCode = nil
	case render.HitButton:
		s.panel.ClosePalette()
		s.press(hit.Button)
	case render.HitSlider:
		s.panel.SetThink(hit.Think)
		s.dragging = true
	case render.HitFENBox:
		if !s.fenEditing {
			s.startFEN()
		}
	default:
		if s.paletteOpen() {
			s.panel.ClosePalette()
		}
	}
	return true
}

// Frame is the panel frame plus the text box state.
func (s *Shell) Frame() render.Frame {
	f := s.panel.Frame()
	f.FENEditing = s.fenEditing
	if s.fenEditing {
		f.FENInput = string(s.fenInput)
	} else {
		f.FENInput = ""
	}
	return f
}
