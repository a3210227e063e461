package panel

import (
	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/engine"
	"github.com/park285/cheese-board/internal/render"
)

var buttonKeys = map[render.Button]string{
	render.ButtonReset:   "button.reset",
	render.ButtonClear:   "button.clear",
	render.ButtonFlip:    "button.flip",
	render.ButtonLoadFEN: "button.load_fen",
	render.ButtonBest:    "button.best",
	render.ButtonApply:   "button.apply",
	render.ButtonRestart: "button.restart",
}

// Frame snapshots the panel for the renderer. FEN input fields are left for
// the caller, which owns the text box.
func (p *Panel) Frame() render.Frame {
	f := render.Frame{
		Position:    p.board.Position(),
		Status:      p.status,
		Think:       p.think,
		ThinkLabel:  p.text("button.think", map[string]any{"Ms": p.think.Milliseconds()}),
		Busy:        p.Busy(),
		EngineOff:   p.analyzer.DisabledReason() != nil,
		TurnLabel:   p.text("label.to_move", map[string]any{"Side": sideName(p.cat, p.board.Turn())}),
		FENPrompt:   p.text("label.fen_prompt", nil),
		RemoveLabel: p.text("label.palette_remove", nil),
		Labels:      make(map[render.Button]string, len(buttonKeys)),
		Disabled:    map[render.Button]bool{},
	}
	for b, key := range buttonKeys {
		f.Labels[b] = p.text(key, nil)
	}

	if sq, ok := p.ctrl.Selection(); ok {
		f.Selected, f.HasSelection = sq, true
		f.Targets = p.board.LegalTargets(sq)
	}
	if sq, ok := p.ctrl.Palette(); ok {
		f.PaletteOpen, f.PaletteSquare = true, sq
		f.PaletteTitle = p.text("label.palette_title", map[string]any{"Square": sq.String()})
	}
	if p.lastMove != nil && p.lastVersion == p.board.Version() {
		f.LastMove = &render.Arrow{From: p.lastMove.From, To: p.lastMove.To}
	}
	if msg, bad, ok := p.Flash(); ok {
		f.Flash, f.FlashBad = msg, bad
	}

	res, ok := p.Result()
	if !ok {
		f.Eval = p.text("eval.none", nil)
		if f.EngineOff {
			f.Eval = p.text("label.engine_off", nil)
		}
		f.BestText = p.text("best.none", nil)
		f.Disabled[render.ButtonApply] = true
		return f
	}
	f.Eval = p.evalText(res)
	f.BestText = p.bestText(res)
	if from, to, ok := moveSquares(res.BestMove); ok {
		f.Best = &render.Arrow{From: from, To: to}
	} else {
		f.Disabled[render.ButtonApply] = true
	}
	return f
}

func (p *Panel) evalText(res engine.Result) string {
	if !res.HasScore {
		return p.text("eval.none", nil)
	}
	white := res.WhiteScore()
	if white.IsMate() {
		moves := white.Mate
		if moves < 0 {
			moves = -moves
		}
		return p.text("eval.mate", map[string]any{"Score": white.String(), "Moves": moves, "Depth": res.Depth})
	}
	return p.text("eval.score", map[string]any{"Score": white.String(), "Depth": res.Depth})
}

func (p *Panel) bestText(res engine.Result) string {
	move := res.MoveText(p.board)
	if move == "" {
		return p.text("best.none", nil)
	}
	if res.Cached {
		return p.text("best.cached", map[string]any{"Move": move})
	}
	return p.text("best.move", map[string]any{"Move": move})
}

func moveSquares(uciMove string) (nchess.Square, nchess.Square, bool) {
	if len(uciMove) < 4 {
		return nchess.NoSquare, nchess.NoSquare, false
	}
	from, err := board.ParseSquare(uciMove[:2])
	if err != nil {
		return nchess.NoSquare, nchess.NoSquare, false
	}
	to, err := board.ParseSquare(uciMove[2:4])
	if err != nil {
		return nchess.NoSquare, nchess.NoSquare, false
	}
	return from, to, true
}
