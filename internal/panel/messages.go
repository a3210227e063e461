package panel

import (
	"errors"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/engine"
	"github.com/park285/cheese-board/internal/uci"
)

// describe maps an error to the user-facing message for it.
func (p *Panel) describe(err error) string {
	var launch *uci.LaunchError
	var parse *board.ParseError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &launch):
		return p.text("error.launch", map[string]any{"Path": launch.Path})
	case errors.As(err, &parse):
		return p.text("error.parse_fen", map[string]any{"Err": parse.Err.Error()})
	case errors.Is(err, board.ErrIllegalMove):
		return p.text("error.illegal_move", nil)
	case errors.Is(err, board.ErrInconsistent):
		return p.text("error.unplayable", nil)
	case errors.Is(err, engine.ErrDisabled):
		return p.text("error.engine_disabled", nil)
	case errors.Is(err, engine.ErrEngineTimeout):
		return p.text("error.engine_timeout", nil)
	case errors.Is(err, engine.ErrMalformedOutput):
		return p.text("error.engine_malformed", nil)
	case errors.Is(err, engine.ErrEngineCrashed), errors.Is(err, engine.ErrNotRunning):
		return p.text("error.engine_crashed", nil)
	case errors.Is(err, engine.ErrNoMove):
		return p.text("error.no_move", nil)
	case errors.Is(err, ErrRestarting):
		return p.text("error.engine_busy", nil)
	default:
		return p.text("error.engine", map[string]any{"Err": err.Error()})
	}
}
