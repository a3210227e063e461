package engine

import "errors"

var (
	ErrNotRunning      = errors.New("engine is not running")
	ErrDisabled        = errors.New("engine disabled")
	ErrEngineTimeout   = errors.New("engine timed out")
	ErrMalformedOutput = errors.New("malformed engine output")
	ErrEngineCrashed   = errors.New("engine crashed")
	ErrNoMove          = errors.New("no legal move available")
)
