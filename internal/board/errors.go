package board

import (
	"errors"
	"fmt"
)

var (
	ErrIllegalMove  = errors.New("illegal move")
	ErrInconsistent = errors.New("position is not playable")
)

// ParseError reports a FEN that could not be loaded. The board is untouched.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse fen %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
