package interaction

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// PaletteEntry is one choice in the right-click edit palette.
type PaletteEntry struct {
	Type   nchess.PieceType
	Color  nchess.Color
	Remove bool
}

func (e PaletteEntry) Piece() nchess.Piece {
	if e.Remove {
		return nchess.NoPiece
	}
	return nchess.NewPiece(e.Type, e.Color)
}

// Code is the two-letter shorthand (wq, bp) or "remove".
func (e PaletteEntry) Code() string {
	if e.Remove {
		return "remove"
	}
	c := "w"
	if e.Color == nchess.Black {
		c = "b"
	}
	return c + strings.ToLower(e.Type.String())
}

// PaletteEntries lists the twelve pieces followed by Remove, in display order.
var PaletteEntries = func() []PaletteEntry {
	types := []nchess.PieceType{nchess.King, nchess.Queen, nchess.Rook, nchess.Bishop, nchess.Knight, nchess.Pawn}
	out := make([]PaletteEntry, 0, 13)
	for _, clr := range []nchess.Color{nchess.White, nchess.Black} {
		for _, pt := range types {
			out = append(out, PaletteEntry{Type: pt, Color: clr})
		}
	}
	return append(out, PaletteEntry{Remove: true})
}()

var removeCodes = []string{"remove", "x", "-"}

// IsPaletteCodePrefix reports whether s could still grow into a valid code.
func IsPaletteCodePrefix(s string) bool {
	s = strings.ToLower(s)
	if s == "" {
		return true
	}
	for _, c := range removeCodes {
		if strings.HasPrefix(c, s) {
			return true
		}
	}
	for _, e := range PaletteEntries {
		if !e.Remove && strings.HasPrefix(e.Code(), s) {
			return true
		}
	}
	return false
}

// ParsePaletteCode accepts "wq", "bn", "remove" and the like, case-insensitively.
func ParsePaletteCode(s string) (PaletteEntry, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range removeCodes {
		if s == c {
			return PaletteEntry{Remove: true}, nil
		}
	}
	for _, e := range PaletteEntries {
		if !e.Remove && e.Code() == s {
			return e, nil
		}
	}
	return PaletteEntry{}, fmt.Errorf("unknown piece code %q (want e.g. wq, bp or remove)", s)
}
