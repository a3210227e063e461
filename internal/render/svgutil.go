package render

import (
	"bytes"

	nchess "github.com/corentings/chess/v2"
)

// Placeholder colours used by the embedded piece outlines.
var (
	svgBody   = []byte("#BODY00")
	svgLine   = []byte("#LINE00")
	svgAccent = []byte("#ACCENT")
)

type pieceTint struct {
	body, line, accent []byte
}

var (
	whiteTint = pieceTint{body: []byte("#f8f8f4"), line: []byte("#1b1b1b"), accent: []byte("#1b1b1b")}
	blackTint = pieceTint{body: []byte("#262626"), line: []byte("#0c0c0c"), accent: []byte("#e8e8e8")}
)

// tintSVG fills the placeholders for one side and normalises the spaced
// "fill: #" style oksvg fails to read.
func tintSVG(svg []byte, clr nchess.Color) []byte {
	t := whiteTint
	if clr == nchess.Black {
		t = blackTint
	}
	out := bytes.ReplaceAll(svg, svgBody, t.body)
	out = bytes.ReplaceAll(out, svgLine, t.line)
	out = bytes.ReplaceAll(out, svgAccent, t.accent)
	out = bytes.ReplaceAll(out, []byte("fill: #"), []byte("fill:#"))
	out = bytes.ReplaceAll(out, []byte("stroke: #"), []byte("stroke:#"))
	return out
}
