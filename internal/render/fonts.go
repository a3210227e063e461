package render

import (
	"fmt"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

type faces struct {
	title   font.Face
	label   font.Face
	caption font.Face
	glyph   font.Face
}

// loadFaces sizes the Go fonts relative to the square size.
func loadFaces(square int) (faces, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return faces{}, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return faces{}, fmt.Errorf("parse bold font: %w", err)
	}

	size := func(scale, lo, hi float64) float64 {
		return max(lo, min(hi, float64(square)*scale))
	}
	return faces{
		title:   truetype.NewFace(bold, &truetype.Options{Size: size(0.30, 14, 30), Hinting: font.HintingFull}),
		label:   truetype.NewFace(regular, &truetype.Options{Size: size(0.22, 11, 20), Hinting: font.HintingFull}),
		caption: truetype.NewFace(regular, &truetype.Options{Size: size(0.18, 10, 16), Hinting: font.HintingFull}),
		glyph:   truetype.NewFace(bold, &truetype.Options{Size: size(0.55, 16, 80)}),
	}, nil
}
