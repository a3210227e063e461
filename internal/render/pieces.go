package render

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

//go:embed assets/pieces/*.svg
var pieceFiles embed.FS

type pieceKey struct {
	piece nchess.Piece
	size  int
}

// pieceSet rasterises piece icons once per (piece, size).
type pieceSet struct {
	mu    sync.RWMutex
	cache map[pieceKey]*image.RGBA
}

func newPieceSet() *pieceSet {
	return &pieceSet{cache: make(map[pieceKey]*image.RGBA)}
}

func (s *pieceSet) image(piece nchess.Piece, size int) (*image.RGBA, error) {
	key := pieceKey{piece: piece, size: size}

	s.mu.RLock()
	img, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return img, nil
	}

	img, err := rasterisePiece(piece, size)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = img
	s.mu.Unlock()
	return img, nil
}

func rasterisePiece(piece nchess.Piece, size int) (*image.RGBA, error) {
	if piece == nchess.NoPiece || size <= 0 {
		return nil, fmt.Errorf("rasterise piece %v at %d px", piece, size)
	}
	name := pieceAssetName(piece.Type())
	data, err := pieceFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read piece asset %s: %w", name, err)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(tintSVG(data, piece.Color())))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg %s: %w", name, err)
	}
	if icon.ViewBox.W <= 0 {
		icon.ViewBox.W = float64(size)
	}
	if icon.ViewBox.H <= 0 {
		icon.ViewBox.H = float64(size)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)
	return img, nil
}

// One outline per piece type; colour is applied by tintSVG.
func pieceAssetName(pt nchess.PieceType) string {
	var name string
	switch pt {
	case nchess.King:
		name = "K"
	case nchess.Queen:
		name = "Q"
	case nchess.Rook:
		name = "R"
	case nchess.Bishop:
		name = "B"
	case nchess.Knight:
		name = "N"
	default:
		name = "P"
	}
	return "assets/pieces/" + name + ".svg"
}
