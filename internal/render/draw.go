package render

import (
	"image"
	"image/color"
	imagedraw "image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

type pointF struct {
	X, Y float64
}

func center(r image.Rectangle) pointF {
	return pointF{X: float64(r.Min.X) + float64(r.Dx())/2, Y: float64(r.Min.Y) + float64(r.Dy())/2}
}

// drawArrow draws a shaft plus head from the centre of one square to the
// centre of another.
func drawArrow(img *image.RGBA, from, to image.Rectangle, squareSize int, clr color.Color) {
	if from == to {
		return
	}
	start, end := center(from), center(to)
	dx, dy := end.X-start.X, end.Y-start.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	dirX, dirY := dx/length, dy/length
	perpX, perpY := -dirY, dirX

	sq := float64(squareSize)
	shaft := length - sq*0.45
	if shaft < sq*0.35 {
		shaft = length * 0.6
	}
	half := sq * 0.09
	head := sq * 0.22

	base := pointF{X: start.X + dirX*shaft, Y: start.Y + dirY*shaft}
	side := func(p pointF, w float64) (pointF, pointF) {
		return pointF{X: p.X - perpX*w, Y: p.Y - perpY*w}, pointF{X: p.X + perpX*w, Y: p.Y + perpY*w}
	}

	s0, s1 := side(start, half)
	e0, e1 := side(base, half)
	fillTriangle(img, s0, s1, e1, clr)
	fillTriangle(img, s0, e1, e0, clr)

	h0, h1 := side(base, head)
	fillTriangle(img, end, h0, h1, clr)
}

func fillTriangle(img *image.RGBA, a, b, c pointF, clr color.Color) {
	minX := int(math.Floor(math.Min(a.X, math.Min(b.X, c.X))))
	maxX := int(math.Ceil(math.Max(a.X, math.Max(b.X, c.X))))
	minY := int(math.Floor(math.Min(a.Y, math.Min(b.Y, c.Y))))
	maxY := int(math.Ceil(math.Max(a.Y, math.Max(b.Y, c.Y))))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if inTriangle(float64(x)+0.5, float64(y)+0.5, a, b, c) {
				blendPixel(img, x, y, clr)
			}
		}
	}
}

func inTriangle(x, y float64, a, b, c pointF) bool {
	denom := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if denom == 0 {
		return false
	}
	alpha := ((b.Y-c.Y)*(x-c.X) + (c.X-b.X)*(y-c.Y)) / denom
	beta := ((c.Y-a.Y)*(x-c.X) + (a.X-c.X)*(y-c.Y)) / denom
	return alpha >= 0 && beta >= 0 && 1-alpha-beta >= 0
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if rect.Empty() {
		return
	}
	radius = max(0, min(radius, rect.Dx()/2, rect.Dy()/2))
	fill := image.NewUniform(clr)
	if radius == 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}

	// centre column, then the two side strips between the corner discs
	imagedraw.Draw(img, image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)

	// each corner box gets a quarter disc centred on its inner corner
	boxes := []struct {
		box    image.Rectangle
		cx, cy int
	}{
		{image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+radius, rect.Min.Y+radius), rect.Min.X + radius, rect.Min.Y + radius},
		{image.Rect(rect.Max.X-radius, rect.Min.Y, rect.Max.X, rect.Min.Y+radius), rect.Max.X - radius - 1, rect.Min.Y + radius},
		{image.Rect(rect.Min.X, rect.Max.Y-radius, rect.Min.X+radius, rect.Max.Y), rect.Min.X + radius, rect.Max.Y - radius - 1},
		{image.Rect(rect.Max.X-radius, rect.Max.Y-radius, rect.Max.X, rect.Max.Y), rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	}
	r2 := radius * radius
	for _, b := range boxes {
		for y := b.box.Min.Y; y < b.box.Max.Y; y++ {
			for x := b.box.Min.X; x < b.box.Max.X; x++ {
				dx, dy := x-b.cx, y-b.cy
				if dx*dx+dy*dy <= r2 {
					blendPixel(img, x, y, clr)
				}
			}
		}
	}
}

func drawDisc(img *image.RGBA, c image.Point, radius int, clr color.Color) {
	if radius <= 0 {
		blendPixel(img, c.X, c.Y, clr)
		return
	}
	r2 := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= r2 {
				blendPixel(img, c.X+x, c.Y+y, clr)
			}
		}
	}
}

// blendPixel composites clr over the pixel at (x, y) using source-over.
func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	dst := img.RGBAAt(x, y)
	inv := 1 - float64(sa)/0xffff
	mix := func(s uint32, d uint8) uint8 {
		return toUint8(float64(s)/0xffff*255 + float64(d)*inv)
	}
	img.SetRGBA(x, y, color.RGBA{
		R: mix(sr, dst.R),
		G: mix(sg, dst.G),
		B: mix(sb, dst.B),
		A: mix(sa, dst.A),
	})
}

func toUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// drawCentered centres text in rect both ways.
func drawCentered(dst imagedraw.Image, face font.Face, rect image.Rectangle, text string, clr color.Color) {
	if text == "" {
		return
	}
	d := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(clr)}
	m := face.Metrics()
	width := d.MeasureString(text).Round()
	x := max(rect.Min.X, rect.Min.X+(rect.Dx()-width)/2)
	baseline := rect.Min.Y + (rect.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	d.Dot = fixed.P(x, baseline)
	d.DrawString(text)
}

// drawLeft draws text left-aligned at pad, vertically centred in rect.
func drawLeft(dst imagedraw.Image, face font.Face, rect image.Rectangle, pad int, text string, clr color.Color) {
	if text == "" {
		return
	}
	d := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(clr)}
	m := face.Metrics()
	baseline := rect.Min.Y + (rect.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	d.Dot = fixed.P(rect.Min.X+pad, baseline)
	d.DrawString(text)
}

func drawTextCentered(dst imagedraw.Image, face font.Face, text string, centerX, baseline int, clr color.Color) {
	if text == "" {
		return
	}
	d := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(clr)}
	width := d.MeasureString(text).Round()
	d.Dot = fixed.P(centerX-width/2, baseline)
	d.DrawString(text)
}
