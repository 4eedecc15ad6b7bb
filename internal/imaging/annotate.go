package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultOverlayColor is used when no outline color is configured.
const DefaultOverlayColor = "#ff0000"

// outlineWidth is the stroke width of annotation outlines, in pixels.
const outlineWidth = 2

// ParseColor parses "#rrggbb" or "#rgb". The leading '#' is optional.
func ParseColor(hex string) (color.Color, error) {
	if len(hex) > 0 && hex[0] != '#' {
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// Annotate returns an RGBA copy of img with a closed polygon outline and an
// optional text label drawn on top.
//
// Parameters:
//   - outline: polygon vertices in image coordinates; the last vertex is
//     joined to the first. Fewer than two vertices draws nothing.
//   - colorHex: outline color, see ParseColor.
//   - label: text rendered in the top-left corner on a dark backing box.
//     Empty means no label.
//
// Outline vertices are in img's coordinate space. The copy is rebased to
// origin (0,0).
func Annotate(img image.Image, outline []image.Point, colorHex, label string) (*image.RGBA, error) {
	if err := validate(img); err != nil {
		return nil, err
	}
	stroke, err := ParseColor(colorHex)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(result, result.Bounds(), img, b.Min, draw.Src)

	if len(outline) >= 2 {
		for i := range outline {
			p := outline[i].Sub(b.Min)
			q := outline[(i+1)%len(outline)].Sub(b.Min)
			drawLine(result, p, q, stroke)
		}
	}

	if label != "" {
		drawLabel(result, 4, 4, label)
	}

	return result, nil
}

// drawLine draws a thick line segment using Bresenham's algorithm.
func drawLine(img *image.RGBA, p, q image.Point, c color.Color) {
	dx := abs(q.X - p.X)
	dy := -abs(q.Y - p.Y)
	sx, sy := 1, 1
	if p.X > q.X {
		sx = -1
	}
	if p.Y > q.Y {
		sy = -1
	}
	e := dx + dy
	x, y := p.X, p.Y
	for {
		plot(img, x, y, c)
		if x == q.X && y == q.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

// plot paints an outlineWidth square at (x, y), clipped to the image.
func plot(img *image.RGBA, x, y int, c color.Color) {
	r := image.Rect(x, y, x+outlineWidth, y+outlineWidth).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// drawLabel renders text with the 7x13 bitmap face on a translucent black box.
func drawLabel(img *image.RGBA, x, y int, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
	}
	width := d.MeasureString(text).Ceil()
	box := image.Rect(x, y, x+width+4, y+face.Height+2).Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(color.RGBA{0, 0, 0, 180}), image.Point{}, draw.Over)

	d.Dot = fixed.P(x+2, y+1+face.Ascent)
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
