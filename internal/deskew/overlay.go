package deskew

import (
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/image-deskew/internal/imaging"
)

// Overlay renders the measurement behind a correction: the fitted
// minimum-area rectangle outlined in colorHex and a "skew N.NN°" label, drawn
// on an RGBA copy of the uncorrected image.
//
// Blank images get the label "skew n/a (blank)" and no outline.
func (c *Corrector) Overlay(img image.Image, colorHex string) (*image.RGBA, *Result, error) {
	res, err := c.Measure(img)
	if err != nil {
		return nil, nil, err
	}

	var outline []image.Point
	label := "skew n/a (blank)"
	if !res.Fallback {
		min := img.Bounds().Min
		for _, p := range res.Rect.Corners() {
			outline = append(outline, image.Point{
				X: min.X + int(math.Round(p.X)),
				Y: min.Y + int(math.Round(p.Y)),
			})
		}
		label = fmt.Sprintf("skew %.2f°", res.Angle)
	}

	annotated, err := imaging.Annotate(img, outline, colorHex, label)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to annotate image: %w", err)
	}
	return annotated, res, nil
}
