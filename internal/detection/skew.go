package detection

import (
	"errors"
	"image"
)

// ErrNoForeground is returned by EstimateSkew when the mask has no
// foreground pixels and therefore no measurable orientation.
var ErrNoForeground = errors.New("no foreground pixels")

// SkewEstimate is the outcome of measuring the dominant orientation of a
// binary mask.
type SkewEstimate struct {
	// Angle is the correction angle in degrees, in (-45, 45]. Rotating the
	// image by Angle (positive = counter-clockwise on screen) levels it.
	Angle float64 `json:"angle"`

	// Rect is the minimum-area rectangle enclosing all foreground pixels.
	// Its Angle field holds the raw angle in [-90, 0).
	Rect RotatedRect `json:"rect"`

	// HullSize is the number of convex hull vertices.
	HullSize int `json:"hull_size"`

	// Foreground is the number of foreground pixels in the mask.
	Foreground int `json:"foreground"`
}

// SkewAngle normalizes a raw rectangle angle in [-90, 0) into the correction
// angle in (-45, 45].
//
// Raw angles below -45 describe a rectangle whose defining edge leans the
// other way, so they are folded: -(90 + raw). Otherwise the result is -raw.
// For content rotated clockwise by d degrees (d < 45) the result is +d.
func SkewAngle(raw float64) float64 {
	if raw < -45 {
		return -90 - raw
	}
	return -raw
}

// EstimateSkew measures the skew of the foreground of mask.
//
// Only the extreme pixels of each row are fed to the convex hull (see
// HullCandidates); the hull and therefore the rectangle are the same as for
// the full foreground set.
//
// Returns ErrNoForeground when the mask is empty.
func EstimateSkew(mask *image.Gray) (*SkewEstimate, error) {
	candidates, count := scanRows(mask)
	if count == 0 {
		return nil, ErrNoForeground
	}

	hull := ConvexHull(candidates)
	rect := minAreaRectOfHull(hull)

	return &SkewEstimate{
		Angle:      SkewAngle(rect.Angle),
		Rect:       rect,
		HullSize:   len(hull),
		Foreground: count,
	}, nil
}
