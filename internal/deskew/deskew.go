// Package deskew estimates and corrects the rotational skew of document
// images.
//
// A Corrector binarizes the image, fits the minimum-area rectangle around
// all foreground pixels, turns the rectangle orientation into a correction
// angle in (-45, 45] degrees and rotates the original image about its center
// by that angle. Output images always keep the input size and channel count.
//
// Images without any foreground (blank pages) have no measurable skew; they
// are returned unchanged with angle 0 and Result.Fallback set.
package deskew

import (
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/image-deskew/internal/detection"
	"github.com/ironsheep/image-deskew/internal/imaging"
	"github.com/rs/zerolog"
)

// Result describes one skew correction.
type Result struct {
	// Image is the corrected image. It is nil for results produced by
	// Measure.
	Image image.Image `json:"-"`

	// Angle is the applied correction in degrees, in (-45, 45]. Positive
	// values rotated the content counter-clockwise on screen.
	Angle float64 `json:"angle"`

	// RawAngle is the orientation of the fitted rectangle in [-90, 0).
	RawAngle float64 `json:"raw_angle"`

	// Rect is the minimum-area rectangle around the foreground, in input
	// image coordinates (rebased to origin 0,0).
	Rect detection.RotatedRect `json:"rect"`

	// Threshold is the Otsu level chosen on the inverted luminance.
	Threshold uint8 `json:"threshold"`

	// ForegroundPixels is the number of pixels classified as foreground.
	ForegroundPixels int `json:"foreground_pixels"`

	// Fallback is set when the image had no foreground and was returned
	// unchanged.
	Fallback bool `json:"fallback"`
}

// Option configures a Corrector.
type Option func(*Corrector)

// WithLogger sets the logger used for per-image debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Corrector) {
		c.logger = logger
	}
}

// Corrector performs skew estimation and correction. It holds no per-image
// state and is safe for concurrent use.
type Corrector struct {
	logger zerolog.Logger
}

// New creates a Corrector. Without options it logs nothing.
func New(opts ...Option) *Corrector {
	c := &Corrector{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Correct returns a deskewed copy of img with the same dimensions and channel
// count. The input is never modified.
//
// Errors from binarization (imaging.ErrInvalidImage) are returned wrapped;
// use errors.Is to test for them.
func (c *Corrector) Correct(img image.Image) (image.Image, error) {
	res, err := c.Analyze(img)
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}

// EstimateAngle returns the correction angle for img without rotating it.
// A blank image yields 0.
func (c *Corrector) EstimateAngle(img image.Image) (float64, error) {
	res, err := c.Measure(img)
	if err != nil {
		return 0, err
	}
	return res.Angle, nil
}

// Analyze corrects img and reports the measurements behind the correction.
func (c *Corrector) Analyze(img image.Image) (*Result, error) {
	res, err := c.Measure(img)
	if err != nil {
		return nil, err
	}

	// A zero angle (including the fallback) still yields a fresh copy.
	rotated, err := imaging.Rotate(img, res.Angle)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate image: %w", err)
	}
	res.Image = rotated

	return res, nil
}

// Measure binarizes img and estimates its skew. Result.Image is left nil.
func (c *Corrector) Measure(img image.Image) (*Result, error) {
	mask, level, err := imaging.BinarizeLevel(img)
	if err != nil {
		return nil, fmt.Errorf("failed to binarize image: %w", err)
	}

	est, err := detection.EstimateSkew(mask)
	if errors.Is(err, detection.ErrNoForeground) {
		c.logger.Debug().
			Uint8("threshold", level).
			Msg("no foreground pixels, leaving image unchanged")
		return &Result{Threshold: level, Fallback: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to estimate skew: %w", err)
	}

	c.logger.Debug().
		Float64("angle", est.Angle).
		Float64("raw_angle", est.Rect.Angle).
		Uint8("threshold", level).
		Int("foreground", est.Foreground).
		Int("hull", est.HullSize).
		Msg("skew estimated")

	return &Result{
		Angle:            est.Angle,
		RawAngle:         est.Rect.Angle,
		Rect:             est.Rect,
		Threshold:        level,
		ForegroundPixels: est.Foreground,
	}, nil
}
