// Package imaging provides the raster operations used by skew correction.
//
// This package implements binarization (grayscale, inversion and Otsu
// thresholding), rotation about the image center with cubic resampling and
// edge replication, the PNG/base64 transport codec, file loading with a
// cache, and diagnostic annotation. All operations accept standard Go
// image.Image values and never modify their input.
//
// # Coordinate System
//
// (0,0) is the top-left pixel, X increases rightward and Y increases
// downward. Results are rebased to origin (0,0) whatever the input bounds.
//
// # Angles
//
// Angles are in degrees. A positive angle rotates the content
// counter-clockwise as seen on screen, the same convention the skew
// estimator uses, so the estimated angle can be passed to Rotate unchanged.
//
// # Error Handling
//
// Nil or empty images yield ErrInvalidImage. Payloads that cannot be decoded
// (malformed base64, corrupt or unsupported containers) yield ErrDecode.
// Both are wrapped with context; use errors.Is to test for them.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Every other function is stateless.
package imaging
