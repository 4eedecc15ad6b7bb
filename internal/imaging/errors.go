package imaging

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrInvalidImage is returned when an image is nil or has zero width or height.
	ErrInvalidImage = errors.New("invalid image")

	// ErrDecode is returned when a transport payload cannot be turned into an image,
	// either because the base64 text is malformed or the container is corrupt or
	// in an unsupported format.
	ErrDecode = errors.New("decode error")
)

// validate rejects images that cannot be analyzed.
func validate(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: empty bounds %v", ErrInvalidImage, b)
	}
	return nil
}
