package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// MimeTypePNG is the content type of every encoded payload.
const MimeTypePNG = "image/png"

// AngleHeader carries the applied correction angle in degrees alongside an
// encoded result.
const AngleHeader = "X-Skew-Angle"

// EncodePNG serializes an image as PNG bytes.
//
// PNG is lossless, so DecodeImage(EncodePNG(img)) reproduces the pixel values
// exactly.
func EncodePNG(img image.Image) ([]byte, error) {
	if err := validate(img); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64 serializes an image as PNG and returns the standard base64
// text of the PNG bytes.
func EncodeBase64(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeImage decodes PNG, JPEG, GIF, BMP or TIFF bytes. JPEG EXIF
// orientation is applied. Any failure is reported as ErrDecode.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, nil
}

// DecodeBase64 decodes base64 text holding an encoded image. Whitespace in
// the text (line breaks inserted by mail or console tools) is ignored.
func DecodeBase64(text string) (image.Image, error) {
	compact := strings.Join(strings.Fields(text), "")
	if compact == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	data, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %w", ErrDecode, err)
	}
	return DecodeImage(data)
}
