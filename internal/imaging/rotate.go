package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/clone"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// kernelMargin is the extra padding kept around the rotated area so that the
// Catmull-Rom kernel (support 2) never reaches past the padded source.
const kernelMargin = 3

// RotationMatrix returns the affine transform that rotates by angle degrees
// about (cx, cy) with unit scale.
//
// The matrix maps source coordinates to destination coordinates. Image
// coordinates have Y pointing down, so a positive angle rotates the content
// counter-clockwise as seen on screen:
//
//	 cos  sin  (1-cos)*cx - sin*cy
//	-sin  cos  sin*cx + (1-cos)*cy
func RotationMatrix(angle, cx, cy float64) f64.Aff3 {
	rad := angle * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return f64.Aff3{
		c, s, (1-c)*cx - s*cy,
		-s, c, s*cx + (1-c)*cy,
	}
}

// Rotate rotates img by angle degrees about its center and returns an image
// of identical size and channel count.
//
// The center is (W/2, H/2) using integer division, addressed at the pixel
// center. Positive angles rotate counter-clockwise on screen (see
// RotationMatrix).
//
// Resampling uses the Catmull-Rom cubic kernel. Destination pixels whose
// source position falls outside the image take the value of the nearest edge
// pixel, so rotated borders never show black wedges.
//
// Grayscale input (*image.Gray, *image.Gray16) yields *image.Gray; any other
// input yields *image.RGBA. The input is never modified.
func Rotate(img image.Image, angle float64) (image.Image, error) {
	if err := validate(img); err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if angle == 0 {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return matchChannels(img, dst), nil
	}

	cx := float64(w/2) + 0.5
	cy := float64(h/2) + 0.5

	// Pre-images of the destination pixels form the destination rectangle
	// rotated by -angle; pad the source until it covers that rectangle.
	rad := angle * math.Pi / 180
	cos, sin := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	halfW := math.Max(cx, float64(w)-cx)
	halfH := math.Max(cy, float64(h)-cy)
	padX := int(math.Ceil(cos*halfW+sin*halfH-math.Min(cx, float64(w)-cx))) + kernelMargin
	padY := int(math.Ceil(sin*halfW+cos*halfH-math.Min(cy, float64(h)-cy))) + kernelMargin
	padX = clamp(padX, kernelMargin, math.MaxInt32)
	padY = clamp(padY, kernelMargin, math.MaxInt32)

	padded := clone.Pad(img, padX, padY, clone.EdgeExtend)

	// Padded pixel (x, y) is source pixel (x-padX, y-padY).
	m := RotationMatrix(angle, cx, cy)
	m[2] -= m[0]*float64(padX) + m[1]*float64(padY)
	m[5] -= m[3]*float64(padX) + m[4]*float64(padY)

	draw.CatmullRom.Transform(dst, m, padded, padded.Bounds(), draw.Src, nil)

	return matchChannels(img, dst), nil
}

// Channels reports the channel count of an image: 1 for grayscale types and
// 3 for everything else.
func Channels(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	default:
		return 3
	}
}

// matchChannels converts rendered RGBA output back to grayscale when the
// original image was grayscale.
func matchChannels(orig image.Image, rendered *image.RGBA) image.Image {
	if Channels(orig) != 1 {
		return rendered
	}
	gray := image.NewGray(rendered.Bounds())
	draw.Draw(gray, gray.Bounds(), rendered, image.Point{}, draw.Src)
	return gray
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
