package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
)

// otsuEpsilon is the smallest class probability considered by the threshold
// search. Thresholds that leave one class (almost) empty are skipped.
const otsuEpsilon = 1.1920929e-07 // float32 machine epsilon

// Binarize converts an image into a foreground/background mask.
//
// The returned mask is a freshly allocated *image.Gray with the same size as
// img (rebased to origin 0,0) whose samples are either 0 (background) or 255
// (foreground).
//
// # Algorithm
//
//  1. Grayscale conversion using ITU-R BT.601 weights
//     (0.299*R + 0.587*G + 0.114*B). Grayscale input keeps its values.
//  2. Inversion (255 - value), so dark ink on light paper becomes the
//     high-valued foreground. If the background is darker than the content the
//     mask selects the background instead.
//  3. Otsu's method on the 256-bin histogram picks the threshold t that
//     maximizes the between-class variance.
//  4. Pixels whose inverted value is strictly greater than t become 255.
//
// Returns ErrInvalidImage if img is nil or empty.
func Binarize(img image.Image) (*image.Gray, error) {
	mask, _, err := BinarizeLevel(img)
	return mask, err
}

// BinarizeLevel is like Binarize but also returns the threshold selected by
// Otsu's method, expressed on the inverted luminance scale.
func BinarizeLevel(img image.Image) (*image.Gray, uint8, error) {
	if err := validate(img); err != nil {
		return nil, 0, err
	}

	inverted := imaging.Invert(imaging.Grayscale(img))
	level := OtsuThreshold(imaging.Histogram(inverted))

	w, h := inverted.Bounds().Dx(), inverted.Bounds().Dy()
	mask := image.NewGray(image.Rect(0, 0, w, h))

	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			src := inverted.Pix[y*inverted.Stride : y*inverted.Stride+w*4]
			dst := mask.Pix[y*mask.Stride : y*mask.Stride+w]
			for x := 0; x < w; x++ {
				if src[x*4] > level {
					dst[x] = 255
				}
			}
		}
	})

	return mask, level, nil
}

// OtsuThreshold selects the threshold that maximizes the between-class
// variance of a normalized 256-bin histogram.
//
// Every candidate t splits the histogram into the classes [0, t] and
// (t, 255]. The score is q1*q2*(mu1-mu2)^2 where q is the class probability
// and mu the class mean. The first t reaching the maximum wins, so the result
// is deterministic. A histogram with a single populated bin yields 0.
func OtsuThreshold(hist [256]float64) uint8 {
	var total, mu float64
	for i, p := range hist {
		total += p
		mu += float64(i) * p
	}
	if total <= 0 {
		return 0
	}
	mu /= total

	var (
		q1, mu1  float64
		maxSigma float64
		best     int
	)
	for i := 0; i < 256; i++ {
		p := hist[i] / total

		mu1 *= q1
		q1 += p
		q2 := 1 - q1

		if minf(q1, q2) < otsuEpsilon || maxf(q1, q2) > 1-otsuEpsilon {
			// keep mu1 as a class mean for the next iteration
			if q1 > 0 {
				mu1 = (mu1 + float64(i)*p) / q1
			} else {
				mu1 = 0
			}
			continue
		}

		mu1 = (mu1 + float64(i)*p) / q1
		mu2 := (mu - q1*mu1) / q2
		sigma := q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		if sigma > maxSigma {
			maxSigma = sigma
			best = i
		}
	}
	return uint8(best)
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
