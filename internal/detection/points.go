package detection

import "image"

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Column (0 = leftmost)
	Y int `json:"y"` // Row (0 = topmost)
}

// ForegroundPoints returns the coordinates of every foreground pixel
// (value 255) of mask in row-major order. The result is empty, not nil,
// when the mask has no foreground.
func ForegroundPoints(mask *image.Gray) []Point {
	points := make([]Point, 0)
	if mask == nil {
		return points
	}
	b := mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := mask.Pix[mask.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			if row[x] == 255 {
				points = append(points, Point{X: b.Min.X + x, Y: y})
			}
		}
	}
	return points
}

// HullCandidates returns the left-most and right-most foreground pixel of
// every row of mask, top to bottom. A row with a single foreground pixel
// contributes one point.
//
// Every vertex of the convex hull of the full foreground set is the extreme
// pixel of its row, so ConvexHull(HullCandidates(m)) equals
// ConvexHull(ForegroundPoints(m)) while touching far fewer points on text
// pages.
func HullCandidates(mask *image.Gray) []Point {
	points, _ := scanRows(mask)
	return points
}

// CountForeground returns the number of foreground pixels in mask.
func CountForeground(mask *image.Gray) int {
	_, n := scanRows(mask)
	return n
}

// scanRows collects the row extremes and the foreground count in one pass.
func scanRows(mask *image.Gray) ([]Point, int) {
	points := make([]Point, 0)
	if mask == nil {
		return points, 0
	}
	b := mask.Bounds()
	count := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := mask.Pix[mask.PixOffset(b.Min.X, y) : mask.PixOffset(b.Min.X, y)+b.Dx()]
		first, last := -1, -1
		for x, v := range row {
			if v != 255 {
				continue
			}
			if first < 0 {
				first = x
			}
			last = x
			count++
		}
		if first < 0 {
			continue
		}
		points = append(points, Point{X: b.Min.X + first, Y: y})
		if last != first {
			points = append(points, Point{X: b.Min.X + last, Y: y})
		}
	}
	return points, count
}
