package detection

import (
	"errors"
	"math"
)

// ErrNoPoints is returned when a geometric fit is requested for an empty point set.
var ErrNoPoints = errors.New("no points")

// areaTolerance is the relative tolerance under which two candidate
// rectangles are considered equally small. The earlier candidate wins ties.
const areaTolerance = 1e-9

// PointF is a point with sub-pixel precision.
type PointF struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RotatedRect is a rectangle of arbitrary orientation.
type RotatedRect struct {
	// Center is the rectangle center in pixel coordinates.
	Center PointF `json:"center"`

	// Width is the extent along the direction given by Angle.
	Width float64 `json:"width"`

	// Height is the extent perpendicular to that direction.
	Height float64 `json:"height"`

	// Angle is the direction of the defining edge in degrees, measured
	// counter-clockwise on screen and reduced into [-90, 0). An axis-aligned
	// rectangle reports -90.
	Angle float64 `json:"angle"`
}

// Area returns Width * Height.
func (r RotatedRect) Area() float64 {
	return r.Width * r.Height
}

// Corners returns the four corners of the rectangle in drawing order.
func (r RotatedRect) Corners() [4]PointF {
	rad := r.Angle * math.Pi / 180
	// Screen directions: Y points down, so a counter-clockwise angle has a
	// negative Y component.
	ux, uy := math.Cos(rad), -math.Sin(rad)
	vx, vy := -uy, ux
	hw, hh := r.Width/2, r.Height/2
	c := r.Center
	return [4]PointF{
		{c.X - ux*hw - vx*hh, c.Y - uy*hw - vy*hh},
		{c.X + ux*hw - vx*hh, c.Y + uy*hw - vy*hh},
		{c.X + ux*hw + vx*hh, c.Y + uy*hw + vy*hh},
		{c.X - ux*hw + vx*hh, c.Y - uy*hw + vy*hh},
	}
}

// MinAreaRect returns the minimum-area rectangle enclosing points.
//
// # Algorithm
//
//  1. Convex hull of the points (ConvexHull).
//  2. Every hull edge is tried as one side of the rectangle (rotating
//     calipers): all hull vertices are projected onto the edge direction and
//     its normal, and the extents give the candidate rectangle.
//  3. The smallest candidate wins. Candidates within a relative tolerance of
//     1e-9 of each other are ties and the first edge in hull order is kept,
//     which makes the result deterministic.
//
// A single distinct point yields a zero-size rectangle at that point, and
// collinear points yield a zero-height rectangle along their line.
//
// Returns ErrNoPoints if points is empty.
func MinAreaRect(points []Point) (RotatedRect, error) {
	if len(points) == 0 {
		return RotatedRect{}, ErrNoPoints
	}
	return minAreaRectOfHull(ConvexHull(points)), nil
}

func minAreaRectOfHull(hull []Point) RotatedRect {
	if len(hull) == 1 {
		return RotatedRect{
			Center: PointF{X: float64(hull[0].X), Y: float64(hull[0].Y)},
			Angle:  edgeAngle(1, 0),
		}
	}

	var (
		best     RotatedRect
		bestArea = math.Inf(1)
	)
	n := len(hull)
	for i := 0; i < n; i++ {
		p, q := hull[i], hull[(i+1)%n]
		dx, dy := float64(q.X-p.X), float64(q.Y-p.Y)
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		ux, uy := dx/length, dy/length
		vx, vy := -uy, ux

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, h := range hull {
			x, y := float64(h.X), float64(h.Y)
			pu := x*ux + y*uy
			pv := x*vx + y*vy
			minU, maxU = math.Min(minU, pu), math.Max(maxU, pu)
			minV, maxV = math.Min(minV, pv), math.Max(maxV, pv)
		}

		w, h := maxU-minU, maxV-minV
		area := w * h
		if !math.IsInf(bestArea, 1) && area >= bestArea-areaTolerance*bestArea {
			continue
		}

		// The reduced angle may point along the normal instead of the edge.
		angle := edgeAngle(dx, dy)
		turns := int(math.Round((math.Atan2(-dy, dx)*180/math.Pi - angle) / 90))
		if turns%2 != 0 {
			w, h = h, w
		}

		cu, cv := (minU+maxU)/2, (minV+maxV)/2
		bestArea = area
		best = RotatedRect{
			Center: PointF{X: cu*ux + cv*vx, Y: cu*uy + cv*vy},
			Width:  w,
			Height: h,
			Angle:  angle,
		}
	}
	return best
}

// edgeAngle converts an edge direction in image coordinates into the raw
// rectangle angle: degrees counter-clockwise on screen, reduced into
// [-90, 0). Perpendicular edges map to the same value.
func edgeAngle(dx, dy float64) float64 {
	a := math.Atan2(-dy, dx) * 180 / math.Pi
	a = math.Mod(a, 90)
	if a >= 0 {
		a -= 90
	}
	return a
}
