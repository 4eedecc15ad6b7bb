package detection

import "sort"

// ConvexHull returns the convex hull of points using Andrew's monotone chain.
//
// The hull starts at the lexicographically smallest point (smallest X, then
// smallest Y) and runs counter-clockwise in the mathematical sense (every
// turn has a positive cross product; with Y pointing down this looks
// clockwise on screen). Collinear and duplicate points are dropped, so
// consecutive hull edges are never parallel.
//
// Degenerate inputs: no points yields an empty hull, a single distinct point
// yields that point, and collinear input yields its two end points.
//
// The input slice is not modified.
func ConvexHull(points []Point) []Point {
	if len(points) == 0 {
		return []Point{}
	}

	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	// Deduplicate in place.
	uniq := sorted[:1]
	for _, p := range sorted[1:] {
		if p != uniq[len(uniq)-1] {
			uniq = append(uniq, p)
		}
	}
	if len(uniq) < 3 {
		return uniq
	}

	hull := make([]Point, 0, 2*len(uniq))

	// Lower chain.
	for _, p := range uniq {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// Upper chain.
	lower := len(hull) + 1
	for i := len(uniq) - 2; i >= 0; i-- {
		p := uniq[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// The last point repeats the first.
	return hull[:len(hull)-1]
}

// cross returns the z component of (a-o) x (b-o). Positive means o->a->b
// turns counter-clockwise.
func cross(o, a, b Point) int64 {
	return int64(a.X-o.X)*int64(b.Y-o.Y) - int64(a.Y-o.Y)*int64(b.X-o.X)
}
