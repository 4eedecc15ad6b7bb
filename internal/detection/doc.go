// Package detection measures the geometry of binary foreground masks.
//
// The package extracts foreground pixels from a mask produced by the
// imaging package, computes their convex hull, fits the minimum-area
// enclosing rectangle and turns the rectangle orientation into a skew
// correction angle.
//
// # Algorithm Overview
//
//  1. Foreground extraction: pixels equal to 255. Only the left-most and
//     right-most pixel of each row can be hull vertices (HullCandidates).
//  2. Convex hull: Andrew's monotone chain (ConvexHull).
//  3. Minimum-area rectangle: rotating calipers over the hull edges
//     (MinAreaRect).
//  4. Angle normalization: the raw rectangle angle in [-90, 0) is folded
//     into the correction angle in (-45, 45] (SkewAngle).
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// Angles are in degrees and measured counter-clockwise as seen on screen,
// which is clockwise in the Y-down coordinate system.
//
// # Limitations
//
// The rectangle encloses every foreground pixel, so isolated specks far from
// the text block (scanner dust, page edges) pull the estimate. Skew beyond
// 45 degrees cannot be told apart from the perpendicular orientation.
package detection
