package fiducial

import "math"

// Geometry helpers for the pattern matcher. All functions here are pure and
// deterministic: identical inputs always produce bit-identical outputs, which
// the tolerance-boundary tests rely on.

// DistancePointLine returns the perpendicular Euclidean distance in pixels
// from dot to the infinite line through line's endpoints (not the segment).
// A degenerate zero-length line falls back to the point-to-point distance
// rather than dividing by zero.
func DistancePointLine(dot Dot, line Line) float64 {
	dx := line.End.X - line.Start.X
	dy := line.End.Y - line.Start.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return math.Hypot(dot.X-line.Start.X, dot.Y-line.Start.Y)
	}
	// Cross product of the line direction with the start→dot vector gives
	// the signed parallelogram area; divide by the base for the height.
	return math.Abs(dx*(line.Start.Y-dot.Y)-dy*(line.Start.X-dot.X)) / length
}

// Slope returns the angle of the line relative to the image x-axis in
// radians, normalized modulo π to (-π/2, π/2]. A line has no inherent
// direction, so the normalization makes Slope independent of which endpoint
// the detector called Start. Callers compare magnitudes against the
// configured theta bounds.
func Slope(line Line) float64 {
	dx := line.End.X - line.Start.X
	dy := line.End.Y - line.Start.Y
	theta := math.Atan2(dy, dx)
	for theta <= -math.Pi/2 {
		theta += math.Pi
	}
	for theta > math.Pi/2 {
		theta -= math.Pi
	}
	return theta
}

// AngleDifference returns the smallest angle in radians between two
// undirected line orientations, in [0, π/2].
func AngleDifference(slope1, slope2 float64) float64 {
	d := math.Abs(slope1 - slope2)
	if d > math.Pi/2 {
		d = math.Pi - d
	}
	return d
}

// Shift returns the signed along-wire offset in pixels between the two
// lines' midpoints: the midpoint difference projected onto the mean
// direction of the two lines. Two parallel wires of the same phantom should
// sit nearly side by side; a large shift means the lines are valid in
// distance and angle but laterally misaligned, which rejects the pairing.
//
// When both lines are degenerate (zero length) the projection axis is
// undefined and the full midpoint distance is returned.
func Shift(line1, line2 Line) float64 {
	m1 := line1.Midpoint()
	m2 := line2.Midpoint()
	mdx := m2.X - m1.X
	mdy := m2.Y - m1.Y

	ux, uy := meanDirection(line1, line2)
	if ux == 0 && uy == 0 {
		return math.Hypot(mdx, mdy)
	}
	return mdx*ux + mdy*uy
}

// meanDirection returns the unit mean direction of two lines. Each line's
// direction is flipped if needed so the two agree before averaging; an
// undirected line pair has no canonical sign otherwise. Zero-length lines
// contribute nothing; two zero-length lines yield (0, 0).
func meanDirection(line1, line2 Line) (float64, float64) {
	d1x := line1.End.X - line1.Start.X
	d1y := line1.End.Y - line1.Start.Y
	d2x := line2.End.X - line2.Start.X
	d2y := line2.End.Y - line2.Start.Y

	if d1x*d2x+d1y*d2y < 0 {
		d2x, d2y = -d2x, -d2y
	}

	sx := d1x + d2x
	sy := d1y + d2y
	norm := math.Hypot(sx, sy)
	if norm == 0 {
		return 0, 0
	}
	return sx / norm, sy / norm
}

// LinePairDistance returns the perpendicular distance in pixels between two
// lines, measured from the midpoint of line1 to the infinite line through
// line2. The midpoint is less sensitive to endpoint segmentation noise than
// either extreme point.
func LinePairDistance(line1, line2 Line) float64 {
	return DistancePointLine(line1.Midpoint(), line2)
}
