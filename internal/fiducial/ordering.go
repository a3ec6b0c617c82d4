package fiducial

import (
	"math"
	"sort"
)

// Point ordering for wire numbering. Downstream wire ids are positional, so
// both sorts use a strict total order with stable tie-breaks: dots at equal
// keys keep their original relative order and are never dropped.

// SortRightToLeft reorders the line's points in place by descending
// x-coordinate, so wire 0 is the rightmost dot regardless of the order
// segmentation emitted. Ties on x fall back to ascending y, then to the
// original index via the stable sort. Sorting an already-sorted line is a
// no-op.
func SortRightToLeft(line *Line) {
	sort.SliceStable(line.Points, func(i, j int) bool {
		a, b := line.Points[i], line.Points[j]
		if a.X != b.X {
			return a.X > b.X
		}
		return a.Y < b.Y
	})
}

// SortByDistanceFromStart returns a new Line whose points are ordered by
// ascending Euclidean distance from the line's Start point, for phantoms
// whose wires are numbered along the wire's length rather than by screen
// position. The input line is not modified; the returned line keeps the
// same endpoints and exactly the same point set.
func SortByDistanceFromStart(line Line) Line {
	out := Line{
		Points: append([]Dot(nil), line.Points...),
		Start:  line.Start,
		End:    line.End,
	}
	sort.SliceStable(out.Points, func(i, j int) bool {
		di := math.Hypot(out.Points[i].X-line.Start.X, out.Points[i].Y-line.Start.Y)
		dj := math.Hypot(out.Points[j].X-line.Start.X, out.Points[j].Y-line.Start.Y)
		return di < dj
	})
	return out
}

// sortLinesByStartY orders lines top to bottom by their Start point's
// y-coordinate, ascending, with ties broken by Start x. This is the
// canonical order in which winning lines are handed to a result builder.
func sortLinesByStartY(lines []Line) {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].Start.Y != lines[j].Start.Y {
			return lines[i].Start.Y < lines[j].Start.Y
		}
		return lines[i].Start.X < lines[j].Start.X
	})
}

// sortLinesByMidX orders lines left to right by their midpoint x-coordinate,
// ascending, with ties broken by midpoint y. Used to assign positional roles
// (left-most, diagonal, right-most) for role-based phantom families.
func sortLinesByMidX(lines []Line) {
	sort.SliceStable(lines, func(i, j int) bool {
		mi, mj := lines[i].Midpoint(), lines[j].Midpoint()
		if mi.X != mj.X {
			return mi.X < mj.X
		}
		return mi.Y < mj.Y
	})
}
