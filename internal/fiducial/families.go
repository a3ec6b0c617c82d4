package fiducial

import "fmt"

// A patternFamily turns a validated, canonically ordered set of matched
// lines into the final labeled-point list. Families differ only in their
// wire-numbering convention, which encodes the physical wiring of the
// phantom they model; the matcher selects the family declared by the
// winning template, so adding a phantom geometry means adding a family
// here, not branching in the matcher.
type patternFamily interface {
	// buildResults receives the winning lines sorted by ascending Start.Y
	// (top to bottom) and returns one LabelingResult per point with unique
	// (PatternID, WireID) pairs.
	buildResults(tpl Template, lines []Line) ([]LabelingResult, error)
}

// Family names accepted in template configuration.
const (
	FamilyNWires = "nwires"
	FamilyCIRS   = "cirs"
)

// familyByName resolves a configured family name to its builder.
func familyByName(name string) (patternFamily, error) {
	switch name {
	case FamilyNWires:
		return nWiresFamily{}, nil
	case FamilyCIRS:
		return cirsFamily{}, nil
	default:
		return nil, fmt.Errorf("unknown pattern family %q", name)
	}
}

// nWiresFamily labels planar N-wire phantoms. Each matched line is one
// N-wire unit of the phantom, numbered top to bottom; within a line, wires
// are numbered right to left so wire 0 is always the rightmost dot.
type nWiresFamily struct{}

func (nWiresFamily) buildResults(tpl Template, lines []Line) ([]LabelingResult, error) {
	results := make([]LabelingResult, 0, tpl.LineCount*tpl.WiresPerLine)
	for li := range lines {
		if got := len(lines[li].Points); got != tpl.WiresPerLine {
			return nil, fmt.Errorf("nwires line %d has %d points, template %q expects %d", li, got, tpl.Name, tpl.WiresPerLine)
		}
		line := lines[li]
		SortRightToLeft(&line)
		for wi, p := range line.Points {
			results = append(results, LabelingResult{
				PatternID: li,
				WireID:    wi,
				X:         p.X,
				Y:         p.Y,
			})
		}
	}
	return results, nil
}

// cirsFamily labels the three-line CIRS-style phantom with a diagonal wire
// between two parallel outer wires. The lines take positional roles by
// midpoint x-coordinate: pattern 0 is the left-most line, pattern 1 the
// diagonal, pattern 2 the right-most. Within each line, wires are numbered
// along the wire's length (ascending distance from the line's start point),
// not by screen position: the phantom's wires are strung lengthwise, and
// the diagonal's screen-x order flips with probe orientation while its
// along-wire order does not.
type cirsFamily struct{}

func (cirsFamily) buildResults(tpl Template, lines []Line) ([]LabelingResult, error) {
	if len(lines) != 3 {
		return nil, fmt.Errorf("cirs template %q needs exactly 3 lines, got %d", tpl.Name, len(lines))
	}

	roles := append([]Line(nil), lines...)
	sortLinesByMidX(roles)

	results := make([]LabelingResult, 0, 3*tpl.WiresPerLine)
	for role, line := range roles {
		if got := len(line.Points); got != tpl.WiresPerLine {
			return nil, fmt.Errorf("cirs role %d line has %d points, template %q expects %d", role, got, tpl.Name, tpl.WiresPerLine)
		}
		ordered := SortByDistanceFromStart(line)
		for wi, p := range ordered.Points {
			results = append(results, LabelingResult{
				PatternID: role,
				WireID:    wi,
				X:         p.X,
				Y:         p.Y,
			})
		}
	}
	return results, nil
}
