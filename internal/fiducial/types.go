package fiducial

// Dot is a detected marker centroid in image-plane pixel coordinates, as
// produced by the upstream dot segmentation stage. Intensity carries the
// segmentation's brightness estimate and is used only for the diagnostic
// pattern-quality score, never for matching.
type Dot struct {
	X, Y      float64
	Intensity float64
}

// Line is an ordered run of dots believed to lie on one calibration wire's
// projection, as grouped by the upstream line detector. Start and End are
// the detector's extreme points; sorting helpers reorder Points but never
// touch the endpoints, so distance-from-start ordering stays meaningful
// after a resort.
type Line struct {
	Points []Dot
	Start  Dot
	End    Dot
}

// NewLine builds a Line whose endpoints are the first and last of the given
// points. The point slice is copied so callers may reuse their buffer.
func NewLine(points []Dot) Line {
	l := Line{Points: append([]Dot(nil), points...)}
	if len(l.Points) > 0 {
		l.Start = l.Points[0]
		l.End = l.Points[len(l.Points)-1]
	}
	return l
}

// Midpoint returns the midpoint of the line's endpoints.
func (l Line) Midpoint() Dot {
	return Dot{
		X: (l.Start.X + l.End.X) / 2,
		Y: (l.Start.Y + l.End.Y) / 2,
	}
}

// Frame is one video frame's worth of segmented input: the dot set, the
// candidate line groupings produced by the line detector (segmentation can
// be ambiguous, so several alternative groupings may coexist), and the pixel
// dimensions of the source image.
type Frame struct {
	Width  int
	Height int
	Dots   []Dot
	Groups [][]Line
}

// LabelingResult assigns one dot its permanent identity: the pattern it
// belongs to and the physical wire within that pattern. Downstream spatial
// calibration depends on this correspondence being exact.
type LabelingResult struct {
	PatternID int
	WireID    int
	X, Y      float64
}

// Outcome is the immutable result of labeling one frame. A frame in which
// no configured pattern is visible yields DotsFound=false with empty
// Results; that is a normal outcome, not an error.
type Outcome struct {
	// DotsFound reports whether a configured pattern was recognized.
	DotsFound bool

	// TemplateID identifies the winning template, -1 when DotsFound is false.
	TemplateID int

	// Results holds one entry per dot of the winning lines, with unique
	// (PatternID, WireID) pairs.
	Results []LabelingResult

	// PatternIntensity is the mean segmentation intensity of the matched
	// dots. Diagnostic only.
	PatternIntensity float64
}

// DistanceBand is an inclusive [MinMm, MaxMm] bound on one inter-line
// distance of a template.
type DistanceBand struct {
	MinMm float64
	MaxMm float64
}

// Template is a named geometric description of a calibration phantom's
// expected line arrangement. Templates are built once from configuration
// and are read-only during matching.
type Template struct {
	ID     int
	Name   string
	Family string

	// LineCount is the number of lines the phantom projects; combinations
	// of exactly this many candidate lines are tested.
	LineCount int

	// WiresPerLine is the number of physical wires each line represents.
	WiresPerLine int

	// PairDistanceBands holds one inclusive band per unordered line pair,
	// LineCount*(LineCount-1)/2 in total, sorted ascending by MinMm. The
	// sorted observed pairwise distances must fall band-by-band inside
	// them (after percent widening).
	PairDistanceBands []DistanceBand

	// MinPairAngleRad and MaxPairAngleRad bound the angle difference
	// between any two lines of the template, inclusive.
	MinPairAngleRad float64
	MaxPairAngleRad float64

	// MaxShiftMm bounds the along-wire midpoint misalignment between any
	// two lines of the template, inclusive.
	MaxShiftMm float64

	// DistanceErrorPercent widens every distance band: [min, max] becomes
	// [min*(1-p/100), max*(1+p/100)].
	DistanceErrorPercent float64
}

// PairCount returns the number of unordered line pairs of the template.
func (t Template) PairCount() int {
	return t.LineCount * (t.LineCount - 1) / 2
}
