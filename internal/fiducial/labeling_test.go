package fiducial

import (
	"math"
	"testing"
)

// lineAt builds a three-dot line along y = y0 + slope*x at the given x
// positions, with unit intensity.
func lineAt(y0, slope float64, xs ...float64) Line {
	points := make([]Dot, len(xs))
	for i, x := range xs {
		points[i] = Dot{X: x, Y: y0 + slope*x, Intensity: 100}
	}
	return NewLine(points)
}

// cirsParams mirrors the CIRS model 45 scenario: three-line template,
// adjacent pairs 14-16 mm apart, outer pair 29-31 mm, spacing 1 mm/px so
// pixel geometry reads directly in millimetres.
func cirsParams() Params {
	return Params{
		ApproximateSpacingMmPerPixel: 1.0,
		MinThetaRad:                  0,
		MaxThetaRad:                  0.05,
		AngleToleranceRad:            0.05,
		Templates: []Template{{
			ID:           0,
			Name:         "cirs45",
			Family:       FamilyCIRS,
			LineCount:    3,
			WiresPerLine: 3,
			PairDistanceBands: []DistanceBand{
				{MinMm: 14, MaxMm: 16},
				{MinMm: 14, MaxMm: 16},
				{MinMm: 29, MaxMm: 31},
			},
			MaxPairAngleRad: 0.05,
			MaxShiftMm:      10,
		}},
	}
}

func twoLineParams(band DistanceBand) Params {
	return Params{
		ApproximateSpacingMmPerPixel: 1.0,
		MinThetaRad:                  0,
		MaxThetaRad:                  0.1,
		AngleToleranceRad:            0.1,
		Templates: []Template{{
			ID:                0,
			Name:              "pair",
			Family:            FamilyNWires,
			LineCount:         2,
			WiresPerLine:      3,
			PairDistanceBands: []DistanceBand{band},
			MaxPairAngleRad:   0.1,
			MaxShiftMm:        10,
		}},
	}
}

func TestNewLabeler_RejectsBadParams(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero spacing", func(p *Params) { p.ApproximateSpacingMmPerPixel = 0 }},
		{"inverted theta", func(p *Params) { p.MinThetaRad = 1; p.MaxThetaRad = 0 }},
		{"no templates", func(p *Params) { p.Templates = nil }},
		{"unknown family", func(p *Params) { p.Templates[0].Family = "spiral" }},
		{"band count mismatch", func(p *Params) { p.Templates[0].PairDistanceBands = p.Templates[0].PairDistanceBands[:1] }},
		{"inverted band", func(p *Params) { p.Templates[0].PairDistanceBands[0] = DistanceBand{MinMm: 16, MaxMm: 14} }},
		{"inverted pair angles", func(p *Params) { p.Templates[0].MinPairAngleRad = 1; p.Templates[0].MaxPairAngleRad = 0 }},
		{"negative shift", func(p *Params) { p.Templates[0].MaxShiftMm = -1 }},
	}
	for _, tc := range cases {
		p := cirsParams()
		tc.mutate(&p)
		if _, err := NewLabeler(p); err == nil {
			t.Errorf("%s: expected configuration error", tc.name)
		}
	}
}

// TestFindPattern_CirsScenario is the canonical CIRS recognition case:
// slopes 0.01, 0.02, -0.01 rad, pairwise separations near 15, 30, 15 mm.
func TestFindPattern_CirsScenario(t *testing.T) {
	labeler, err := NewLabeler(cirsParams())
	if err != nil {
		t.Fatal(err)
	}

	lines := []Line{
		lineAt(0, 0.01, 0, 15, 30),
		lineAt(15, 0.02, 0, 15, 30),
		lineAt(30, -0.01, 0, 15, 30),
	}
	frame := Frame{Width: 640, Height: 480, Groups: [][]Line{lines}}

	outcome := labeler.FindPattern(frame)
	if !outcome.DotsFound {
		t.Fatal("expected pattern to be found")
	}
	if outcome.TemplateID != 0 {
		t.Errorf("expected template 0, got %d", outcome.TemplateID)
	}
	if len(outcome.Results) != 9 {
		t.Fatalf("expected 9 results (3 lines x 3 wires), got %d", len(outcome.Results))
	}

	// (patternId, wireId) pairs must be unique, patterns 0..2, wires 0..2.
	seen := make(map[[2]int]bool)
	for _, r := range outcome.Results {
		key := [2]int{r.PatternID, r.WireID}
		if seen[key] {
			t.Errorf("duplicate (patternId, wireId) pair %v", key)
		}
		seen[key] = true
		if r.PatternID < 0 || r.PatternID > 2 || r.WireID < 0 || r.WireID > 2 {
			t.Errorf("id out of range: %v", key)
		}
	}

	if !almostEqual(outcome.PatternIntensity, 100, geomTol) {
		t.Errorf("expected mean intensity 100, got %v", outcome.PatternIntensity)
	}
}

// TestFindPattern_DegeneratePlacement uses pairwise separations 30, 30, 0:
// two coincident lines cannot be two distinct phantom wires.
func TestFindPattern_DegeneratePlacement(t *testing.T) {
	labeler, err := NewLabeler(cirsParams())
	if err != nil {
		t.Fatal(err)
	}

	lines := []Line{
		lineAt(0, 0.01, 0, 15, 30),
		lineAt(0, 0.02, 0, 15, 30),
		lineAt(30, -0.01, 0, 15, 30),
	}
	outcome := labeler.FindPattern(Frame{Width: 640, Height: 480, Groups: [][]Line{lines}})

	if outcome.DotsFound {
		t.Error("expected no match for degenerate line placement")
	}
	if len(outcome.Results) != 0 {
		t.Errorf("expected empty results, got %d", len(outcome.Results))
	}
}

func TestFindPattern_DistanceBoundsInclusive(t *testing.T) {
	labeler, err := NewLabeler(twoLineParams(DistanceBand{MinMm: 14, MaxMm: 16}))
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name      string
		sep       float64
		wantFound bool
	}{
		{"below min", 13.9, false},
		{"at min", 14.0, true},
		{"inside", 15.0, true},
		{"at max", 16.0, true},
		{"beyond max", 16.1, false},
	}
	for _, tc := range cases {
		lines := []Line{
			lineAt(0, 0, 0, 10, 20),
			lineAt(tc.sep, 0, 0, 10, 20),
		}
		outcome := labeler.FindPattern(Frame{Groups: [][]Line{lines}})
		if outcome.DotsFound != tc.wantFound {
			t.Errorf("%s (separation %v): DotsFound=%v, want %v", tc.name, tc.sep, outcome.DotsFound, tc.wantFound)
		}
	}
}

func TestFindPattern_DistanceErrorPercentWidens(t *testing.T) {
	p := twoLineParams(DistanceBand{MinMm: 14, MaxMm: 16})
	p.Templates[0].DistanceErrorPercent = 10 // band widens to [12.6, 17.6]
	labeler, err := NewLabeler(p)
	if err != nil {
		t.Fatal(err)
	}

	lines := []Line{
		lineAt(0, 0, 0, 10, 20),
		lineAt(17.5, 0, 0, 10, 20),
	}
	outcome := labeler.FindPattern(Frame{Groups: [][]Line{lines}})
	if !outcome.DotsFound {
		t.Error("expected widened band to admit separation 17.5")
	}
}

func TestFindPattern_AngleToleranceInclusive(t *testing.T) {
	tilted := lineAt(15, 0.02, 0, 10, 20)
	flat := lineAt(0, 0, 0, 10, 20)
	diff := AngleDifference(Slope(flat), Slope(tilted))

	p := twoLineParams(DistanceBand{MinMm: 13, MaxMm: 17})
	p.AngleToleranceRad = diff
	p.Templates[0].MaxPairAngleRad = diff
	labeler, err := NewLabeler(p)
	if err != nil {
		t.Fatal(err)
	}
	outcome := labeler.FindPattern(Frame{Groups: [][]Line{{flat, tilted}}})
	if !outcome.DotsFound {
		t.Error("angle difference exactly at tolerance must match (inclusive bound)")
	}

	p.AngleToleranceRad = diff * (1 - 1e-9)
	p.Templates[0].MaxPairAngleRad = p.AngleToleranceRad
	labeler, err = NewLabeler(p)
	if err != nil {
		t.Fatal(err)
	}
	outcome = labeler.FindPattern(Frame{Groups: [][]Line{{flat, tilted}}})
	if outcome.DotsFound {
		t.Error("angle difference beyond tolerance must not match")
	}
}

func TestFindPattern_ShiftBoundInclusive(t *testing.T) {
	base := lineAt(0, 0, 0, 10, 20)
	shifted := lineAt(15, 0, 4, 14, 24) // 4 px along-wire offset
	shift := math.Abs(Shift(base, shifted))

	p := twoLineParams(DistanceBand{MinMm: 13, MaxMm: 17})
	p.Templates[0].MaxShiftMm = shift
	labeler, err := NewLabeler(p)
	if err != nil {
		t.Fatal(err)
	}
	if outcome := labeler.FindPattern(Frame{Groups: [][]Line{{base, shifted}}}); !outcome.DotsFound {
		t.Error("shift exactly at bound must match (inclusive bound)")
	}

	p.Templates[0].MaxShiftMm = shift * (1 - 1e-9)
	labeler, err = NewLabeler(p)
	if err != nil {
		t.Fatal(err)
	}
	if outcome := labeler.FindPattern(Frame{Groups: [][]Line{{base, shifted}}}); outcome.DotsFound {
		t.Error("shift beyond bound must not match")
	}
}

func TestFindPattern_ThetaBoundsExclude(t *testing.T) {
	p := twoLineParams(DistanceBand{MinMm: 13, MaxMm: 17})
	p.MaxThetaRad = 0.01
	labeler, err := NewLabeler(p)
	if err != nil {
		t.Fatal(err)
	}

	// Second line's slope 0.02 exceeds the theta bound.
	lines := []Line{
		lineAt(0, 0, 0, 10, 20),
		lineAt(15, 0.02, 0, 10, 20),
	}
	if outcome := labeler.FindPattern(Frame{Groups: [][]Line{lines}}); outcome.DotsFound {
		t.Error("line slope outside theta bounds must reject the combination")
	}
}

// TestFindPattern_SelectsLowestDeviation pins the ranking rule: among
// passing combinations the one closest to the band centers wins.
func TestFindPattern_SelectsLowestDeviation(t *testing.T) {
	labeler, err := NewLabeler(twoLineParams(DistanceBand{MinMm: 10, MaxMm: 20}))
	if err != nil {
		t.Fatal(err)
	}

	// Three lines: pair (y=0, y=15) sits exactly at the band center 15;
	// pair (y=0, y=12) deviates by 3; pair (y=12, y=15) fails the band.
	lines := []Line{
		lineAt(0, 0, 0, 10, 20),
		lineAt(12, 0, 0, 10, 20),
		lineAt(15, 0, 0, 10, 20),
	}
	outcome := labeler.FindPattern(Frame{Groups: [][]Line{lines}})
	if !outcome.DotsFound {
		t.Fatal("expected a match")
	}

	for _, r := range outcome.Results {
		if r.Y != 0 && r.Y != 15 {
			t.Errorf("winner should be the y=0/y=15 pair, got result at y=%v", r.Y)
		}
	}
}

func TestFindPattern_SearchesAllCombinationsAndGroups(t *testing.T) {
	labeler, err := NewLabeler(twoLineParams(DistanceBand{MinMm: 14, MaxMm: 16}))
	if err != nil {
		t.Fatal(err)
	}

	// First grouping has no valid pair; the second does, among decoys that
	// are not adjacent in the slice.
	decoyGroup := []Line{
		lineAt(0, 0, 0, 10, 20),
		lineAt(50, 0, 0, 10, 20),
	}
	goodGroup := []Line{
		lineAt(0, 0, 0, 10, 20),
		lineAt(40, 0, 0, 10, 20),
		lineAt(15, 0, 0, 10, 20),
	}
	outcome := labeler.FindPattern(Frame{Groups: [][]Line{decoyGroup, goodGroup}})
	if !outcome.DotsFound {
		t.Fatal("expected the non-adjacent pair in the second grouping to match")
	}
	for _, r := range outcome.Results {
		if r.Y != 0 && r.Y != 15 {
			t.Errorf("unexpected result at y=%v", r.Y)
		}
	}
}

func TestFindPattern_WrongPointCountRejected(t *testing.T) {
	labeler, err := NewLabeler(twoLineParams(DistanceBand{MinMm: 14, MaxMm: 16}))
	if err != nil {
		t.Fatal(err)
	}

	// Four dots on a line cannot represent a three-wire layer.
	lines := []Line{
		lineAt(0, 0, 0, 7, 14, 20),
		lineAt(15, 0, 0, 7, 14, 20),
	}
	if outcome := labeler.FindPattern(Frame{Groups: [][]Line{lines}}); outcome.DotsFound {
		t.Error("lines with the wrong dot count must not match")
	}
}

func TestFindPattern_EmptyFrame(t *testing.T) {
	labeler, err := NewLabeler(cirsParams())
	if err != nil {
		t.Fatal(err)
	}

	outcome := labeler.FindPattern(Frame{})
	if outcome.DotsFound {
		t.Error("empty frame must not match")
	}
	if len(outcome.Results) != 0 {
		t.Errorf("expected no results, got %d", len(outcome.Results))
	}
	if outcome.TemplateID != -1 {
		t.Errorf("expected template id -1, got %d", outcome.TemplateID)
	}
}

// TestFindPattern_NoStateAcrossCalls replays match, empty, match: each call
// stands alone, nothing leaks between frames.
func TestFindPattern_NoStateAcrossCalls(t *testing.T) {
	labeler, err := NewLabeler(cirsParams())
	if err != nil {
		t.Fatal(err)
	}

	good := Frame{Groups: [][]Line{{
		lineAt(0, 0.01, 0, 15, 30),
		lineAt(15, 0.02, 0, 15, 30),
		lineAt(30, -0.01, 0, 15, 30),
	}}}

	first := labeler.FindPattern(good)
	if !first.DotsFound {
		t.Fatal("expected first frame to match")
	}

	empty := labeler.FindPattern(Frame{})
	if empty.DotsFound || len(empty.Results) != 0 {
		t.Fatal("empty frame after a match must yield a clean no-match outcome")
	}

	second := labeler.FindPattern(good)
	if !second.DotsFound || len(second.Results) != len(first.Results) {
		t.Fatal("matching frame after an empty one must match again identically")
	}
}

func TestForEachCombination(t *testing.T) {
	var combos [][]int
	forEachCombination(4, 2, func(idx []int) {
		combos = append(combos, append([]int(nil), idx...))
	})

	want := [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	if len(combos) != len(want) {
		t.Fatalf("expected %d combinations, got %d", len(want), len(combos))
	}
	for i := range want {
		for j := range want[i] {
			if combos[i][j] != want[i][j] {
				t.Fatalf("combination %d: expected %v, got %v", i, want[i], combos[i])
			}
		}
	}

	calls := 0
	forEachCombination(3, 0, func([]int) { calls++ })
	forEachCombination(2, 3, func([]int) { calls++ })
	if calls != 0 {
		t.Errorf("expected no calls for k=0 or k>n, got %d", calls)
	}
}
