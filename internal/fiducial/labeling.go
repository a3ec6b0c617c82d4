// Package fiducial identifies calibration-phantom patterns in segmented
// ultrasound frames. Given the dots found by segmentation and the candidate
// line groupings found by line detection, it decides which (if any)
// configured phantom geometry the lines represent, verifies the inter-line
// distance, angle and shift tolerances, and assigns every dot a permanent
// (patternId, wireId) identity matching the phantom's physical wiring.
//
// The engine is synchronous and holds no per-frame state: FindPattern
// returns an immutable Outcome per call, so an instance can be reused
// frame after frame without any reset step, including concurrently from
// multiple goroutines.
package fiducial

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/attica-surgical/fidlabel/internal/monitoring"
	"github.com/attica-surgical/fidlabel/internal/units"
)

// Params carries the validated configuration the matcher needs: the global
// tolerances and the phantom templates. Build it through the config package
// or directly in tests.
type Params struct {
	// ApproximateSpacingMmPerPixel converts pixel distances to physical
	// millimetres for tolerance comparisons.
	ApproximateSpacingMmPerPixel float64

	// MinThetaRad and MaxThetaRad bound the allowed absolute orientation
	// of any single matched line.
	MinThetaRad float64
	MaxThetaRad float64

	// AngleToleranceRad bounds the angle difference between any two lines
	// of a matched combination.
	AngleToleranceRad float64

	// MaxAngleDifferenceRad is parsed from configuration for completeness
	// but takes no part in matching; AngleToleranceRad is the bound the
	// matcher applies. See DESIGN.md for the history of this field.
	MaxAngleDifferenceRad float64

	Templates []Template
}

// Labeler is the pattern matching engine. It is configured once and then
// called once per frame; the templates and tolerances are read-only after
// NewLabeler returns.
type Labeler struct {
	params   Params
	families []patternFamily // parallel to params.Templates
}

// NewLabeler validates the parameters and builds a matcher. Any structural
// problem in the configuration (unknown family, inverted bound, wrong band
// count) is a hard error: no partial or best-effort configuration is used.
func NewLabeler(p Params) (*Labeler, error) {
	if p.ApproximateSpacingMmPerPixel <= 0 {
		return nil, fmt.Errorf("approximate spacing must be positive, got %g", p.ApproximateSpacingMmPerPixel)
	}
	if p.MinThetaRad > p.MaxThetaRad {
		return nil, fmt.Errorf("theta bounds inverted: min %g > max %g", p.MinThetaRad, p.MaxThetaRad)
	}
	if p.AngleToleranceRad < 0 {
		return nil, fmt.Errorf("angle tolerance must be non-negative, got %g", p.AngleToleranceRad)
	}
	if len(p.Templates) == 0 {
		return nil, fmt.Errorf("no pattern templates configured")
	}

	families := make([]patternFamily, len(p.Templates))
	for i, tpl := range p.Templates {
		if err := validateTemplate(tpl); err != nil {
			return nil, fmt.Errorf("template %q: %w", tpl.Name, err)
		}
		fam, err := familyByName(tpl.Family)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", tpl.Name, err)
		}
		families[i] = fam
	}

	return &Labeler{params: p, families: families}, nil
}

func validateTemplate(tpl Template) error {
	if tpl.LineCount < 2 {
		return fmt.Errorf("line count must be at least 2, got %d", tpl.LineCount)
	}
	if tpl.WiresPerLine < 1 {
		return fmt.Errorf("wires per line must be at least 1, got %d", tpl.WiresPerLine)
	}
	if got, want := len(tpl.PairDistanceBands), tpl.PairCount(); got != want {
		return fmt.Errorf("%d line pairs need %d distance bands, got %d", want, want, got)
	}
	for i, band := range tpl.PairDistanceBands {
		if band.MinMm > band.MaxMm {
			return fmt.Errorf("distance band %d inverted: min %g > max %g", i, band.MinMm, band.MaxMm)
		}
		if i > 0 && band.MinMm < tpl.PairDistanceBands[i-1].MinMm {
			return fmt.Errorf("distance bands must be sorted ascending by min")
		}
	}
	if tpl.MinPairAngleRad > tpl.MaxPairAngleRad {
		return fmt.Errorf("pair angle bounds inverted: min %g > max %g", tpl.MinPairAngleRad, tpl.MaxPairAngleRad)
	}
	if tpl.MaxShiftMm < 0 {
		return fmt.Errorf("max shift must be non-negative, got %g", tpl.MaxShiftMm)
	}
	if tpl.DistanceErrorPercent < 0 {
		return fmt.Errorf("distance error percent must be non-negative, got %g", tpl.DistanceErrorPercent)
	}
	return nil
}

// Templates exposes the configured templates, for reporting and monitoring.
func (l *Labeler) Templates() []Template {
	return l.params.Templates
}

// noMatch is the outcome for a frame in which nothing was recognized.
func noMatch() Outcome {
	return Outcome{DotsFound: false, TemplateID: -1}
}

// FindPattern labels one frame. It enumerates every candidate line grouping
// against every template with a matching line count, tests every
// combination of that many lines against the tolerance gates, and labels
// the dots of the winning combination through the template's family
// builder.
//
// Selection among passing combinations is deterministic: the winner
// minimizes the total absolute deviation of its sorted pairwise distances
// from the template band centers; ties keep the first combination in
// enumeration order (groupings in input order, templates in configuration
// order, combinations in lexicographic index order).
func (l *Labeler) FindPattern(frame Frame) Outcome {
	type candidate struct {
		templateIdx int
		lines       []Line
	}

	var best candidate
	bestScore := math.Inf(1)
	found := false

	for _, group := range frame.Groups {
		for ti := range l.params.Templates {
			tpl := l.params.Templates[ti]
			if tpl.LineCount > len(group) {
				continue
			}
			forEachCombination(len(group), tpl.LineCount, func(idx []int) {
				lines := make([]Line, len(idx))
				for i, gi := range idx {
					lines[i] = group[gi]
				}
				score, ok := l.evaluate(tpl, lines)
				if ok && score < bestScore {
					bestScore = score
					best = candidate{templateIdx: ti, lines: lines}
					found = true
				}
			})
		}
	}

	if !found {
		return noMatch()
	}

	tpl := l.params.Templates[best.templateIdx]
	ordered := append([]Line(nil), best.lines...)
	sortLinesByStartY(ordered)

	results, err := l.families[best.templateIdx].buildResults(tpl, ordered)
	if err != nil {
		// The gates admitted a combination the family cannot label. This
		// indicates an inconsistent template rather than a bad frame.
		monitoring.Logf("fiducial: template %q matched but labeling failed: %v", tpl.Name, err)
		return noMatch()
	}

	return Outcome{
		DotsFound:        true,
		TemplateID:       tpl.ID,
		Results:          results,
		PatternIntensity: patternIntensity(ordered),
	}
}

// evaluate gates one combination of lines against one template. All bounds
// are inclusive. It returns the ranking score (total absolute deviation of
// sorted pairwise distances from the band centers, in mm) and whether every
// gate passed.
func (l *Labeler) evaluate(tpl Template, lines []Line) (float64, bool) {
	spacing := l.params.ApproximateSpacingMmPerPixel

	slopes := make([]float64, len(lines))
	for i, line := range lines {
		if len(line.Points) != tpl.WiresPerLine {
			return 0, false
		}
		slopes[i] = Slope(line)
		mag := math.Abs(slopes[i])
		if mag < l.params.MinThetaRad || mag > l.params.MaxThetaRad {
			return 0, false
		}
	}

	distances := make([]float64, 0, tpl.PairCount())
	for i := 0; i < len(lines); i++ {
		for j := i + 1; j < len(lines); j++ {
			d := AngleDifference(slopes[i], slopes[j])
			if d > l.params.AngleToleranceRad {
				return 0, false
			}
			if d < tpl.MinPairAngleRad || d > tpl.MaxPairAngleRad {
				return 0, false
			}

			shiftMm := units.PxToMm(math.Abs(Shift(lines[i], lines[j])), spacing)
			if shiftMm > tpl.MaxShiftMm {
				return 0, false
			}

			// Symmetric pair distance: midpoint-to-line in both directions
			// averaged, so evaluate(i, j) == evaluate(j, i).
			distPx := (LinePairDistance(lines[i], lines[j]) + LinePairDistance(lines[j], lines[i])) / 2
			distances = append(distances, units.PxToMm(distPx, spacing))
		}
	}

	sort.Float64s(distances)

	widen := tpl.DistanceErrorPercent / 100
	score := 0.0
	for i, d := range distances {
		band := tpl.PairDistanceBands[i]
		lo := band.MinMm * (1 - widen)
		hi := band.MaxMm * (1 + widen)
		if d < lo || d > hi {
			return 0, false
		}
		score += math.Abs(d - (band.MinMm+band.MaxMm)/2)
	}

	return score, true
}

// patternIntensity is the mean segmentation intensity across the dots of
// the matched lines. Diagnostic only; the matcher never ranks on it.
func patternIntensity(lines []Line) float64 {
	var intensities []float64
	for _, line := range lines {
		for _, p := range line.Points {
			intensities = append(intensities, p.Intensity)
		}
	}
	if len(intensities) == 0 {
		return 0
	}
	return stat.Mean(intensities, nil)
}

// forEachCombination invokes fn with every k-combination of {0..n-1} in
// lexicographic order. The index slice is reused between calls; fn must
// copy it if it needs to retain it.
func forEachCombination(n, k int, fn func(idx []int)) {
	if k <= 0 || k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		// Advance to the next combination.
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
