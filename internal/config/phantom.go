// Package config loads phantom definition files: the pattern templates and
// global tolerances the labeling engine matches against. Angles are written
// in degrees and lengths in millimetres in the file; conversion to radians
// happens exactly once, through internal/units, when the definition is
// turned into matcher parameters.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/attica-surgical/fidlabel/internal/fiducial"
	"github.com/attica-surgical/fidlabel/internal/units"
)

// DefaultConfigPath is the path to the canonical phantom defaults file.
// It describes the stock CIRS model 45 and a three-layer N-wire phantom.
const DefaultConfigPath = "config/phantom.defaults.json"

// DistanceBand is an inclusive distance bound in millimetres for one line
// pair of a template.
type DistanceBand struct {
	MinMm float64 `json:"min_mm"`
	MaxMm float64 `json:"max_mm"`
}

// TemplateConfig describes one phantom pattern in the definition file.
// Optional tolerance fields fall back to the global values.
type TemplateConfig struct {
	Name              string         `json:"name"`
	Family            string         `json:"family"` // "nwires" or "cirs"
	LineCount         *int           `json:"line_count,omitempty"`
	WiresPerLine      *int           `json:"wires_per_line,omitempty"`
	PairDistanceBands []DistanceBand `json:"pair_distance_bands,omitempty"`
	MinPairAngleDeg   *float64       `json:"min_pair_angle_deg,omitempty"`
	MaxPairAngleDeg   *float64       `json:"max_pair_angle_deg,omitempty"`
	MaxShiftMm        *float64       `json:"max_shift_mm,omitempty"`
	DistErrorPercent  *float64       `json:"distance_error_percent,omitempty"`
}

// PhantomConfig represents the root of a phantom definition file. The
// schema doubles as the payload for runtime reconfiguration, so fields are
// pointers: anything omitted keeps its default.
type PhantomConfig struct {
	// Frame geometry
	FrameWidth                   *int     `json:"frame_width,omitempty"`
	FrameHeight                  *int     `json:"frame_height,omitempty"`
	ApproximateSpacingMmPerPixel *float64 `json:"approximate_spacing_mm_per_pixel,omitempty"`

	// Global tolerances
	MaxLinePairDistanceErrorPercent *float64 `json:"max_line_pair_distance_error_percent,omitempty"`
	MaxAngleDifferenceDeg           *float64 `json:"max_angle_difference_deg,omitempty"`
	AngleToleranceDeg               *float64 `json:"angle_tolerance_deg,omitempty"`
	MaxLineShiftMm                  *float64 `json:"max_line_shift_mm,omitempty"`
	MinThetaDeg                     *float64 `json:"min_theta_deg,omitempty"`
	MaxThetaDeg                     *float64 `json:"max_theta_deg,omitempty"`

	Patterns []TemplateConfig `json:"patterns"`
}

// Load reads and validates a phantom definition from a JSON file. A
// malformed or internally inconsistent definition is a hard error; no
// partial configuration is ever returned.
func Load(path string) (*PhantomConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("phantom definition must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat phantom definition: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("phantom definition too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read phantom definition: %w", err)
	}

	cfg := &PhantomConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse phantom definition JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid phantom definition: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical phantom defaults from
// DefaultConfigPath, searching upward from the current directory. Panics if
// the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *PhantomConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the definition is structurally sound. Numeric
// consistency of the templates (band counts, inverted bounds) is checked
// again by fiducial.NewLabeler; the checks here cover what the file format
// itself can get wrong.
func (c *PhantomConfig) Validate() error {
	if len(c.Patterns) == 0 {
		return fmt.Errorf("at least one pattern is required")
	}
	if c.ApproximateSpacingMmPerPixel != nil && *c.ApproximateSpacingMmPerPixel <= 0 {
		return fmt.Errorf("approximate_spacing_mm_per_pixel must be positive, got %f", *c.ApproximateSpacingMmPerPixel)
	}
	if c.MinThetaDeg != nil && c.MaxThetaDeg != nil && *c.MinThetaDeg > *c.MaxThetaDeg {
		return fmt.Errorf("min_theta_deg %f exceeds max_theta_deg %f", *c.MinThetaDeg, *c.MaxThetaDeg)
	}
	if c.AngleToleranceDeg != nil && *c.AngleToleranceDeg < 0 {
		return fmt.Errorf("angle_tolerance_deg must be non-negative, got %f", *c.AngleToleranceDeg)
	}
	if c.MaxLineShiftMm != nil && *c.MaxLineShiftMm < 0 {
		return fmt.Errorf("max_line_shift_mm must be non-negative, got %f", *c.MaxLineShiftMm)
	}
	if c.MaxLinePairDistanceErrorPercent != nil && *c.MaxLinePairDistanceErrorPercent < 0 {
		return fmt.Errorf("max_line_pair_distance_error_percent must be non-negative, got %f", *c.MaxLinePairDistanceErrorPercent)
	}

	for i, p := range c.Patterns {
		if p.Name == "" {
			return fmt.Errorf("pattern %d: name is required", i)
		}
		if p.Family == "" {
			return fmt.Errorf("pattern %q: family is required", p.Name)
		}
		if p.LineCount == nil {
			return fmt.Errorf("pattern %q: line_count is required", p.Name)
		}
		if p.WiresPerLine == nil {
			return fmt.Errorf("pattern %q: wires_per_line is required", p.Name)
		}
		if len(p.PairDistanceBands) == 0 {
			return fmt.Errorf("pattern %q: pair_distance_bands is required", p.Name)
		}
		for j, band := range p.PairDistanceBands {
			if band.MinMm > band.MaxMm {
				return fmt.Errorf("pattern %q: distance band %d has min_mm %f > max_mm %f", p.Name, j, band.MinMm, band.MaxMm)
			}
		}
		if p.MinPairAngleDeg != nil && p.MaxPairAngleDeg != nil && *p.MinPairAngleDeg > *p.MaxPairAngleDeg {
			return fmt.Errorf("pattern %q: min_pair_angle_deg %f exceeds max_pair_angle_deg %f", p.Name, *p.MinPairAngleDeg, *p.MaxPairAngleDeg)
		}
	}

	return nil
}

// GetFrameWidth returns the frame_width value or the default.
func (c *PhantomConfig) GetFrameWidth() int {
	if c.FrameWidth == nil {
		return 640
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the frame_height value or the default.
func (c *PhantomConfig) GetFrameHeight() int {
	if c.FrameHeight == nil {
		return 480
	}
	return *c.FrameHeight
}

// GetApproximateSpacingMmPerPixel returns the spacing value or the default.
func (c *PhantomConfig) GetApproximateSpacingMmPerPixel() float64 {
	if c.ApproximateSpacingMmPerPixel == nil {
		return 0.078
	}
	return *c.ApproximateSpacingMmPerPixel
}

// GetMaxLinePairDistanceErrorPercent returns the distance widening or the default.
func (c *PhantomConfig) GetMaxLinePairDistanceErrorPercent() float64 {
	if c.MaxLinePairDistanceErrorPercent == nil {
		return 10
	}
	return *c.MaxLinePairDistanceErrorPercent
}

// GetMaxAngleDifferenceDeg returns the max_angle_difference_deg value or the default.
func (c *PhantomConfig) GetMaxAngleDifferenceDeg() float64 {
	if c.MaxAngleDifferenceDeg == nil {
		return 11
	}
	return *c.MaxAngleDifferenceDeg
}

// GetAngleToleranceDeg returns the angle_tolerance_deg value or the default.
func (c *PhantomConfig) GetAngleToleranceDeg() float64 {
	if c.AngleToleranceDeg == nil {
		return 10
	}
	return *c.AngleToleranceDeg
}

// GetMaxLineShiftMm returns the max_line_shift_mm value or the default.
func (c *PhantomConfig) GetMaxLineShiftMm() float64 {
	if c.MaxLineShiftMm == nil {
		return 10
	}
	return *c.MaxLineShiftMm
}

// GetMinThetaDeg returns the min_theta_deg value or the default.
func (c *PhantomConfig) GetMinThetaDeg() float64 {
	if c.MinThetaDeg == nil {
		return 0
	}
	return *c.MinThetaDeg
}

// GetMaxThetaDeg returns the max_theta_deg value or the default.
func (c *PhantomConfig) GetMaxThetaDeg() float64 {
	if c.MaxThetaDeg == nil {
		return 70
	}
	return *c.MaxThetaDeg
}

// LabelerParams converts the validated definition into matcher parameters,
// applying degree→radian conversion and filling template-level tolerances
// from the globals where the file omitted them. Template IDs are assigned
// by position in the file.
func (c *PhantomConfig) LabelerParams() fiducial.Params {
	p := fiducial.Params{
		ApproximateSpacingMmPerPixel: c.GetApproximateSpacingMmPerPixel(),
		MinThetaRad:                  units.DegToRad(c.GetMinThetaDeg()),
		MaxThetaRad:                  units.DegToRad(c.GetMaxThetaDeg()),
		AngleToleranceRad:            units.DegToRad(c.GetAngleToleranceDeg()),
		MaxAngleDifferenceRad:        units.DegToRad(c.GetMaxAngleDifferenceDeg()),
	}

	for i, pat := range c.Patterns {
		tpl := fiducial.Template{
			ID:                   i,
			Name:                 pat.Name,
			Family:               pat.Family,
			LineCount:            *pat.LineCount,
			WiresPerLine:         *pat.WiresPerLine,
			MaxShiftMm:           c.GetMaxLineShiftMm(),
			DistanceErrorPercent: c.GetMaxLinePairDistanceErrorPercent(),
		}
		for _, band := range pat.PairDistanceBands {
			tpl.PairDistanceBands = append(tpl.PairDistanceBands, fiducial.DistanceBand{
				MinMm: band.MinMm,
				MaxMm: band.MaxMm,
			})
		}
		// The matcher compares sorted observed distances band-by-band, so
		// band order in the file is immaterial.
		sort.Slice(tpl.PairDistanceBands, func(a, b int) bool {
			if tpl.PairDistanceBands[a].MinMm != tpl.PairDistanceBands[b].MinMm {
				return tpl.PairDistanceBands[a].MinMm < tpl.PairDistanceBands[b].MinMm
			}
			return tpl.PairDistanceBands[a].MaxMm < tpl.PairDistanceBands[b].MaxMm
		})
		// Default pair angle band: [0, angle tolerance].
		tpl.MinPairAngleRad = 0
		tpl.MaxPairAngleRad = p.AngleToleranceRad
		if pat.MinPairAngleDeg != nil {
			tpl.MinPairAngleRad = units.DegToRad(*pat.MinPairAngleDeg)
		}
		if pat.MaxPairAngleDeg != nil {
			tpl.MaxPairAngleRad = units.DegToRad(*pat.MaxPairAngleDeg)
		}
		if pat.MaxShiftMm != nil {
			tpl.MaxShiftMm = *pat.MaxShiftMm
		}
		if pat.DistErrorPercent != nil {
			tpl.DistanceErrorPercent = *pat.DistErrorPercent
		}
		p.Templates = append(p.Templates, tpl)
	}

	return p
}
