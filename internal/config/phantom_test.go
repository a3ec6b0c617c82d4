package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attica-surgical/fidlabel/internal/fiducial"
	"github.com/attica-surgical/fidlabel/internal/units"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "phantom.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validConfig = `{
	"approximate_spacing_mm_per_pixel": 0.1,
	"angle_tolerance_deg": 3,
	"max_line_shift_mm": 5,
	"min_theta_deg": 0,
	"max_theta_deg": 60,
	"patterns": [
		{
			"name": "cirs45",
			"family": "cirs",
			"line_count": 3,
			"wires_per_line": 3,
			"pair_distance_bands": [
				{"min_mm": 29, "max_mm": 31},
				{"min_mm": 14, "max_mm": 16},
				{"min_mm": 14, "max_mm": 16}
			]
		}
	]
}`

func TestLoad_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, 0.1, cfg.GetApproximateSpacingMmPerPixel())
	assert.Equal(t, 3.0, cfg.GetAngleToleranceDeg())
	assert.Equal(t, 5.0, cfg.GetMaxLineShiftMm())
	assert.Len(t, cfg.Patterns, 1)
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	// A minimal file: globals fall back to defaults.
	cfg, err := Load(writeConfig(t, `{
		"patterns": [{
			"name": "pair", "family": "nwires",
			"line_count": 2, "wires_per_line": 3,
			"pair_distance_bands": [{"min_mm": 9, "max_mm": 11}]
		}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, 640, cfg.GetFrameWidth())
	assert.Equal(t, 480, cfg.GetFrameHeight())
	assert.Equal(t, 10.0, cfg.GetMaxLinePairDistanceErrorPercent())
	assert.Equal(t, 70.0, cfg.GetMaxThetaDeg())
	assert.Equal(t, 0.0, cfg.GetMinThetaDeg())
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"no patterns", `{"patterns": []}`},
		{"missing name", `{"patterns": [{"family": "cirs", "line_count": 3, "wires_per_line": 3,
			"pair_distance_bands": [{"min_mm": 1, "max_mm": 2}]}]}`},
		{"missing family", `{"patterns": [{"name": "x", "line_count": 3, "wires_per_line": 3,
			"pair_distance_bands": [{"min_mm": 1, "max_mm": 2}]}]}`},
		{"missing line_count", `{"patterns": [{"name": "x", "family": "cirs", "wires_per_line": 3,
			"pair_distance_bands": [{"min_mm": 1, "max_mm": 2}]}]}`},
		{"missing wires_per_line", `{"patterns": [{"name": "x", "family": "cirs", "line_count": 3,
			"pair_distance_bands": [{"min_mm": 1, "max_mm": 2}]}]}`},
		{"missing bands", `{"patterns": [{"name": "x", "family": "cirs", "line_count": 3, "wires_per_line": 3}]}`},
		{"inverted band", `{"patterns": [{"name": "x", "family": "cirs", "line_count": 3, "wires_per_line": 3,
			"pair_distance_bands": [{"min_mm": 5, "max_mm": 2}]}]}`},
		{"inverted theta", `{"min_theta_deg": 50, "max_theta_deg": 10,
			"patterns": [{"name": "x", "family": "cirs", "line_count": 3, "wires_per_line": 3,
			"pair_distance_bands": [{"min_mm": 1, "max_mm": 2}]}]}`},
		{"negative spacing", `{"approximate_spacing_mm_per_pixel": -1,
			"patterns": [{"name": "x", "family": "cirs", "line_count": 3, "wires_per_line": 3,
			"pair_distance_bands": [{"min_mm": 1, "max_mm": 2}]}]}`},
		{"inverted pair angles", `{"patterns": [{"name": "x", "family": "cirs", "line_count": 3, "wires_per_line": 3,
			"min_pair_angle_deg": 5, "max_pair_angle_deg": 1,
			"pair_distance_bands": [{"min_mm": 1, "max_mm": 2}]}]}`},
		{"not json", `patterns:`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_RejectsNonJSONExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "phantom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLabelerParams_Conversion(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	p := cfg.LabelerParams()
	assert.Equal(t, 0.1, p.ApproximateSpacingMmPerPixel)
	assert.Equal(t, units.DegToRad(3), p.AngleToleranceRad)
	assert.Equal(t, units.DegToRad(60), p.MaxThetaRad)

	require.Len(t, p.Templates, 1)
	tpl := p.Templates[0]
	assert.Equal(t, 0, tpl.ID)
	assert.Equal(t, fiducial.FamilyCIRS, tpl.Family)
	assert.Equal(t, 3, tpl.LineCount)
	assert.Equal(t, 3, tpl.WiresPerLine)
	assert.Equal(t, 5.0, tpl.MaxShiftMm)

	// Bands are sorted ascending regardless of file order.
	require.Len(t, tpl.PairDistanceBands, 3)
	assert.Equal(t, fiducial.DistanceBand{MinMm: 14, MaxMm: 16}, tpl.PairDistanceBands[0])
	assert.Equal(t, fiducial.DistanceBand{MinMm: 14, MaxMm: 16}, tpl.PairDistanceBands[1])
	assert.Equal(t, fiducial.DistanceBand{MinMm: 29, MaxMm: 31}, tpl.PairDistanceBands[2])

	// Pair angle band defaults to [0, tolerance].
	assert.Equal(t, 0.0, tpl.MinPairAngleRad)
	assert.Equal(t, units.DegToRad(3), tpl.MaxPairAngleRad)
}

func TestDefaultConfigBuildsLabeler(t *testing.T) {
	t.Parallel()

	cfg := MustLoadDefaultConfig()
	labeler, err := fiducial.NewLabeler(cfg.LabelerParams())
	require.NoError(t, err)
	assert.Len(t, labeler.Templates(), len(cfg.Patterns))
}
