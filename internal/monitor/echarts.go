package monitor

import (
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/attica-surgical/fidlabel/internal/fiducial"
)

// handleOverlay renders an interactive scatter (HTML) of the latest frame:
// unmatched dots in one series, labeled dots in one series per pattern id,
// so mislabeled wires stand out at a glance.
func (ws *WebServer) handleOverlay(w http.ResponseWriter, r *http.Request) {
	frameIndex, frame, outcome, ok := ws.snapshot()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "no frame processed yet")
		return
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("frame %d overlay", frameIndex),
			Subtitle: overlaySubtitle(outcome),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x (px)", Min: 0, Max: frame.Width}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y (px)", Min: 0, Max: frame.Height}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	// Labeled dots, keyed by pattern id. Coordinates flip y so the plot
	// matches image orientation (origin top-left).
	labeled := make(map[string]bool, len(outcome.Results))
	byPattern := make(map[int][]opts.ScatterData)
	for _, res := range outcome.Results {
		labeled[dotKey(res.X, res.Y)] = true
		byPattern[res.PatternID] = append(byPattern[res.PatternID], opts.ScatterData{
			Name:  fmt.Sprintf("wire %d", res.WireID),
			Value: []interface{}{res.X, float64(frame.Height) - res.Y},
		})
	}

	var unmatched []opts.ScatterData
	for _, d := range frame.Dots {
		if labeled[dotKey(d.X, d.Y)] {
			continue
		}
		unmatched = append(unmatched, opts.ScatterData{
			Value: []interface{}{d.X, float64(frame.Height) - d.Y},
		})
	}

	scatter.AddSeries("unmatched", unmatched)
	for pid := range byPattern {
		scatter.AddSeries(fmt.Sprintf("pattern %d", pid), byPattern[pid])
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := scatter.Render(w); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render overlay: %v", err))
	}
}

func overlaySubtitle(outcome fiducial.Outcome) string {
	if !outcome.DotsFound {
		return "no pattern recognized"
	}
	return fmt.Sprintf("template %d, %d dots, intensity %.1f",
		outcome.TemplateID, len(outcome.Results), outcome.PatternIntensity)
}

func dotKey(x, y float64) string {
	return fmt.Sprintf("%.4f,%.4f", x, y)
}
