package monitor

import (
	"fmt"
	"image/color"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/attica-surgical/fidlabel/internal/fiducial"
	"github.com/attica-surgical/fidlabel/internal/monitoring"
)

// patternPalette colors labeled dots by pattern id; unmatched dots stay grey.
var patternPalette = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
}

// handleOverlayPNG renders the latest frame as a static PNG for inclusion
// in calibration reports.
func (ws *WebServer) handleOverlayPNG(w http.ResponseWriter, r *http.Request) {
	frameIndex, frame, outcome, ok := ws.snapshot()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "no frame processed yet")
		return
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("frame %d overlay", frameIndex)
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	p.X.Min, p.X.Max = 0, float64(frame.Width)
	p.Y.Min, p.Y.Max = 0, float64(frame.Height)

	if err := addOverlaySeries(p, frame, outcome); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("build overlay: %v", err))
		return
	}

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render overlay png: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		// Headers already sent; nothing left to do but note it.
		monitoring.Logf("monitor: write overlay png: %v", err)
	}
}

func addOverlaySeries(p *plot.Plot, frame fiducial.Frame, outcome fiducial.Outcome) error {
	labeled := make(map[string]bool, len(outcome.Results))
	byPattern := make(map[int]plotter.XYs)
	for _, res := range outcome.Results {
		labeled[dotKey(res.X, res.Y)] = true
		// Flip y so the plot matches image orientation (origin top-left).
		byPattern[res.PatternID] = append(byPattern[res.PatternID], plotter.XY{
			X: res.X,
			Y: float64(frame.Height) - res.Y,
		})
	}

	var unmatched plotter.XYs
	for _, d := range frame.Dots {
		if labeled[dotKey(d.X, d.Y)] {
			continue
		}
		unmatched = append(unmatched, plotter.XY{X: d.X, Y: float64(frame.Height) - d.Y})
	}

	if len(unmatched) > 0 {
		s, err := plotter.NewScatter(unmatched)
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
		p.Add(s)
		p.Legend.Add("unmatched", s)
	}

	for pid, xys := range byPattern {
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = patternPalette[pid%len(patternPalette)]
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("pattern %d", pid), s)
	}

	return nil
}
