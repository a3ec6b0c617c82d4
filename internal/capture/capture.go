// Package capture reads and writes recorded segmentation output so frames
// can be replayed through the labeling engine offline: a capture file holds
// the dots and candidate line groupings the upstream detectors produced,
// never the source images. This is the labeling counterpart of replaying a
// packet capture instead of a live sensor.
package capture

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/attica-surgical/fidlabel/internal/fiducial"
)

// Dot is one detected marker centroid as recorded by segmentation.
type Dot struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Intensity float64 `json:"intensity,omitempty"`
}

// Line is one candidate line as recorded by the line detector. Start and
// End are optional; when omitted the first and last points are used.
type Line struct {
	Points []Dot `json:"points"`
	Start  *Dot  `json:"start,omitempty"`
	End    *Dot  `json:"end,omitempty"`
}

// Frame is one video frame's worth of recorded detector output.
type Frame struct {
	TSUnixNanos int64    `json:"ts_unix_nanos,omitempty"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	Dots        []Dot    `json:"dots"`
	Groups      [][]Line `json:"groups"`
}

// Recording is a capture file: a sequence of frames from one acquisition.
type Recording struct {
	Frames []Frame `json:"frames"`
}

// ReadFile loads a capture file.
func ReadFile(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	rec := &Recording{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("parse capture %s: %w", path, err)
	}
	return rec, nil
}

// WriteFile stores a capture file with indented JSON so recordings stay
// reviewable by hand.
func WriteFile(path string, rec *Recording) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode capture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write capture: %w", err)
	}
	return nil
}

// ToFiducial converts a recorded frame into the engine's input form,
// deriving missing line endpoints from the first and last recorded points.
func (f Frame) ToFiducial() fiducial.Frame {
	out := fiducial.Frame{
		Width:  f.Width,
		Height: f.Height,
		Dots:   make([]fiducial.Dot, len(f.Dots)),
	}
	for i, d := range f.Dots {
		out.Dots[i] = fiducial.Dot{X: d.X, Y: d.Y, Intensity: d.Intensity}
	}
	for _, group := range f.Groups {
		lines := make([]fiducial.Line, len(group))
		for i, l := range group {
			lines[i] = l.toFiducial()
		}
		out.Groups = append(out.Groups, lines)
	}
	return out
}

func (l Line) toFiducial() fiducial.Line {
	points := make([]fiducial.Dot, len(l.Points))
	for i, d := range l.Points {
		points[i] = fiducial.Dot{X: d.X, Y: d.Y, Intensity: d.Intensity}
	}
	line := fiducial.NewLine(points)
	if l.Start != nil {
		line.Start = fiducial.Dot{X: l.Start.X, Y: l.Start.Y, Intensity: l.Start.Intensity}
	}
	if l.End != nil {
		line.End = fiducial.Dot{X: l.End.X, Y: l.End.Y, Intensity: l.End.Intensity}
	}
	return line
}

// FromFiducial converts an engine frame back into its recorded form, for
// writing synthetic captures from tests and tools.
func FromFiducial(f fiducial.Frame) Frame {
	out := Frame{
		Width:  f.Width,
		Height: f.Height,
		Dots:   make([]Dot, len(f.Dots)),
	}
	for i, d := range f.Dots {
		out.Dots[i] = Dot{X: d.X, Y: d.Y, Intensity: d.Intensity}
	}
	for _, group := range f.Groups {
		lines := make([]Line, len(group))
		for i, l := range group {
			points := make([]Dot, len(l.Points))
			for j, d := range l.Points {
				points[j] = Dot{X: d.X, Y: d.Y, Intensity: d.Intensity}
			}
			start := Dot{X: l.Start.X, Y: l.Start.Y, Intensity: l.Start.Intensity}
			end := Dot{X: l.End.X, Y: l.End.Y, Intensity: l.End.Intensity}
			lines[i] = Line{Points: points, Start: &start, End: &end}
		}
		out.Groups = append(out.Groups, lines)
	}
	return out
}
