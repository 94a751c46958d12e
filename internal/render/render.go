// Package render defines the drawing surface figures paint onto and a
// recorder that turns painting into a draw command buffer for a frontend.
package render

import (
	"encoding/json"

	"github.com/inamate/drawcore/internal/geom"
)

// Graphics is the abstract 2D context figures draw with. Paths are in
// drawing coordinates.
type Graphics interface {
	FillPath(p geom.Path, color string, opacity float64)
	StrokePath(p geom.Path, color string, width, opacity float64)
	// ClipBounds returns the region that needs repainting, in drawing
	// coordinates. ok is false when everything must be painted.
	ClipBounds() (clip geom.Rect, ok bool)
}

// Tagger is implemented by surfaces that correlate output with the figure
// that produced it.
type Tagger interface {
	Tag(figureID string)
}

// DrawCommand represents a single drawing operation for the frontend to execute.
// The frontend receives a list of these and executes them on a Canvas2D context.
type DrawCommand struct {
	Op          string    `json:"op"`                    // "fill" or "stroke"
	ObjectID    string    `json:"objectId,omitempty"`    // For hit correlation
	Transform   []float64 `json:"transform,omitempty"`   // [a, b, c, d, e, f] drawing-to-view matrix
	Path        geom.Path `json:"path,omitempty"`        // Path data in drawing coordinates
	Color       string    `json:"color,omitempty"`       // Fill or stroke color
	StrokeWidth float64   `json:"strokeWidth,omitempty"` // Stroke width
	Opacity     float64   `json:"opacity,omitempty"`     // Global alpha
}

// Recorder is a Graphics that records draw commands.
type Recorder struct {
	Commands []DrawCommand

	clip    *geom.Rect
	view    []float64
	current string
}

// NewRecorder returns a recorder. A nil clip records everything.
func NewRecorder(clip *geom.Rect, vp Viewport) *Recorder {
	r := &Recorder{clip: clip}
	if m := vp.Matrix(); !m.IsIdentity() {
		r.view = m.ToSlice()
	}
	return r
}

// Tag sets the figure id attached to subsequent commands.
func (r *Recorder) Tag(figureID string) {
	r.current = figureID
}

func (r *Recorder) FillPath(p geom.Path, color string, opacity float64) {
	r.Commands = append(r.Commands, DrawCommand{
		Op:        "fill",
		ObjectID:  r.current,
		Transform: r.view,
		Path:      p,
		Color:     color,
		Opacity:   opacity,
	})
}

func (r *Recorder) StrokePath(p geom.Path, color string, width, opacity float64) {
	r.Commands = append(r.Commands, DrawCommand{
		Op:          "stroke",
		ObjectID:    r.current,
		Transform:   r.view,
		Path:        p,
		Color:       color,
		StrokeWidth: width,
		Opacity:     opacity,
	})
}

func (r *Recorder) ClipBounds() (geom.Rect, bool) {
	if r.clip == nil {
		return geom.Rect{}, false
	}
	return *r.clip, true
}

// FigureIDs returns the distinct figure ids in paint order.
func (r *Recorder) FigureIDs() []string {
	var ids []string
	seen := map[string]bool{}
	for _, c := range r.Commands {
		if c.ObjectID != "" && !seen[c.ObjectID] {
			seen[c.ObjectID] = true
			ids = append(ids, c.ObjectID)
		}
	}
	return ids
}

// JSON serializes the recorded commands.
func (r *Recorder) JSON() (string, error) {
	if len(r.Commands) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(r.Commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
