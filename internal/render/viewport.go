package render

import (
	"fmt"

	"github.com/inamate/drawcore/internal/geom"
)

// Viewport maps drawing coordinates to view (screen) coordinates:
// view = drawing*Scale + Offset. A zero Scale collapses the drawing to a
// point and cannot be inverted; use Identity for the unzoomed view.
type Viewport struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// Identity is the unzoomed, unscrolled viewport.
var Identity = Viewport{Scale: 1}

// Matrix returns the drawing-to-view transform.
func (v Viewport) Matrix() geom.Matrix2D {
	return geom.Translate(v.OffsetX, v.OffsetY).Multiply(geom.Scale(v.Scale, v.Scale))
}

// DrawingToView maps a drawing point into the view.
func (v Viewport) DrawingToView(p geom.Point) geom.Point {
	return v.Matrix().Apply(p)
}

// ViewToDrawing maps a view point back into the drawing. It fails with
// geom.ErrSingular for a degenerate viewport.
func (v Viewport) ViewToDrawing(p geom.Point) (geom.Point, error) {
	inv, err := v.Matrix().Invert()
	if err != nil {
		return geom.Point{}, fmt.Errorf("view to drawing: %w", err)
	}
	return inv.Apply(p), nil
}

// VisibleArea returns the drawing-space rectangle shown in a view of the
// given size.
func (v Viewport) VisibleArea(size geom.Dimension) (geom.Rect, error) {
	inv, err := v.Matrix().Invert()
	if err != nil {
		return geom.Rect{}, fmt.Errorf("visible area: %w", err)
	}
	return inv.TransformRect(geom.R(0, 0, size.Width, size.Height)), nil
}
