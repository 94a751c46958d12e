package figure

import (
	"github.com/jinzhu/copier"

	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/render"
)

// bezierK approximates a quarter circle with one cubic curve:
// k = 4 * (sqrt(2) - 1) / 3.
const bezierK = 0.5522847498

// RectFigure is an axis-aligned rectangle in local coordinates, placed by
// the Transform attribute.
type RectFigure struct {
	Base `copier:"-"`

	Frame geom.Rect `json:"frame"`
}

// NewRect creates a rectangle figure with a fresh id.
func NewRect(x, y, w, h float64) *RectFigure {
	f := &RectFigure{Frame: geom.R(x, y, w, h)}
	f.Init(f, "")
	return f
}

func (f *RectFigure) Bounds() geom.Rect {
	return Transform.Get(f).TransformRect(f.Frame)
}

// SetFrame replaces the local rectangle and notifies listeners.
func (f *RectFigure) SetFrame(r geom.Rect) {
	f.WillChange()
	f.Frame = r
	f.Changed()
}

func (f *RectFigure) Contains(p geom.Point) bool {
	lp, ok := f.toLocal(p)
	if !ok {
		return false
	}
	tol := f.strokeTolerance()
	return f.Frame.Grow(tol, tol).ContainsPoint(lp)
}

func (f *RectFigure) outline() geom.Path {
	r := f.Frame
	return geom.Path{}.
		MoveTo(r.X, r.Y).
		LineTo(r.MaxX(), r.Y).
		LineTo(r.MaxX(), r.MaxY()).
		LineTo(r.X, r.MaxY()).
		Close()
}

func (f *RectFigure) Draw(g render.Graphics) { f.paint(g, f.outline()) }

func (f *RectFigure) Clone() Figure {
	c := &RectFigure{}
	_ = copier.CopyWithOption(c, f, copier.Option{DeepCopy: true})
	c.initClone(c, &f.Base)
	return c
}

// EllipseFigure is the ellipse inscribed in Frame.
type EllipseFigure struct {
	Base `copier:"-"`

	Frame geom.Rect `json:"frame"`
}

func NewEllipse(x, y, w, h float64) *EllipseFigure {
	f := &EllipseFigure{Frame: geom.R(x, y, w, h)}
	f.Init(f, "")
	return f
}

func (f *EllipseFigure) Bounds() geom.Rect {
	return Transform.Get(f).TransformRect(f.Frame)
}

func (f *EllipseFigure) SetFrame(r geom.Rect) {
	f.WillChange()
	f.Frame = r
	f.Changed()
}

func (f *EllipseFigure) Contains(p geom.Point) bool {
	lp, ok := f.toLocal(p)
	if !ok {
		return false
	}
	tol := f.strokeTolerance()
	cx, cy := f.Frame.Center()
	rx, ry := f.Frame.Width/2+tol, f.Frame.Height/2+tol
	dx, dy := (lp.X-cx)/rx, (lp.Y-cy)/ry
	return dx*dx+dy*dy <= 1
}

// outline draws four cubic curves around the center.
func (f *EllipseFigure) outline() geom.Path {
	cx, cy := f.Frame.Center()
	rx, ry := f.Frame.Width/2, f.Frame.Height/2
	kx, ky := rx*bezierK, ry*bezierK
	return geom.Path{}.
		MoveTo(cx+rx, cy).
		CubicTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry).
		CubicTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy).
		CubicTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry).
		CubicTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy).
		Close()
}

func (f *EllipseFigure) Draw(g render.Graphics) { f.paint(g, f.outline()) }

func (f *EllipseFigure) Clone() Figure {
	c := &EllipseFigure{}
	_ = copier.CopyWithOption(c, f, copier.Option{DeepCopy: true})
	c.initClone(c, &f.Base)
	return c
}

// PathFigure is a free-form bezier path. Closed subpaths hit-test by the
// even-odd rule when the figure is filled; otherwise only points near the
// outline hit.
type PathFigure struct {
	Base `copier:"-"`

	Segments geom.Path `json:"segments"`
}

func NewPath(p geom.Path) *PathFigure {
	f := &PathFigure{Segments: p}
	f.Init(f, "")
	return f
}

func (f *PathFigure) Bounds() geom.Rect {
	return f.Segments.Transform(Transform.Get(f)).Bounds()
}

func (f *PathFigure) SetSegments(p geom.Path) {
	f.WillChange()
	f.Segments = p
	f.Changed()
}

func (f *PathFigure) Contains(p geom.Point) bool {
	lp, ok := f.toLocal(p)
	if !ok {
		return false
	}
	lines := f.Segments.Flatten()
	if FillColor.Get(f) != "" && geom.ContainsEvenOdd(lines, lp) {
		return true
	}
	return geom.NearPolylines(lines, lp, f.strokeTolerance())
}

func (f *PathFigure) Draw(g render.Graphics) { f.paint(g, f.Segments) }

func (f *PathFigure) Clone() Figure {
	c := &PathFigure{}
	_ = copier.CopyWithOption(c, f, copier.Option{DeepCopy: true})
	c.initClone(c, &f.Base)
	return c
}
