// Package figure implements the drawable scene graph: leaf figures,
// composites with an optional spatial index, typed attributes and change
// events.
package figure

import (
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/render"
	"github.com/inamate/drawcore/internal/typeid"
)

// Figure is a drawable, attribute-bearing node.
//
// Mutations follow a will-change/changed protocol: callers bracket basic
// (silent) mutations with WillChange and Changed, and the outermost Changed
// fires a FigureChanged event carrying the union of the old and new
// drawing areas.
type Figure interface {
	ID() string

	Bounds() geom.Rect
	// DrawingArea covers everything Draw may touch; it contains Bounds.
	DrawingArea() geom.Rect
	Contains(p geom.Point) bool
	// FindFigureInside returns the innermost figure containing p.
	FindFigureInside(p geom.Point) Figure
	Draw(g render.Graphics)
	TransformBy(m geom.Matrix2D)

	Visible() bool
	Layer() int

	Attribute(k Key) any
	SetAttribute(k Key, v any) error
	BasicSetAttribute(k Key, v any) error
	Attributes() AttributeSet
	// AttributesRestoreData returns an opaque snapshot that
	// RestoreAttributesTo accepts.
	AttributesRestoreData() any
	RestoreAttributesTo(data any)

	WillChange()
	Changed()

	Parent() Container
	AddNotify(parent Container)
	RemoveNotify(parent Container)

	AddFigureListener(l Listener)
	RemoveFigureListener(l Listener)
	RequestRemove()

	Clone() Figure
}

// Container is a figure that owns an ordered sequence of children.
// Children order is z-order: index 0 is drawn first (back-most).
type Container interface {
	Figure

	Children() []Figure
	ChildCount() int
	Child(i int) Figure
	IndexOf(f Figure) int
	HasChild(f Figure) bool

	// Observed mutations fire FigureAdded/FigureRemoved.
	Add(f Figure)
	AddAt(i int, f Figure)
	Remove(f Figure) bool
	RemoveAt(i int) Figure
	RemoveAll()

	// Basic mutations update children and the index silently.
	BasicAdd(f Figure)
	BasicAddAt(i int, f Figure)
	BasicRemove(f Figure) int
	BasicRemoveAt(i int) Figure
	BasicRemoveAll()
}

// Base carries identity, attributes, the parent back reference and the
// listener list. Concrete figures embed it and call Init with themselves.
type Base struct {
	this      Figure
	id        string
	attrs     Attributes
	parent    Container
	listeners Listeners

	changingDepth int
	invalidated   geom.Rect
}

// Init binds the base to the figure embedding it. An empty id gets a new
// one.
func (b *Base) Init(this Figure, id string) {
	if id == "" {
		id = typeid.NewFigureID()
	}
	b.this = this
	b.id = id
}

func (b *Base) initClone(this Figure, src *Base) {
	b.Init(this, "")
	b.attrs.Restore(src.attrs.Snapshot())
}

func (b *Base) ID() string { return b.id }

// DrawingArea grows the bounds by half the stroke plus one unit of
// antialiasing slack.
func (b *Base) DrawingArea() geom.Rect {
	grow := 1.0
	if StrokeColor.Get(b.this) != "" {
		grow += StrokeWidth.Get(b.this) / 2
	}
	return b.this.Bounds().Grow(grow, grow)
}

func (b *Base) FindFigureInside(p geom.Point) Figure {
	if b.this.Contains(p) {
		return b.this
	}
	return nil
}

func (b *Base) Visible() bool { return Visible.Get(b.this) }
func (b *Base) Layer() int    { return Layer.Get(b.this) }

func (b *Base) Attribute(k Key) any { return b.attrs.Get(k) }

// HasAttribute reports whether k was set explicitly.
func (b *Base) HasAttribute(k Key) bool { return b.attrs.Has(k) }

func (b *Base) SetAttribute(k Key, v any) error {
	if !k.Valid(v) {
		return b.attrs.Set(k, v)
	}
	b.WillChange()
	old := b.attrs.Get(k)
	_ = b.attrs.Set(k, v)
	b.listeners.Fire(Event{
		Kind:     AttributeChanged,
		Source:   b.this,
		Figure:   b.this,
		Key:      k,
		OldValue: old,
		NewValue: v,
	})
	b.Changed()
	return nil
}

func (b *Base) BasicSetAttribute(k Key, v any) error {
	return b.attrs.Set(k, v)
}

func (b *Base) Attributes() AttributeSet { return b.attrs.Snapshot() }

func (b *Base) AttributesRestoreData() any { return b.attrs.Snapshot() }

// RestoreAttributesTo accepts data from AttributesRestoreData. Anything
// else is ignored.
func (b *Base) RestoreAttributesTo(data any) {
	if s, ok := data.(AttributeSet); ok {
		b.attrs.Restore(s)
	}
}

func (b *Base) WillChange() {
	if b.changingDepth == 0 {
		b.invalidated = b.this.DrawingArea()
	}
	b.changingDepth++
}

// IsChanging reports whether a WillChange block is open.
func (b *Base) IsChanging() bool { return b.changingDepth > 0 }

func (b *Base) Changed() {
	switch {
	case b.changingDepth > 1:
		b.changingDepth--
		return
	case b.changingDepth == 1:
		b.changingDepth = 0
	default:
		// Unbalanced Changed still notifies; nothing is known about the
		// previous area.
		b.invalidated = b.this.DrawingArea()
	}
	b.listeners.Fire(Event{
		Kind:   FigureChanged,
		Source: b.this,
		Figure: b.this,
		Area:   b.invalidated.Union(b.this.DrawingArea()),
	})
}

func (b *Base) Parent() Container { return b.parent }

func (b *Base) AddNotify(parent Container) { b.parent = parent }

func (b *Base) RemoveNotify(parent Container) {
	if b.parent == parent {
		b.parent = nil
	}
}

func (b *Base) AddFigureListener(l Listener)    { b.listeners.Add(l) }
func (b *Base) RemoveFigureListener(l Listener) { b.listeners.Remove(l) }

// ListenerCount returns the number of registered listeners.
func (b *Base) ListenerCount() int { return b.listeners.Len() }

func (b *Base) RequestRemove() {
	b.listeners.Fire(Event{Kind: RequestRemove, Source: b.this, Figure: b.this, Area: b.this.DrawingArea()})
}

// FireAreaInvalidated asks listeners to repaint area.
func (b *Base) FireAreaInvalidated(area geom.Rect) {
	b.listeners.Fire(Event{Kind: AreaInvalidated, Source: b.this, Figure: b.this, Area: area})
}

func (b *Base) fire(e Event) {
	b.listeners.Fire(e)
}

// toLocal maps p into the figure's untransformed coordinates.
func (b *Base) toLocal(p geom.Point) (geom.Point, bool) {
	m := Transform.Get(b.this)
	if m.IsIdentity() {
		return p, true
	}
	inv, err := m.Invert()
	if err != nil {
		return geom.Point{}, false
	}
	return inv.Apply(p), true
}

// TransformBy composes m onto the Transform attribute. It is a basic
// mutation; callers bracket it with WillChange and Changed.
func (b *Base) TransformBy(m geom.Matrix2D) {
	_ = b.attrs.Set(Transform, m.Multiply(Transform.Get(b.this)))
}

// paint fills and strokes a local path using the style attributes.
func (b *Base) paint(g render.Graphics, local geom.Path) {
	path := local
	if m := Transform.Get(b.this); !m.IsIdentity() {
		path = local.Transform(m)
	}
	opacity := Opacity.Get(b.this)
	if fill := FillColor.Get(b.this); fill != "" {
		g.FillPath(path, fill, opacity)
	}
	if stroke := StrokeColor.Get(b.this); stroke != "" {
		if w := StrokeWidth.Get(b.this); w > 0 {
			g.StrokePath(path, stroke, w, opacity)
		}
	}
}

// strokeTolerance is the hit distance around outlines in local units.
func (b *Base) strokeTolerance() float64 {
	return max(StrokeWidth.Get(b.this)/2, 2)
}
