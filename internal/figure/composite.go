package figure

import (
	"cmp"
	"slices"

	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/quadtree"
	"github.com/inamate/drawcore/internal/render"
)

// Composite owns an ordered child list and, optionally, a quad-tree over
// the children's drawing areas. Children order is z-order; it is re-sorted
// by Layer lazily (stable, so equal layers keep their relative order)
// before anything that exposes or depends on order.
//
// Group and drawing.Drawing embed Composite and call InitComposite.
type Composite struct {
	Base

	self         Container
	children     []Figure
	index        *quadtree.QuadTree[Figure]
	needsSorting bool
	handler      *childHandler
}

// InitComposite binds the composite to the container embedding it.
func (c *Composite) InitComposite(self Container, id string) {
	c.Init(self, id)
	c.self = self
	c.handler = &childHandler{owner: c}
}

// childHandler is the listener a composite registers on each child.
type childHandler struct {
	owner *Composite
}

func (h *childHandler) HandleFigureEvent(e Event) {
	c := h.owner
	switch e.Kind {
	case FigureChanged:
		c.childChanged(e.Figure, e.Area)
	case AreaInvalidated:
		c.FireAreaInvalidated(e.Area)
	case RequestRemove:
		c.Remove(e.Figure)
	}
}

// childRefresher is implemented by composites: a nested composite whose
// geometry changed asks its parent to re-index it without an event.
type childRefresher interface {
	refreshChild(f Figure)
}

func (c *Composite) childChanged(f Figure, area geom.Rect) {
	if !c.HasChild(f) {
		return
	}
	if c.index != nil {
		c.index.Add(f, f.DrawingArea())
	}
	c.needsSorting = true
	c.FireAreaInvalidated(area)
	c.propagate()
}

func (c *Composite) refreshChild(f Figure) {
	if c.index != nil && c.index.Contains(f) {
		c.index.Add(f, f.DrawingArea())
	}
	c.propagate()
}

func (c *Composite) propagate() {
	if r, ok := c.parent.(childRefresher); ok {
		r.refreshChild(c.self)
	}
}

// Indexing.

// EnableIndex installs a quad-tree rooted at bounds and indexes the current
// children. Entries outside bounds are still found; the tree grows.
func (c *Composite) EnableIndex(bounds geom.Rect) {
	c.index = quadtree.New[Figure](bounds)
	c.RebuildIndex()
}

// Indexed reports whether the composite keeps a spatial index.
func (c *Composite) Indexed() bool { return c.index != nil }

// IndexBounds returns the root bounds of the index.
func (c *Composite) IndexBounds() (geom.Rect, bool) {
	if c.index == nil {
		return geom.Rect{}, false
	}
	return c.index.Bounds(), true
}

// RebuildIndex re-indexes every child from its current drawing area. Call
// it after bulk changes made behind the composite's back.
func (c *Composite) RebuildIndex() {
	if c.index == nil {
		return
	}
	c.index.Clear()
	for _, f := range c.children {
		c.index.Add(f, f.DrawingArea())
	}
}

// CheckIndex verifies that the index holds exactly one entry per child,
// keyed by the child's current drawing area.
func (c *Composite) CheckIndex() error {
	if c.index == nil {
		return nil
	}
	for _, f := range c.children {
		region, ok := c.index.Region(f)
		if !ok {
			return &IndexDesyncError{Composite: c.id, Figure: f.ID(), Reason: "child missing from index"}
		}
		if region != f.DrawingArea() {
			return &IndexDesyncError{Composite: c.id, Figure: f.ID(), Reason: "stale region"}
		}
	}
	if n := c.index.Len(); n != len(c.children) {
		for _, f := range c.index.Items() {
			if !slices.Contains(c.children, f) {
				return &IndexDesyncError{Composite: c.id, Figure: f.ID(), Reason: "index entry for non-child"}
			}
		}
	}
	return nil
}

// Ordering.

func (c *Composite) ensureSorted() {
	if !c.needsSorting {
		return
	}
	slices.SortStableFunc(c.children, func(a, b Figure) int {
		return cmp.Compare(a.Layer(), b.Layer())
	})
	c.needsSorting = false
}

// Sort re-establishes layer order immediately.
func (c *Composite) Sort() {
	c.needsSorting = true
	c.ensureSorted()
}

// Children returns the children back to front.
func (c *Composite) Children() []Figure {
	c.ensureSorted()
	return slices.Clone(c.children)
}

// FiguresFrontToBack returns the children front-most first.
func (c *Composite) FiguresFrontToBack() []Figure {
	out := c.Children()
	slices.Reverse(out)
	return out
}

func (c *Composite) ChildCount() int { return len(c.children) }

func (c *Composite) Child(i int) Figure {
	c.ensureSorted()
	return c.children[i]
}

func (c *Composite) IndexOf(f Figure) int {
	c.ensureSorted()
	return slices.Index(c.children, f)
}

func (c *Composite) HasChild(f Figure) bool {
	return slices.Contains(c.children, f)
}

// zOrdered filters the children to those in set, back to front.
func (c *Composite) zOrdered(set []Figure) []Figure {
	if len(set) < 2 {
		return set
	}
	c.ensureSorted()
	member := make(map[Figure]struct{}, len(set))
	for _, f := range set {
		member[f] = struct{}{}
	}
	out := make([]Figure, 0, len(set))
	for _, f := range c.children {
		if _, ok := member[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Silent mutation.

func (c *Composite) BasicAdd(f Figure) {
	c.BasicAddAt(len(c.children), f)
}

// BasicAddAt inserts f at i (clamped), detaching it from any previous
// parent through that parent's basic path.
func (c *Composite) BasicAddAt(i int, f Figure) {
	if p := f.Parent(); p != nil {
		p.BasicRemove(f)
	}
	c.ensureSorted()
	i = min(max(i, 0), len(c.children))
	c.children = slices.Insert(c.children, i, f)
	f.AddNotify(c.self)
	f.AddFigureListener(c.handler)
	if c.index != nil {
		c.index.Add(f, f.DrawingArea())
	}
	c.needsSorting = true
}

// BasicRemove removes f and returns its former index, or -1 when f is not
// a child.
func (c *Composite) BasicRemove(f Figure) int {
	i := c.IndexOf(f)
	if i < 0 {
		return -1
	}
	c.BasicRemoveAt(i)
	return i
}

// BasicRemoveAt removes the child at i. It panics with *IndexDesyncError if
// the index has lost track of the child.
func (c *Composite) BasicRemoveAt(i int) Figure {
	c.ensureSorted()
	f := c.children[i]
	if c.index != nil && !c.index.Remove(f) {
		panic(&IndexDesyncError{Composite: c.id, Figure: f.ID(), Reason: "child missing from index"})
	}
	c.children = slices.Delete(c.children, i, i+1)
	f.RemoveFigureListener(c.handler)
	f.RemoveNotify(c.self)
	return f
}

func (c *Composite) BasicRemoveAll() {
	for len(c.children) > 0 {
		c.BasicRemoveAt(len(c.children) - 1)
	}
}

// Observed mutation.

func (c *Composite) Add(f Figure) {
	c.AddAt(len(c.children), f)
}

// AddAt inserts f at i and fires one FigureAdded event. A figure owned by
// another container is first removed from it through the observed path.
func (c *Composite) AddAt(i int, f Figure) {
	if p := f.Parent(); p != nil && p != c.self {
		p.Remove(f)
	}
	c.BasicAddAt(i, f)
	c.fire(Event{
		Kind:   FigureAdded,
		Source: c.self,
		Figure: f,
		Area:   f.DrawingArea(),
		Index:  slices.Index(c.children, f),
	})
}

// Remove removes f and fires one FigureRemoved event. It reports false and
// fires nothing when f is not a child.
func (c *Composite) Remove(f Figure) bool {
	i := c.BasicRemove(f)
	if i < 0 {
		return false
	}
	c.fireRemoved(f, i)
	return true
}

func (c *Composite) RemoveAt(i int) Figure {
	f := c.BasicRemoveAt(i)
	c.fireRemoved(f, i)
	return f
}

// RemoveAll removes children front to back, one event each.
func (c *Composite) RemoveAll() {
	for n := len(c.children); n > 0; n = len(c.children) {
		c.RemoveAt(n - 1)
	}
}

func (c *Composite) fireRemoved(f Figure, i int) {
	c.fire(Event{
		Kind:   FigureRemoved,
		Source: c.self,
		Figure: f,
		Area:   f.DrawingArea(),
		Index:  i,
	})
}

// Arrange.

// BringToFront moves f to the end of the z-order. It is a no-op when f is
// not a child.
func (c *Composite) BringToFront(f Figure) {
	c.MoveTo(f, len(c.children)-1)
}

// SendToBack moves f to the start of the z-order.
func (c *Composite) SendToBack(f Figure) {
	c.MoveTo(f, 0)
}

// MoveTo moves child f to position i (clamped) and invalidates its area.
// The index is keyed by geometry and is left alone.
func (c *Composite) MoveTo(f Figure, i int) bool {
	from := c.IndexOf(f)
	if from < 0 {
		return false
	}
	i = min(max(i, 0), len(c.children)-1)
	c.children = slices.Delete(c.children, from, from+1)
	c.children = slices.Insert(c.children, i, f)
	c.needsSorting = true
	c.FireAreaInvalidated(f.DrawingArea())
	return true
}

// Hit testing.

func (c *Composite) candidatesAt(p geom.Point) []Figure {
	if c.index != nil {
		return c.index.FindContains(p)
	}
	var out []Figure
	for _, f := range c.children {
		if f.DrawingArea().ContainsPoint(p) {
			out = append(out, f)
		}
	}
	return out
}

func hit(f Figure, p geom.Point) bool {
	return f.Visible() && f.Contains(p)
}

// FindFigure returns the front-most visible child containing p, or nil.
func (c *Composite) FindFigure(p geom.Point) Figure {
	cands := c.candidatesAt(p)
	switch len(cands) {
	case 0:
		return nil
	case 1:
		if hit(cands[0], p) {
			return cands[0]
		}
		return nil
	}
	ordered := c.zOrdered(cands)
	for i := len(ordered) - 1; i >= 0; i-- {
		if hit(ordered[i], p) {
			return ordered[i]
		}
	}
	return nil
}

// FindFigureExcept is FindFigure skipping the figures in ignore.
func (c *Composite) FindFigureExcept(p geom.Point, ignore ...Figure) Figure {
	ordered := c.zOrdered(c.candidatesAt(p))
	for i := len(ordered) - 1; i >= 0; i-- {
		f := ordered[i]
		if !slices.Contains(ignore, f) && hit(f, p) {
			return f
		}
	}
	return nil
}

// FindFigureBehind returns the front-most figure containing p that lies
// behind every figure in refs. The refs are counted off in z-order whether
// or not they cover p.
func (c *Composite) FindFigureBehind(p geom.Point, refs ...Figure) Figure {
	candidates := make(map[Figure]struct{})
	for _, f := range c.candidatesAt(p) {
		candidates[f] = struct{}{}
	}
	inFront := len(refs)
	for _, f := range c.FiguresFrontToBack() {
		if inFront == 0 {
			if _, ok := candidates[f]; ok && hit(f, p) {
				return f
			}
		}
		if slices.Contains(refs, f) {
			inFront--
		}
	}
	return nil
}

// FindFigureInside returns the deepest visible figure containing p.
func (c *Composite) FindFigureInside(p geom.Point) Figure {
	ordered := c.zOrdered(c.candidatesAt(p))
	for i := len(ordered) - 1; i >= 0; i-- {
		f := ordered[i]
		if !f.Visible() {
			continue
		}
		if found := f.FindFigureInside(p); found != nil {
			return found
		}
	}
	return nil
}

// Region queries.

// FindFigures returns the children whose drawing area intersects r, back
// to front.
func (c *Composite) FindFigures(r geom.Rect) []Figure {
	if c.index != nil {
		return c.zOrdered(c.index.FindIntersects(r))
	}
	var out []Figure
	for _, f := range c.Children() {
		if f.DrawingArea().Intersects(r) {
			out = append(out, f)
		}
	}
	return out
}

// FindFiguresWithin returns the visible children whose bounds lie inside r,
// back to front.
func (c *Composite) FindFiguresWithin(r geom.Rect) []Figure {
	var out []Figure
	for _, f := range c.FindFigures(r) {
		if f.Visible() && r.ContainsRect(f.Bounds()) {
			out = append(out, f)
		}
	}
	return out
}

// ChildrenInside returns the children whose drawing area lies inside r,
// back to front.
func (c *Composite) ChildrenInside(r geom.Rect) []Figure {
	if c.index != nil {
		return c.zOrdered(c.index.FindInside(r))
	}
	var out []Figure
	for _, f := range c.Children() {
		if r.ContainsRect(f.DrawingArea()) {
			out = append(out, f)
		}
	}
	return out
}

// Figure behavior.

func (c *Composite) Bounds() geom.Rect {
	var e geom.Extent
	for _, f := range c.children {
		e.Add(f.Bounds())
	}
	return e.Rect()
}

func (c *Composite) DrawingArea() geom.Rect {
	var e geom.Extent
	for _, f := range c.children {
		e.Add(f.DrawingArea())
	}
	return e.Rect()
}

func (c *Composite) Contains(p geom.Point) bool {
	return c.FindFigure(p) != nil
}

// TransformBy transforms every child and re-indexes them.
func (c *Composite) TransformBy(m geom.Matrix2D) {
	for _, f := range c.children {
		f.TransformBy(m)
	}
	c.RebuildIndex()
}

// Draw paints visible children back to front. With a clip region only the
// children intersecting it are drawn.
func (c *Composite) Draw(g render.Graphics) {
	var figs []Figure
	if clip, ok := g.ClipBounds(); ok {
		figs = c.FindFigures(clip)
	} else {
		c.ensureSorted()
		figs = c.children
	}
	tagger, _ := g.(render.Tagger)
	for _, f := range figs {
		if !f.Visible() {
			continue
		}
		if tagger != nil {
			tagger.Tag(f.ID())
		}
		f.Draw(g)
	}
}

// CloneInto copies attributes and deep clones of the children into dst,
// which must be initialised. An index is recreated with the same root
// bounds and rebuilt from the clones.
func (c *Composite) CloneInto(dst *Composite) {
	dst.attrs.Restore(c.attrs.Snapshot())
	c.ensureSorted()
	for _, f := range c.children {
		dst.BasicAdd(f.Clone())
	}
	if c.index != nil {
		dst.EnableIndex(c.index.Bounds())
	}
}

// FindByID searches c and its descendants depth-first for the figure
// with the given id.
func FindByID(c Container, id string) Figure {
	for _, f := range c.Children() {
		if f.ID() == id {
			return f
		}
		if sub, ok := f.(Container); ok {
			if found := FindByID(sub, id); found != nil {
				return found
			}
		}
	}
	return nil
}
