// Package quadtree implements a spatial index mapping items to their
// bounding regions.
//
// Each entry is stored at the deepest node whose bounds fully contain its
// region, so an entry that straddles a split line stays in the parent.
// Entries outside the root bounds live in an outside list that is scanned
// linearly; once that list grows past MaxItems the tree re-roots to cover
// everything. Regions with a NaN or infinite component never take part in
// re-rooting and are only ever scanned linearly.
package quadtree

import (
	"github.com/inamate/drawcore/internal/geom"
)

const (
	DefaultMaxItems = 8
	DefaultMaxDepth = 12
)

// QuadTree is a region index. The zero value is not usable; call New.
type QuadTree[T comparable] struct {
	MaxItems int
	MaxDepth int

	root      *node[T]
	outside   map[T]geom.Rect
	nonFinite map[T]geom.Rect
	regions   map[T]geom.Rect
}

type node[T comparable] struct {
	bounds   geom.Rect
	depth    int
	items    map[T]geom.Rect
	children *[4]*node[T]
}

// New creates an empty tree whose root covers bounds.
func New[T comparable](bounds geom.Rect) *QuadTree[T] {
	return &QuadTree[T]{
		MaxItems: DefaultMaxItems,
		MaxDepth: DefaultMaxDepth,
		root:      newNode[T](bounds, 0),
		outside:   make(map[T]geom.Rect),
		nonFinite: make(map[T]geom.Rect),
		regions:   make(map[T]geom.Rect),
	}
}

func newNode[T comparable](bounds geom.Rect, depth int) *node[T] {
	return &node[T]{bounds: bounds, depth: depth, items: make(map[T]geom.Rect)}
}

// Bounds returns the current root bounds.
func (q *QuadTree[T]) Bounds() geom.Rect {
	return q.root.bounds
}

// Len returns the number of entries.
func (q *QuadTree[T]) Len() int {
	return len(q.regions)
}

// Contains reports whether item has an entry.
func (q *QuadTree[T]) Contains(item T) bool {
	_, ok := q.regions[item]
	return ok
}

// Region returns the stored region of item.
func (q *QuadTree[T]) Region(item T) (geom.Rect, bool) {
	r, ok := q.regions[item]
	return r, ok
}

// Items returns every indexed item in unspecified order.
func (q *QuadTree[T]) Items() []T {
	out := make([]T, 0, len(q.regions))
	for it := range q.regions {
		out = append(out, it)
	}
	return out
}

// Add inserts item with region. Adding an item that is already present
// replaces its stored region.
func (q *QuadTree[T]) Add(item T, region geom.Rect) {
	if _, ok := q.regions[item]; ok {
		q.Remove(item)
	}
	q.regions[item] = region
	if !region.IsFinite() {
		q.nonFinite[item] = region
		return
	}
	if !q.root.bounds.ContainsRect(region) {
		q.outside[item] = region
		if len(q.outside) > q.MaxItems {
			q.grow()
		}
		return
	}
	q.insert(q.root, item, region)
}

// Remove deletes the entry for item. It reports whether an entry existed.
func (q *QuadTree[T]) Remove(item T) bool {
	region, ok := q.regions[item]
	if !ok {
		return false
	}
	delete(q.regions, item)
	if _, out := q.outside[item]; out {
		delete(q.outside, item)
		return true
	}
	if _, bad := q.nonFinite[item]; bad {
		delete(q.nonFinite, item)
		return true
	}
	var path []*node[T]
	for n := q.root; n != nil; n = n.childFor(region) {
		path = append(path, n)
		if _, here := n.items[item]; here {
			delete(n.items, item)
			for i := len(path) - 1; i >= 0; i-- {
				if !path[i].collapse() {
					break
				}
			}
			return true
		}
	}
	// Not reachable when the invariants hold.
	return true
}

// Clear removes every entry, keeping the root bounds.
func (q *QuadTree[T]) Clear() {
	q.root = newNode[T](q.root.bounds, 0)
	q.outside = make(map[T]geom.Rect)
	q.nonFinite = make(map[T]geom.Rect)
	q.regions = make(map[T]geom.Rect)
}

// FindIntersects returns the items whose region intersects r.
func (q *QuadTree[T]) FindIntersects(r geom.Rect) []T {
	var out []T
	for _, list := range [2]map[T]geom.Rect{q.outside, q.nonFinite} {
		for it, reg := range list {
			if reg.Intersects(r) {
				out = append(out, it)
			}
		}
	}
	q.root.walk(func(n *node[T]) bool {
		if !n.bounds.Intersects(r) {
			return false
		}
		for it, reg := range n.items {
			if reg.Intersects(r) {
				out = append(out, it)
			}
		}
		return true
	})
	return out
}

// FindContains returns the items whose region contains p.
func (q *QuadTree[T]) FindContains(p geom.Point) []T {
	var out []T
	for _, list := range [2]map[T]geom.Rect{q.outside, q.nonFinite} {
		for it, reg := range list {
			if reg.ContainsPoint(p) {
				out = append(out, it)
			}
		}
	}
	q.root.walk(func(n *node[T]) bool {
		if !n.bounds.ContainsPoint(p) {
			return false
		}
		for it, reg := range n.items {
			if reg.ContainsPoint(p) {
				out = append(out, it)
			}
		}
		return true
	})
	return out
}

// FindInside returns the items whose region lies entirely inside r.
func (q *QuadTree[T]) FindInside(r geom.Rect) []T {
	var out []T
	for _, list := range [2]map[T]geom.Rect{q.outside, q.nonFinite} {
		for it, reg := range list {
			if r.ContainsRect(reg) {
				out = append(out, it)
			}
		}
	}
	q.root.walk(func(n *node[T]) bool {
		if !n.bounds.Intersects(r) {
			return false
		}
		for it, reg := range n.items {
			if r.ContainsRect(reg) {
				out = append(out, it)
			}
		}
		return true
	})
	return out
}

func (q *QuadTree[T]) insert(n *node[T], item T, region geom.Rect) {
	for {
		if n.children != nil {
			if c := n.childFor(region); c != nil {
				n = c
				continue
			}
			n.items[item] = region
			return
		}
		n.items[item] = region
		if len(n.items) > q.MaxItems && n.depth < q.MaxDepth {
			q.split(n)
		}
		return
	}
}

func (q *QuadTree[T]) split(n *node[T]) {
	b := n.bounds
	hw, hh := b.Width/2, b.Height/2
	d := n.depth + 1
	n.children = &[4]*node[T]{
		newNode[T](geom.R(b.X, b.Y, hw, hh), d),
		newNode[T](geom.R(b.X+hw, b.Y, hw, hh), d),
		newNode[T](geom.R(b.X, b.Y+hh, hw, hh), d),
		newNode[T](geom.R(b.X+hw, b.Y+hh, hw, hh), d),
	}
	old := n.items
	n.items = make(map[T]geom.Rect)
	for it, reg := range old {
		q.insert(n, it, reg)
	}
}

// collapse folds n's children back into n when they are all empty
// leaves. It reports whether n is now an empty leaf itself.
func (n *node[T]) collapse() bool {
	if n.children != nil {
		for _, c := range n.children {
			if c.children != nil || len(c.items) > 0 {
				return false
			}
		}
		n.children = nil
	}
	return len(n.items) == 0
}

// grow re-roots the tree so that it covers every finite region.
func (q *QuadTree[T]) grow() {
	bounds := q.root.bounds
	for _, reg := range q.outside {
		bounds = bounds.Union(reg)
	}
	all := q.regions
	q.root = newNode[T](bounds, 0)
	q.outside = make(map[T]geom.Rect)
	q.nonFinite = make(map[T]geom.Rect)
	q.regions = make(map[T]geom.Rect, len(all))
	for it, reg := range all {
		q.Add(it, reg)
	}
}

func (n *node[T]) childFor(region geom.Rect) *node[T] {
	if n.children == nil {
		return nil
	}
	for _, c := range n.children {
		if c.bounds.ContainsRect(region) {
			return c
		}
	}
	return nil
}

func (n *node[T]) walk(visit func(*node[T]) bool) {
	if !visit(n) {
		return
	}
	if n.children != nil {
		for _, c := range n.children {
			c.walk(visit)
		}
	}
}
