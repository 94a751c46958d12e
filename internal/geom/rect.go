package geom

import "math"

// Point is a position in drawing coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p translated by (dx, dy).
func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Distance returns the euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Dimension is a width/height pair.
type Dimension struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect represents an axis-aligned bounding box.
// Edges are inclusive, so a rect with zero width or height still
// intersects and contains points on its boundary.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Infinite covers every coordinate a figure can sensibly have.
var Infinite = Rect{
	X:      -math.MaxFloat64 / 4,
	Y:      -math.MaxFloat64 / 4,
	Width:  math.MaxFloat64 / 2,
	Height: math.MaxFloat64 / 2,
}

// R returns a new rect.
func R(x, y, w, h float64) Rect {
	return Rect{X: x, Y: y, Width: w, Height: h}
}

// RectFromPoints returns the smallest rect containing both points.
func RectFromPoints(a, b Point) Rect {
	minX, maxX := min(a.X, b.X), max(a.X, b.X)
	minY, maxY := min(a.Y, b.Y), max(a.Y, b.Y)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// MaxX returns the right edge.
func (r Rect) MaxX() float64 { return r.X + r.Width }

// MaxY returns the bottom edge.
func (r Rect) MaxY() float64 { return r.Y + r.Height }

// Contains checks if a point is inside the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// ContainsPoint is Contains for a Point.
func (r Rect) ContainsPoint(p Point) bool {
	return r.Contains(p.X, p.Y)
}

// ContainsRect reports whether other lies completely inside r.
func (r Rect) ContainsRect(other Rect) bool {
	return other.X >= r.X && other.Y >= r.Y &&
		other.MaxX() <= r.MaxX() && other.MaxY() <= r.MaxY()
}

// Intersects reports whether r and other share at least one point.
func (r Rect) Intersects(other Rect) bool {
	return other.X <= r.MaxX() && r.X <= other.MaxX() &&
		other.Y <= r.MaxY() && r.Y <= other.MaxY()
}

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Union returns the smallest rect containing both rects. Degenerate
// (zero width or height) rects still count, since a horizontal line
// occupies space in the index.
func (r Rect) Union(other Rect) Rect {
	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.MaxX(), other.MaxX())
	maxY := max(r.MaxY(), other.MaxY())

	return Rect{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

// IsFinite reports whether every component of r is a finite number.
func (r Rect) IsFinite() bool {
	for _, v := range [4]float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Extent accumulates the union of rects. The zero value holds nothing, so
// a rect at the origin is not confused with "no area".
type Extent struct {
	r  Rect
	ok bool
}

func (e *Extent) Add(r Rect) {
	if !e.ok {
		e.r, e.ok = r, true
		return
	}
	e.r = e.r.Union(r)
}

func (e Extent) Empty() bool { return !e.ok }

// Rect returns the accumulated union, or the zero Rect when empty.
func (e Extent) Rect() Rect { return e.r }

func (e *Extent) Reset() { *e = Extent{} }

// Grow returns r expanded by dx on the left and right and dy on the top
// and bottom.
func (r Rect) Grow(dx, dy float64) Rect {
	return Rect{X: r.X - dx, Y: r.Y - dy, Width: r.Width + 2*dx, Height: r.Height + 2*dy}
}

// Translate returns r moved by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, Width: r.Width, Height: r.Height}
}

// Center returns the center point of the rect.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}
