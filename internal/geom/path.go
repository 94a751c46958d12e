package geom

import (
	"encoding/json"
	"fmt"
	"math"
)

// Path operations. They match Canvas2D/SVG command letters.
const (
	OpMoveTo  = "M"
	OpLineTo  = "L"
	OpQuadTo  = "Q"
	OpCubicTo = "C"
	OpClose   = "Z"
)

// Segment is a single path command with its absolute points.
// It serializes as a flat array: ["M", x, y], ["C", x1, y1, x2, y2, x, y], ["Z"].
type Segment struct {
	Op     string
	Points []Point
}

// Path is a sequence of segments.
type Path []Segment

// MoveTo appends a move.
func (p Path) MoveTo(x, y float64) Path { return append(p, Segment{OpMoveTo, []Point{{x, y}}}) }

// LineTo appends a straight line.
func (p Path) LineTo(x, y float64) Path { return append(p, Segment{OpLineTo, []Point{{x, y}}}) }

// QuadTo appends a quadratic bezier.
func (p Path) QuadTo(cx, cy, x, y float64) Path {
	return append(p, Segment{OpQuadTo, []Point{{cx, cy}, {x, y}}})
}

// CubicTo appends a cubic bezier.
func (p Path) CubicTo(c1x, c1y, c2x, c2y, x, y float64) Path {
	return append(p, Segment{OpCubicTo, []Point{{c1x, c1y}, {c2x, c2y}, {x, y}}})
}

// Close appends a close-path command.
func (p Path) Close() Path { return append(p, Segment{Op: OpClose}) }

func pointsFor(op string) (int, error) {
	switch op {
	case OpMoveTo, OpLineTo:
		return 1, nil
	case OpQuadTo:
		return 2, nil
	case OpCubicTo:
		return 3, nil
	case OpClose:
		return 0, nil
	}
	return 0, fmt.Errorf("unknown path op %q", op)
}

// MarshalJSON writes the flat Canvas2D array form.
func (s Segment) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, 1+2*len(s.Points))
	out = append(out, s.Op)
	for _, pt := range s.Points {
		out = append(out, pt.X, pt.Y)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the flat Canvas2D array form.
func (s *Segment) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("empty path segment")
	}
	op, ok := raw[0].(string)
	if !ok {
		return fmt.Errorf("path segment op must be a string, got %T", raw[0])
	}
	n, err := pointsFor(op)
	if err != nil {
		return err
	}
	if len(raw) != 1+2*n {
		return fmt.Errorf("path op %q wants %d coordinates, got %d", op, 2*n, len(raw)-1)
	}
	var pts []Point
	if n > 0 {
		pts = make([]Point, n)
	}
	for i := range pts {
		x, okx := raw[1+2*i].(float64)
		y, oky := raw[2+2*i].(float64)
		if !okx || !oky {
			return fmt.Errorf("path op %q has non-numeric coordinate", op)
		}
		pts[i] = Point{x, y}
	}
	s.Op = op
	s.Points = pts
	return nil
}

// Transform returns a copy of the path with every point mapped through m.
func (p Path) Transform(m Matrix2D) Path {
	out := make(Path, len(p))
	for i, seg := range p {
		pts := make([]Point, len(seg.Points))
		for j, pt := range seg.Points {
			pts[j] = m.Apply(pt)
		}
		out[i] = Segment{Op: seg.Op, Points: pts}
	}
	return out
}

// Bounds returns the control-point bounding box of the path. Bezier
// control points are included, so the box may be larger than the curve.
func (p Path) Bounds() Rect {
	var minX, minY, maxX, maxY float64
	first := true
	for _, seg := range p {
		for _, pt := range seg.Points {
			if first {
				minX, maxX = pt.X, pt.X
				minY, maxY = pt.Y, pt.Y
				first = false
				continue
			}
			minX = math.Min(minX, pt.X)
			maxX = math.Max(maxX, pt.X)
			minY = math.Min(minY, pt.Y)
			maxY = math.Max(maxY, pt.Y)
		}
	}
	if first {
		return Rect{}
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Polyline is one flattened subpath.
type Polyline struct {
	Points []Point
	Closed bool
}

const flattenSteps = 16

// Flatten approximates curves with line segments and splits the path into
// subpaths.
func (p Path) Flatten() []Polyline {
	var out []Polyline
	var cur Polyline
	var last, start Point
	flush := func() {
		if len(cur.Points) > 0 {
			out = append(out, cur)
		}
		cur = Polyline{}
	}
	for _, seg := range p {
		switch seg.Op {
		case OpMoveTo:
			flush()
			last, start = seg.Points[0], seg.Points[0]
			cur.Points = append(cur.Points, last)
		case OpLineTo:
			if len(cur.Points) == 0 {
				cur.Points = append(cur.Points, last)
			}
			last = seg.Points[0]
			cur.Points = append(cur.Points, last)
		case OpQuadTo:
			if len(cur.Points) == 0 {
				cur.Points = append(cur.Points, last)
			}
			c, end := seg.Points[0], seg.Points[1]
			for i := 1; i <= flattenSteps; i++ {
				t := float64(i) / flattenSteps
				u := 1 - t
				cur.Points = append(cur.Points, Point{
					X: u*u*last.X + 2*u*t*c.X + t*t*end.X,
					Y: u*u*last.Y + 2*u*t*c.Y + t*t*end.Y,
				})
			}
			last = end
		case OpCubicTo:
			if len(cur.Points) == 0 {
				cur.Points = append(cur.Points, last)
			}
			c1, c2, end := seg.Points[0], seg.Points[1], seg.Points[2]
			for i := 1; i <= flattenSteps; i++ {
				t := float64(i) / flattenSteps
				u := 1 - t
				a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
				cur.Points = append(cur.Points, Point{
					X: a*last.X + b*c1.X + c*c2.X + d*end.X,
					Y: a*last.Y + b*c1.Y + c*c2.Y + d*end.Y,
				})
			}
			last = end
		case OpClose:
			cur.Closed = true
			last = start
			flush()
		}
	}
	flush()
	return out
}

// ContainsEvenOdd reports whether pt is inside the filled area of the
// polylines using the even-odd rule. Open subpaths are implicitly closed,
// as canvas fill does.
func ContainsEvenOdd(lines []Polyline, pt Point) bool {
	inside := false
	for _, pl := range lines {
		pts := pl.Points
		n := len(pts)
		if n < 3 {
			continue
		}
		for i, j := 0, n-1; i < n; j, i = i, i+1 {
			a, b := pts[i], pts[j]
			if (a.Y > pt.Y) != (b.Y > pt.Y) &&
				pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
				inside = !inside
			}
		}
	}
	return inside
}

// NearPolylines reports whether pt lies within tolerance of any segment.
func NearPolylines(lines []Polyline, pt Point, tolerance float64) bool {
	for _, pl := range lines {
		pts := pl.Points
		for i := 1; i < len(pts); i++ {
			if segmentDistance(pts[i-1], pts[i], pt) <= tolerance {
				return true
			}
		}
		if pl.Closed && len(pts) > 2 && segmentDistance(pts[len(pts)-1], pts[0], pt) <= tolerance {
			return true
		}
		if len(pts) == 1 && pts[0].Distance(pt) <= tolerance {
			return true
		}
	}
	return false
}

func segmentDistance(a, b, p Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a.Distance(p)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Distance(Point{X: a.X + t*dx, Y: a.Y + t*dy})
}
