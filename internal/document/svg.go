package document

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
)

const svgNS = "http://www.w3.org/2000/svg"

// SVGFormat imports and exports a subset of SVG: rect, circle, ellipse,
// line, path and g elements with fill, stroke, opacity, visibility and
// transform. Layer and name are not carried.
type SVGFormat struct{}

func (SVGFormat) Name() string { return "svg" }

// svgNode is a generic element; attribute order is kept.
type svgNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []svgNode  `xml:",any"`
}

func (n *svgNode) set(name, value string) {
	n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

func (n *svgNode) setFloat(name string, v float64) {
	n.set(name, formatFloat(v))
}

func (n *svgNode) get(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

var errNonFinite = errors.New("non-finite number")

// parseNumber parses an SVG length, dropping a px unit. NaN and infinities
// are rejected.
func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "px"), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w %q", errNonFinite, s)
	}
	return v, nil
}

// floats reads the named attributes. Absent or malformed values read as
// zero; non-finite values are an error.
func (n *svgNode) floats(names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		s, ok := n.get(name)
		if !ok {
			continue
		}
		v, err := parseNumber(s)
		if errors.Is(err, errNonFinite) {
			return nil, fmt.Errorf("%s %s: %w", n.XMLName.Local, name, err)
		}
		out[i] = v
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Write.

func (SVGFormat) Write(w io.Writer, d *drawing.Drawing) error {
	root := svgNode{XMLName: xml.Name{Local: "svg"}}
	root.set("xmlns", svgNS)
	if size, ok := d.CanvasSize(); ok {
		root.setFloat("width", size.Width)
		root.setFloat("height", size.Height)
		root.set("viewBox", fmt.Sprintf("0 0 %s %s", formatFloat(size.Width), formatFloat(size.Height)))
	} else if area := d.DrawingArea(); !area.IsEmpty() {
		root.set("viewBox", fmt.Sprintf("%s %s %s %s",
			formatFloat(area.X), formatFloat(area.Y), formatFloat(area.Width), formatFloat(area.Height)))
	}
	for _, f := range d.Children() {
		n, err := encodeSVG(f)
		if err != nil {
			return fmt.Errorf("write svg: %w", err)
		}
		root.Children = append(root.Children, n)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func encodeSVG(f figure.Figure) (svgNode, error) {
	var n svgNode
	switch v := f.(type) {
	case *figure.RectFigure:
		n.XMLName.Local = "rect"
		n.setFloat("x", v.Frame.X)
		n.setFloat("y", v.Frame.Y)
		n.setFloat("width", v.Frame.Width)
		n.setFloat("height", v.Frame.Height)
	case *figure.EllipseFigure:
		n.XMLName.Local = "ellipse"
		cx, cy := v.Frame.Center()
		n.setFloat("cx", cx)
		n.setFloat("cy", cy)
		n.setFloat("rx", v.Frame.Width/2)
		n.setFloat("ry", v.Frame.Height/2)
	case *figure.PathFigure:
		n.XMLName.Local = "path"
		n.set("d", FormatPathData(v.Segments))
	case figure.Container:
		n.XMLName.Local = "g"
		for _, child := range v.Children() {
			cn, err := encodeSVG(child)
			if err != nil {
				return svgNode{}, err
			}
			n.Children = append(n.Children, cn)
		}
	default:
		return svgNode{}, fmt.Errorf("%s (%T): %w", f.ID(), f, ErrUnknownType)
	}
	// id goes first for readability.
	n.Attrs = append([]xml.Attr{{Name: xml.Name{Local: "id"}, Value: f.ID()}}, n.Attrs...)

	if _, isGroup := f.(figure.Container); !isGroup {
		n.set("fill", orNone(figure.FillColor.Get(f)))
		n.set("stroke", orNone(figure.StrokeColor.Get(f)))
		n.setFloat("stroke-width", figure.StrokeWidth.Get(f))
	}
	if o := figure.Opacity.Get(f); o != 1 {
		n.setFloat("opacity", o)
	}
	if !f.Visible() {
		n.set("visibility", "hidden")
	}
	if m := figure.Transform.Get(f); !m.IsIdentity() {
		n.set("transform", fmt.Sprintf("matrix(%s %s %s %s %s %s)",
			formatFloat(m[0]), formatFloat(m[1]), formatFloat(m[2]),
			formatFloat(m[3]), formatFloat(m[4]), formatFloat(m[5])))
	}
	return n, nil
}

func orNone(color string) string {
	if color == "" {
		return "none"
	}
	return color
}

// Read.

// Read appends the supported elements of an SVG document to d.
// Unsupported elements are skipped.
func (SVGFormat) Read(r io.Reader, d *drawing.Drawing) error {
	var root svgNode
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return fmt.Errorf("read svg: %w", err)
	}
	if root.XMLName.Local != "svg" {
		return fmt.Errorf("read svg: root element is %q", root.XMLName.Local)
	}
	size, err := root.floats("width", "height")
	if err != nil {
		return fmt.Errorf("read svg: %w", err)
	}
	if w, h := size[0], size[1]; w > 0 && h > 0 {
		d.SetCanvasSize(&geom.Dimension{Width: w, Height: h})
	}
	for i := range root.Children {
		f, err := decodeSVG(&root.Children[i])
		if err != nil {
			return fmt.Errorf("read svg: %w", err)
		}
		if f != nil {
			d.BasicAdd(f)
		}
	}
	return nil
}

func decodeSVG(n *svgNode) (figure.Figure, error) {
	id, _ := n.get("id")
	var f figure.Figure
	switch n.XMLName.Local {
	case "rect":
		v, err := n.floats("x", "y", "width", "height")
		if err != nil {
			return nil, err
		}
		r := newFigure[*figure.RectFigure](TypeRect, id)
		r.Frame = geom.R(v[0], v[1], v[2], v[3])
		f = r
	case "circle":
		v, err := n.floats("cx", "cy", "r")
		if err != nil {
			return nil, err
		}
		cx, cy, rad := v[0], v[1], v[2]
		e := newFigure[*figure.EllipseFigure](TypeEllipse, id)
		e.Frame = geom.R(cx-rad, cy-rad, 2*rad, 2*rad)
		f = e
	case "ellipse":
		v, err := n.floats("cx", "cy", "rx", "ry")
		if err != nil {
			return nil, err
		}
		cx, cy, rx, ry := v[0], v[1], v[2], v[3]
		e := newFigure[*figure.EllipseFigure](TypeEllipse, id)
		e.Frame = geom.R(cx-rx, cy-ry, 2*rx, 2*ry)
		f = e
	case "line":
		v, err := n.floats("x1", "y1", "x2", "y2")
		if err != nil {
			return nil, err
		}
		p := newFigure[*figure.PathFigure](TypePath, id)
		p.Segments = geom.Path{}.MoveTo(v[0], v[1]).LineTo(v[2], v[3])
		f = p
	case "path":
		data, _ := n.get("d")
		segs, err := ParsePathData(data)
		if err != nil {
			return nil, fmt.Errorf("path %s: %w", id, err)
		}
		p := newFigure[*figure.PathFigure](TypePath, id)
		p.Segments = segs
		f = p
	case "g":
		g := newFigure[*figure.Group](TypeGroup, id)
		for i := range n.Children {
			child, err := decodeSVG(&n.Children[i])
			if err != nil {
				return nil, err
			}
			if child != nil {
				g.BasicAdd(child)
			}
		}
		f = g
	default:
		return nil, nil
	}
	if err := applySVGStyle(f, n); err != nil {
		return nil, fmt.Errorf("%s %s: %w", n.XMLName.Local, id, err)
	}
	return f, nil
}

func newFigure[T figure.Figure](tag, id string) T {
	f, _ := DefaultRegistry.New(tag, id)
	return f.(T)
}

// styleOf merges presentation attributes with the style attribute, which
// wins.
func styleOf(n *svgNode) map[string]string {
	style := map[string]string{}
	for _, a := range n.Attrs {
		style[a.Name.Local] = strings.TrimSpace(a.Value)
	}
	if s, ok := style["style"]; ok {
		for _, decl := range strings.Split(s, ";") {
			k, v, ok := strings.Cut(decl, ":")
			if ok {
				style[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
		}
	}
	return style
}

func applySVGStyle(f figure.Figure, n *svgNode) error {
	style := styleOf(n)
	_, isGroup := f.(figure.Container)
	if !isGroup {
		// SVG fills black and strokes nothing unless told otherwise.
		fill, stroke := "#000000", ""
		if v, ok := style["fill"]; ok {
			fill = noneToEmpty(v)
		}
		if v, ok := style["stroke"]; ok {
			stroke = noneToEmpty(v)
		}
		figure.FillColor.BasicSet(f, fill)
		figure.StrokeColor.BasicSet(f, stroke)
		if v, ok := style["stroke-width"]; ok {
			w, err := parseNumber(v)
			if err != nil {
				return fmt.Errorf("stroke-width %q: %w", v, err)
			}
			figure.StrokeWidth.BasicSet(f, w)
		}
	}
	if v, ok := style["opacity"]; ok {
		o, err := parseNumber(v)
		if err != nil {
			return fmt.Errorf("opacity %q: %w", v, err)
		}
		figure.Opacity.BasicSet(f, o)
	}
	if style["visibility"] == "hidden" || style["display"] == "none" {
		figure.Visible.BasicSet(f, false)
	}
	if v, ok := style["transform"]; ok {
		m, err := ParseTransform(v)
		if err != nil {
			return err
		}
		if isGroup {
			f.TransformBy(m)
		} else if !m.IsIdentity() {
			figure.Transform.BasicSet(f, m)
		}
	}
	return nil
}

func noneToEmpty(v string) string {
	if v == "none" {
		return ""
	}
	return v
}

var (
	transformRe = regexp.MustCompile(`(matrix|translate|scale|rotate)\s*\(([^)]*)\)`)
	pathRe      = regexp.MustCompile(`([MmLlHhVvCcQqZz])([^MmLlHhVvCcQqZz]*)`)
)

// ParseTransform parses an SVG transform list. Functions apply right to
// left, as in SVG.
func ParseTransform(s string) (geom.Matrix2D, error) {
	m := geom.Identity()
	for _, match := range transformRe.FindAllStringSubmatch(s, -1) {
		args := parseCoords(match[2])
		var next geom.Matrix2D
		switch match[1] {
		case "matrix":
			if len(args) != 6 {
				return m, fmt.Errorf("matrix needs 6 values, got %d", len(args))
			}
			copy(next[:], args)
		case "translate":
			switch len(args) {
			case 1:
				next = geom.Translate(args[0], 0)
			case 2:
				next = geom.Translate(args[0], args[1])
			default:
				return m, fmt.Errorf("translate needs 1 or 2 values, got %d", len(args))
			}
		case "scale":
			switch len(args) {
			case 1:
				next = geom.Scale(args[0], args[0])
			case 2:
				next = geom.Scale(args[0], args[1])
			default:
				return m, fmt.Errorf("scale needs 1 or 2 values, got %d", len(args))
			}
		case "rotate":
			if len(args) != 1 {
				return m, fmt.Errorf("rotate needs 1 value, got %d", len(args))
			}
			next = geom.RotateDegrees(args[0])
		}
		m = m.Multiply(next)
	}
	return m, nil
}

// ParsePathData parses SVG path data with absolute and relative
// M, L, H, V, C, Q and Z commands. Coordinates after a command repeat it.
func ParsePathData(d string) (geom.Path, error) {
	var p geom.Path
	var cur, start geom.Point
	for _, match := range pathRe.FindAllStringSubmatch(strings.TrimSpace(d), -1) {
		cmd := match[1]
		args := parseCoords(match[2])
		rel := cmd == strings.ToLower(cmd)
		at := func(x, y float64) geom.Point {
			if rel {
				return geom.Pt(cur.X+x, cur.Y+y)
			}
			return geom.Pt(x, y)
		}

		switch strings.ToUpper(cmd) {
		case "Z":
			p = p.Close()
			cur = start
		case "M", "L":
			if len(args) == 0 || len(args)%2 != 0 {
				return nil, fmt.Errorf("%s: need coordinate pairs, got %d values", cmd, len(args))
			}
			for i := 0; i < len(args); i += 2 {
				pt := at(args[i], args[i+1])
				if i == 0 && strings.ToUpper(cmd) == "M" {
					p = p.MoveTo(pt.X, pt.Y)
					start = pt
				} else {
					p = p.LineTo(pt.X, pt.Y)
				}
				cur = pt
			}
		case "H", "V":
			if len(args) == 0 {
				return nil, fmt.Errorf("%s: missing value", cmd)
			}
			for _, v := range args {
				x, y := cur.X, cur.Y
				switch {
				case cmd == "H":
					x = v
				case cmd == "h":
					x += v
				case cmd == "V":
					y = v
				default:
					y += v
				}
				p = p.LineTo(x, y)
				cur = geom.Pt(x, y)
			}
		case "C":
			if len(args) == 0 || len(args)%6 != 0 {
				return nil, fmt.Errorf("%s: need 6 values per curve, got %d", cmd, len(args))
			}
			for i := 0; i < len(args); i += 6 {
				c1, c2, end := at(args[i], args[i+1]), at(args[i+2], args[i+3]), at(args[i+4], args[i+5])
				p = p.CubicTo(c1.X, c1.Y, c2.X, c2.Y, end.X, end.Y)
				cur = end
			}
		case "Q":
			if len(args) == 0 || len(args)%4 != 0 {
				return nil, fmt.Errorf("%s: need 4 values per curve, got %d", cmd, len(args))
			}
			for i := 0; i < len(args); i += 4 {
				c, end := at(args[i], args[i+1]), at(args[i+2], args[i+3])
				p = p.QuadTo(c.X, c.Y, end.X, end.Y)
				cur = end
			}
		}
	}
	if len(p) > 0 && p[0].Op != geom.OpMoveTo {
		return nil, fmt.Errorf("path data must start with a moveto")
	}
	return p, nil
}

func parseCoords(s string) []float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", " ")
	var coords []float64
	for _, part := range strings.Fields(s) {
		if v, err := parseNumber(part); err == nil {
			coords = append(coords, v)
		}
	}
	return coords
}

// FormatPathData writes p as absolute SVG path data.
func FormatPathData(p geom.Path) string {
	var b strings.Builder
	for i, seg := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(seg.Op)
		for _, pt := range seg.Points {
			b.WriteByte(' ')
			b.WriteString(formatFloat(pt.X))
			b.WriteByte(' ')
			b.WriteString(formatFloat(pt.Y))
		}
	}
	return b.String()
}
