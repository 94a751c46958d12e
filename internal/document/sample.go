package document

import (
	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
)

// NewSampleDrawing returns a 1280x720 drawing with a rectangle, an ellipse,
// a triangle and a small group, with both formats installed.
func NewSampleDrawing(opts ...drawing.Option) *drawing.Drawing {
	d := drawing.New(opts...)
	InstallFormats(d)
	d.SetCanvasSize(&geom.Dimension{Width: 1280, Height: 720})
	figure.Name.BasicSet(d, "Untitled")

	rect := figure.NewRect(200, 200, 200, 150)
	style(rect, "#e94560", "#000000")

	ellipse := figure.NewEllipse(640-120, 360-80, 240, 160)
	style(ellipse, "#0f3460", "#16213e")

	triangle := figure.NewPath(geom.Path{}.MoveTo(0, 150).LineTo(100, 0).LineTo(200, 150).Close())
	style(triangle, "#53d769", "#2d6a4f")
	triangle.TransformBy(geom.Translate(900, 200))

	body := figure.NewRect(-30, -50, 60, 100)
	style(body, "#f5a623", "#c78400")
	head := figure.NewEllipse(-20, -90, 40, 40)
	style(head, "#bd10e0", "#8b0ba8")
	group := figure.NewGroup(body, head)
	group.TransformBy(geom.Translate(500, 450))
	figure.Name.BasicSet(group, "Spinner")

	for _, f := range []figure.Figure{rect, ellipse, triangle, group} {
		d.BasicAdd(f)
	}
	return d
}

func style(f figure.Figure, fill, stroke string) {
	figure.FillColor.BasicSet(f, fill)
	figure.StrokeColor.BasicSet(f, stroke)
	figure.StrokeWidth.BasicSet(f, 2.0)
}
