package geom

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectIntersectsInclusive(t *testing.T) {
	a := R(0, 0, 10, 10)
	assert.True(t, a.Intersects(R(10, 10, 5, 5)), "touching corners intersect")
	assert.True(t, a.Intersects(R(5, 5, 0, 0)), "degenerate rect inside")
	assert.False(t, a.Intersects(R(10.5, 0, 5, 5)))
	assert.True(t, R(0, 5, 20, 0).Intersects(R(5, 0, 0, 20)), "crossing lines")
}

func TestRectContainsRect(t *testing.T) {
	outer := R(0, 0, 20, 20)
	assert.True(t, outer.ContainsRect(R(0, 0, 20, 20)))
	assert.True(t, outer.ContainsRect(R(5, 5, 1, 1)))
	assert.False(t, outer.ContainsRect(R(15, 15, 10, 1)))
}

func TestRectUnionKeepsLines(t *testing.T) {
	u := R(0, 0, 10, 0).Union(R(5, 5, 0, 10))
	assert.Equal(t, R(0, 0, 10, 15), u)
	assert.Equal(t, R(0, 0, 4, 6), Rect{}.Union(R(1, 2, 3, 4)))
}

func TestExtentKeepsOriginPoint(t *testing.T) {
	var e Extent
	assert.True(t, e.Empty())
	assert.Equal(t, Rect{}, e.Rect())

	e.Add(R(0, 0, 0, 0))
	assert.False(t, e.Empty())
	e.Add(R(5, 5, 5, 5))
	assert.Equal(t, R(0, 0, 10, 10), e.Rect())

	e.Reset()
	e.Add(R(5, 5, 5, 5))
	assert.Equal(t, R(5, 5, 5, 5), e.Rect())
}

func TestRectIsFinite(t *testing.T) {
	assert.True(t, R(1, 2, 3, 4).IsFinite())
	assert.False(t, R(math.NaN(), 0, 1, 1).IsFinite())
	assert.False(t, R(0, 0, math.Inf(1), 1).IsFinite())
	assert.False(t, R(0, math.Inf(-1), 1, 1).IsFinite())
}

func TestInfiniteContainsEverything(t *testing.T) {
	assert.True(t, Infinite.ContainsRect(R(-1e9, -1e9, 2e9, 2e9)))
	assert.True(t, Infinite.Intersects(R(3, 4, 0, 0)))
}

func TestMatrixInvert(t *testing.T) {
	m := Translate(10, 20).Multiply(Scale(2, 4))
	inv, err := m.Invert()
	require.NoError(t, err)
	x, y := inv.TransformPoint(m.TransformPoint(3, 5))
	assert.InDelta(t, 3, x, 1e-9)
	assert.InDelta(t, 5, y, 1e-9)
	assert.True(t, m.Multiply(inv).IsIdentity())

	_, err = Scale(0, 1).Invert()
	assert.ErrorIs(t, err, ErrSingular)
}

func TestMatrixTransformRect(t *testing.T) {
	r := RotateDegrees(90).TransformRect(R(0, 0, 10, 20))
	assert.InDelta(t, -20, r.X, 1e-9)
	assert.InDelta(t, 20, r.Width, 1e-9)
	assert.InDelta(t, 10, r.Height, 1e-9)
}

func TestSegmentJSON(t *testing.T) {
	p := Path{}.MoveTo(0, 0).CubicTo(1, 2, 3, 4, 5, 6).Close()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `[["M",0,0],["C",1,2,3,4,5,6],["Z"]]`, string(data))

	var back Path
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)

	var bad Segment
	assert.Error(t, json.Unmarshal([]byte(`["L",1]`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`["X",1,2]`), &bad))
}

func TestFlattenAndContains(t *testing.T) {
	tri := Path{}.MoveTo(0, 0).LineTo(10, 0).LineTo(0, 10).Close()
	lines := tri.Flatten()
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Closed)
	assert.True(t, ContainsEvenOdd(lines, Pt(2, 2)))
	assert.False(t, ContainsEvenOdd(lines, Pt(8, 8)))

	open := Path{}.MoveTo(0, 0).LineTo(10, 0)
	ol := open.Flatten()
	assert.True(t, NearPolylines(ol, Pt(5, 1), 1.5))
	assert.False(t, NearPolylines(ol, Pt(5, 3), 1.5))
}

func TestPathBoundsIncludesControlPoints(t *testing.T) {
	p := Path{}.MoveTo(0, 0).QuadTo(5, 20, 10, 0)
	assert.Equal(t, R(0, 0, 10, 20), p.Bounds())
	assert.Equal(t, Rect{}, Path{}.Bounds())
}
