package figure

// Group is a nested composite. It is unindexed unless EnableIndex is
// called.
type Group struct {
	Composite
}

func NewGroup(children ...Figure) *Group {
	g := &Group{}
	g.InitComposite(g, "")
	for _, f := range children {
		g.BasicAdd(f)
	}
	return g
}

func (g *Group) Clone() Figure {
	c := NewGroup()
	g.CloneInto(&c.Composite)
	return c
}
