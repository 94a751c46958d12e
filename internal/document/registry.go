package document

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/inamate/drawcore/internal/figure"
)

// Type tags of the built-in figures.
const (
	TypeRect    = "rect"
	TypeEllipse = "ellipse"
	TypePath    = "path"
	TypeGroup   = "group"
)

// Factory creates an empty figure with the given id.
type Factory func(id string) figure.Figure

// Registry maps type tags to figure factories. A figure's shape data is
// its exported fields encoded as JSON; attributes and children are stored
// beside it.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	tags      map[reflect.Type]string
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}, tags: map[reflect.Type]string{}}
}

// DefaultRegistry knows the built-in figures.
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeRect, func(id string) figure.Figure {
		f := &figure.RectFigure{}
		f.Init(f, id)
		return f
	})
	r.Register(TypeEllipse, func(id string) figure.Figure {
		f := &figure.EllipseFigure{}
		f.Init(f, id)
		return f
	})
	r.Register(TypePath, func(id string) figure.Figure {
		f := &figure.PathFigure{}
		f.Init(f, id)
		return f
	})
	r.Register(TypeGroup, func(id string) figure.Figure {
		g := &figure.Group{}
		g.InitComposite(g, id)
		return g
	})
	return r
}

// Register adds a tag. The factory is called once to learn the concrete
// type it produces.
func (r *Registry) Register(tag string, fn Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[tag] = fn
	r.tags[reflect.TypeOf(fn("probe"))] = tag
}

// Tag returns the type tag of f.
func (r *Registry) Tag(f figure.Figure) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tag, ok := r.tags[reflect.TypeOf(f)]
	return tag, ok
}

// New creates an empty figure for tag.
func (r *Registry) New(tag, id string) (figure.Figure, error) {
	r.mu.RLock()
	fn, ok := r.factories[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("type %q: %w", tag, ErrUnknownType)
	}
	return fn(id), nil
}

// Encode converts f and its children into a node.
func (r *Registry) Encode(f figure.Figure) (ObjectNode, error) {
	tag, ok := r.Tag(f)
	if !ok {
		return ObjectNode{}, fmt.Errorf("encode %s (%T): %w", f.ID(), f, ErrUnknownType)
	}
	node := ObjectNode{ID: f.ID(), Type: tag}
	if attrs := f.Attributes(); len(attrs) > 0 {
		node.Attributes = attrs
	}
	data, err := json.Marshal(f)
	if err != nil {
		return ObjectNode{}, fmt.Errorf("encode %s: %w", f.ID(), err)
	}
	if string(data) != "{}" {
		node.Data = data
	}
	if c, ok := f.(figure.Container); ok {
		for _, child := range c.Children() {
			cn, err := r.Encode(child)
			if err != nil {
				return ObjectNode{}, err
			}
			node.Children = append(node.Children, cn)
		}
	}
	return node, nil
}

// Decode builds a figure from a node. Children are added silently.
func (r *Registry) Decode(n ObjectNode) (figure.Figure, error) {
	f, err := r.New(n.Type, n.ID)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", n.ID, err)
	}
	if len(n.Data) > 0 {
		if err := json.Unmarshal(n.Data, f); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", n.ID, err)
		}
	}
	for k, v := range n.Attributes {
		if err := f.BasicSetAttribute(k, v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", n.ID, err)
		}
	}
	if len(n.Children) > 0 {
		c, ok := f.(figure.Container)
		if !ok {
			return nil, fmt.Errorf("decode %s: %s cannot have children", n.ID, n.Type)
		}
		for _, cn := range n.Children {
			child, err := r.Decode(cn)
			if err != nil {
				return nil, err
			}
			c.BasicAdd(child)
		}
	}
	return f, nil
}
