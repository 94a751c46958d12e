package figure

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/inamate/drawcore/internal/geom"
)

// Key identifies an attribute. Keys are compared by identity, so every
// key is a package-level *AttributeKey value.
type Key interface {
	Name() string
	Default() any
	// Valid reports whether v has the key's value type.
	Valid(v any) bool
	// Decode parses a JSON-encoded value of the key's type.
	Decode(raw json.RawMessage) (any, error)
}

// AttributeKey is a strongly typed attribute key.
type AttributeKey[T any] struct {
	name string
	def  T
}

var (
	keysMu sync.RWMutex
	keys   = map[string]Key{}
)

// NewKey creates and registers a key. Names must be unique.
func NewKey[T any](name string, def T) *AttributeKey[T] {
	k := &AttributeKey[T]{name: name, def: def}
	keysMu.Lock()
	defer keysMu.Unlock()
	if _, dup := keys[name]; dup {
		panic(fmt.Sprintf("figure: duplicate attribute key %q", name))
	}
	keys[name] = k
	return k
}

// KeyByName looks up a registered key.
func KeyByName(name string) (Key, bool) {
	keysMu.RLock()
	defer keysMu.RUnlock()
	k, ok := keys[name]
	return k, ok
}

func (k *AttributeKey[T]) Name() string { return k.name }
func (k *AttributeKey[T]) Default() any { return k.def }
func (k *AttributeKey[T]) String() string {
	return k.name
}

func (k *AttributeKey[T]) Valid(v any) bool {
	_, ok := v.(T)
	return ok
}

func (k *AttributeKey[T]) Decode(raw json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode attribute %s: %w", k.name, err)
	}
	return v, nil
}

// Get returns the figure's value for k, or the default.
func (k *AttributeKey[T]) Get(f Figure) T {
	if v, ok := f.Attribute(k).(T); ok {
		return v
	}
	return k.def
}

// Set sets the value through the observed path (change events fire).
func (k *AttributeKey[T]) Set(f Figure, v T) {
	// The type is correct by construction, so SetAttribute cannot fail.
	_ = f.SetAttribute(k, v)
}

// BasicSet sets the value without firing events. Callers wrap it in
// WillChange/Changed.
func (k *AttributeKey[T]) BasicSet(f Figure, v T) {
	_ = f.BasicSetAttribute(k, v)
}

// Standard attributes.
var (
	FillColor   = NewKey("fill", "")
	StrokeColor = NewKey("stroke", "#000000")
	StrokeWidth = NewKey("strokeWidth", 1.0)
	Opacity     = NewKey("opacity", 1.0)
	Visible     = NewKey("visible", true)
	Layer       = NewKey("layer", 0)
	Transform   = NewKey("transform", geom.Identity())
	Name        = NewKey("name", "")
)

// AttributeSet maps keys to values.
type AttributeSet map[Key]any

// Clone returns a shallow copy. Values are immutable by convention.
func (s AttributeSet) Clone() AttributeSet {
	out := make(AttributeSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Names returns the key names in sorted order.
func (s AttributeSet) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k.Name())
	}
	sort.Strings(names)
	return names
}

// MarshalJSON encodes the set keyed by attribute name.
func (s AttributeSet) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s))
	for k, v := range s {
		m[k.Name()] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes registered attributes by name. Unknown names are
// an error so that typos do not silently vanish.
func (s *AttributeSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(AttributeSet, len(raw))
	for name, val := range raw {
		k, ok := KeyByName(name)
		if !ok {
			return fmt.Errorf("unknown attribute %q", name)
		}
		v, err := k.Decode(val)
		if err != nil {
			return err
		}
		out[k] = v
	}
	*s = out
	return nil
}

// Attributes is the attribute-map helper embedded by Base.
type Attributes struct {
	values AttributeSet
}

// Get returns the value for k, or its default.
func (a *Attributes) Get(k Key) any {
	if v, ok := a.values[k]; ok {
		return v
	}
	return k.Default()
}

// Has reports whether k was set explicitly.
func (a *Attributes) Has(k Key) bool {
	_, ok := a.values[k]
	return ok
}

// Set stores v for k.
func (a *Attributes) Set(k Key, v any) error {
	if !k.Valid(v) {
		return fmt.Errorf("attribute %s: invalid value type %T", k.Name(), v)
	}
	if a.values == nil {
		a.values = make(AttributeSet)
	}
	a.values[k] = v
	return nil
}

// Snapshot returns a copy of the explicitly set attributes.
func (a *Attributes) Snapshot() AttributeSet {
	return a.values.Clone()
}

// Restore replaces all attributes with s.
func (a *Attributes) Restore(s AttributeSet) {
	a.values = s.Clone()
}
