// Package action implements the editing operations that tools and
// collaborators run against a drawing. Every operation mutates through the
// observed figure API and reports an undoable edit to the drawing.
package action

import (
	"fmt"
	"sync"

	"github.com/inamate/drawcore/internal/figure"
)

// Editor holds the default attributes applied to new figures. Applying or
// picking attributes updates them.
type Editor struct {
	mu       sync.RWMutex
	defaults figure.AttributeSet
}

func NewEditor() *Editor {
	return &Editor{defaults: figure.AttributeSet{}}
}

// DefaultAttributes returns a copy of the current defaults.
func (e *Editor) DefaultAttributes() figure.AttributeSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.defaults.Clone()
}

func (e *Editor) DefaultAttribute(k figure.Key) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.defaults[k]
	return v, ok
}

func (e *Editor) SetDefaultAttribute(k figure.Key, v any) error {
	if !k.Valid(v) {
		return fmt.Errorf("default %s: invalid value type %T", k.Name(), v)
	}
	e.mu.Lock()
	e.defaults[k] = v
	e.mu.Unlock()
	return nil
}

// ApplyDefaultsTo sets the defaults on a figure that is not yet part of a
// drawing.
func (e *Editor) ApplyDefaultsTo(f figure.Figure) {
	for k, v := range e.DefaultAttributes() {
		_ = f.BasicSetAttribute(k, v)
	}
}
