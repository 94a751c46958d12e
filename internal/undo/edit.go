// Package undo records reversible edits and replays them.
package undo

import (
	"errors"
	"fmt"
)

var (
	ErrCannotUndo = errors.New("cannot undo")
	ErrCannotRedo = errors.New("cannot redo")
)

// Edit is one reversible logical operation. An edit is built after its
// mutation has been applied and never mutates on construction.
type Edit interface {
	Undo() error
	Redo() error
	CanUndo() bool
	CanRedo() bool
	// Die releases the edit; it can no longer be undone or redone.
	Die()
	PresentationName() string
}

// Base tracks the done/undone/dead state. Concrete edits embed it and call
// Base.Undo / Base.Redo before doing their own work.
type Base struct {
	Name   string
	undone bool
	dead   bool
}

func (b *Base) CanUndo() bool { return !b.dead && !b.undone }
func (b *Base) CanRedo() bool { return !b.dead && b.undone }
func (b *Base) Die()          { b.dead = true }

func (b *Base) PresentationName() string { return b.Name }

func (b *Base) Undo() error {
	if !b.CanUndo() {
		return fmt.Errorf("%s: %w", b.Name, ErrCannotUndo)
	}
	b.undone = true
	return nil
}

func (b *Base) Redo() error {
	if !b.CanRedo() {
		return fmt.Errorf("%s: %w", b.Name, ErrCannotRedo)
	}
	b.undone = false
	return nil
}

// FuncEdit is an edit backed by a pair of closures.
type FuncEdit struct {
	Base
	UndoFunc func() error
	RedoFunc func() error
}

func NewFuncEdit(name string, undo, redo func() error) *FuncEdit {
	return &FuncEdit{Base: Base{Name: name}, UndoFunc: undo, RedoFunc: redo}
}

func (e *FuncEdit) Undo() error {
	if err := e.Base.Undo(); err != nil {
		return err
	}
	if e.UndoFunc == nil {
		return nil
	}
	if err := e.UndoFunc(); err != nil {
		e.undone = false
		return fmt.Errorf("undo %s: %w", e.Name, err)
	}
	return nil
}

func (e *FuncEdit) Redo() error {
	if err := e.Base.Redo(); err != nil {
		return err
	}
	if e.RedoFunc == nil {
		return nil
	}
	if err := e.RedoFunc(); err != nil {
		e.undone = true
		return fmt.Errorf("redo %s: %w", e.Name, err)
	}
	return nil
}

// CompoundEdit groups edits that undo and redo as one. Edits are undone in
// reverse order.
type CompoundEdit struct {
	Base
	edits []Edit
}

func NewCompoundEdit(name string) *CompoundEdit {
	return &CompoundEdit{Base: Base{Name: name}}
}

func (c *CompoundEdit) Add(e Edit) {
	c.edits = append(c.edits, e)
}

func (c *CompoundEdit) Len() int { return len(c.edits) }

// PresentationName falls back to the single member's name.
func (c *CompoundEdit) PresentationName() string {
	if c.Name == "" && len(c.edits) == 1 {
		return c.edits[0].PresentationName()
	}
	return c.Name
}

func (c *CompoundEdit) Undo() error {
	if err := c.Base.Undo(); err != nil {
		return err
	}
	for i := len(c.edits) - 1; i >= 0; i-- {
		if err := c.edits[i].Undo(); err != nil {
			return err
		}
	}
	return nil
}

func (c *CompoundEdit) Redo() error {
	if err := c.Base.Redo(); err != nil {
		return err
	}
	for _, e := range c.edits {
		if err := e.Redo(); err != nil {
			return err
		}
	}
	return nil
}

func (c *CompoundEdit) Die() {
	for _, e := range c.edits {
		e.Die()
	}
	c.Base.Die()
}
