// Package typeid issues the prefixed, sortable identifiers used for users,
// drawings, figures and the records that hang off them.
package typeid

import (
	"errors"
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixUser     = "user"
	PrefixDrawing  = "drw"
	PrefixFigure   = "fig"
	PrefixSnapshot = "snap"
	PrefixOp       = "op"
	PrefixSession  = "sess"
)

var ErrInvalid = errors.New("invalid id")

func New(prefix string) string {
	return typeid.MustGenerate(prefix).String()
}

func NewUserID() string     { return New(PrefixUser) }
func NewDrawingID() string  { return New(PrefixDrawing) }
func NewFigureID() string   { return New(PrefixFigure) }
func NewSnapshotID() string { return New(PrefixSnapshot) }
func NewOpID() string       { return New(PrefixOp) }
func NewSessionID() string  { return New(PrefixSession) }

// Validate reports whether id parses and carries the expected prefix.
func Validate(id, prefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalid, id, err)
	}
	if got := parsed.Prefix(); got != prefix {
		return fmt.Errorf("%w %q: prefix %q, want %q", ErrInvalid, id, got, prefix)
	}
	return nil
}

func HasPrefix(id, prefix string) bool {
	return Validate(id, prefix) == nil
}
