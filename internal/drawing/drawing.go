// Package drawing provides the root composite of a document: an always
// indexed Composite that also broadcasts undoable edits, keeps format
// plug-ins and serializes its children.
package drawing

import (
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/undo"
)

// DefaultIndexBounds is the initial quad-tree root. The tree grows past it
// when figures land outside.
var DefaultIndexBounds = geom.R(0, 0, 4096, 4096)

// FiguresElement is the element that holds the children in the structured
// format.
const FiguresElement = "figures"

// Input reads the structured persistence format.
type Input interface {
	OpenElement(name string) error
	CloseElement() error
	// ElementCount is the number of objects in the open element.
	ElementCount() int
	// ReadObject decodes the object at i, resolving its type tag.
	ReadObject(i int) (figure.Figure, error)
}

// Output writes the structured persistence format.
type Output interface {
	OpenElement(name string) error
	CloseElement() error
	WriteObject(f figure.Figure) error
}

// InputFormat loads a drawing from a byte stream.
type InputFormat interface {
	Name() string
	Read(r io.Reader, d *Drawing) error
}

// OutputFormat saves a drawing to a byte stream.
type OutputFormat interface {
	Name() string
	Write(w io.Writer, d *Drawing) error
}

// EditListener receives undoable edits as they happen.
type EditListener interface {
	UndoableEditHappened(e undo.Edit)
}

type Option func(*Drawing)

// WithLock injects the monitor that serializes drawing access. Without it
// the drawing gets a private mutex.
func WithLock(l sync.Locker) Option {
	return func(d *Drawing) { d.lock = l }
}

func WithIndexBounds(r geom.Rect) Option {
	return func(d *Drawing) { d.indexBounds = r }
}

// WithID sets the drawing's id instead of generating one.
func WithID(id string) Option {
	return func(d *Drawing) { d.initialID = id }
}

// Drawing is the root composite.
type Drawing struct {
	figure.Composite

	initialID     string
	indexBounds   geom.Rect
	lock          sync.Locker
	editListeners []EditListener
	inputFormats  []InputFormat
	outputFormats []OutputFormat
	canvasSize    *geom.Dimension
}

func New(opts ...Option) *Drawing {
	d := &Drawing{indexBounds: DefaultIndexBounds}
	for _, opt := range opts {
		opt(d)
	}
	if d.lock == nil {
		d.lock = &sync.Mutex{}
	}
	d.InitComposite(d, d.initialID)
	d.EnableIndex(d.indexBounds)
	return d
}

// Lock returns the drawing's monitor.
func (d *Drawing) Lock() sync.Locker { return d.lock }

// RunLocked runs fn while holding the monitor.
func (d *Drawing) RunLocked(fn func()) {
	d.lock.Lock()
	defer d.lock.Unlock()
	fn()
}

// Undoable edits.

// AddUndoableEditListener registers l. Like figure listeners the list is
// copy-on-write.
func (d *Drawing) AddUndoableEditListener(l EditListener) {
	next := make([]EditListener, len(d.editListeners), len(d.editListeners)+1)
	copy(next, d.editListeners)
	d.editListeners = append(next, l)
}

func (d *Drawing) RemoveUndoableEditListener(l EditListener) {
	i := slices.Index(d.editListeners, l)
	if i < 0 {
		return
	}
	d.editListeners = slices.Concat(d.editListeners[:i], d.editListeners[i+1:])
}

// FireUndoableEditHappened broadcasts e to the edit listeners registered
// when the call starts.
func (d *Drawing) FireUndoableEditHappened(e undo.Edit) {
	for _, l := range d.editListeners {
		l.UndoableEditHappened(e)
	}
}

// Formats.

func (d *Drawing) AddInputFormat(f InputFormat)   { d.inputFormats = append(d.inputFormats, f) }
func (d *Drawing) AddOutputFormat(f OutputFormat) { d.outputFormats = append(d.outputFormats, f) }

func (d *Drawing) SetInputFormats(fs []InputFormat)   { d.inputFormats = slices.Clone(fs) }
func (d *Drawing) SetOutputFormats(fs []OutputFormat) { d.outputFormats = slices.Clone(fs) }

func (d *Drawing) InputFormats() []InputFormat   { return slices.Clone(d.inputFormats) }
func (d *Drawing) OutputFormats() []OutputFormat { return slices.Clone(d.outputFormats) }

// InputFormat returns the registered input format with the given name.
func (d *Drawing) InputFormat(name string) (InputFormat, bool) {
	i := slices.IndexFunc(d.inputFormats, func(f InputFormat) bool { return f.Name() == name })
	if i < 0 {
		return nil, false
	}
	return d.inputFormats[i], true
}

func (d *Drawing) OutputFormat(name string) (OutputFormat, bool) {
	i := slices.IndexFunc(d.outputFormats, func(f OutputFormat) bool { return f.Name() == name })
	if i < 0 {
		return nil, false
	}
	return d.outputFormats[i], true
}

// Canvas size.

// CanvasSize returns the fixed canvas size, if one is set.
func (d *Drawing) CanvasSize() (geom.Dimension, bool) {
	if d.canvasSize == nil {
		return geom.Dimension{}, false
	}
	return *d.canvasSize, true
}

// SetCanvasSize sets or, with nil, clears the canvas size.
func (d *Drawing) SetCanvasSize(size *geom.Dimension) {
	d.WillChange()
	if size == nil {
		d.canvasSize = nil
	} else {
		s := *size
		d.canvasSize = &s
	}
	d.Changed()
}

// Bounds covers the children and, when set, the canvas.
func (d *Drawing) Bounds() geom.Rect {
	var e geom.Extent
	if d.ChildCount() > 0 {
		e.Add(d.Composite.Bounds())
	}
	if d.canvasSize != nil {
		e.Add(geom.R(0, 0, d.canvasSize.Width, d.canvasSize.Height))
	}
	return e.Rect()
}

// Persistence.

// Read appends the objects of the figures element through the silent
// path. On error the drawing is left partially populated and should be
// discarded.
func (d *Drawing) Read(in Input) error {
	if err := in.OpenElement(FiguresElement); err != nil {
		return fmt.Errorf("open %s: %w", FiguresElement, err)
	}
	for i, n := 0, in.ElementCount(); i < n; i++ {
		f, err := in.ReadObject(i)
		if err != nil {
			return fmt.Errorf("read figure %d: %w", i, err)
		}
		d.BasicAdd(f)
	}
	if err := in.CloseElement(); err != nil {
		return fmt.Errorf("close %s: %w", FiguresElement, err)
	}
	return nil
}

// Write emits the children in z-order.
func (d *Drawing) Write(out Output) error {
	if err := out.OpenElement(FiguresElement); err != nil {
		return fmt.Errorf("open %s: %w", FiguresElement, err)
	}
	for _, f := range d.Children() {
		if err := out.WriteObject(f); err != nil {
			return fmt.Errorf("write figure %s: %w", f.ID(), err)
		}
	}
	if err := out.CloseElement(); err != nil {
		return fmt.Errorf("close %s: %w", FiguresElement, err)
	}
	return nil
}

// Clone.

// CloneDrawing deep-copies the drawing with fresh ids and a rebuilt index.
// Listeners and the lock are not shared.
func (d *Drawing) CloneDrawing() *Drawing {
	c := New(WithIndexBounds(d.indexBounds))
	d.CloneInto(&c.Composite)
	c.inputFormats = slices.Clone(d.inputFormats)
	c.outputFormats = slices.Clone(d.outputFormats)
	if d.canvasSize != nil {
		s := *d.canvasSize
		c.canvasSize = &s
	}
	return c
}

func (d *Drawing) Clone() figure.Figure { return d.CloneDrawing() }
