package figure

import "github.com/inamate/drawcore/internal/geom"

// EventKind identifies what happened to a figure.
type EventKind int

const (
	// FigureChanged fires after a WillChange/Changed block completes.
	FigureChanged EventKind = iota
	// AttributeChanged fires for each observed attribute set.
	AttributeChanged
	// AreaInvalidated asks views to repaint Area.
	AreaInvalidated
	// FigureAdded fires on a composite after an observed add.
	FigureAdded
	// FigureRemoved fires on a composite after an observed remove.
	FigureRemoved
	// RequestRemove asks the parent to remove the source figure.
	RequestRemove
)

func (k EventKind) String() string {
	switch k {
	case FigureChanged:
		return "figure.changed"
	case AttributeChanged:
		return "attribute.changed"
	case AreaInvalidated:
		return "area.invalidated"
	case FigureAdded:
		return "figure.added"
	case FigureRemoved:
		return "figure.removed"
	case RequestRemove:
		return "figure.requestRemove"
	}
	return "unknown"
}

// Event describes a change. Source is the figure that fired it; for
// FigureAdded/FigureRemoved Figure is the child and Index its position.
type Event struct {
	Kind   EventKind
	Source Figure
	Figure Figure
	Area   geom.Rect
	Index  int

	Key      Key
	OldValue any
	NewValue any
}

// Listener receives figure events. Implementations must be comparable
// (pointer types) so they can be removed again.
type Listener interface {
	HandleFigureEvent(e Event)
}

type funcListener struct {
	fn func(Event)
}

func (l *funcListener) HandleFigureEvent(e Event) { l.fn(e) }

// ListenerFunc wraps fn in a removable Listener.
func ListenerFunc(fn func(Event)) Listener {
	return &funcListener{fn: fn}
}

// Listeners is a copy-on-write listener list. Fire works on the list as it
// was when firing started, so listeners added or removed by a callback
// only see later events.
type Listeners struct {
	list []Listener
}

func (ls *Listeners) Add(l Listener) {
	next := make([]Listener, len(ls.list), len(ls.list)+1)
	copy(next, ls.list)
	ls.list = append(next, l)
}

func (ls *Listeners) Remove(l Listener) {
	for i, cur := range ls.list {
		if cur == l {
			next := make([]Listener, 0, len(ls.list)-1)
			next = append(next, ls.list[:i]...)
			ls.list = append(next, ls.list[i+1:]...)
			return
		}
	}
}

func (ls *Listeners) Len() int { return len(ls.list) }

func (ls *Listeners) Fire(e Event) {
	for _, l := range ls.list {
		l.HandleFigureEvent(e)
	}
}
