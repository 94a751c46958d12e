package figure

import "fmt"

// IndexDesyncError reports that a composite's spatial index no longer
// matches its children.
type IndexDesyncError struct {
	Composite string
	Figure    string
	Reason    string
}

func (e *IndexDesyncError) Error() string {
	return fmt.Sprintf("index desync in %s: %s: %s", e.Composite, e.Figure, e.Reason)
}
