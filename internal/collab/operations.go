package collab

import (
	"errors"
	"fmt"

	"github.com/inamate/drawcore/internal/action"
	"github.com/inamate/drawcore/internal/document"
	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
)

var (
	ErrUnknownOperation = errors.New("unknown operation type")
	ErrUnknownFigure    = errors.New("unknown figure")
	ErrDuplicateFigure  = errors.New("figure id already in use")
)

// applyOperation performs op on d. For figure.add and figure.duplicate it
// rewrites op.Figures with the figures as added, ids included. The caller
// holds the drawing's monitor.
func applyOperation(d *drawing.Drawing, ed *action.Editor, op *Operation) error {
	switch op.Type {
	case OpAdd:
		return applyAdd(d, ed, op)

	case OpDelete:
		figs, err := lookup(d, op.FigureIDs)
		if err != nil {
			return err
		}
		action.Delete(d, figs)

	case OpAttributes:
		if len(op.Attributes) == 0 {
			return fmt.Errorf("%s: no attributes", op.Type)
		}
		figs, err := lookup(d, op.FigureIDs)
		if err != nil {
			return err
		}
		if _, err := action.ApplyAttributes(d, ed, op.Attributes, figs); err != nil {
			return err
		}

	case OpBringFront, OpSendBack:
		figs, err := lookup(d, op.FigureIDs)
		if err != nil {
			return err
		}
		if op.Type == OpBringFront {
			action.BringToFront(d, figs)
		} else {
			action.SendToBack(d, figs)
		}

	case OpMove:
		figs, err := lookup(d, op.FigureIDs)
		if err != nil {
			return err
		}
		action.Move(d, figs, op.DX, op.DY)

	case OpTransform:
		if len(op.Matrix) != 6 {
			return fmt.Errorf("%s: matrix needs 6 values, got %d", op.Type, len(op.Matrix))
		}
		figs, err := lookup(d, op.FigureIDs)
		if err != nil {
			return err
		}
		m := geom.Matrix2D(op.Matrix)
		if _, err := action.Transform(d, figs, m); err != nil {
			return err
		}

	case OpDuplicate:
		figs, err := lookup(d, op.FigureIDs)
		if err != nil {
			return err
		}
		clones, _ := action.Duplicate(d, figs, op.DX, op.DY)
		return encodeFigures(op, clones)

	case OpSetDefaults:
		for k, v := range op.Attributes {
			if err := ed.SetDefaultAttribute(k, v); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("%w: %s", ErrUnknownOperation, op.Type)
	}
	return nil
}

func applyAdd(d *drawing.Drawing, ed *action.Editor, op *Operation) error {
	if len(op.Figures) == 0 {
		return fmt.Errorf("%s: no figures", op.Type)
	}
	figs := make([]figure.Figure, 0, len(op.Figures))
	for _, n := range op.Figures {
		if n.ID != "" && figure.FindByID(d, n.ID) != nil {
			return fmt.Errorf("%s: %w: %s", op.Type, ErrDuplicateFigure, n.ID)
		}
		f, err := document.DefaultRegistry.Decode(n)
		if err != nil {
			return fmt.Errorf("%s: %w", op.Type, err)
		}
		// Figures sent without styling take the editor's defaults.
		if len(n.Attributes) == 0 {
			ed.ApplyDefaultsTo(f)
		}
		figs = append(figs, f)
	}
	action.AddFigures(d, nil, figs...)
	return encodeFigures(op, figs)
}

func encodeFigures(op *Operation, figs []figure.Figure) error {
	op.Figures = op.Figures[:0]
	for _, f := range figs {
		n, err := document.DefaultRegistry.Encode(f)
		if err != nil {
			return err
		}
		op.Figures = append(op.Figures, n)
	}
	return nil
}

func lookup(d *drawing.Drawing, ids []string) ([]figure.Figure, error) {
	if len(ids) == 0 {
		return nil, errors.New("no figures selected")
	}
	figs := make([]figure.Figure, len(ids))
	for i, id := range ids {
		f := figure.FindByID(d, id)
		if f == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFigure, id)
		}
		figs[i] = f
	}
	return figs, nil
}

func figureIDs(nodes []document.ObjectNode) []string {
	if len(nodes) == 0 {
		return nil
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
