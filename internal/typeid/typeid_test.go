package typeid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndValidate(t *testing.T) {
	id := NewFigureID()
	assert.True(t, strings.HasPrefix(id, PrefixFigure+"_"))
	require.NoError(t, Validate(id, PrefixFigure))
	assert.ErrorIs(t, Validate(id, PrefixDrawing), ErrInvalid)
	assert.ErrorIs(t, Validate("not an id", PrefixFigure), ErrInvalid)
	assert.NotEqual(t, id, NewFigureID())
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix(NewDrawingID(), PrefixDrawing))
	assert.True(t, HasPrefix(NewOpID(), PrefixOp))
	assert.False(t, HasPrefix(NewUserID(), PrefixDrawing))
	assert.False(t, HasPrefix("drw_", PrefixDrawing))
}
