package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsSentinel(t *testing.T) {
	err := Wrapf(ErrUnparseableFilename, "file %s", "chain.csv")
	require.Error(t, err)
	assert.True(t, Is(err, ErrUnparseableFilename))
	assert.Equal(t, "file chain.csv: unparseable filename", err.Error())

	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestMultiError(t *testing.T) {
	t.Run("empty converts to nil", func(t *testing.T) {
		var m MultiError
		m.Add(nil)
		assert.False(t, m.HasErrors())
		assert.NoError(t, m.ToError())
	})

	t.Run("collected errors stay matchable", func(t *testing.T) {
		var m MultiError
		m.Add(Wrap(ErrEmptyOrUnreadableFile, "a.csv"))
		m.Add(Wrap(ErrNoSideColumns, "b.csv"))

		err := m.ToError()
		require.Error(t, err)
		assert.True(t, Is(err, ErrEmptyOrUnreadableFile))
		assert.True(t, Is(err, ErrNoSideColumns))
		assert.Contains(t, err.Error(), "multiple errors (2)")
	})
}

func TestValidationErrorMatchesInvalidInput(t *testing.T) {
	err := NewValidationError("strike", "must be numeric", "abc")
	assert.True(t, Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "field 'strike'")
}
