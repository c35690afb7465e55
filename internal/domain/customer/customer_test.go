package customer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalisesEmail(t *testing.T) {
	c, err := New("c-1", "  Ada Lovelace ", " Ada@Example.COM ")
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", c.Name)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.False(t, c.CreatedAt.IsZero())
}

func TestNewValidates(t *testing.T) {
	_, err := New("c-1", "", "a@b.c")
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = New("c-1", "Ada", " ")
	assert.ErrorIs(t, err, ErrEmailRequired)
}
