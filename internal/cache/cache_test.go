package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	ID   int64
	Code string
}

func TestRistrettoSetGetDelete(t *testing.T) {
	c, err := NewRistretto[string, entry](Config{MaxItems: 100})
	require.NoError(t, err)
	defer c.Close()

	require.True(t, c.Set("aB3dE9_x", entry{ID: 1, Code: "aB3dE9_x"}, time.Minute))
	Wait(c)

	got, ok := c.Get("aB3dE9_x")
	require.True(t, ok)
	assert.Equal(t, int64(1), got.ID)

	c.Delete("aB3dE9_x")
	_, ok = c.Get("aB3dE9_x")
	assert.False(t, ok)
}

func TestRistrettoMissingKey(t *testing.T) {
	c, err := NewRistretto[string, entry](Config{})
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get("nope")
	assert.False(t, ok)
}
