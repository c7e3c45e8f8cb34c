package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorpus_Put_UpsertMovesToEnd(t *testing.T) {
	c := NewCorpus("c")
	c.Put(&Document{ID: "a", Text: "1", Vector: []float32{1}})
	c.Put(&Document{ID: "b", Text: "2", Vector: []float32{1}})

	// When: a is written again
	c.Put(&Document{ID: "a", Text: "3", Vector: []float32{1}})

	// Then: exactly one a exists, at the end, with the new text
	assert.Equal(t, []string{"b", "a"}, c.IDs())
	d, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "3", d.Text)
	assert.Len(t, c.Vectors(), 2)
}

func TestCorpus_Remove_ReindexesAndClearsDimension(t *testing.T) {
	c := NewCorpus("c")
	c.Put(&Document{ID: "a", Vector: []float32{1, 2}})
	c.Put(&Document{ID: "b", Vector: []float32{3, 4}})
	c.Put(&Document{ID: "c", Vector: []float32{5, 6}})
	assert.Equal(t, 2, c.Dimension)

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))

	d, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, []float32{5, 6}, d.Vector)

	c.Remove("b")
	c.Remove("c")
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.Dimension)
}

func TestCorpus_Clone_IsIndependent(t *testing.T) {
	c := NewCorpus("c")
	c.Put(&Document{ID: "a", Vector: []float32{1}})

	cp := c.Clone()
	cp.Put(&Document{ID: "b", Vector: []float32{1}})
	cp.Remove("a")

	assert.Equal(t, []string{"a"}, c.IDs())
	assert.Equal(t, []string{"b"}, cp.IDs())
}
