package embed

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder is a test double that counts calls.
type countingEmbedder struct {
	calls atomic.Int64
	fail  error
}

func (m *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.fail != nil {
		return nil, m.fail
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func (m *countingEmbedder) Dimensions() int                  { return 3 }
func (m *countingEmbedder) ModelName() string                { return "counting" }
func (m *countingEmbedder) Available(_ context.Context) bool { return true }
func (m *countingEmbedder) Close() error                     { return nil }

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "the cat sat on the mat")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "the cat sat on the mat")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
	assert.InDelta(t, 1.0, magnitude(a), 1e-5)
}

func TestStaticEmbedder_BlankTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedderWithDimensions(16)

	vec, err := e.Embed(context.Background(), "   \n")

	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), vec)
}

func TestStaticEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	query, _ := e.Embed(ctx, "cat")
	cat, _ := e.Embed(ctx, "the cat sat")
	dog, _ := e.Embed(ctx, "a dog ran home")

	dot := func(a, b []float32) float64 {
		var s float64
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return s
	}
	assert.Greater(t, dot(query, cat), dot(query, dog))
}

func TestStaticEmbedder_Closed(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "text")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
	assert.Equal(t, "static-256", e.ModelName())
}

func TestCachedEmbedder_HitsSkipInner(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 8)
	ctx := context.Background()

	first, err := c.Embed(ctx, "query")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "query")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCachedEmbedder_ReturnsCopies(t *testing.T) {
	c := NewCachedEmbedder(&countingEmbedder{}, 8)
	ctx := context.Background()

	v, _ := c.Embed(ctx, "abc")
	v[0] = 999

	again, _ := c.Embed(ctx, "abc")
	assert.Equal(t, float32(3), again[0])
}

func TestCachedEmbedder_ErrorsAreNotCached(t *testing.T) {
	inner := &countingEmbedder{fail: errors.New("provider down")}
	c := NewCachedEmbedder(inner, 8)

	_, err := c.Embed(context.Background(), "q")
	require.Error(t, err)
	_, err = c.Embed(context.Background(), "q")
	require.Error(t, err)

	assert.Equal(t, int64(2), inner.calls.Load())
	assert.Equal(t, 0, c.Len())
}

func TestNewEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("static with cache", func(t *testing.T) {
		e, err := NewEmbedder(ctx, Options{Provider: ProviderStatic, CacheSize: 10})
		require.NoError(t, err)
		cached, ok := e.(*CachedEmbedder)
		require.True(t, ok)
		assert.IsType(t, &StaticEmbedder{}, cached.Inner())
	})

	t.Run("static without cache", func(t *testing.T) {
		e, err := NewEmbedder(ctx, Options{Provider: "STATIC", Dimensions: 64})
		require.NoError(t, err)
		assert.Equal(t, 64, e.Dimensions())
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewEmbedder(ctx, Options{Provider: "mlx"})
		assert.Error(t, err)
	})
}
