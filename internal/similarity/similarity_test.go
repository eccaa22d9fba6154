package similarity

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/drillgrade/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradient renders a horizontal gray ramp, dark to bright or reversed
func gradient(t *testing.T, w, h int, reversed bool) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		v := uint8(x * 255 / (w - 1))
		if reversed {
			v = 255 - v
		}
		for y := 0; y < h; y++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAverageHash_Identical(t *testing.T) {
	ref := gradient(t, 64, 48, false)
	scorer, err := NewAverageHashFromBytes(ref)
	require.NoError(t, err)

	score, err := scorer.Score(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestAverageHash_ScaledCopyMatches(t *testing.T) {
	scorer, err := NewAverageHashFromBytes(gradient(t, 64, 48, false))
	require.NoError(t, err)

	score, err := scorer.Score(context.Background(), gradient(t, 320, 240, false))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.9)
}

func TestAverageHash_DifferentImage(t *testing.T) {
	scorer, err := NewAverageHashFromBytes(gradient(t, 64, 48, false))
	require.NoError(t, err)

	score, err := scorer.Score(context.Background(), gradient(t, 64, 48, true))
	require.NoError(t, err)
	assert.Less(t, score, 0.5)
}

func TestAverageHash_Undecodable(t *testing.T) {
	scorer, err := NewAverageHashFromBytes(gradient(t, 16, 16, false))
	require.NoError(t, err)

	_, err = scorer.Score(context.Background(), []byte("not an image"))
	assert.True(t, errors.Is(err, ErrUndecodable))

	_, err = NewAverageHashFromBytes([]byte("nope"))
	assert.Error(t, err)
}

func TestNewAverageHash_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.png")
	require.NoError(t, os.WriteFile(path, gradient(t, 32, 32, false), 0o644))

	scorer, err := NewAverageHash(path)
	require.NoError(t, err)
	assert.NotEmpty(t, scorer.ID())

	_, err = NewAverageHash(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

type countingScorer struct {
	calls int
	score float64
	err   error
}

func (c *countingScorer) Score(ctx context.Context, attachment []byte) (float64, error) {
	c.calls++
	return c.score, c.err
}

func TestCached_MemoizesByContent(t *testing.T) {
	inner := &countingScorer{score: 0.75}
	scorer := NewCached(inner, cache.NewMemoryCache(time.Minute, time.Minute), "ref-a")

	for i := 0; i < 3; i++ {
		score, err := scorer.Score(context.Background(), []byte("photo"))
		require.NoError(t, err)
		assert.Equal(t, 0.75, score)
	}
	assert.Equal(t, 1, inner.calls)

	_, err := scorer.Score(context.Background(), []byte("other photo"))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCached_ReferenceIsPartOfKey(t *testing.T) {
	shared := cache.NewMemoryCache(time.Minute, time.Minute)
	a := &countingScorer{score: 0.2}
	b := &countingScorer{score: 0.9}

	scoreA, _ := NewCached(a, shared, "ref-a").Score(context.Background(), []byte("photo"))
	scoreB, _ := NewCached(b, shared, "ref-b").Score(context.Background(), []byte("photo"))

	assert.Equal(t, 0.2, scoreA)
	assert.Equal(t, 0.9, scoreB)
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	inner := &countingScorer{err: ErrUndecodable}
	scorer := NewCached(inner, cache.NewMemoryCache(time.Minute, time.Minute), "ref")

	_, err := scorer.Score(context.Background(), []byte("x"))
	assert.Error(t, err)
	_, err = scorer.Score(context.Background(), []byte("x"))
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCached_NilCachePassesThrough(t *testing.T) {
	inner := &countingScorer{score: 0.5}
	scorer := NewCached(inner, nil, "ref")

	_, _ = scorer.Score(context.Background(), []byte("x"))
	_, _ = scorer.Score(context.Background(), []byte("x"))
	assert.Equal(t, 2, inner.calls)
}
