// Package similarity scores how closely an image attachment matches a
// reference image.
package similarity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
	"os"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ppiankov/drillgrade/internal/cache"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUndecodable is returned for attachments that are not a supported image
var ErrUndecodable = errors.New("undecodable image")

// hashSide is the edge of the thumbnail the hash is computed from
const hashSide = 8

// Scorer compares an attachment against a fixed reference. Scores are in
// [0, 1] where 1 is a perfect match.
type Scorer interface {
	Score(ctx context.Context, attachment []byte) (float64, error)
}

// AverageHash is a perceptual average-hash scorer. Both images are reduced
// to an 8x8 grayscale thumbnail; each bit of the hash records whether a
// pixel is brighter than the thumbnail mean.
type AverageHash struct {
	reference uint64
}

// NewAverageHash loads the reference image from path
func NewAverageHash(path string) (*AverageHash, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference image: %w", err)
	}
	return NewAverageHashFromBytes(data)
}

// NewAverageHashFromBytes builds a scorer from an encoded reference image
func NewAverageHashFromBytes(data []byte) (*AverageHash, error) {
	h, err := Hash(data)
	if err != nil {
		return nil, fmt.Errorf("reference image: %w", err)
	}
	return &AverageHash{reference: h}, nil
}

// ID identifies the reference for cache keys
func (a *AverageHash) ID() string {
	return strconv.FormatUint(a.reference, 16)
}

// Score returns the fraction of hash bits the attachment shares with the
// reference
func (a *AverageHash) Score(ctx context.Context, attachment []byte) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h, err := Hash(attachment)
	if err != nil {
		return 0, err
	}
	return 1 - float64(bits.OnesCount64(h^a.reference))/64, nil
}

// Hash computes the 64-bit average hash of an encoded image
func Hash(data []byte) (uint64, error) {
	if mt := mimetype.Detect(data); !strings.HasPrefix(mt.String(), "image/") {
		return 0, fmt.Errorf("%w: content is %s", ErrUndecodable, mt.String())
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	thumb := image.NewGray(image.Rect(0, 0, hashSide, hashSide))
	xdraw.BiLinear.Scale(thumb, thumb.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	var sum int
	for _, p := range thumb.Pix {
		sum += int(p)
	}
	mean := sum / len(thumb.Pix)

	var h uint64
	for i, p := range thumb.Pix {
		if int(p) > mean {
			h |= 1 << uint(i)
		}
	}
	return h, nil
}

// Cached memoizes another scorer by attachment content
type Cached struct {
	next      Scorer
	cache     cache.Cache
	reference string
}

// NewCached wraps next. reference distinguishes scorers built from
// different reference images; a nil cache disables memoization.
func NewCached(next Scorer, c cache.Cache, reference string) *Cached {
	return &Cached{next: next, cache: c, reference: reference}
}

// Score returns the cached score when present, computing and storing it
// otherwise. Errors are not cached.
func (c *Cached) Score(ctx context.Context, attachment []byte) (float64, error) {
	if c.cache == nil {
		return c.next.Score(ctx, attachment)
	}

	key := cache.Key("similarity", []byte(c.reference), attachment)
	if raw, ok := c.cache.Get(key); ok {
		if score, err := strconv.ParseFloat(string(raw), 64); err == nil {
			return score, nil
		}
	}

	score, err := c.next.Score(ctx, attachment)
	if err != nil {
		return 0, err
	}
	_ = c.cache.Set(key, []byte(strconv.FormatFloat(score, 'f', -1, 64)), 0)
	return score, nil
}
