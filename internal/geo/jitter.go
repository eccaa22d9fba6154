package geo

import (
	"math"

	"github.com/ppiankov/drillgrade/internal/model"
)

const (
	// DefaultRadiusMeters is used when a caller passes a non-positive radius
	DefaultRadiusMeters = 10_000

	goldenAngle = 137.50776405003785 // degrees
	batchTurn   = 47.0               // degrees added per batch so batches around one center interleave

	keyScale     = 1e6 // occupied-set resolution, about 0.1 m
	maxRotations = 8
)

type cellKey struct {
	lat, lon int64
}

// Jitterer assigns synthetic coordinates to entities without a valid
// position. It remembers every point it has handed out, plus any real
// points registered with Occupy, so later batches do not land on them.
// A Jitterer is not safe for concurrent use; one run owns one Jitterer.
type Jitterer struct {
	fallback model.Coordinate
	occupied map[cellKey]struct{}
	batches  int
}

// NewJitterer creates a Jitterer that uses fallback when a batch has no center
func NewJitterer(fallback model.Coordinate) *Jitterer {
	if !fallback.Valid() {
		fallback = model.FallbackOrigin
	}
	return &Jitterer{
		fallback: fallback,
		occupied: make(map[cellKey]struct{}),
	}
}

// Jitter is the stateless form: n distinct points within radiusMeters of
// center (or of model.FallbackOrigin when center is nil)
func Jitter(n int, center *model.Coordinate, radiusMeters float64) []model.Coordinate {
	return NewJitterer(model.FallbackOrigin).Jitter(n, center, radiusMeters)
}

// Occupy registers a real coordinate so synthetic points avoid it
func (j *Jitterer) Occupy(c model.Coordinate) {
	if c.Valid() {
		j.occupied[keyOf(c)] = struct{}{}
	}
}

// Jitter returns n coordinates, pairwise distinct and each within
// radiusMeters of center. Points are spread on a sunflower spiral
// (golden-angle bearing, square-root distance) so they cover the disc
// evenly. A candidate that falls on an occupied cell is rotated a bounded
// number of times; after that the separation requirement is relaxed to
// exact inequality, so the call always terminates.
func (j *Jitterer) Jitter(n int, center *model.Coordinate, radiusMeters float64) []model.Coordinate {
	if n <= 0 {
		return nil
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	origin := j.fallback
	if center != nil && center.Valid() {
		origin = *center
	}

	offset := float64(j.batches) * batchTurn
	j.batches++

	out := make([]model.Coordinate, 0, n)
	seen := make(map[model.Coordinate]struct{}, n)

	for i := 0; i < n; i++ {
		dist := radiusMeters * math.Sqrt((float64(i)+0.5)/float64(n))
		bearing := offset + float64(i)*goldenAngle

		c := Destination(origin, bearing, dist)
		for attempt := 1; attempt <= maxRotations && j.isOccupied(c); attempt++ {
			bearing += goldenAngle / float64(attempt+1)
			c = Destination(origin, bearing, dist)
		}

		// relaxed separation: only exact duplicates are rejected, by
		// pulling the point a hair toward the center
		for k := 1; ; k++ {
			if _, dup := seen[c]; !dup {
				break
			}
			c = Destination(origin, bearing, dist*(1-float64(k)*1e-9))
		}

		seen[c] = struct{}{}
		j.occupied[keyOf(c)] = struct{}{}
		out = append(out, c)
	}

	return out
}

func (j *Jitterer) isOccupied(c model.Coordinate) bool {
	_, ok := j.occupied[keyOf(c)]
	return ok
}

func keyOf(c model.Coordinate) cellKey {
	return cellKey{
		lat: int64(math.Round(c.Lat * keyScale)),
		lon: int64(math.Round(c.Lon * keyScale)),
	}
}
