package geo

import (
	"math"
	"testing"

	"github.com/ppiankov/drillgrade/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance_KnownPair(t *testing.T) {
	seattle := model.Coordinate{Lat: 47.6062, Lon: -122.3321}
	portland := model.Coordinate{Lat: 45.5152, Lon: -122.6784}

	d := Distance(seattle, portland)
	// roughly 234 km
	assert.InDelta(t, 234_000, d, 1_000)
	assert.Equal(t, 0.0, Distance(seattle, seattle))
}

func TestDestination_RoundTrip(t *testing.T) {
	origin := model.Coordinate{Lat: 39.8283, Lon: -98.5795}
	for _, bearing := range []float64{0, 45, 90, 180, 271.5} {
		c := Destination(origin, bearing, 5_000)
		assert.InDelta(t, 5_000, Distance(origin, c), 0.01, "bearing %v", bearing)
	}
}

func TestDestination_WrapsLongitude(t *testing.T) {
	c := Destination(model.Coordinate{Lat: 0.5, Lon: 179.99}, 90, 10_000)
	assert.True(t, c.Lon < -179 && c.Lon > -180, "expected wrapped longitude, got %v", c.Lon)
}

func TestJitter_FallbackOrigin(t *testing.T) {
	points := Jitter(5, nil, 10_000)
	require.Len(t, points, 5)

	seen := make(map[model.Coordinate]bool)
	for _, p := range points {
		assert.False(t, seen[p], "duplicate point %v", p)
		seen[p] = true
		assert.LessOrEqual(t, Distance(model.FallbackOrigin, p), 10_000.0)
		assert.True(t, p.Valid())
	}
}

func TestJitter_ManyPointsDistinct(t *testing.T) {
	center := model.Coordinate{Lat: 47.6062, Lon: -122.3321}
	points := Jitter(50, &center, 2_000)
	require.Len(t, points, 50)

	for i := range points {
		assert.LessOrEqual(t, Distance(center, points[i]), 2_000.0)
		for k := i + 1; k < len(points); k++ {
			assert.NotEqual(t, points[i], points[k], "points %d and %d coincide", i, k)
			// sunflower spacing keeps neighbours well apart at this density
			assert.Greater(t, Distance(points[i], points[k]), 50.0)
		}
	}
}

func TestJitter_CrowdedAreaTerminates(t *testing.T) {
	center := model.Coordinate{Lat: 10, Lon: 10}
	points := Jitter(3_000, &center, 1)
	require.Len(t, points, 3_000)

	seen := make(map[model.Coordinate]bool, len(points))
	for _, p := range points {
		require.False(t, seen[p], "duplicate point %v", p)
		seen[p] = true
		require.LessOrEqual(t, Distance(center, p), 1.0)
	}
}

func TestJitter_EdgeInputs(t *testing.T) {
	assert.Nil(t, Jitter(0, nil, 100))
	assert.Nil(t, Jitter(-3, nil, 100))

	points := Jitter(3, nil, 0)
	require.Len(t, points, 3)
	for _, p := range points {
		assert.LessOrEqual(t, Distance(model.FallbackOrigin, p), float64(DefaultRadiusMeters))
	}

	invalid := model.Coordinate{}
	points = Jitter(2, &invalid, 100)
	for _, p := range points {
		assert.LessOrEqual(t, Distance(model.FallbackOrigin, p), 100.0)
	}
}

func TestJitterer_BatchesDoNotOverlap(t *testing.T) {
	center := model.Coordinate{Lat: 33.0, Lon: -117.0}
	j := NewJitterer(center)

	first := j.Jitter(20, nil, 500)
	second := j.Jitter(20, &center, 500)

	keys := make(map[cellKey]bool)
	for _, p := range append(first, second...) {
		k := keyOf(p)
		assert.False(t, keys[k], "batches share cell %v", p)
		keys[k] = true
	}
}

func TestJitterer_AvoidsOccupiedPoints(t *testing.T) {
	center := model.Coordinate{Lat: 51.5, Lon: -0.12}
	planned := NewJitterer(center).Jitter(10, nil, 1_000)

	j := NewJitterer(center)
	for _, p := range planned {
		j.Occupy(p)
	}
	j.Occupy(model.Coordinate{}) // ignored

	got := j.Jitter(10, nil, 1_000)
	for _, p := range got {
		for _, q := range planned {
			assert.NotEqual(t, keyOf(q), keyOf(p))
		}
		assert.LessOrEqual(t, Distance(center, p), 1_000.0)
	}
}

func TestNewJitterer_InvalidFallback(t *testing.T) {
	j := NewJitterer(model.Coordinate{Lat: math.NaN()})
	assert.Equal(t, model.FallbackOrigin, j.fallback)
}
