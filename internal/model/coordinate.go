package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coordinate is a WGS84 latitude/longitude pair in decimal degrees
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Valid reports whether the coordinate is usable on a map. The exact
// (0, 0) null-island default left by unedited forms is not valid.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return false
	}
	return !(c.Lat == 0 && c.Lon == 0)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// ParseCoordinate parses a latitude and longitude pair. Each part may be
// decimal degrees ("47.6062", "-122.3321") or degree-minutes with a
// hemisphere suffix as written by position-report forms ("47-36.37N",
// "122-19.93W"). The bool is false when either part is blank, unparsable
// or the result is not Valid.
func ParseCoordinate(lat, lon string) (Coordinate, bool) {
	la, err := parseDegrees(lat, "N", "S")
	if err != nil {
		return Coordinate{}, false
	}
	lo, err := parseDegrees(lon, "E", "W")
	if err != nil {
		return Coordinate{}, false
	}
	c := Coordinate{Lat: la, Lon: lo}
	return c, c.Valid()
}

func parseDegrees(s, pos, neg string) (float64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty coordinate")
	}

	sign := 1.0
	switch {
	case strings.HasSuffix(s, pos):
		s = strings.TrimSpace(strings.TrimSuffix(s, pos))
	case strings.HasSuffix(s, neg):
		s = strings.TrimSpace(strings.TrimSuffix(s, neg))
		sign = -1
	}

	// degree-minutes: "47-36.37" or "47 36.37"
	if idx := strings.IndexAny(s, "- "); idx > 0 {
		deg, err := strconv.ParseFloat(s[:idx], 64)
		if err != nil {
			return 0, fmt.Errorf("parse degrees %q: %w", s, err)
		}
		min, err := strconv.ParseFloat(strings.TrimSpace(s[idx+1:]), 64)
		if err != nil {
			return 0, fmt.Errorf("parse minutes %q: %w", s, err)
		}
		if min < 0 || min >= 60 {
			return 0, fmt.Errorf("minutes out of range: %q", s)
		}
		return sign * (deg + min/60), nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse decimal degrees %q: %w", s, err)
	}
	return sign * v, nil
}
