package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// Point is a WGS-84 latitude/longitude coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

// ParseMode reports how a coordinate pair was obtained from a WKT string.
// Fallback extraction is kept distinct from structural parses so callers can
// log and count low-confidence coordinates instead of trusting them silently.
type ParseMode int

const (
	// ModeNone means no coordinates could be extracted.
	ModeNone ParseMode = iota
	// ModePoint means the input was a well-formed POINT.
	ModePoint
	// ModeCentroid means the input was a line/polygon shape reduced to the
	// centroid of its vertices.
	ModeCentroid
	// ModeFallback means structural parsing failed and the first two numeric
	// tokens found anywhere in the string were used as lon/lat.
	ModeFallback
)

var numberRe = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

var wktKeywords = []string{
	"MULTILINESTRING", "MULTIPOLYGON", "MULTIPOINT",
	"LINESTRING", "POLYGON", "POINT",
}

// ParsePoint extracts a representative coordinate from a WKT string such as
// "POINT (18.063 59.334)". WKT orders coordinates lon lat. Shapes other than
// points reduce to the centroid of their vertices. Malformed input yields
// ModeNone; it never panics or errors.
func ParsePoint(raw string) (Point, ParseMode) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Point{}, ModeNone
	}

	upper := strings.ToUpper(raw)
	for _, kw := range wktKeywords {
		if !strings.HasPrefix(upper, kw) {
			continue
		}
		if p, ok := parseWKTBody(raw, kw == "POINT"); ok {
			if kw == "POINT" {
				return p, ModePoint
			}
			return p, ModeCentroid
		}
		break
	}

	// Last resort: grab the first two numbers anywhere in the string.
	nums := numberRe.FindAllString(raw, 2)
	if len(nums) == 2 {
		lon, errLon := strconv.ParseFloat(nums[0], 64)
		lat, errLat := strconv.ParseFloat(nums[1], 64)
		if errLon == nil && errLat == nil {
			return Point{Lat: lat, Lon: lon}, ModeFallback
		}
	}
	return Point{}, ModeNone
}

// parseWKTBody extracts the coordinate list between the outermost parentheses
// and returns either the single point or the centroid of all vertices.
func parseWKTBody(raw string, point bool) (Point, bool) {
	open := strings.Index(raw, "(")
	closing := strings.LastIndex(raw, ")")
	if open < 0 || closing <= open {
		return Point{}, false
	}

	nums := numberRe.FindAllString(raw[open+1:closing], -1)
	if len(nums) < 2 || len(nums)%2 != 0 {
		return Point{}, false
	}
	if point && len(nums) != 2 {
		return Point{}, false
	}

	var sumLon, sumLat float64
	pairs := len(nums) / 2
	for i := 0; i < len(nums); i += 2 {
		lon, errLon := strconv.ParseFloat(nums[i], 64)
		lat, errLat := strconv.ParseFloat(nums[i+1], 64)
		if errLon != nil || errLat != nil {
			return Point{}, false
		}
		sumLon += lon
		sumLat += lat
	}
	return Point{Lat: sumLat / float64(pairs), Lon: sumLon / float64(pairs)}, true
}
