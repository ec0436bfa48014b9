package domain

import (
	"log/slog"
	"sort"
	"strings"
	"time"
)

// NormalizeStats summarizes what Normalize did with a batch, for run
// reporting and metrics.
type NormalizeStats struct {
	Deviations        int // deviations seen across all situations
	SkippedNoMessage  int // dropped because Message was empty
	GeometryFallbacks int // coordinates obtained via low-confidence extraction
	Deduplicated      int // rows collapsed by incident_id
}

// timeLayouts are the timestamp shapes observed across upstream schema
// versions: RFC 3339 with offset or Z, fractional seconds, and a bare local
// form that the API emits without a zone (treated as UTC).
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05",
}

// Normalize flattens raw situations into canonical incident rows: one row per
// deviation carrying a non-empty message, with a stable incident id, UTC
// timestamps, parsed coordinates, a resolved county name, and a status that is
// derived from the time window whenever the upstream omits it.
//
// Rows sharing an incident id collapse to the one with the newest modified
// time (first seen wins ties). Output is sorted ONGOING, UPCOMING, UNKNOWN,
// then by modified and start time descending within each group.
//
// Malformed fields degrade to nil; Normalize never fails a batch. A nil
// logger falls back to slog.Default.
func Normalize(situations []RawSituation, logger *slog.Logger) ([]Incident, NormalizeStats) {
	if logger == nil {
		logger = slog.Default()
	}

	now := clock.Now()
	var stats NormalizeStats
	rows := make([]Incident, 0, len(situations))
	byID := make(map[string]int, len(situations))

	for _, sit := range situations {
		modified := parseUpstreamTime(sit.ModifiedTime)
		for _, dev := range sit.Deviations {
			stats.Deviations++
			msg := strings.TrimSpace(dev.Message)
			if msg == "" {
				stats.SkippedNoMessage++
				continue
			}

			row := Incident{
				IncidentID:         incidentID(sit, dev),
				Message:            msg,
				MessageType:        optional(dev.MessageType),
				LocationDescriptor: optional(dev.LocationDescriptor),
				RoadNumber:         optional(dev.RoadNumber),
				CountyNo:           dev.CountyNo,
				StartTime:          parseUpstreamTime(dev.StartTime),
				EndTime:            parseUpstreamTime(dev.EndTime),
				ModifiedTime:       modified,
			}

			if dev.CountyNo != nil {
				if name, ok := CountyName(*dev.CountyNo); ok {
					row.CountyName = &name
				}
			}

			if pt, mode := ParsePoint(dev.Geometry); mode != ModeNone {
				if mode == ModeFallback {
					stats.GeometryFallbacks++
					logger.Warn("geometry parsed via numeric fallback",
						"incident_id", row.IncidentID, "geometry", dev.Geometry)
				}
				lat, lon := pt.Lat, pt.Lon
				row.Latitude = &lat
				row.Longitude = &lon
			}

			if s := strings.TrimSpace(dev.Status); s != "" {
				row.Status = s
			} else {
				row.Status = DeriveStatus(row.StartTime, row.EndTime, now)
			}

			if i, seen := byID[row.IncidentID]; seen {
				stats.Deduplicated++
				if newerModified(row.ModifiedTime, rows[i].ModifiedTime) {
					rows[i] = row
				}
				continue
			}
			byID[row.IncidentID] = len(rows)
			rows = append(rows, row)
		}
	}

	sortIncidents(rows)
	return rows, stats
}

// incidentID prefers the deviation's own id. Without one it synthesizes
// "<situation id>:<raw start time>" from wire values, so the key is stable
// across re-fetches even when the start time fails to parse.
func incidentID(sit RawSituation, dev RawDeviation) string {
	if id := strings.TrimSpace(dev.ID); id != "" {
		return id
	}
	return sit.ID + ":" + dev.StartTime
}

// newerModified reports whether a is strictly newer than b; nil is oldest.
func newerModified(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}

func sortIncidents(rows []Incident) {
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := statusRank(rows[i].Status), statusRank(rows[j].Status)
		if ri != rj {
			return ri < rj
		}
		if c := compareTimeDesc(rows[i].ModifiedTime, rows[j].ModifiedTime); c != 0 {
			return c < 0
		}
		return compareTimeDesc(rows[i].StartTime, rows[j].StartTime) < 0
	})
}

// statusRank orders ONGOING first, then UPCOMING; UNKNOWN and raw upstream
// statuses sort last.
func statusRank(status string) int {
	switch status {
	case StatusOngoing:
		return 0
	case StatusUpcoming:
		return 1
	default:
		return 2
	}
}

// compareTimeDesc orders descending with nils last: -1 if a sorts before b.
func compareTimeDesc(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.After(*b):
		return -1
	case b.After(*a):
		return 1
	default:
		return 0
	}
}

// parseUpstreamTime parses a wire timestamp into UTC, or nil if it is empty
// or matches no known layout.
func parseUpstreamTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// optional trims a wire string, mapping empty to nil.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
