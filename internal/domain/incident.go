package domain

import "time"

// RawSituation is the upstream unit of change: a top-level record that groups
// zero or more deviations. Timestamps are kept as the raw wire strings; they
// are parsed (and degraded to null on failure) during normalization.
type RawSituation struct {
	ID              string
	ModifiedTime    string
	PublicationTime string
	Deviations      []RawDeviation
}

// RawDeviation is a single reported road incident nested under a situation.
// Every field except Message is optional on the wire.
type RawDeviation struct {
	ID                 string
	Message            string
	MessageType        string
	LocationDescriptor string
	RoadNumber         string
	CountyNo           *int
	StartTime          string
	EndTime            string
	Geometry           string // WKT point/shape string from Geometry.WGS84
	Status             string
}

// Incident is the canonical normalized row, one per actionable deviation.
// Pointer fields map to nullable columns; Latitude and Longitude are either
// both set or both nil.
type Incident struct {
	IncidentID         string     `json:"incident_id"`
	Message            string     `json:"message"`
	MessageType        *string    `json:"message_type,omitempty"`
	LocationDescriptor *string    `json:"location_descriptor,omitempty"`
	RoadNumber         *string    `json:"road_number,omitempty"`
	CountyName         *string    `json:"county_name,omitempty"`
	CountyNo           *int       `json:"county_no,omitempty"`
	StartTime          *time.Time `json:"start_time_utc,omitempty"`
	EndTime            *time.Time `json:"end_time_utc,omitempty"`
	ModifiedTime       *time.Time `json:"modified_time_utc,omitempty"`
	Latitude           *float64   `json:"latitude,omitempty"`
	Longitude          *float64   `json:"longitude,omitempty"`
	Status             string     `json:"status"`
}
