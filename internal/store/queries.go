package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vagdata/trafik-etl/internal/domain"
)

// IncidentFilter narrows ListIncidents. Zero values mean "no filter".
type IncidentFilter struct {
	Status string
	County string
	Since  *time.Time // lower bound on modified_time_utc
	Limit  int
}

// CountyCount is one row of the per-county aggregation.
type CountyCount struct {
	CountyName string `json:"county_name"`
	Count      int    `json:"count"`
}

// TrendBucket is one day of the incident trend: incidents whose start time
// falls on that UTC date.
type TrendBucket struct {
	Day   string `json:"day"` // YYYY-MM-DD
	Count int    `json:"count"`
}

const selectColumns = `
  incident_id, message, message_type, location_descriptor, road_number,
  county_name, county_no, start_time_utc, end_time_utc, modified_time_utc,
  latitude, longitude, status`

// ListIncidents returns incidents matching the filter, in the dashboard's
// default order: ongoing first, then upcoming, then everything else, newest
// modifications first within each group.
func (s *Store) ListIncidents(ctx context.Context, f IncidentFilter) ([]domain.Incident, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.County != "" {
		where = append(where, "county_name = ?")
		args = append(args, f.County)
	}
	if f.Since != nil {
		where = append(where, "modified_time_utc >= ?")
		args = append(args, f.Since.UTC().Format(timeFormat))
	}

	q := "SELECT" + selectColumns + " FROM incidents"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += `
 ORDER BY CASE status WHEN 'ONGOING' THEN 0 WHEN 'UPCOMING' THEN 1 ELSE 2 END,
          modified_time_utc DESC, start_time_utc DESC`
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// CountByStatus returns the number of stored incidents per status value.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM incidents GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

// CountByCounty returns per-county incident counts, largest first. Incidents
// without a resolved county name are grouped under the empty string.
func (s *Store) CountByCounty(ctx context.Context) ([]CountyCount, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT COALESCE(county_name, ''), COUNT(*)
  FROM incidents
 GROUP BY county_name
 ORDER BY COUNT(*) DESC, county_name`)
	if err != nil {
		return nil, fmt.Errorf("count by county: %w", err)
	}
	defer rows.Close()

	var out []CountyCount
	for rows.Next() {
		var c CountyCount
		if err := rows.Scan(&c.CountyName, &c.Count); err != nil {
			return nil, fmt.Errorf("scan county count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DailyTrend buckets incidents by UTC start date over the trailing window.
// The stored ISO format makes substr(,1,10) the date part.
func (s *Store) DailyTrend(ctx context.Context, since time.Time) ([]TrendBucket, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT substr(start_time_utc, 1, 10) AS day, COUNT(*)
  FROM incidents
 WHERE start_time_utc IS NOT NULL AND start_time_utc >= ?
 GROUP BY day
 ORDER BY day`, since.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("daily trend: %w", err)
	}
	defer rows.Close()

	var out []TrendBucket
	for rows.Next() {
		var b TrendBucket
		if err := rows.Scan(&b.Day, &b.Count); err != nil {
			return nil, fmt.Errorf("scan trend bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanIncident(rows *sql.Rows) (domain.Incident, error) {
	var (
		inc                                  domain.Incident
		msgType, locDesc, roadNo, countyName sql.NullString
		countyNo                             sql.NullInt64
		startT, endT, modT                   sql.NullString
		lat, lon                             sql.NullFloat64
	)
	err := rows.Scan(
		&inc.IncidentID, &inc.Message, &msgType, &locDesc, &roadNo,
		&countyName, &countyNo, &startT, &endT, &modT,
		&lat, &lon, &inc.Status,
	)
	if err != nil {
		return domain.Incident{}, fmt.Errorf("scan incident: %w", err)
	}

	inc.MessageType = strPtr(msgType)
	inc.LocationDescriptor = strPtr(locDesc)
	inc.RoadNumber = strPtr(roadNo)
	inc.CountyName = strPtr(countyName)
	if countyNo.Valid {
		n := int(countyNo.Int64)
		inc.CountyNo = &n
	}
	inc.StartTime = timePtr(startT)
	inc.EndTime = timePtr(endT)
	inc.ModifiedTime = timePtr(modT)
	if lat.Valid && lon.Valid {
		inc.Latitude = &lat.Float64
		inc.Longitude = &lon.Float64
	}
	return inc, nil
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func timePtr(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(timeFormat, v.String)
	if err != nil {
		return nil
	}
	return &t
}
