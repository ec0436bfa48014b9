// Package store persists normalized incidents in an embedded SQLite database
// and serves the dashboard's read queries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vagdata/trafik-etl/internal/domain"
)

// upsertBatchSize bounds the number of rows per transaction so large result
// sets do not grow a single transaction unboundedly.
const upsertBatchSize = 500

const schemaDDL = `
CREATE TABLE IF NOT EXISTS incidents (
  incident_id TEXT PRIMARY KEY,
  message TEXT,
  message_type TEXT,
  location_descriptor TEXT,
  road_number TEXT,
  county_name TEXT,
  county_no INTEGER,
  start_time_utc TEXT,
  end_time_utc TEXT,
  modified_time_utc TEXT,
  latitude REAL,
  longitude REAL,
  status TEXT
);
CREATE INDEX IF NOT EXISTS ix_incidents_start    ON incidents(start_time_utc);
CREATE INDEX IF NOT EXISTS ix_incidents_modified ON incidents(modified_time_utc);
CREATE INDEX IF NOT EXISTS ix_incidents_county   ON incidents(county_name);
`

const upsertSQL = `
INSERT INTO incidents(
  incident_id, message, message_type, location_descriptor, road_number,
  county_name, county_no, start_time_utc, end_time_utc, modified_time_utc,
  latitude, longitude, status
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(incident_id) DO UPDATE SET
  message=excluded.message,
  message_type=excluded.message_type,
  location_descriptor=excluded.location_descriptor,
  road_number=excluded.road_number,
  county_name=excluded.county_name,
  county_no=excluded.county_no,
  start_time_utc=excluded.start_time_utc,
  end_time_utc=excluded.end_time_utc,
  modified_time_utc=excluded.modified_time_utc,
  latitude=excluded.latitude,
  longitude=excluded.longitude,
  status=excluded.status
`

// Store wraps the SQLite connection.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids lock contention
	// between the upsert path and the read API.
	db.SetMaxOpenConns(1)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the incidents table and its indexes if absent.
// Idempotent; called at the start of every run.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Upsert merges rows by primary key: new rows are inserted, existing rows
// have all non-key columns replaced wholesale (a newer fetch is authoritative
// for its key). Rows are written in batches of 500 per transaction, each
// all-or-nothing. Returns the number of rows written.
func (s *Store) Upsert(ctx context.Context, rows []domain.Incident) (int, error) {
	written := 0
	for start := 0; start < len(rows); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(rows))
		if err := s.upsertBatch(ctx, rows[start:end]); err != nil {
			return written, err
		}
		written += end - start
	}
	return written, nil
}

func (s *Store) upsertBatch(ctx context.Context, rows []domain.Incident) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.IncidentID,
			row.Message,
			nullString(row.MessageType),
			nullString(row.LocationDescriptor),
			nullString(row.RoadNumber),
			nullString(row.CountyName),
			nullInt(row.CountyNo),
			nullTime(row.StartTime),
			nullTime(row.EndTime),
			nullTime(row.ModifiedTime),
			nullFloat(row.Latitude),
			nullFloat(row.Longitude),
			row.Status,
		)
		if err != nil {
			return fmt.Errorf("upsert incident %s: %w", row.IncidentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

// timeFormat is the stored timestamp shape: ISO-8601 UTC with second
// precision, lexicographically sortable.
const timeFormat = "2006-01-02T15:04:05Z"

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
