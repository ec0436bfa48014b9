package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vagdata/trafik-etl/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trafik.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func strp(s string) *string        { return &s }
func intp(n int) *int              { return &n }
func floatp(f float64) *float64    { return &f }
func timep(t time.Time) *time.Time { return &t }

func sampleIncidents() []domain.Incident {
	return []domain.Incident{
		{
			IncidentID:         "DEV_1",
			Message:            "Olycka på E4",
			MessageType:        strp("Olycka"),
			LocationDescriptor: strp("Vid Häggvik"),
			RoadNumber:         strp("E4"),
			CountyName:         strp("Stockholms län"),
			CountyNo:           intp(1),
			StartTime:          timep(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)),
			ModifiedTime:       timep(time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)),
			Latitude:           floatp(59.334),
			Longitude:          floatp(18.063),
			Status:             domain.StatusOngoing,
		},
		{
			IncidentID:   "DEV_2",
			Message:      "Planerat vägarbete",
			CountyName:   strp("Skåne län"),
			CountyNo:     intp(12),
			StartTime:    timep(time.Date(2026, 3, 12, 6, 0, 0, 0, time.UTC)),
			ModifiedTime: timep(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)),
			Status:       domain.StatusUpcoming,
		},
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, s.EnsureSchema(context.Background()))
}

func TestUpsert_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Upsert(ctx, sampleIncidents())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.ListIncidents(ctx, IncidentFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// ONGOING sorts first.
	assert.Equal(t, "DEV_1", got[0].IncidentID)
	assert.Empty(t, cmp.Diff(sampleIncidents()[0], got[0]))
}

func TestUpsert_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, sampleIncidents())
	require.NoError(t, err)
	first, err := s.ListIncidents(ctx, IncidentFilter{})
	require.NoError(t, err)

	_, err = s.Upsert(ctx, sampleIncidents())
	require.NoError(t, err)
	second, err := s.ListIncidents(ctx, IncidentFilter{})
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first, second))
}

func TestUpsert_ReplacesWholeRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, sampleIncidents())
	require.NoError(t, err)

	updated := domain.Incident{
		IncidentID:   "DEV_1",
		Message:      "Olyckan bärgad",
		ModifiedTime: timep(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)),
		Status:       domain.StatusUnknown,
	}
	_, err = s.Upsert(ctx, []domain.Incident{updated})
	require.NoError(t, err)

	got, err := s.ListIncidents(ctx, IncidentFilter{Status: domain.StatusUnknown})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Olyckan bärgad", got[0].Message)
	// Non-key columns absent from the new row become null, not stale values.
	assert.Nil(t, got[0].RoadNumber)
	assert.Nil(t, got[0].Latitude)
	assert.Nil(t, got[0].Longitude)
}

func TestUpsert_EmptyBatch(t *testing.T) {
	s := openTestStore(t)
	n, err := s.Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsert_LargeBatchSplits(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rows := make([]domain.Incident, 1203)
	for i := range rows {
		rows[i] = domain.Incident{
			IncidentID: fmt.Sprintf("ID_%04d", i),
			Message:    "m",
			Status:     domain.StatusOngoing,
		}
	}
	n, err := s.Upsert(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 1203, n)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1203, counts[domain.StatusOngoing])
}

func TestListIncidents_Filters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, sampleIncidents())
	require.NoError(t, err)

	t.Run("by status", func(t *testing.T) {
		got, err := s.ListIncidents(ctx, IncidentFilter{Status: domain.StatusUpcoming})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "DEV_2", got[0].IncidentID)
	})

	t.Run("by county", func(t *testing.T) {
		got, err := s.ListIncidents(ctx, IncidentFilter{County: "Stockholms län"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "DEV_1", got[0].IncidentID)
	})

	t.Run("by modified window", func(t *testing.T) {
		since := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
		got, err := s.ListIncidents(ctx, IncidentFilter{Since: &since})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "DEV_1", got[0].IncidentID)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := s.ListIncidents(ctx, IncidentFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("no match", func(t *testing.T) {
		got, err := s.ListIncidents(ctx, IncidentFilter{County: "Gotlands län"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestCountByStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, sampleIncidents())
	require.NoError(t, err)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		domain.StatusOngoing:  1,
		domain.StatusUpcoming: 1,
	}, counts)
}

func TestCountByCounty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, sampleIncidents())
	require.NoError(t, err)

	counts, err := s.CountByCounty(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, 1, counts[0].Count)
}

func TestDailyTrend(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, sampleIncidents())
	require.NoError(t, err)

	buckets, err := s.DailyTrend(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, TrendBucket{Day: "2026-03-10", Count: 1}, buckets[0])
	assert.Equal(t, TrendBucket{Day: "2026-03-12", Count: 1}, buckets[1])
}
