package trv

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vagdata/trafik-etl/internal/domain"
)

// Transport issues one page query against the upstream API. Implemented by
// Client; tests substitute fakes.
type Transport interface {
	FetchPage(ctx context.Context, q Query) ([]domain.RawSituation, error)
}

// Fetcher pages through the upstream result set, advancing a cursor derived
// from the last record of each page. One FetchSince call is one complete,
// restartable-from-scratch sweep; no cursor is persisted across runs —
// idempotent storage makes re-reading safe, so exact resumption is not needed.
type Fetcher struct {
	transport     Transport
	pageSize      int
	maxPages      int
	futureHorizon time.Duration // 0 disables the future cap
	clock         clockwork.Clock
	logger        *slog.Logger

	// PagesFetched, when set, counts upstream pages retrieved.
	PagesFetched prometheus.Counter
}

// NewFetcher creates a Fetcher. A nil clock uses real time.
func NewFetcher(transport Transport, pageSize, maxPages int, futureHorizon time.Duration, clk clockwork.Clock, logger *slog.Logger) *Fetcher {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Fetcher{
		transport:     transport,
		pageSize:      pageSize,
		maxPages:      maxPages,
		futureHorizon: futureHorizon,
		clock:         clk,
		logger:        logger,
	}
}

// FetchSince retrieves all situations modified or starting after since.
// Termination: an empty page, a page with no unseen records (non-advancing
// cursor guard), a page shorter than the page size, or the page budget.
// Records already yielded in this call are skipped via an in-memory seen set;
// content-level deduplication is the normalizer's job, this set only prevents
// re-reading.
func (f *Fetcher) FetchSince(ctx context.Context, since time.Time) ([]domain.RawSituation, error) {
	var futureCap *time.Time
	if f.futureHorizon > 0 {
		capAt := f.clock.Now().Add(f.futureHorizon).UTC()
		futureCap = &capAt
	}

	var (
		out    []domain.RawSituation
		cursor *Cursor
		seen   = make(map[string]struct{})
	)

	for page := 1; ; page++ {
		if f.maxPages > 0 && page > f.maxPages {
			f.logger.Warn("page budget reached, stopping fetch", "max_pages", f.maxPages, "records", len(out))
			return out, nil
		}

		batch, err := f.transport.FetchPage(ctx, Query{
			Since:     since,
			FutureCap: futureCap,
			Cursor:    cursor,
			PageSize:  f.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		if f.PagesFetched != nil {
			f.PagesFetched.Inc()
		}

		if len(batch) == 0 {
			f.logger.Debug("empty page, fetch complete", "pages", page, "records", len(out))
			return out, nil
		}

		fresh := 0
		for _, sit := range batch {
			key := recordKey(sit)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, sit)
			fresh++
		}
		f.logger.Debug("fetched page", "page", page, "records", len(batch), "new", fresh)

		if fresh == 0 {
			// The cursor did not advance; a misbehaving upstream would loop
			// forever here.
			f.logger.Warn("page returned only already-seen records, stopping fetch", "page", page)
			return out, nil
		}
		if len(batch) < f.pageSize {
			return out, nil
		}

		cursor = nextCursor(batch)
	}
}

// nextCursor builds the follow-up cursor from the last record of the page:
// its modified time plus the start time of its last deviation, matching the
// query's ModifiedTime desc, Deviation.StartTime desc ordering.
func nextCursor(batch []domain.RawSituation) *Cursor {
	last := batch[len(batch)-1]
	c := &Cursor{ModifiedTime: last.ModifiedTime}
	if n := len(last.Deviations); n > 0 {
		c.StartTime = last.Deviations[n-1].StartTime
	}
	return c
}

// recordKey identifies a situation within one fetch call. Situations without
// an id (never observed, but the field is not contractual) fall back to their
// modified time so they cannot collide with every other id-less record.
func recordKey(sit domain.RawSituation) string {
	if sit.ID != "" {
		return sit.ID
	}
	return "mod:" + sit.ModifiedTime
}
