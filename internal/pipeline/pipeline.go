package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/vagdata/trafik-etl/internal/domain"
	"github.com/vagdata/trafik-etl/internal/notify"
	"github.com/vagdata/trafik-etl/internal/observability"
)

// Fetcher retrieves raw situations modified or starting after since.
type Fetcher interface {
	FetchSince(ctx context.Context, since time.Time) ([]domain.RawSituation, error)
}

// Upserter persists normalized incidents.
type Upserter interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, rows []domain.Incident) (int, error)
}

// Notifier reports run progress and outcomes; implementations must be
// fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, level, text string)
}

// Publisher fans normalized incidents out to a downstream topic. Optional.
type Publisher interface {
	PublishBatch(ctx context.Context, rows []domain.Incident) error
}

// Summary is the outcome of one pipeline run, used for CLI output and
// notification messages. Elapsed is wall-clock seconds.
type Summary struct {
	RunID    string  `json:"run_id"`
	Rows     int     `json:"rows"`
	Ongoing  int     `json:"ongoing_count"`
	Upcoming int     `json:"upcoming_count"`
	Elapsed  float64 `json:"elapsed_seconds"`
}

// Options tunes a Pipeline beyond its collaborators.
type Options struct {
	DaysBack      int
	ExpectMinRows int // 0 disables the lower warning bound
	ExpectMaxRows int // 0 disables the upper warning bound
	Clock         clockwork.Clock
}

// Pipeline sequences one fetch-normalize-upsert pass. Runs are serialized:
// a manual trigger during a scheduled run waits its turn, and upsert
// idempotence makes the interleaving of separate processes safe.
type Pipeline struct {
	fetcher   Fetcher
	upserter  Upserter
	notifier  Notifier
	publisher Publisher // nil when fan-out is disabled
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	daysBack      int
	expectMinRows int
	expectMaxRows int

	mu    sync.Mutex
	ready atomic.Bool
}

// New creates a Pipeline. A nil publisher disables fan-out; a nil clock in
// opts uses real time.
func New(f Fetcher, u Upserter, n Notifier, pub Publisher, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	clk := opts.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Pipeline{
		fetcher:       f,
		upserter:      u,
		notifier:      n,
		publisher:     pub,
		logger:        logger,
		metrics:       metrics,
		clock:         clk,
		daysBack:      opts.DaysBack,
		expectMinRows: opts.ExpectMinRows,
		expectMaxRows: opts.ExpectMaxRows,
	}
}

// CheckReadiness returns nil once at least one run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return fmt.Errorf("no pipeline run has completed yet")
	}
	return nil
}

// Run executes one complete fetch-normalize-upsert pass and returns its
// summary. Fatal errors are reported through the notifier and returned;
// row-level malformation never surfaces here.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	started := p.clock.Now()
	since := started.UTC().Add(-time.Duration(p.daysBack) * 24 * time.Hour)

	p.notifier.Notify(ctx, notify.LevelInfo,
		fmt.Sprintf("ETL startad • days_back=%d • run=%s", p.daysBack, runID))

	summary, err := p.run(ctx, logger, since)
	summary.RunID = runID
	summary.Elapsed = p.clock.Since(started).Seconds()
	p.metrics.RunDuration.Observe(summary.Elapsed)

	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		logger.Error("pipeline run failed", "error", err)
		p.notifier.Notify(ctx, notify.LevelError, fmt.Sprintf("ETL FEL: %v", err))
		return summary, err
	}

	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.ready.Store(true)

	p.notifier.Notify(ctx, notify.LevelSuccess, fmt.Sprintf(
		"ETL klar • rader=%d • pågående=%d • kommande=%d • tid=%.1fs",
		summary.Rows, summary.Ongoing, summary.Upcoming, summary.Elapsed))
	p.warnOnSuspectRowCount(ctx, summary.Rows)

	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, since time.Time) (Summary, error) {
	var summary Summary

	if err := p.upserter.EnsureSchema(ctx); err != nil {
		return summary, err
	}

	situations, err := p.fetcher.FetchSince(ctx, since)
	if err != nil {
		p.metrics.FetchErrors.Inc()
		return summary, fmt.Errorf("fetch: %w", err)
	}
	p.metrics.SituationsFetched.Add(float64(len(situations)))
	logger.Info("fetched situations", "count", len(situations), "since", since)

	rows, stats := domain.Normalize(situations, logger)
	p.metrics.RowsNormalized.Add(float64(len(rows)))
	p.metrics.DeviationsSkipped.Add(float64(stats.SkippedNoMessage))
	p.metrics.GeometryFallbacks.Add(float64(stats.GeometryFallbacks))
	p.metrics.RowsDeduplicated.Add(float64(stats.Deduplicated))
	logger.Info("normalized incidents",
		"rows", len(rows),
		"deviations", stats.Deviations,
		"skipped_no_message", stats.SkippedNoMessage,
		"deduplicated", stats.Deduplicated,
		"geometry_fallbacks", stats.GeometryFallbacks,
	)

	written, err := p.upserter.Upsert(ctx, rows)
	if err != nil {
		return summary, fmt.Errorf("upsert: %w", err)
	}
	p.metrics.RowsUpserted.Add(float64(written))
	logger.Info("upserted incidents", "rows", written)

	if p.publisher != nil && len(rows) > 0 {
		// Fan-out is best effort: storage is already consistent, so a broken
		// broker degrades to a warning rather than failing the run.
		if err := p.publisher.PublishBatch(ctx, rows); err != nil {
			logger.Warn("publish normalized incidents failed", "error", err)
			p.notifier.Notify(ctx, notify.LevelWarning,
				fmt.Sprintf("Kunde inte publicera %d rader till Kafka: %v", len(rows), err))
		}
	}

	summary.Rows = len(rows)
	for _, row := range rows {
		switch row.Status {
		case domain.StatusOngoing:
			summary.Ongoing++
		case domain.StatusUpcoming:
			summary.Upcoming++
		}
	}
	return summary, nil
}

func (p *Pipeline) warnOnSuspectRowCount(ctx context.Context, rows int) {
	if rows == 0 {
		p.notifier.Notify(ctx, notify.LevelWarning, "Varning: ETL returnerade 0 rader.")
		return
	}
	if p.expectMinRows > 0 && rows < p.expectMinRows {
		p.notifier.Notify(ctx, notify.LevelWarning,
			fmt.Sprintf("Varning: lågt antal rader (%d < %d).", rows, p.expectMinRows))
	}
	if p.expectMaxRows > 0 && rows > p.expectMaxRows {
		p.notifier.Notify(ctx, notify.LevelWarning,
			fmt.Sprintf("Varning: högt antal rader (%d > %d).", rows, p.expectMaxRows))
	}
}
