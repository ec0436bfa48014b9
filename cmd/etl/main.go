// Command etl performs one complete fetch-normalize-upsert pass and exits.
// Intended for cron or one-off invocations; the long-running variant with the
// HTTP read API lives in cmd/server.
//
// Usage:
//
//	go run ./cmd/etl [-db trafik.db] [-days-back 1]
//
// Flags override their environment counterparts (DB_PATH, DAYS_BACK).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kafkaadapter "github.com/vagdata/trafik-etl/internal/adapter/kafka"
	"github.com/vagdata/trafik-etl/internal/config"
	"github.com/vagdata/trafik-etl/internal/notify"
	"github.com/vagdata/trafik-etl/internal/observability"
	"github.com/vagdata/trafik-etl/internal/pipeline"
	"github.com/vagdata/trafik-etl/internal/store"
	"github.com/vagdata/trafik-etl/internal/trv"
)

func main() {
	dbPath := flag.String("db", "", "sqlite database path (overrides DB_PATH)")
	daysBack := flag.Int("days-back", 0, "how many days of modifications to fetch (overrides DAYS_BACK)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *daysBack > 0 {
		cfg.DaysBack = *daysBack
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer st.Close()

	client := trv.NewClient(cfg.APIKey, cfg.BaseURL, cfg.RequestTimeout, cfg.MaxRetries, logger)
	fetcher := trv.NewFetcher(client, cfg.PageSize, cfg.MaxPages, cfg.FutureHorizon, nil, logger)
	fetcher.PagesFetched = metrics.PagesFetched

	notifier := notify.NewWebhook(cfg.WebhookURL, cfg.WebhookTimeout, logger)

	var publisher pipeline.Publisher
	if cfg.KafkaEnabled {
		kp := kafkaadapter.NewPublisher(cfg, logger)
		defer kp.Close()
		publisher = kp
		logger.Info("kafka fan-out enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(fetcher, st, notifier, publisher, logger, metrics, pipeline.Options{
		DaysBack:      cfg.DaysBack,
		ExpectMinRows: cfg.ExpectMinRows,
		ExpectMaxRows: cfg.ExpectMaxRows,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := p.Run(ctx)
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(summary) //nolint:errcheck // summary print is best-effort
}
