// Command server runs the incident dashboard service: the HTTP read API with
// health, readiness, and metrics endpoints, plus an optional periodic refresh
// of the incident store (REFRESH_INTERVAL). A run can also be triggered on
// demand via POST /api/refresh.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/vagdata/trafik-etl/internal/adapter/http"
	kafkaadapter "github.com/vagdata/trafik-etl/internal/adapter/kafka"
	"github.com/vagdata/trafik-etl/internal/config"
	"github.com/vagdata/trafik-etl/internal/notify"
	"github.com/vagdata/trafik-etl/internal/observability"
	"github.com/vagdata/trafik-etl/internal/pipeline"
	"github.com/vagdata/trafik-etl/internal/store"
	"github.com/vagdata/trafik-etl/internal/trv"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
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

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, st, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Initial load so the read API has data and readiness flips promptly.
	go func() {
		if _, err := p.Run(ctx); err != nil {
			logger.Error("initial run failed", "error", err)
		}
		if cfg.RefreshInterval > 0 {
			runPeriodically(ctx, p, cfg.RefreshInterval, logger)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

func runPeriodically(ctx context.Context, p *pipeline.Pipeline, interval time.Duration, logger *slog.Logger) {
	logger.Info("periodic refresh enabled", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Run(ctx); err != nil {
				logger.Error("scheduled run failed", "error", err)
			}
		}
	}
}
