// Command validate performs deployment preflight checks: configuration
// completeness, upstream API reachability with the configured credentials,
// and database accessibility. Run it before first deploy or after rotating
// the API key.
//
// Usage:
//
//	go run ./cmd/validate
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vagdata/trafik-etl/internal/config"
	"github.com/vagdata/trafik-etl/internal/observability"
	"github.com/vagdata/trafik-etl/internal/store"
	"github.com/vagdata/trafik-etl/internal/trv"
)

// phase tracks pass/fail for one preflight check.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fmt.Println("=== Traffic ETL Preflight ===")
	fmt.Println()

	cfgPhase := &phase{name: "Phase 1: Configuration"}
	cfg, err := config.Load()
	if err != nil {
		cfgPhase.errorf("%v", err)
	}

	phases := []*phase{cfgPhase}
	if cfg != nil {
		logger := observability.NewLogger(cfg)
		phases = append(phases,
			validateUpstream(ctx, cfg, logger),
			validateStorage(ctx, cfg, logger),
		)
		if cfg.KafkaEnabled {
			fmt.Printf("  Note: kafka fan-out configured (%v → %s); broker reachability is not probed\n",
				cfg.KafkaBrokers, cfg.KafkaTopic)
		}
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-40s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll preflight checks passed.")
		return 0
	}
	fmt.Println("\nPreflight FAILED.")
	return 1
}

// validateUpstream issues a single one-record query to prove the API key and
// base URL work end to end.
func validateUpstream(ctx context.Context, cfg *config.Config, logger *slog.Logger) *phase {
	p := &phase{name: "Phase 2: Upstream API"}

	client := trv.NewClient(cfg.APIKey, cfg.BaseURL, cfg.RequestTimeout, 1, logger)
	situations, err := client.FetchPage(ctx, trv.Query{
		Since:    time.Now().UTC().Add(-24 * time.Hour),
		PageSize: 1,
	})
	if err != nil {
		p.errorf("probe query against %s failed: %v", cfg.BaseURL, err)
		return p
	}

	fmt.Printf("  Upstream probe: %d situation(s) modified in the last 24h\n", len(situations))
	return p
}

// validateStorage opens the database and applies the schema, proving the path
// is writable and any existing file is a compatible database.
func validateStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) *phase {
	p := &phase{name: "Phase 3: Storage"}

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		p.errorf("open %s: %v", cfg.DBPath, err)
		return p
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		p.errorf("apply schema: %v", err)
		return p
	}

	counts, err := st.CountByStatus(ctx)
	if err != nil {
		p.errorf("query status counts: %v", err)
		return p
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	fmt.Printf("  Storage: %s ready, %d incident(s) stored\n", cfg.DBPath, total)
	return p
}
