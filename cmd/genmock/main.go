// Command genmock turns a captured upstream API response into normalized
// incident fixtures for the test suites. It runs the actual decode and
// normalization code under a fixed clock, so fixtures track real pipeline
// behavior instead of hand-maintained JSON.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -in data/mock/situations_20260310.xml \
//	  -out data/mock/incidents_20260310.json \
//	  -now 2026-03-10T12:00:00Z
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vagdata/trafik-etl/internal/domain"
	"github.com/vagdata/trafik-etl/internal/trv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "", "captured upstream response (.xml or .json)")
	out := flag.String("out", "", "output path for the normalized incident fixture")
	now := flag.String("now", "", "fixed RFC 3339 instant for status derivation")
	flag.Parse()

	if *in == "" || *out == "" || *now == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -in, -out, -now")
	}

	fixedNow, err := time.Parse(time.RFC3339, *now)
	if err != nil {
		return fmt.Errorf("parsing -now: %w", err)
	}
	domain.SetClock(clockwork.NewFakeClockAt(fixedNow))
	defer domain.SetClock(nil)

	body, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	var situations []domain.RawSituation
	if strings.HasSuffix(*in, ".json") {
		situations, err = trv.DecodeJSON(body)
	} else {
		situations, err = trv.DecodeXML(body)
	}
	if err != nil {
		return fmt.Errorf("decoding %s: %w", *in, err)
	}
	log.Printf("decoded %d situations", len(situations))

	rows, stats := domain.Normalize(situations, nil)
	log.Printf("normalized %d rows (deviations=%d, skipped=%d, deduplicated=%d, geometry_fallbacks=%d)",
		len(rows), stats.Deviations, stats.SkippedNoMessage, stats.Deduplicated, stats.GeometryFallbacks)

	if err := writeJSON(*out, rows); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)

	printStats(rows)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(rows []domain.Incident) {
	statusCounts := map[string]int{}
	countyCounts := map[string]int{}
	var withGeo, synthesized int

	for i := range rows {
		r := &rows[i]
		statusCounts[r.Status]++
		if r.CountyName != nil {
			countyCounts[*r.CountyName]++
		}
		if r.Latitude != nil {
			withGeo++
		}
		if strings.Contains(r.IncidentID, ":") {
			synthesized++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(rows))
	fmt.Printf("By status: ongoing=%d, upcoming=%d, unknown=%d\n",
		statusCounts[domain.StatusOngoing], statusCounts[domain.StatusUpcoming], statusCounts[domain.StatusUnknown])
	fmt.Printf("With coordinates: %d\n", withGeo)
	fmt.Printf("Synthesized ids: %d\n", synthesized)
	fmt.Printf("Counties (%d): ", len(countyCounts))
	for name, n := range countyCounts {
		fmt.Printf("%s=%d ", name, n)
	}
	fmt.Println()

	if len(rows) > 0 {
		first := rows[0]
		fmt.Println("\nFirst row:")
		fmt.Printf("  ID: %s\n", first.IncidentID)
		fmt.Printf("  Status: %s\n", first.Status)
		fmt.Printf("  Message: %.60s\n", first.Message)
		if first.ModifiedTime != nil {
			fmt.Printf("  Modified: %s\n", first.ModifiedTime.Format(time.RFC3339))
		}
	}
}
