// Command seed-catalog resolves every stop of the preset tour catalog to a
// canonical stop and records the route-stop mappings, without generating
// any narration.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/rheath/echojam/internal/app"
	"github.com/rheath/echojam/internal/canonical"
	"github.com/rheath/echojam/internal/config"
	"github.com/rheath/echojam/internal/observability"
	"github.com/rheath/echojam/internal/store"
	"github.com/rheath/echojam/internal/tour"
)

func main() {
	var (
		catalogFile = flag.String("catalog", "tours.yaml", "Preset tour catalog")
		cfgFile     = flag.String("config", "", "Config file (default ./echojam.yaml)")
		dryRun      = flag.Bool("dry-run", false, "Validate the catalog but don't write")
	)
	flag.Parse()

	logger := observability.NewLogger(os.Stderr, slog.LevelInfo, "text")
	slog.SetDefault(logger)

	ctx := context.Background()

	tours, err := tour.LoadCatalog(*catalogFile)
	if err != nil {
		slog.Error("Failed to load catalog", "error", err)
		os.Exit(1)
	}
	if *dryRun {
		slog.Info("DRY RUN MODE - no writes will be performed", "tours", len(tours))
		return
	}

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to create app", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	resolver := canonical.NewResolver(a.Store, logger)

	var (
		totalStops  atomic.Int64
		totalMapped atomic.Int64
		totalFailed atomic.Int64
	)

	slog.Info("Starting seed", "catalog", *catalogFile, "tours", len(tours), "store", cfg.Store.Backend)
	for _, t := range tours {
		for i, s := range t.Stops {
			totalStops.Add(1)
			cs, err := resolver.Resolve(ctx, t.City, s)
			if err == nil {
				err = a.Store.UpsertRouteStop(ctx, store.RouteStopMapping{
					RouteKind:       t.Kind,
					RouteID:         t.ID,
					StopID:          s.ID,
					CanonicalStopID: cs.ID,
					Position:        i,
				})
			}
			if err != nil {
				totalFailed.Add(1)
				slog.Warn("Stop not seeded", "tour", t.ID, "stop", s.ID, "title", s.Title, "error", err)
				continue
			}
			totalMapped.Add(1)

			if totalStops.Load()%100 == 0 {
				slog.Info("Progress", "stops", totalStops.Load(), "mapped", totalMapped.Load())
			}
		}
	}

	slog.Info("Seed complete",
		"total_stops", totalStops.Load(),
		"total_mapped", totalMapped.Load(),
		"total_failed", totalFailed.Load(),
	)
	if totalFailed.Load() > 0 {
		os.Exit(1)
	}
}
