package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lapislui/Nixkart/internal/aggregate"
	"github.com/lapislui/Nixkart/internal/config"
	"github.com/lapislui/Nixkart/internal/frontend"
	"github.com/lapislui/Nixkart/internal/health"
	"github.com/lapislui/Nixkart/internal/mock"
	"github.com/lapislui/Nixkart/internal/snapshot"
	"github.com/lapislui/Nixkart/internal/ws"
)

// Window materialized into Redis when seeding it; matches the dashboard's
// trailing windows with one spare period each.
const (
	seedMonths = 13
	seedDays   = 8
)

func main() {
	mockMode := flag.Bool("mock", false, "Serve generated demo figures instead of store aggregates")
	devMode := flag.Bool("dev", false, "Development mode (serve frontend from filesystem)")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *mockMode {
		cfg.Aggregates.Backend = config.BackendMock
	}
	ws.SetDebug(cfg.Logging.Debug)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reader, closeReader, err := openReader(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s aggregates: %v", cfg.Aggregates.Backend, err)
	}
	defer closeReader()

	tracker := health.NewSeriesTracker(cfg.Dashboard.DegradedAfter)
	builder := snapshot.NewBuilder(reader,
		snapshot.WithSeriesTimeout(cfg.Dashboard.SeriesTimeout),
		snapshot.WithObserver(tracker.Record),
	)

	probe, err := health.NewProbe()
	if err != nil {
		log.Printf("Health probe unavailable: %v", err)
	} else {
		probe.TrackSeries(tracker)
	}

	hub := ws.NewHub(cfg.Server.MaxConnections)
	server := ws.NewServer(cfg, hub, builder, probe, frontendHandler(*devMode))

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	log.Printf("Dashboard feed on ws://%s%s (interval %v, backend %s)",
		cfg.Addr(), ws.DashboardPath, cfg.Dashboard.PublishInterval, cfg.Aggregates.Backend)

	if err := server.Run(ctx, cfg.Addr(), mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// frontendHandler serves the dashboard page. When built with -tags embed it
// serves from the binary; otherwise, or in dev mode, from the source tree.
func frontendHandler(devMode bool) http.Handler {
	if !devMode {
		if h := frontend.Handler(); h != nil {
			return h
		}
	}

	cwd, _ := os.Getwd()
	dir := filepath.Join(cwd, "internal", "frontend", "static")
	if _, err := os.Stat(dir); err != nil {
		log.Printf("No embedded frontend and %s not found; serving API only", dir)
		return nil
	}
	log.Printf("Serving frontend from: %s", dir)
	return http.FileServer(http.Dir(dir))
}

func openReader(ctx context.Context, cfg *config.Config) (aggregate.Reader, func(), error) {
	noop := func() {}

	switch cfg.Aggregates.Backend {
	case config.BackendMock:
		log.Println("Starting in mock mode (generated demo figures)")
		return mock.NewGenerator(nil), noop, nil

	case config.BackendRedis:
		r, err := aggregate.DialRedis(cfg.Aggregates.RedisAddr, cfg.Aggregates.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		empty, err := r.Empty(ctx)
		if err != nil {
			r.Close()
			return nil, nil, err
		}
		if empty && cfg.Aggregates.Seed {
			now := time.Now()
			src := aggregate.NewMemory(aggregate.SampleDataset(now, now.UnixNano()))
			if err := r.Materialize(ctx, src, now, seedMonths, seedDays); err != nil {
				r.Close()
				return nil, nil, fmt.Errorf("seeding redis: %w", err)
			}
			log.Printf("[aggregate] Seeded empty Redis prefix %q with sample aggregates", cfg.Aggregates.RedisPrefix)
		}
		return r, func() { r.Close() }, nil

	default:
		store := aggregate.NewFileStore(cfg.Aggregates.DataDir)
		ds, found, err := store.Load()
		if err != nil {
			return nil, nil, err
		}
		if !found && cfg.Aggregates.Seed {
			now := time.Now()
			ds = aggregate.SampleDataset(now, now.UnixNano())
			if err := store.Save(ds); err != nil {
				log.Printf("[aggregate] Could not save sample dataset: %v", err)
			} else {
				log.Printf("[aggregate] Seeded sample dataset at %s", store.Path())
			}
		}
		log.Printf("[aggregate] Loaded %d orders from %s", len(ds.Orders), store.Path())
		return aggregate.NewMemory(ds), noop, nil
	}
}
