package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickwarner/slotengine/internal/analytics"
	"github.com/patrickwarner/slotengine/internal/api"
	"github.com/patrickwarner/slotengine/internal/clock"
	"github.com/patrickwarner/slotengine/internal/config"
	"github.com/patrickwarner/slotengine/internal/db"
	"github.com/patrickwarner/slotengine/internal/fetch"
	"github.com/patrickwarner/slotengine/internal/geoip"
	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
	"github.com/patrickwarner/slotengine/internal/report"
	"github.com/patrickwarner/slotengine/internal/slot"
	"github.com/patrickwarner/slotengine/internal/targeting"
	"github.com/patrickwarner/slotengine/internal/viewability"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdownTracing, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			logger.Warn("tracing disabled", zap.Error(err))
		} else {
			defer shutdownTracing()
		}
	}

	metricsRegistry := observability.NewPrometheusRegistry()
	placements := models.NewInMemoryPlacementStore()

	var pg *db.Postgres
	if cfg.PostgresDSN != "" {
		p, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			logger.Warn("postgres unavailable, placement registry empty", zap.Error(err))
		} else {
			pg = p
			defer pg.Close()
			n, err := db.ReloadPlacements(ctx, pg, placements)
			if err != nil {
				return fmt.Errorf("load placements: %w", err)
			}
			logger.Info("placements loaded", zap.Int("count", n))
		}
	}

	sinks := []report.Sink{report.NewHTTPSink(cfg.PlacementServiceURL)}

	if cfg.RedisAddr != "" {
		store, err := db.InitRedis(cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, store)
	}

	if cfg.ClickHouseDSN != "" {
		analyticsSvc, err := analytics.InitClickHouse(cfg.ClickHouseDSN, cfg.CHMaxOpenConns, cfg.CHMaxIdleConns, cfg.CHConnMaxLifetime, cfg.CHConnMaxIdleTime)
		if err != nil {
			return fmt.Errorf("failed to connect clickhouse: %w", err)
		}
		defer analyticsSvc.Close()
		sinks = append(sinks, analyticsSvc)
	}

	var locator targeting.Locator
	if cfg.GeoIPDB != "" {
		geoSvc, err := geoip.Init(cfg.GeoIPDB)
		if err != nil {
			return fmt.Errorf("failed to load geoip db: %w", err)
		}
		defer func() { _ = geoSvc.Close() }()
		locator = geoSvc
	}

	reporter := report.NewReporter(cfg.ReportTimeout, logger, metricsRegistry, sinks...)
	deps := slot.Deps{
		Resolver: fetch.NewFetcher(cfg.PlacementServiceURL, cfg.FetchTimeout, logger, metricsRegistry),
		Reporter: reporter,
		Clock:    clock.Real(),
		Viewability: viewability.Config{
			Threshold: cfg.VisibilityThreshold,
			Dwell:     cfg.DwellThreshold,
		},
		Logger:  logger,
		Metrics: metricsRegistry,
	}

	srvDeps := api.NewServer(logger, cfg, deps, placements, pg, locator, metricsRegistry)
	r := srvDeps.Router()
	r.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, "slotengine"),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("slot engine running",
		zap.String("addr", addr),
		zap.String("placement_service", cfg.PlacementServiceURL),
		zap.Int("sinks", len(sinks)))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	if cfg.ReloadInterval > 0 && pg != nil {
		ticker := time.NewTicker(cfg.ReloadInterval)
		go func() {
			for {
				select {
				case <-ticker.C:
					if err := srvDeps.Reload(ctx); err != nil {
						logger.Error("auto reload", zap.Error(err))
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// hijacked websocket connections are not closed by Shutdown
	srvDeps.UnmountAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := reporter.Close(shutdownCtx); err != nil {
		logger.Warn("pending engagement reports dropped", zap.Error(err))
	}
	return nil
}
