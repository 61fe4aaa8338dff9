// Package main runs the adaptive signal pipeline as a long-lived service:
// tick ingestion, feature computation, signal generation, prediction
// verification, scheduled tuning and the HTTP control surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/config"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/ingestion"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/ledger"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/observability"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/pipeline"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/server"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/storage"
	chstore "github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/storage/clickhouse"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/storage/memory"
	pgstore "github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/storage/postgres"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/tuner"
)

func main() {
	// Load .env if present; system env vars keep precedence.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to YAML config file")
	httpAddr := flag.String("http-addr", "", "HTTP listen address (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.App.HTTPAddr = *httpAddr
	}

	logger := newLogger(cfg.App.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	versionStore, archive, cleanup, err := createStores(ctx, cfg, *useMemory, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	pipe, err := pipeline.New(ctx, pipeline.Options{
		VerifierConfig: ledger.Config{
			WinThresholdPct: cfg.Verifier.WinThresholdPct,
			HorizonMs:       cfg.Verifier.Horizon.Milliseconds(),
		},
		TunerConfig: tuner.Config{
			TargetAccuracy: cfg.Tuner.TargetAccuracy,
			MinResolved:    cfg.Tuner.MinResolved,
			Interval:       cfg.Tuner.Interval,
		},
		PromoteDeltaPct: cfg.Tuner.PromoteDeltaPct,
		VersionStore:    versionStore,
		Archive:         archive,
		Metrics:         observability.NewMetrics("signal_pipeline"),
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create pipeline")
	}

	feed := createFeed(cfg, logger)

	httpSrv := &http.Server{
		Addr:    cfg.App.HTTPAddr,
		Handler: server.New(pipe, logger).Handler(),
	}

	// Handle shutdown signals.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info().Str("addr", cfg.App.HTTPAddr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
			cancel()
		}
	}()

	logger.Info().
		Str("exchange", cfg.Feed.Exchange).
		Strs("symbols", cfg.Feed.Symbols).
		Msg("pipeline starting")

	if err := pipe.Run(ctx, feed); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("pipeline failed")
	}

	logger.Info().Msg("shutdown complete")
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

// createStores selects persistence backends: in-memory for offline runs,
// PostgreSQL for versions plus ClickHouse for the archive otherwise. A
// missing ClickHouse DSN disables archiving without failing startup.
func createStores(ctx context.Context, cfg *config.Config, useMemory bool, logger zerolog.Logger) (storage.ModelVersionStore, storage.TickArchive, func(), error) {
	if useMemory || cfg.Storage.PostgresDSN == "" {
		return memory.NewModelVersionStore(), memory.NewTickArchive(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	versionStore := pgstore.NewModelVersionStore(pool)
	if err := versionStore.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	if cfg.Storage.ClickhouseDSN == "" {
		logger.Warn().Msg("no clickhouse dsn, tick archiving disabled")
		return versionStore, nil, pool.Close, nil
	}

	chConn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	archive := chstore.NewTickArchive(chConn)
	if err := archive.Migrate(ctx); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return versionStore, archive, cleanup, nil
}

// createFeed selects the tick source: the exchange websocket when an
// endpoint is configured, the stub feed otherwise.
func createFeed(cfg *config.Config, logger zerolog.Logger) ingestion.Feed {
	if cfg.Feed.Endpoint != "" {
		return ingestion.NewWSFeed(cfg.Feed.Endpoint, cfg.Feed.Exchange, cfg.Feed.Symbols, nil, logger)
	}
	logger.Warn().Msg("no feed endpoint configured, using stub feed")
	return ingestion.NewStubFeed(nil)
}
