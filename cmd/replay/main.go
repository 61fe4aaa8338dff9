// Package main replays a captured JSONL tick stream through the pipeline
// and prints the resulting accuracy metrics, signals and tuned config.
// Replays are deterministic: the same capture produces the same outcomes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/ingestion"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/ledger"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/pipeline"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/storage/memory"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/tuner"
)

func main() {
	capturePath := flag.String("capture", "", "Path to JSONL tick capture file (required)")
	exchange := flag.String("exchange", "replay", "Exchange label for records without one")
	winThresholdPct := flag.Float64("win-threshold-pct", 2.0, "Win threshold in percent")
	horizon := flag.Duration("horizon", 5*time.Minute, "Prediction horizon")
	learnAtEnd := flag.Bool("learn", true, "Run a learning cycle after the replay")
	flag.Parse()

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	if *capturePath == "" {
		logger.Fatal().Msg("--capture is required")
	}

	ctx := context.Background()

	pipe, err := pipeline.New(ctx, pipeline.Options{
		VerifierConfig: ledger.Config{
			WinThresholdPct: *winThresholdPct,
			HorizonMs:       horizon.Milliseconds(),
		},
		TunerConfig:  tuner.DefaultConfig(),
		VersionStore: memory.NewModelVersionStore(),
		Archive:      memory.NewTickArchive(),
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create pipeline")
	}

	feed, file, err := ingestion.OpenReplayFile(*capturePath, *exchange, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open capture")
	}
	defer file.Close()

	if err := pipe.Drain(ctx, feed); err != nil {
		logger.Fatal().Err(err).Msg("replay failed")
	}

	summary := map[string]any{
		"skipped_lines": feed.Skipped,
		"accuracy":      pipe.Accuracy(),
		"signals":       pipe.RecentSignals(),
	}

	if *learnAtEnd {
		cfg, outcome := pipe.ForceLearningCycle()
		summary["learning_outcome"] = outcome
		summary["config"] = cfg
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Fatal().Err(err).Msg("encode summary")
	}
}
