// Package tuner periodically recomputes decision thresholds and indicator
// weights from observed prediction accuracy. A cycle is all-or-nothing:
// the working config only changes when a full recomputation succeeds.
package tuner

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
)

// CycleOutcome explains what a learning cycle invocation did.
type CycleOutcome string

const (
	// OutcomeApplied means the working config was replaced.
	OutcomeApplied CycleOutcome = "APPLIED"
	// OutcomeSkippedGate means too few resolved predictions accumulated.
	OutcomeSkippedGate CycleOutcome = "SKIPPED_GATE"
	// OutcomeSkippedInFlight means another cycle was already running.
	OutcomeSkippedInFlight CycleOutcome = "SKIPPED_IN_FLIGHT"
)

// Config holds tuner policy knobs.
type Config struct {
	// TargetAccuracy is the accuracy (percent) the tuner steers toward.
	TargetAccuracy float64

	// MinResolved is the minimum number of newly resolved predictions
	// required since the last applied cycle.
	MinResolved int

	// Interval is the background cadence for automatic cycles.
	Interval time.Duration
}

// DefaultConfig returns the standard tuner policy.
func DefaultConfig() Config {
	return Config{
		TargetAccuracy: 60,
		MinResolved:    10,
		Interval:       10 * time.Minute,
	}
}

// MetricsSource provides the accuracy snapshot a cycle reads.
type MetricsSource interface {
	Metrics() domain.AccuracyMetrics
	ResolvedCount() int
}

// CycleHook is invoked after every applied cycle with the new config and
// the metrics it was derived from. Used to wire auto-versioning.
type CycleHook func(cfg domain.TunedConfig, m domain.AccuracyMetrics)

// Tuner owns the mutable working copy of the tuned configuration.
type Tuner struct {
	cfg    Config
	source MetricsSource
	hook   CycleHook
	logger zerolog.Logger

	// inFlight is the single-slot cycle lock. Contention is rare, so a
	// flag is enough; concurrent callers observe the current config.
	inFlight atomic.Bool

	mu               sync.RWMutex
	working          domain.TunedConfig
	lastResolvedSeen int
}

// New creates a tuner starting from the default tuned configuration.
func New(cfg Config, source MetricsSource, hook CycleHook, logger zerolog.Logger) *Tuner {
	if cfg.TargetAccuracy <= 0 {
		cfg.TargetAccuracy = DefaultConfig().TargetAccuracy
	}
	if cfg.MinResolved <= 0 {
		cfg.MinResolved = DefaultConfig().MinResolved
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Tuner{
		cfg:     cfg,
		source:  source,
		hook:    hook,
		logger:  logger.With().Str("component", "tuner").Logger(),
		working: domain.DefaultTunedConfig(),
	}
}

// Config returns the current working configuration.
func (t *Tuner) Config() domain.TunedConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.working
}

// ResetConfig restores the hard-coded default configuration. It does not
// create a new model version.
func (t *Tuner) ResetConfig() domain.TunedConfig {
	t.mu.Lock()
	t.working = domain.DefaultTunedConfig()
	cfg := t.working
	t.mu.Unlock()

	t.logger.Info().Msg("tuned config reset to defaults")
	return cfg
}

// RunLearningCycle recomputes the working config from current accuracy.
// No-op when a cycle is already in flight or when fewer than MinResolved
// predictions resolved since the last applied cycle; in both cases the
// unchanged current config is returned.
func (t *Tuner) RunLearningCycle() (domain.TunedConfig, CycleOutcome) {
	if !t.inFlight.CompareAndSwap(false, true) {
		return t.Config(), OutcomeSkippedInFlight
	}
	defer t.inFlight.Store(false)

	resolved := t.source.ResolvedCount()

	t.mu.RLock()
	newlyResolved := resolved - t.lastResolvedSeen
	current := t.working
	t.mu.RUnlock()

	if newlyResolved < t.cfg.MinResolved {
		t.logger.Debug().
			Int("newly_resolved", newlyResolved).
			Int("min_resolved", t.cfg.MinResolved).
			Msg("learning cycle skipped, gate not met")
		return current, OutcomeSkippedGate
	}

	metrics := t.source.Metrics()
	next, ok := nudge(current, metrics.OverallAccuracy, t.cfg.TargetAccuracy)
	if !ok {
		// Computation produced a non-finite config; leave the working
		// config untouched (all-or-nothing per cycle).
		t.logger.Error().Msg("learning cycle produced invalid config, keeping current")
		return current, OutcomeSkippedGate
	}

	t.mu.Lock()
	t.working = next
	t.lastResolvedSeen = resolved
	t.mu.Unlock()

	t.logger.Info().
		Float64("accuracy", metrics.OverallAccuracy).
		Float64("confidence_threshold", next.ConfidenceThreshold).
		Msg("learning cycle applied")

	if t.hook != nil {
		t.hook(next, metrics)
	}
	return next, OutcomeApplied
}

// Run triggers automatic learning cycles on the configured cadence until
// the context is cancelled. The per-cycle gate still applies.
func (t *Tuner) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.RunLearningCycle()
		}
	}
}

// nudge moves the config toward better selectivity when accuracy is below
// target and sharpens the current weighting when above. The step is
// proportional to the accuracy gap scaled by the learning rate. Weights
// stay non-negative and are renormalized to sum to 1.
func nudge(cfg domain.TunedConfig, observed, target float64) (domain.TunedConfig, bool) {
	gap := (target - observed) / 100 // positive when underperforming
	step := cfg.LearningRate * gap

	next := cfg
	next.ConfidenceThreshold = clamp(cfg.ConfidenceThreshold+step*100, 5, 95)

	// Underperforming pulls weights toward uniform (explore);
	// overperforming pushes them apart (exploit what works).
	const uniform = 0.25
	w := cfg.IndicatorWeights
	w.RSI += step * (uniform - w.RSI) * 10
	w.Bollinger += step * (uniform - w.Bollinger) * 10
	w.MACD += step * (uniform - w.MACD) * 10
	w.Volume += step * (uniform - w.Volume) * 10
	next.IndicatorWeights = renormalize(w)

	if !finiteConfig(next) {
		return cfg, false
	}
	return next, true
}

// renormalize clamps weights at zero and rescales them to sum to 1.
// A degenerate all-zero set falls back to uniform weights.
func renormalize(w domain.IndicatorWeights) domain.IndicatorWeights {
	w.RSI = math.Max(w.RSI, 0)
	w.Bollinger = math.Max(w.Bollinger, 0)
	w.MACD = math.Max(w.MACD, 0)
	w.Volume = math.Max(w.Volume, 0)

	sum := w.Sum()
	if sum <= 0 {
		return domain.IndicatorWeights{RSI: 0.25, Bollinger: 0.25, MACD: 0.25, Volume: 0.25}
	}
	w.RSI /= sum
	w.Bollinger /= sum
	w.MACD /= sum
	w.Volume /= sum
	return w
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func finiteConfig(cfg domain.TunedConfig) bool {
	vals := []float64{
		cfg.ConfidenceThreshold,
		cfg.IndicatorWeights.RSI, cfg.IndicatorWeights.Bollinger,
		cfg.IndicatorWeights.MACD, cfg.IndicatorWeights.Volume,
		cfg.LearningRate,
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
