// Package registry snapshots tuned configurations as immutable model
// versions with a staging/production/archived lifecycle. The registry
// mutex is the single writer of version state, which makes the at-most-one
// production invariant structural rather than checked.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/storage"
)

// ErrNoArchivedVersion is returned by Rollback when there is nothing to
// roll back to.
var ErrNoArchivedVersion = errors.New("no archived version to roll back to")

// ErrNotFound is returned when a version ID is unknown.
var ErrNotFound = storage.ErrNotFound

// Registry owns model version lifecycle state.
type Registry struct {
	store  storage.ModelVersionStore
	logger zerolog.Logger
	now    func() time.Time

	// mu is a single-slot lock guarding every state transition, so at
	// most one version can ever hold PRODUCTION. Contention is rare;
	// promote/rollback are low-frequency operations.
	mu           chan struct{}
	productionID string // "" when no version is in production
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a registry over the given store. If the store already holds
// a production version (durable deployments), it is adopted.
func New(ctx context.Context, store storage.ModelVersionStore, logger zerolog.Logger, opts ...Option) (*Registry, error) {
	r := &Registry{
		store:  store,
		logger: logger.With().Str("component", "registry").Logger(),
		now:    time.Now,
		mu:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}

	versions, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load versions: %w", err)
	}
	for _, v := range versions {
		if v.State == domain.StateProduction {
			r.productionID = v.VersionID
			break
		}
	}
	return r, nil
}

func (r *Registry) lock()   { r.mu <- struct{}{} }
func (r *Registry) unlock() { <-r.mu }

// Snapshot captures the config as a new immutable version in STAGING.
func (r *Registry) Snapshot(ctx context.Context, cfg domain.TunedConfig, accuracy float64) (*domain.ModelVersion, error) {
	v := &domain.ModelVersion{
		VersionID:   uuid.NewString(),
		Config:      cfg,
		Accuracy:    accuracy,
		CreatedAtMs: r.now().UnixMilli(),
		State:       domain.StateStaging,
	}

	if err := r.store.Insert(ctx, v); err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}

	r.logger.Info().
		Str("version_id", v.VersionID).
		Float64("accuracy", accuracy).
		Msg("version snapshot created")

	copy := *v
	return &copy, nil
}

// Promote atomically sets the target version to PRODUCTION and demotes the
// previously-production version, if any, to ARCHIVED. Promoting the
// current production version is an idempotent no-op. Returns ErrNotFound
// for an unknown version ID.
func (r *Registry) Promote(ctx context.Context, versionID string) error {
	r.lock()
	defer r.unlock()

	if versionID == r.productionID {
		return nil
	}

	if _, err := r.store.GetByID(ctx, versionID); err != nil {
		return err
	}

	if r.productionID != "" {
		if err := r.store.SetState(ctx, r.productionID, domain.StateArchived); err != nil {
			return fmt.Errorf("archive previous production: %w", err)
		}
	}
	if err := r.store.SetState(ctx, versionID, domain.StateProduction); err != nil {
		return fmt.Errorf("promote version: %w", err)
	}

	prev := r.productionID
	r.productionID = versionID

	r.logger.Info().
		Str("version_id", versionID).
		Str("previous", prev).
		Msg("version promoted to production")
	return nil
}

// Rollback promotes the most recently archived version (by creation time)
// back to PRODUCTION and archives the current production version.
// Returns ErrNoArchivedVersion when no archived version exists.
func (r *Registry) Rollback(ctx context.Context) (*domain.ModelVersion, error) {
	r.lock()
	defer r.unlock()

	versions, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	// List is ordered created_at descending.
	var target *domain.ModelVersion
	for _, v := range versions {
		if v.State == domain.StateArchived {
			target = v
			break
		}
	}
	if target == nil {
		return nil, ErrNoArchivedVersion
	}

	if r.productionID != "" {
		if err := r.store.SetState(ctx, r.productionID, domain.StateArchived); err != nil {
			return nil, fmt.Errorf("archive current production: %w", err)
		}
	}
	if err := r.store.SetState(ctx, target.VersionID, domain.StateProduction); err != nil {
		return nil, fmt.Errorf("promote rollback target: %w", err)
	}

	r.productionID = target.VersionID
	target.State = domain.StateProduction

	r.logger.Info().
		Str("version_id", target.VersionID).
		Msg("rolled back to archived version")

	copy := *target
	return &copy, nil
}

// Production returns the current production version, or ErrNotFound when
// no version has been promoted yet.
func (r *Registry) Production(ctx context.Context) (*domain.ModelVersion, error) {
	r.lock()
	id := r.productionID
	r.unlock()

	if id == "" {
		return nil, ErrNotFound
	}
	return r.store.GetByID(ctx, id)
}

// List returns all versions, newest first.
func (r *Registry) List(ctx context.Context) ([]*domain.ModelVersion, error) {
	return r.store.List(ctx)
}

// Compare exposes a structural diff of two versions' configs and their
// recorded accuracy at capture time. Display only.
func (r *Registry) Compare(ctx context.Context, idA, idB string) (*domain.VersionComparison, error) {
	a, err := r.store.GetByID(ctx, idA)
	if err != nil {
		return nil, fmt.Errorf("version %s: %w", idA, err)
	}
	b, err := r.store.GetByID(ctx, idB)
	if err != nil {
		return nil, fmt.Errorf("version %s: %w", idB, err)
	}

	cmp := &domain.VersionComparison{
		VersionA:  a.VersionID,
		VersionB:  b.VersionID,
		StateA:    a.State,
		StateB:    b.State,
		AccuracyA: a.Accuracy,
		AccuracyB: b.Accuracy,
		Diffs:     diffConfigs(a.Config, b.Config),
	}
	return cmp, nil
}

// diffConfigs lists every scalar that differs between two configs.
func diffConfigs(a, b domain.TunedConfig) []domain.ConfigFieldDiff {
	fields := []struct {
		name string
		a, b float64
	}{
		{"confidenceThreshold", a.ConfidenceThreshold, b.ConfidenceThreshold},
		{"indicatorWeights.rsi", a.IndicatorWeights.RSI, b.IndicatorWeights.RSI},
		{"indicatorWeights.bollinger", a.IndicatorWeights.Bollinger, b.IndicatorWeights.Bollinger},
		{"indicatorWeights.macd", a.IndicatorWeights.MACD, b.IndicatorWeights.MACD},
		{"indicatorWeights.volume", a.IndicatorWeights.Volume, b.IndicatorWeights.Volume},
		{"directionWeights.bullish", a.DirectionWeights.Bullish, b.DirectionWeights.Bullish},
		{"directionWeights.neutral", a.DirectionWeights.Neutral, b.DirectionWeights.Neutral},
		{"directionWeights.bearish", a.DirectionWeights.Bearish, b.DirectionWeights.Bearish},
		{"learningRate", a.LearningRate, b.LearningRate},
	}

	var diffs []domain.ConfigFieldDiff
	for _, f := range fields {
		if f.a != f.b {
			diffs = append(diffs, domain.ConfigFieldDiff{Field: f.name, A: f.a, B: f.b})
		}
	}
	return diffs
}
