package storage

import (
	"context"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
)

// ModelVersionStore persists model versions for the registry. The registry
// is the only writer; stores enforce key uniqueness but not the
// single-production invariant, which the registry owns.
type ModelVersionStore interface {
	// Insert adds a new version. Returns ErrDuplicateKey if version_id exists.
	Insert(ctx context.Context, v *domain.ModelVersion) error

	// GetByID retrieves a version by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, versionID string) (*domain.ModelVersion, error)

	// SetState updates the lifecycle state of a version.
	// Returns ErrNotFound if the version does not exist.
	SetState(ctx context.Context, versionID string, state domain.VersionState) error

	// List retrieves all versions ordered by created_at descending.
	List(ctx context.Context) ([]*domain.ModelVersion, error)
}

// TickArchive is an append-only sink for observed ticks and resolved
// predictions, used for offline analysis. Archive writes are off the hot
// path and failures never propagate into the pipeline.
type TickArchive interface {
	// ArchiveTicks appends a batch of ticks.
	ArchiveTicks(ctx context.Context, ticks []*domain.Tick) error

	// ArchiveResolutions appends a batch of terminal predictions.
	ArchiveResolutions(ctx context.Context, predictions []*domain.Prediction) error
}
