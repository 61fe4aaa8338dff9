package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/storage"
)

// schemaModelVersions creates the model_versions table.
const schemaModelVersions = `
CREATE TABLE IF NOT EXISTS model_versions (
    version_id    TEXT PRIMARY KEY,
    config        JSONB NOT NULL,
    accuracy      DOUBLE PRECISION NOT NULL,
    created_at_ms BIGINT NOT NULL,
    state         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_model_versions_created_at
    ON model_versions (created_at_ms DESC);
`

// ModelVersionStore is a PostgreSQL implementation of storage.ModelVersionStore,
// used when the registry must survive process restarts.
type ModelVersionStore struct {
	pool *Pool
}

// NewModelVersionStore creates a new PostgreSQL model version store.
func NewModelVersionStore(pool *Pool) *ModelVersionStore {
	return &ModelVersionStore{pool: pool}
}

// Migrate applies the store schema.
func (s *ModelVersionStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaModelVersions); err != nil {
		return fmt.Errorf("migrate model_versions: %w", err)
	}
	return nil
}

// Insert adds a new version. Returns ErrDuplicateKey if version_id exists.
func (s *ModelVersionStore) Insert(ctx context.Context, v *domain.ModelVersion) error {
	if v == nil || v.VersionID == "" {
		return storage.ErrInvalidInput
	}

	cfg, err := json.Marshal(v.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO model_versions (version_id, config, accuracy, created_at_ms, state)
		VALUES ($1, $2, $3, $4, $5)`,
		v.VersionID, cfg, v.Accuracy, v.CreatedAtMs, string(v.State),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert model version: %w", err)
	}
	return nil
}

// GetByID retrieves a version by its ID. Returns ErrNotFound if not exists.
func (s *ModelVersionStore) GetByID(ctx context.Context, versionID string) (*domain.ModelVersion, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT version_id, config, accuracy, created_at_ms, state
		FROM model_versions WHERE version_id = $1`, versionID)

	v, err := scanVersion(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get model version: %w", err)
	}
	return v, nil
}

// SetState updates the lifecycle state of a version.
func (s *ModelVersionStore) SetState(ctx context.Context, versionID string, state domain.VersionState) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE model_versions SET state = $2 WHERE version_id = $1`,
		versionID, string(state),
	)
	if err != nil {
		return fmt.Errorf("update model version state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves all versions ordered by created_at descending.
func (s *ModelVersionStore) List(ctx context.Context) ([]*domain.ModelVersion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT version_id, config, accuracy, created_at_ms, state
		FROM model_versions
		ORDER BY created_at_ms DESC, version_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list model versions: %w", err)
	}
	defer rows.Close()

	var result []*domain.ModelVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan model version: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate model versions: %w", err)
	}
	return result, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*domain.ModelVersion, error) {
	var (
		v     domain.ModelVersion
		cfg   []byte
		state string
	)
	if err := row.Scan(&v.VersionID, &cfg, &v.Accuracy, &v.CreatedAtMs, &state); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfg, &v.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	v.State = domain.VersionState(state)
	return &v, nil
}

var _ storage.ModelVersionStore = (*ModelVersionStore)(nil)
