package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/storage"
)

// ModelVersionStore is an in-memory implementation of storage.ModelVersionStore.
type ModelVersionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ModelVersion // keyed by version_id
}

// NewModelVersionStore creates a new in-memory model version store.
func NewModelVersionStore() *ModelVersionStore {
	return &ModelVersionStore{
		data: make(map[string]*domain.ModelVersion),
	}
}

// Insert adds a new version. Returns ErrDuplicateKey if version_id exists.
func (s *ModelVersionStore) Insert(_ context.Context, v *domain.ModelVersion) error {
	if v == nil || v.VersionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[v.VersionID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *v
	s.data[v.VersionID] = &copy
	return nil
}

// GetByID retrieves a version by its ID. Returns ErrNotFound if not exists.
func (s *ModelVersionStore) GetByID(_ context.Context, versionID string) (*domain.ModelVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.data[versionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *v
	return &copy, nil
}

// SetState updates the lifecycle state of a version.
func (s *ModelVersionStore) SetState(_ context.Context, versionID string, state domain.VersionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.data[versionID]
	if !exists {
		return storage.ErrNotFound
	}

	v.State = state
	return nil
}

// List retrieves all versions ordered by created_at descending.
func (s *ModelVersionStore) List(_ context.Context) ([]*domain.ModelVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ModelVersion, 0, len(s.data))
	for _, v := range s.data {
		copy := *v
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAtMs != result[j].CreatedAtMs {
			return result[i].CreatedAtMs > result[j].CreatedAtMs
		}
		return result[i].VersionID > result[j].VersionID
	})

	return result, nil
}

var _ storage.ModelVersionStore = (*ModelVersionStore)(nil)
