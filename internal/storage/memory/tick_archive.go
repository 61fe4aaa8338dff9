package memory

import (
	"context"
	"sync"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/storage"
)

// TickArchive is an in-memory implementation of storage.TickArchive,
// used for single-run deployments and tests.
type TickArchive struct {
	mu          sync.RWMutex
	ticks       []*domain.Tick
	resolutions []*domain.Prediction
}

// NewTickArchive creates a new in-memory tick archive.
func NewTickArchive() *TickArchive {
	return &TickArchive{}
}

// ArchiveTicks appends a batch of ticks.
func (a *TickArchive) ArchiveTicks(_ context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, t := range ticks {
		copy := *t
		a.ticks = append(a.ticks, &copy)
	}
	return nil
}

// ArchiveResolutions appends a batch of terminal predictions.
func (a *TickArchive) ArchiveResolutions(_ context.Context, predictions []*domain.Prediction) error {
	if len(predictions) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, p := range predictions {
		copy := *p
		a.resolutions = append(a.resolutions, &copy)
	}
	return nil
}

// Ticks returns a snapshot of all archived ticks in append order.
func (a *TickArchive) Ticks() []*domain.Tick {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make([]*domain.Tick, len(a.ticks))
	for i, t := range a.ticks {
		copy := *t
		result[i] = &copy
	}
	return result
}

// Resolutions returns a snapshot of all archived resolutions in append order.
func (a *TickArchive) Resolutions() []*domain.Prediction {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make([]*domain.Prediction, len(a.resolutions))
	for i, p := range a.resolutions {
		copy := *p
		result[i] = &copy
	}
	return result
}

var _ storage.TickArchive = (*TickArchive)(nil)
