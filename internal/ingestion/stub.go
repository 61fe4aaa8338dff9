package ingestion

import (
	"context"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
)

// StubFeed delivers a fixed tick sequence, for tests and offline runs.
type StubFeed struct {
	Ticks []domain.Tick
}

// NewStubFeed creates a stub feed over the given ticks.
func NewStubFeed(ticks []domain.Tick) *StubFeed {
	return &StubFeed{Ticks: ticks}
}

// Run sends every tick in order and returns nil.
func (f *StubFeed) Run(ctx context.Context, out chan<- domain.Tick) error {
	for _, t := range f.Ticks {
		select {
		case out <- t:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

var _ Feed = (*StubFeed)(nil)
