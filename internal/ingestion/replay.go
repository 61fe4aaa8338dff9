package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
)

// ReplayFeed replays a captured JSONL tick stream, one tick record per
// line, in file order. Deterministic: no wall-clock pacing is applied, so
// a replay through the pipeline reproduces the same outcomes every run.
type ReplayFeed struct {
	r        io.Reader
	exchange string
	logger   zerolog.Logger

	// Lines that fail to parse are skipped and counted.
	Skipped int
}

// NewReplayFeed creates a replay feed over a reader of JSONL tick records.
func NewReplayFeed(r io.Reader, exchange string, logger zerolog.Logger) *ReplayFeed {
	return &ReplayFeed{
		r:        r,
		exchange: exchange,
		logger:   logger.With().Str("component", "replay_feed").Logger(),
	}
}

// OpenReplayFile opens a JSONL capture file as a replay feed. The caller
// owns closing the returned file.
func OpenReplayFile(path, exchange string, logger zerolog.Logger) (*ReplayFeed, *os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open capture: %w", err)
	}
	return NewReplayFeed(file, exchange, logger), file, nil
}

// Run streams all records to out and returns nil at EOF.
func (f *ReplayFeed) Run(ctx context.Context, out chan<- domain.Tick) error {
	scanner := bufio.NewScanner(f.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var msg tickMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.Skipped++
			f.logger.Debug().Int("line", line).Err(err).Msg("unparseable capture line skipped")
			continue
		}

		tick, ok := msg.toTick(f.exchange)
		if !ok {
			f.Skipped++
			continue
		}

		select {
		case out <- tick:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read capture: %w", err)
	}
	return nil
}

var _ Feed = (*ReplayFeed)(nil)
