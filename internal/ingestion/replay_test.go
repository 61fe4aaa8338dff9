package ingestion

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
)

func collect(t *testing.T, f Feed) []domain.Tick {
	t.Helper()

	out := make(chan domain.Tick, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- f.Run(context.Background(), out)
		close(out)
	}()

	var ticks []domain.Tick
	for tick := range out {
		ticks = append(ticks, tick)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("feed run: %v", err)
	}
	return ticks
}

func TestReplayFeed_ParsesJSONL(t *testing.T) {
	capture := strings.Join([]string{
		`{"exchange":"binance","symbol":"BTC-USD","price":100.5,"volume":2,"timestamp":1000,"side":"buy"}`,
		`{"symbol":"ETH-USD","price":2000,"timestamp":2000}`,
	}, "\n")

	f := NewReplayFeed(strings.NewReader(capture), "replay", zerolog.Nop())
	ticks := collect(t, f)

	if len(ticks) != 2 {
		t.Fatalf("Expected 2 ticks, got %d", len(ticks))
	}
	if ticks[0].Exchange != "binance" || ticks[0].Side != domain.SideBuy {
		t.Errorf("Unexpected first tick: %+v", ticks[0])
	}
	// Missing exchange falls back to the feed default.
	if ticks[1].Exchange != "replay" {
		t.Errorf("Expected default exchange, got %q", ticks[1].Exchange)
	}
	if ticks[1].Volume != 0 || ticks[1].Side != domain.SideNone {
		t.Errorf("Expected defaulted optional fields, got %+v", ticks[1])
	}
}

func TestReplayFeed_SkipsBadLines(t *testing.T) {
	capture := strings.Join([]string{
		`{"exchange":"binance","symbol":"BTC-USD","price":100,"timestamp":1000}`,
		`not json at all`,
		``,
		`{"exchange":"binance","symbol":"BTC-USD","price":0,"timestamp":2000}`,
		`{"exchange":"binance","symbol":"BTC-USD","price":101,"timestamp":3000}`,
	}, "\n")

	f := NewReplayFeed(strings.NewReader(capture), "replay", zerolog.Nop())
	ticks := collect(t, f)

	if len(ticks) != 2 {
		t.Fatalf("Expected 2 usable ticks, got %d", len(ticks))
	}
	// Malformed JSON and the zero-price record count as skipped; the blank
	// line does not.
	if f.Skipped != 2 {
		t.Errorf("Expected 2 skipped lines, got %d", f.Skipped)
	}
	if ticks[1].Price != 101 {
		t.Errorf("Expected replay to continue past bad lines, got %+v", ticks[1])
	}
}

func TestReplayFeed_Deterministic(t *testing.T) {
	capture := `{"exchange":"binance","symbol":"BTC-USD","price":100,"timestamp":1000}
{"exchange":"binance","symbol":"BTC-USD","price":101,"timestamp":2000}
{"exchange":"binance","symbol":"BTC-USD","price":102,"timestamp":3000}`

	first := collect(t, NewReplayFeed(strings.NewReader(capture), "replay", zerolog.Nop()))
	second := collect(t, NewReplayFeed(strings.NewReader(capture), "replay", zerolog.Nop()))

	if len(first) != len(second) {
		t.Fatalf("Replay not deterministic: %d vs %d ticks", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Tick %d differs between replays: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestReplayFeed_ContextCancel(t *testing.T) {
	capture := `{"exchange":"binance","symbol":"BTC-USD","price":100,"timestamp":1000}
{"exchange":"binance","symbol":"BTC-USD","price":101,"timestamp":2000}`

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewReplayFeed(strings.NewReader(capture), "replay", zerolog.Nop())
	out := make(chan domain.Tick) // unbuffered, nothing reads

	if err := f.Run(ctx, out); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestStubFeed(t *testing.T) {
	ticks := []domain.Tick{
		{Exchange: "binance", Symbol: "BTC-USD", Price: 100, TimestampMs: 1000},
		{Exchange: "binance", Symbol: "BTC-USD", Price: 101, TimestampMs: 2000},
	}

	got := collect(t, NewStubFeed(ticks))
	if len(got) != 2 || got[0].Price != 100 || got[1].Price != 101 {
		t.Errorf("Expected stub ticks in order, got %+v", got)
	}
}
