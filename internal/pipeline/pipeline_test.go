package pipeline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/ingestion"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/ledger"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/storage/memory"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/tuner"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()

	p, err := New(context.Background(), Options{
		VerifierConfig: ledger.DefaultConfig(),
		TunerConfig:    tuner.DefaultConfig(),
		VersionStore:   memory.NewModelVersionStore(),
		Logger:         zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func tick(price float64, tsMs int64) domain.Tick {
	return domain.Tick{
		Exchange:    "binance",
		Symbol:      "BTC-USD",
		Price:       price,
		Volume:      1,
		TimestampMs: tsMs,
	}
}

// warmup returns ten flat ticks that fill the signal price buffer without
// emitting anything.
func warmup() []domain.Tick {
	ticks := make([]domain.Tick, 10)
	for i := range ticks {
		ticks[i] = tick(100, int64(i)*1000)
	}
	return ticks
}

func TestDrain_SignalThenResolution(t *testing.T) {
	p := newTestPipeline(t)

	// After warmup: 100.2 emits a BUY against the flat average, then the
	// +2.1% move on the next tick resolves it as a win.
	ticks := append(warmup(), tick(100.2, 10_000), tick(102.3, 11_000))

	if err := p.Drain(context.Background(), ingestion.NewStubFeed(ticks)); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	m := p.Accuracy()
	if m.ResolvedWins != 1 {
		t.Fatalf("Expected 1 win, got %+v", m)
	}
	// The resolving tick itself emitted a fresh signal, still pending.
	if m.Pending != 1 {
		t.Errorf("Expected 1 pending, got %+v", m)
	}
	if m.OverallAccuracy != 100 {
		t.Errorf("Expected 100%% accuracy, got %v", m.OverallAccuracy)
	}
}

func TestDrain_SignalNeverResolvedByOwnTick(t *testing.T) {
	p := newTestPipeline(t)

	// The emitting tick observes the ledger before the signal registers,
	// so even a wild price cannot resolve the signal it creates.
	ticks := append(warmup(), tick(150, 10_000))

	if err := p.Drain(context.Background(), ingestion.NewStubFeed(ticks)); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	m := p.Accuracy()
	if m.TotalPredictions != 1 || m.Pending != 1 {
		t.Errorf("Expected the signal to stay pending, got %+v", m)
	}
}

func TestRecentSignals_CarryLiveStatus(t *testing.T) {
	p := newTestPipeline(t)

	ticks := append(warmup(), tick(100.2, 10_000), tick(102.3, 11_000))
	if err := p.Drain(context.Background(), ingestion.NewStubFeed(ticks)); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	recent := p.RecentSignals()
	if len(recent) != 2 {
		t.Fatalf("Expected 2 recent signals, got %d", len(recent))
	}
	// Most recent first: the pending one, then the resolved win.
	if recent[0].Status != domain.StatusPending {
		t.Errorf("Expected newest signal pending, got %s", recent[0].Status)
	}
	if recent[1].Status != domain.StatusResolvedWin {
		t.Errorf("Expected oldest signal resolved, got %s", recent[1].Status)
	}
}

func TestDrain_Deterministic(t *testing.T) {
	ticks := warmup()
	price := 100.0
	for i := 0; i < 20; i++ {
		price *= 1.03
		ticks = append(ticks, tick(price, int64(10+i)*1000))
	}

	run := func() domain.AccuracyMetrics {
		p := newTestPipeline(t)
		if err := p.Drain(context.Background(), ingestion.NewStubFeed(ticks)); err != nil {
			t.Fatalf("Drain: %v", err)
		}
		return p.Accuracy()
	}

	first := run()
	second := run()
	if first != second {
		t.Errorf("Replay not deterministic: %+v vs %+v", first, second)
	}
	if first.ResolvedWins == 0 {
		t.Errorf("Expected wins from the rising sequence, got %+v", first)
	}
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	p := newTestPipeline(t)

	events, cancel := p.Subscribe()
	defer cancel()

	ticks := append(warmup(), tick(100.2, 10_000), tick(102.3, 11_000))
	if err := p.Drain(context.Background(), ingestion.NewStubFeed(ticks)); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	counts := map[EventType]int{}
	for len(events) > 0 {
		counts[(<-events).Type]++
	}
	if counts[EventSignal] != 2 {
		t.Errorf("Expected 2 signal events, got %d", counts[EventSignal])
	}
	if counts[EventResolution] != 1 {
		t.Errorf("Expected 1 resolution event, got %d", counts[EventResolution])
	}
}

func TestForceLearningCycle_AutoVersionsOnApply(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	// A steadily rising feed: every post-warmup tick emits a BUY and the
	// next one resolves it, accumulating enough wins to pass the gate.
	ticks := warmup()
	price := 100.0
	for i := 0; i < 15; i++ {
		price *= 1.03
		ticks = append(ticks, tick(price, int64(10+i)*1000))
	}
	if err := p.Drain(ctx, ingestion.NewStubFeed(ticks)); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if p.Accuracy().ResolvedWins < 10 {
		t.Fatalf("Test setup: expected >= 10 wins, got %+v", p.Accuracy())
	}

	cfg, outcome := p.ForceLearningCycle()
	if outcome != tuner.OutcomeApplied {
		t.Fatalf("Expected APPLIED, got %s", outcome)
	}
	if cfg == domain.DefaultTunedConfig() {
		t.Error("Expected applied cycle to move the config")
	}

	// The first applied cycle bootstraps production.
	prod, err := p.Registry().Production(ctx)
	if err != nil {
		t.Fatalf("Production: %v", err)
	}
	if prod.State != domain.StateProduction {
		t.Errorf("Expected production state, got %s", prod.State)
	}
	if prod.Accuracy != 100 {
		t.Errorf("Expected recorded accuracy 100, got %v", prod.Accuracy)
	}
	if prod.Config != cfg {
		t.Errorf("Expected production config to match applied config")
	}
}

func TestForceLearningCycle_GateReportsNoOp(t *testing.T) {
	p := newTestPipeline(t)

	cfg, outcome := p.ForceLearningCycle()
	if outcome != tuner.OutcomeSkippedGate {
		t.Fatalf("Expected SKIPPED_GATE with no resolutions, got %s", outcome)
	}
	if cfg != domain.DefaultTunedConfig() {
		t.Errorf("Expected unchanged default config")
	}

	// No version is created for a skipped cycle.
	if _, err := p.Registry().Production(context.Background()); err == nil {
		t.Error("Expected no production version after skipped cycle")
	}
}

func TestResetConfig(t *testing.T) {
	p := newTestPipeline(t)

	ticks := warmup()
	price := 100.0
	for i := 0; i < 15; i++ {
		price *= 1.03
		ticks = append(ticks, tick(price, int64(10+i)*1000))
	}
	if err := p.Drain(context.Background(), ingestion.NewStubFeed(ticks)); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	p.ForceLearningCycle()

	if got := p.ResetConfig(); got != domain.DefaultTunedConfig() {
		t.Errorf("Expected defaults after reset, got %+v", got)
	}
	if p.Config() != domain.DefaultTunedConfig() {
		t.Errorf("Expected working config reset")
	}
}

func TestProcess_DropsInvalidTicks(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	bad := domain.Tick{Exchange: "binance", Symbol: "BTC-USD", Price: 0, TimestampMs: 1000}
	if err := p.Process(ctx, bad); err != nil {
		t.Fatalf("Process: %v", err)
	}
	p.shutdownWorkers()

	if got := p.Features().HistoryLen("binance", "BTC-USD"); got != 0 {
		t.Errorf("Expected invalid tick dropped before workers, got history %d", got)
	}
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := newBroadcaster()

	ch, cancel := b.subscribe()
	defer cancel()

	// Publish more events than the buffer holds; publish must never block.
	for i := 0; i < subscriberBuffer*2; i++ {
		b.publish(Event{Type: EventSignal})
	}

	if got := len(ch); got != subscriberBuffer {
		t.Errorf("Expected buffer capped at %d, got %d", subscriberBuffer, got)
	}
}

func TestBroadcaster_CancelClosesChannel(t *testing.T) {
	b := newBroadcaster()

	ch, cancel := b.subscribe()
	cancel()
	cancel() // double cancel is safe

	if _, ok := <-ch; ok {
		t.Error("Expected closed channel after cancel")
	}

	// Publishing after cancel reaches no one and must not panic.
	b.publish(Event{Type: EventSignal})
}
