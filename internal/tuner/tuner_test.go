package tuner

import (
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
)

// stubSource returns a fixed accuracy snapshot.
type stubSource struct {
	accuracy float64
	resolved int
}

func (s *stubSource) Metrics() domain.AccuracyMetrics {
	return domain.AccuracyMetrics{
		OverallAccuracy: s.accuracy,
		ResolvedWins:    s.resolved,
	}
}

func (s *stubSource) ResolvedCount() int { return s.resolved }

func newTestTuner(source MetricsSource, hook CycleHook) *Tuner {
	return New(DefaultConfig(), source, hook, zerolog.Nop())
}

func TestRunLearningCycle_GateNotMet(t *testing.T) {
	src := &stubSource{accuracy: 40, resolved: 9}
	tn := newTestTuner(src, nil)

	before := tn.Config()
	cfg, outcome := tn.RunLearningCycle()

	if outcome != OutcomeSkippedGate {
		t.Fatalf("Expected SKIPPED_GATE below min resolved, got %s", outcome)
	}
	if cfg != before {
		t.Errorf("Expected config unchanged on skipped cycle")
	}
}

func TestRunLearningCycle_AppliedUnderperforming(t *testing.T) {
	src := &stubSource{accuracy: 40, resolved: 20}
	tn := newTestTuner(src, nil)

	before := tn.Config()
	cfg, outcome := tn.RunLearningCycle()

	if outcome != OutcomeApplied {
		t.Fatalf("Expected APPLIED, got %s", outcome)
	}
	// Below target raises the confidence threshold: fewer, better signals.
	if cfg.ConfidenceThreshold <= before.ConfidenceThreshold {
		t.Errorf("Expected threshold to rise from %v, got %v",
			before.ConfidenceThreshold, cfg.ConfidenceThreshold)
	}
}

func TestRunLearningCycle_AppliedOverperforming(t *testing.T) {
	src := &stubSource{accuracy: 80, resolved: 20}
	tn := newTestTuner(src, nil)

	before := tn.Config()
	cfg, outcome := tn.RunLearningCycle()

	if outcome != OutcomeApplied {
		t.Fatalf("Expected APPLIED, got %s", outcome)
	}
	if cfg.ConfidenceThreshold >= before.ConfidenceThreshold {
		t.Errorf("Expected threshold to drop from %v, got %v",
			before.ConfidenceThreshold, cfg.ConfidenceThreshold)
	}
}

func TestRunLearningCycle_WeightsStayNormalized(t *testing.T) {
	src := &stubSource{accuracy: 20, resolved: 50}
	tn := newTestTuner(src, nil)

	// Repeated cycles with fresh resolution counts each time.
	for i := 0; i < 10; i++ {
		src.resolved += 20
		cfg, outcome := tn.RunLearningCycle()
		if outcome != OutcomeApplied {
			t.Fatalf("Cycle %d: expected APPLIED, got %s", i, outcome)
		}

		w := cfg.IndicatorWeights
		if w.RSI < 0 || w.Bollinger < 0 || w.MACD < 0 || w.Volume < 0 {
			t.Fatalf("Cycle %d: negative weight in %+v", i, w)
		}
		if math.Abs(w.Sum()-1.0) > 1e-9 {
			t.Fatalf("Cycle %d: weights sum to %v, want 1", i, w.Sum())
		}
		if cfg.ConfidenceThreshold < 5 || cfg.ConfidenceThreshold > 95 {
			t.Fatalf("Cycle %d: threshold %v outside [5,95]", i, cfg.ConfidenceThreshold)
		}
	}
}

func TestRunLearningCycle_GateCountsNewlyResolvedOnly(t *testing.T) {
	src := &stubSource{accuracy: 40, resolved: 20}
	tn := newTestTuner(src, nil)

	if _, outcome := tn.RunLearningCycle(); outcome != OutcomeApplied {
		t.Fatalf("Expected first cycle applied, got %s", outcome)
	}

	// No new resolutions since the applied cycle: gate rejects.
	if _, outcome := tn.RunLearningCycle(); outcome != OutcomeSkippedGate {
		t.Errorf("Expected SKIPPED_GATE with no new resolutions, got %s", outcome)
	}

	// Nine new is still below the gate.
	src.resolved = 29
	if _, outcome := tn.RunLearningCycle(); outcome != OutcomeSkippedGate {
		t.Errorf("Expected SKIPPED_GATE with 9 new resolutions, got %s", outcome)
	}

	src.resolved = 30
	if _, outcome := tn.RunLearningCycle(); outcome != OutcomeApplied {
		t.Errorf("Expected APPLIED with 10 new resolutions, got %s", outcome)
	}
}

func TestRunLearningCycle_SkippedGateDoesNotConsume(t *testing.T) {
	src := &stubSource{accuracy: 40, resolved: 5}
	tn := newTestTuner(src, nil)

	tn.RunLearningCycle() // skipped

	// The skipped cycle must not advance the resolution watermark.
	src.resolved = 10
	if _, outcome := tn.RunLearningCycle(); outcome != OutcomeApplied {
		t.Errorf("Expected APPLIED once total reaches gate, got %s", outcome)
	}
}

func TestRunLearningCycle_SingleInFlight(t *testing.T) {
	src := &stubSource{accuracy: 40, resolved: 100}

	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	tn := newTestTuner(src, func(domain.TunedConfig, domain.AccuracyMetrics) {
		once.Do(func() { close(entered) })
		<-release
	})

	go tn.RunLearningCycle()
	<-entered

	// A second invocation while the first holds the slot is refused.
	_, outcome := tn.RunLearningCycle()
	if outcome != OutcomeSkippedInFlight {
		t.Errorf("Expected SKIPPED_IN_FLIGHT, got %s", outcome)
	}
	close(release)
}

func TestRunLearningCycle_HookFiresOnApplyOnly(t *testing.T) {
	src := &stubSource{accuracy: 40, resolved: 0}
	fired := 0
	tn := newTestTuner(src, func(domain.TunedConfig, domain.AccuracyMetrics) { fired++ })

	tn.RunLearningCycle() // gate not met
	if fired != 0 {
		t.Fatalf("Expected no hook on skipped cycle, fired %d", fired)
	}

	src.resolved = 20
	tn.RunLearningCycle()
	if fired != 1 {
		t.Errorf("Expected hook on applied cycle, fired %d", fired)
	}
}

func TestResetConfig(t *testing.T) {
	src := &stubSource{accuracy: 20, resolved: 50}
	tn := newTestTuner(src, nil)

	tn.RunLearningCycle()
	if tn.Config() == domain.DefaultTunedConfig() {
		t.Fatal("Expected applied cycle to change config")
	}

	got := tn.ResetConfig()
	if got != domain.DefaultTunedConfig() {
		t.Errorf("Expected defaults after reset, got %+v", got)
	}
	if tn.Config() != domain.DefaultTunedConfig() {
		t.Errorf("Expected working config reset")
	}
}
