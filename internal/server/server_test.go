package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/ingestion"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/ledger"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/pipeline"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/storage/memory"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/tuner"
)

func newTestServer(t *testing.T) (*httptest.Server, *pipeline.Pipeline) {
	t.Helper()

	pipe, err := pipeline.New(context.Background(), pipeline.Options{
		VerifierConfig: ledger.DefaultConfig(),
		TunerConfig:    tuner.DefaultConfig(),
		VersionStore:   memory.NewModelVersionStore(),
		Logger:         zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}

	srv := httptest.NewServer(New(pipe, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv, pipe
}

// feed pushes a tick sequence through the pipeline: warmup plus a signal
// tick plus a resolving tick.
func feed(t *testing.T, pipe *pipeline.Pipeline) {
	t.Helper()

	ticks := make([]domain.Tick, 0, 12)
	for i := 0; i < 10; i++ {
		ticks = append(ticks, domain.Tick{
			Exchange: "binance", Symbol: "BTC-USD", Price: 100, Volume: 1, TimestampMs: int64(i) * 1000,
		})
	}
	ticks = append(ticks,
		domain.Tick{Exchange: "binance", Symbol: "BTC-USD", Price: 100.2, Volume: 1, TimestampMs: 10_000},
		domain.Tick{Exchange: "binance", Symbol: "BTC-USD", Price: 102.3, Volume: 1, TimestampMs: 11_000},
	)

	if err := pipe.Drain(context.Background(), ingestion.NewStubFeed(ticks)); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func getJSON(t *testing.T, url string, wantStatus int, v any) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

func postJSON(t *testing.T, url string, body any, wantStatus int, v any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	getJSON(t, srv.URL+"/healthz", http.StatusOK, &body)
	if body["status"] != "ok" {
		t.Errorf("Unexpected health body: %v", body)
	}
}

func TestFeatures(t *testing.T) {
	srv, pipe := newTestServer(t)
	feed(t, pipe)

	var vec domain.FeatureVector
	getJSON(t, srv.URL+"/api/features?exchange=binance&symbol=BTC-USD", http.StatusOK, &vec)
	if vec.Price != 102.3 {
		t.Errorf("Expected latest price 102.3, got %v", vec.Price)
	}

	getJSON(t, srv.URL+"/api/features?exchange=binance&symbol=UNKNOWN", http.StatusNotFound, nil)
	getJSON(t, srv.URL+"/api/features?exchange=binance", http.StatusBadRequest, nil)
}

func TestSignalsAndAccuracy(t *testing.T) {
	srv, pipe := newTestServer(t)
	feed(t, pipe)

	var signals []domain.Signal
	getJSON(t, srv.URL+"/api/signals", http.StatusOK, &signals)
	if len(signals) != 2 {
		t.Fatalf("Expected 2 signals, got %d", len(signals))
	}
	if signals[0].Status != domain.StatusPending || signals[1].Status != domain.StatusResolvedWin {
		t.Errorf("Unexpected signal statuses: %s / %s", signals[0].Status, signals[1].Status)
	}

	var m domain.AccuracyMetrics
	getJSON(t, srv.URL+"/api/accuracy", http.StatusOK, &m)
	if m.ResolvedWins != 1 || m.OverallAccuracy != 100 {
		t.Errorf("Unexpected accuracy: %+v", m)
	}
}

func TestLearn_ReportsOutcome(t *testing.T) {
	srv, _ := newTestServer(t)

	// No resolutions yet: the gate rejects and the server reports a no-op.
	var body map[string]any
	postJSON(t, srv.URL+"/api/learn", nil, http.StatusAccepted, &body)
	if body["outcome"] != string(tuner.OutcomeSkippedGate) {
		t.Errorf("Expected SKIPPED_GATE outcome, got %v", body["outcome"])
	}
}

func TestVersionLifecycleOverHTTP(t *testing.T) {
	srv, pipe := newTestServer(t)
	ctx := context.Background()

	// Rollback with no archived version is a reported conflict.
	postJSON(t, srv.URL+"/api/rollback", nil, http.StatusConflict, nil)

	v1, err := pipe.Registry().Snapshot(ctx, domain.DefaultTunedConfig(), 50)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	cfg2 := domain.DefaultTunedConfig()
	cfg2.ConfidenceThreshold = 70
	v2, err := pipe.Registry().Snapshot(ctx, cfg2, 60)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	postJSON(t, srv.URL+"/api/promote", map[string]string{"versionId": v1.VersionID}, http.StatusOK, nil)
	postJSON(t, srv.URL+"/api/promote", map[string]string{"versionId": v2.VersionID}, http.StatusOK, nil)
	postJSON(t, srv.URL+"/api/promote", map[string]string{"versionId": "missing"}, http.StatusNotFound, nil)
	postJSON(t, srv.URL+"/api/promote", map[string]string{}, http.StatusBadRequest, nil)

	var versions []domain.ModelVersion
	getJSON(t, srv.URL+"/api/versions", http.StatusOK, &versions)
	if len(versions) != 2 {
		t.Fatalf("Expected 2 versions, got %d", len(versions))
	}

	var cmp domain.VersionComparison
	getJSON(t, srv.URL+"/api/versions/compare?a="+v1.VersionID+"&b="+v2.VersionID, http.StatusOK, &cmp)
	if len(cmp.Diffs) != 1 {
		t.Errorf("Expected 1 config diff, got %+v", cmp.Diffs)
	}
	getJSON(t, srv.URL+"/api/versions/compare?a="+v1.VersionID, http.StatusBadRequest, nil)
	getJSON(t, srv.URL+"/api/versions/compare?a="+v1.VersionID+"&b=missing", http.StatusNotFound, nil)

	// Roll back to v1.
	var rolled domain.ModelVersion
	postJSON(t, srv.URL+"/api/rollback", nil, http.StatusOK, &rolled)
	if rolled.VersionID != v1.VersionID {
		t.Errorf("Expected rollback to v1, got %s", rolled.VersionID)
	}
}

func TestConfigEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	var body struct {
		Working domain.TunedConfig `json:"working"`
	}
	getJSON(t, srv.URL+"/api/config", http.StatusOK, &body)
	if body.Working != domain.DefaultTunedConfig() {
		t.Errorf("Expected default working config, got %+v", body.Working)
	}

	var reset domain.TunedConfig
	postJSON(t, srv.URL+"/api/reset-config", nil, http.StatusOK, &reset)
	if reset != domain.DefaultTunedConfig() {
		t.Errorf("Expected defaults from reset, got %+v", reset)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/learn")
	if err != nil {
		t.Fatalf("GET /api/learn: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET on POST route, got %d", resp.StatusCode)
	}
}
