// Package ledger tracks every emitted signal as a pending prediction and
// resolves it against subsequent prices. Resolution follows a per-signal
// state machine: PENDING is initial, RESOLVED_WIN / RESOLVED_LOSS / EXPIRED
// are terminal. The verifier never fails outward; a symbol whose feed goes
// quiet simply leaves its predictions pending until they expire.
package ledger

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
)

// Config holds the domain timeouts of the verifier.
type Config struct {
	// WinThresholdPct is the minimum percent move in the predicted
	// direction that resolves a win; the same magnitude against the
	// direction resolves a loss.
	WinThresholdPct float64

	// HorizonMs is the resolution horizon. A prediction still pending
	// when an observation arrives past the horizon expires.
	HorizonMs int64
}

// DefaultConfig returns the standard 2% boundary with a 5 minute horizon.
func DefaultConfig() Config {
	return Config{WinThresholdPct: 2.0, HorizonMs: 5 * 60 * 1000}
}

// ResolveFunc is invoked outside all locks for every prediction that
// reaches a terminal state.
type ResolveFunc func(domain.Prediction)

// Ledger is the prediction ledger and verifier. Registration and the
// resolution scan for one symbol are serialized through that symbol's
// shard lock so an in-flight scan can never miss a registration.
type Ledger struct {
	cfg       Config
	logger    zerolog.Logger
	onResolve ResolveFunc

	mu     sync.Mutex
	shards map[domain.MarketKey]*shard
	status map[uint64]domain.PredictionStatus // live status per signal ID

	// Aggregate counters; guarded by mu.
	total      int
	wins       int
	losses     int
	expired    int
	duplicates int
	sumPLPct   float64 // over resolved (non-expired) predictions
	sumTTRMs   float64 // over resolved (non-expired) predictions
}

// shard serializes registration and scanning for one market key.
type shard struct {
	mu      sync.Mutex
	pending []*domain.Prediction // registration order
}

// New creates a ledger. onResolve may be nil.
func New(cfg Config, logger zerolog.Logger, onResolve ResolveFunc) *Ledger {
	if cfg.WinThresholdPct <= 0 {
		cfg.WinThresholdPct = DefaultConfig().WinThresholdPct
	}
	if cfg.HorizonMs <= 0 {
		cfg.HorizonMs = DefaultConfig().HorizonMs
	}
	return &Ledger{
		cfg:       cfg,
		logger:    logger.With().Str("component", "ledger").Logger(),
		onResolve: onResolve,
		shards:    make(map[domain.MarketKey]*shard),
		status:    make(map[uint64]domain.PredictionStatus),
	}
}

// Register stores a new pending prediction for the signal. Exactly-once
// per signal ID: a duplicate ID is counted and ignored.
func (l *Ledger) Register(sig domain.Signal) {
	key := domain.MarketKey{Exchange: sig.Exchange, Symbol: sig.Symbol}

	l.mu.Lock()
	if _, seen := l.status[sig.ID]; seen {
		l.duplicates++
		l.mu.Unlock()
		l.logger.Warn().Uint64("id", sig.ID).Msg("duplicate signal registration ignored")
		return
	}
	l.status[sig.ID] = domain.StatusPending
	l.total++
	sh, ok := l.shards[key]
	if !ok {
		sh = &shard{}
		l.shards[key] = sh
	}
	l.mu.Unlock()

	sig.Status = domain.StatusPending
	pred := &domain.Prediction{
		Signal:         sig,
		EntryPrice:     sig.Price,
		RegisteredAtMs: sig.TimestampMs,
		Status:         domain.StatusPending,
	}

	sh.mu.Lock()
	sh.pending = append(sh.pending, pred)
	sh.mu.Unlock()
}

// Observe checks all pending predictions for the tick's key against the
// new price. Expiry is evaluated before boundary crossing: an observation
// past the horizon expires the prediction even if it would also cross.
// Within the horizon the first boundary crossed wins, in observation order.
func (l *Ledger) Observe(tick domain.Tick) {
	if !tick.Valid() {
		return
	}

	l.mu.Lock()
	sh, ok := l.shards[tick.Key()]
	l.mu.Unlock()
	if !ok {
		return
	}

	var resolved []domain.Prediction

	sh.mu.Lock()
	remaining := sh.pending[:0]
	for _, p := range sh.pending {
		status, plPct := l.evaluate(p, tick)
		if status == domain.StatusPending {
			remaining = append(remaining, p)
			continue
		}
		p.Status = status
		p.Signal.Status = status
		p.ResolvedAtMs = tick.TimestampMs
		p.ProfitLossPct = plPct
		resolved = append(resolved, *p)
	}
	sh.pending = remaining
	sh.mu.Unlock()

	if len(resolved) == 0 {
		return
	}

	l.mu.Lock()
	for _, p := range resolved {
		l.status[p.Signal.ID] = p.Status
		switch p.Status {
		case domain.StatusResolvedWin:
			l.wins++
		case domain.StatusResolvedLoss:
			l.losses++
		case domain.StatusExpired:
			l.expired++
		}
		if p.Status != domain.StatusExpired {
			l.sumPLPct += p.ProfitLossPct
			l.sumTTRMs += float64(p.ResolvedAtMs - p.RegisteredAtMs)
		}
	}
	l.mu.Unlock()

	for _, p := range resolved {
		l.logger.Debug().
			Uint64("id", p.Signal.ID).
			Str("status", string(p.Status)).
			Float64("pl_pct", p.ProfitLossPct).
			Msg("prediction resolved")
		if l.onResolve != nil {
			l.onResolve(p)
		}
	}
}

// evaluate returns the terminal status for the prediction under this
// observation, or StatusPending if it stays open. plPct is the signed
// percent move in the predicted direction, meaningful for resolved states.
func (l *Ledger) evaluate(p *domain.Prediction, tick domain.Tick) (domain.PredictionStatus, float64) {
	elapsed := tick.TimestampMs - p.RegisteredAtMs
	if elapsed > l.cfg.HorizonMs {
		return domain.StatusExpired, 0
	}

	movePct := (tick.Price - p.EntryPrice) / p.EntryPrice * 100
	directional := movePct
	if p.Signal.Type == domain.SignalSell {
		directional = -movePct
	}

	switch {
	case directional >= l.cfg.WinThresholdPct:
		return domain.StatusResolvedWin, directional
	case directional <= -l.cfg.WinThresholdPct:
		return domain.StatusResolvedLoss, directional
	default:
		return domain.StatusPending, 0
	}
}

// StatusOf returns the live status for a signal ID.
func (l *Ledger) StatusOf(id uint64) (domain.PredictionStatus, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.status[id]
	return s, ok
}

// Metrics returns the accuracy snapshot. Calling it twice with no new
// resolutions in between returns identical values.
func (l *Ledger) Metrics() domain.AccuracyMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := domain.AccuracyMetrics{
		TotalPredictions: l.total,
		ResolvedWins:     l.wins,
		ResolvedLosses:   l.losses,
		Expired:          l.expired,
		Pending:          l.total - l.wins - l.losses - l.expired,
	}
	if resolved := l.wins + l.losses; resolved > 0 {
		m.OverallAccuracy = float64(l.wins) / float64(resolved) * 100
		m.AverageProfitLossPct = l.sumPLPct / float64(resolved)
		m.AverageTimeToResolveMs = l.sumTTRMs / float64(resolved)
	}
	return m
}

// ResolvedCount returns the number of resolved (non-expired) predictions.
func (l *Ledger) ResolvedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wins + l.losses
}

// PendingCount returns the number of open predictions across all keys.
func (l *Ledger) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total - l.wins - l.losses - l.expired
}

// DuplicateCount returns how many duplicate registrations were rejected.
func (l *Ledger) DuplicateCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.duplicates
}
