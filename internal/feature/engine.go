// Package feature derives per-tick feature vectors from bounded rolling
// tick history. Ingest is total: it never fails outward, falling back to a
// neutral vector on degraded input so the pipeline keeps advancing.
package feature

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
)

// Wall-clock sub-windows, partitioned by elapsed time relative to the
// current tick. RSI deliberately does not use these (see rsi14).
const (
	window1m  = 60_000
	window5m  = 300_000
	window15m = 900_000
)

// rsiPeriod is the tick-count window for RSI. Counted in ticks, not time.
const rsiPeriod = 14

// Engine computes feature vectors from per-key tick histories and keeps
// the latest vector per key as the online store.
type Engine struct {
	capacity int
	logger   zerolog.Logger

	mu        sync.RWMutex
	histories map[domain.MarketKey]*history
	online    map[domain.MarketKey]domain.FeatureVector
}

// NewEngine creates a feature engine with the standard history bound.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		capacity:  HistoryCapacity,
		logger:    logger.With().Str("component", "feature").Logger(),
		histories: make(map[domain.MarketKey]*history),
		online:    make(map[domain.MarketKey]domain.FeatureVector),
	}
}

// Ingest appends the tick to its key's history and returns the derived
// feature vector. Total function: malformed ticks and internal computation
// anomalies yield a neutral fallback vector, never an error.
func (e *Engine) Ingest(tick domain.Tick) domain.FeatureVector {
	if !tick.Valid() {
		e.logger.Warn().
			Str("key", tick.Key().String()).
			Float64("price", tick.Price).
			Msg("invalid tick, returning neutral vector")
		return neutralVector(tick)
	}
	if tick.Volume < 0 || math.IsNaN(tick.Volume) {
		tick.Volume = 0
	}

	e.mu.Lock()
	h, ok := e.histories[tick.Key()]
	if !ok {
		h = newHistory(e.capacity)
		e.histories[tick.Key()] = h
	}
	h.push(tick)
	vec := compute(h, tick)
	e.online[tick.Key()] = vec
	e.mu.Unlock()

	return vec
}

// GetOnline returns the last computed vector for the key, or false if the
// key was never observed.
func (e *Engine) GetOnline(exchange, symbol string) (domain.FeatureVector, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	vec, ok := e.online[domain.MarketKey{Exchange: exchange, Symbol: symbol}]
	return vec, ok
}

// HistoryLen returns the retained history length for the key.
func (e *Engine) HistoryLen(exchange, symbol string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	h, ok := e.histories[domain.MarketKey{Exchange: exchange, Symbol: symbol}]
	if !ok {
		return 0
	}
	return h.len()
}

// HistoryTicks returns a copy of the retained history in arrival order.
func (e *Engine) HistoryTicks(exchange, symbol string) []domain.Tick {
	e.mu.RLock()
	defer e.mu.RUnlock()

	h, ok := e.histories[domain.MarketKey{Exchange: exchange, Symbol: symbol}]
	if !ok {
		return nil
	}
	return h.last(h.len())
}

// compute derives the full vector from history. The history already
// contains the current tick.
func compute(h *history, tick domain.Tick) domain.FeatureVector {
	vec := domain.FeatureVector{
		Exchange:    tick.Exchange,
		Symbol:      tick.Symbol,
		Price:       tick.Price,
		Volume:      tick.Volume,
		VolumeMA5m:  tick.Volume,
		RSI14:       domain.RSINeutral,
		TimestampMs: tick.TimestampMs,
	}

	vec.PriceChange1m = pctChange(h, tick, window1m)
	vec.PriceChange5m = pctChange(h, tick, window5m)
	vec.PriceChange15m = pctChange(h, tick, window15m)

	if w5 := h.window(tick.TimestampMs - window5m); len(w5) > 0 {
		var sum float64
		for _, t := range w5 {
			sum += t.Volume
		}
		vec.VolumeMA5m = sum / float64(len(w5))
	}

	vec.Volatility1m = volatility(h.window(tick.TimestampMs - window1m))
	vec.RSI14 = rsi14(h)

	if !finite(vec.PriceChange1m) || !finite(vec.PriceChange5m) || !finite(vec.PriceChange15m) ||
		!finite(vec.VolumeMA5m) || !finite(vec.Volatility1m) || !finite(vec.RSI14) {
		return neutralVector(tick)
	}
	return vec
}

// pctChange computes fractional change of the current price against the
// oldest tick inside the window. An empty window references the current
// price, so a cold start yields zero change.
func pctChange(h *history, tick domain.Tick, windowMs int64) float64 {
	w := h.window(tick.TimestampMs - windowMs)
	if len(w) == 0 {
		return 0
	}
	ref := w[0].Price
	if ref == 0 {
		return 0
	}
	return (tick.Price - ref) / ref
}

// volatility is the population standard deviation of prices divided by
// their mean. Zero when fewer than 2 points or the mean is zero.
func volatility(w []domain.Tick) float64 {
	if len(w) < 2 {
		return 0
	}
	var sum float64
	for _, t := range w {
		sum += t.Price
	}
	mean := sum / float64(len(w))
	if mean == 0 {
		return 0
	}
	var ss float64
	for _, t := range w {
		d := t.Price - mean
		ss += d * d
	}
	return math.Sqrt(ss/float64(len(w))) / mean
}

// rsi14 computes the relative strength index over the last rsiPeriod ticks
// by count. This is intentionally not a wall-clock window: a slow feed
// still gets a full RSI while the time-bounded features shrink.
// When cumulative losses are zero the vector holds at neutral 50.
func rsi14(h *history) float64 {
	ticks := h.last(rsiPeriod)
	if len(ticks) < 2 {
		return domain.RSINeutral
	}

	var gains, losses float64
	for i := 1; i < len(ticks); i++ {
		delta := ticks[i].Price - ticks[i-1].Price
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	if losses == 0 {
		return domain.RSINeutral
	}
	return 100 - 100/(1+gains/losses)
}

// neutralVector is the fail-soft fallback for degraded input.
func neutralVector(tick domain.Tick) domain.FeatureVector {
	return domain.FeatureVector{
		Exchange:    tick.Exchange,
		Symbol:      tick.Symbol,
		Price:       tick.Price,
		Volume:      tick.Volume,
		VolumeMA5m:  tick.Volume,
		RSI14:       domain.RSINeutral,
		TimestampMs: tick.TimestampMs,
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
