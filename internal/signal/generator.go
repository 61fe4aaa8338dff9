// Package signal classifies ticks into directional BUY/SELL signals from a
// short per-key rolling price buffer.
package signal

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
)

const (
	// priceBufferSize is the rolling buffer of prior prices per key.
	priceBufferSize = 10

	// deviationThresholdPct is the emission threshold: BUY above
	// +0.1% deviation from the buffer average, SELL below -0.1%.
	deviationThresholdPct = 0.1

	// recentSignalCap bounds the most-recent-signal list. FIFO eviction.
	recentSignalCap = 20
)

// Registrar receives every emitted signal exactly once for outcome
// tracking. Registration is idempotent per signal ID on the far side.
type Registrar interface {
	Register(sig domain.Signal)
}

// Generator emits at most one signal per tick. Price buffers are keyed by
// (exchange, symbol); a shared buffer would let one symbol's prices
// contaminate another's deviation.
type Generator struct {
	registrar Registrar
	logger    zerolog.Logger

	// nextID is the process-unique monotonic signal ID source.
	nextID atomic.Uint64

	mu      sync.Mutex
	buffers map[domain.MarketKey]*priceBuffer
	recent  []domain.Signal // most recent last, cap recentSignalCap
}

// NewGenerator creates a signal generator that registers every emitted
// signal with the given registrar.
func NewGenerator(registrar Registrar, logger zerolog.Logger) *Generator {
	return &Generator{
		registrar: registrar,
		logger:    logger.With().Str("component", "signal").Logger(),
		buffers:   make(map[domain.MarketKey]*priceBuffer),
	}
}

// OnTick consumes a tick and returns the emitted signal, or false when the
// deviation stays inside the neutral band. The deviation is measured
// against the average of the prior prices; the current price joins the
// buffer afterwards.
func (g *Generator) OnTick(tick domain.Tick) (domain.Signal, bool) {
	if !tick.Valid() {
		return domain.Signal{}, false
	}

	g.mu.Lock()
	buf, ok := g.buffers[tick.Key()]
	if !ok {
		buf = &priceBuffer{}
		g.buffers[tick.Key()] = buf
	}

	avg, full := buf.average()
	buf.push(tick.Price)

	if !full || avg == 0 {
		// Not enough prior prices for a meaningful baseline.
		g.mu.Unlock()
		return domain.Signal{}, false
	}

	deviation := (tick.Price - avg) / avg * 100

	var sigType domain.SignalType
	switch {
	case deviation > deviationThresholdPct:
		sigType = domain.SignalBuy
	case deviation < -deviationThresholdPct:
		sigType = domain.SignalSell
	default:
		g.mu.Unlock()
		return domain.Signal{}, false
	}

	sig := domain.Signal{
		ID:          g.nextID.Add(1),
		Type:        sigType,
		Exchange:    tick.Exchange,
		Symbol:      tick.Symbol,
		Price:       tick.Price,
		Strength:    strength(deviation),
		TimestampMs: tick.TimestampMs,
		Status:      domain.StatusPending,
	}

	g.recent = append(g.recent, sig)
	if len(g.recent) > recentSignalCap {
		g.recent = g.recent[len(g.recent)-recentSignalCap:]
	}
	g.mu.Unlock()

	g.logger.Debug().
		Uint64("id", sig.ID).
		Str("type", string(sig.Type)).
		Str("key", tick.Key().String()).
		Float64("deviation_pct", deviation).
		Int("strength", sig.Strength).
		Msg("signal emitted")

	if g.registrar != nil {
		g.registrar.Register(sig)
	}

	return sig, true
}

// Recent returns up to recentSignalCap signals, most recent first.
func (g *Generator) Recent() []domain.Signal {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]domain.Signal, len(g.recent))
	for i, s := range g.recent {
		out[len(g.recent)-1-i] = s
	}
	return out
}

// strength maps absolute deviation to a truncated integer percent,
// saturating at 100.
func strength(deviationPct float64) int {
	s := math.Abs(deviationPct) * 10
	if s > 100 {
		s = 100
	}
	return int(s)
}

// priceBuffer holds the last priceBufferSize prices for one key.
type priceBuffer struct {
	prices []float64
}

func (b *priceBuffer) push(p float64) {
	b.prices = append(b.prices, p)
	if len(b.prices) > priceBufferSize {
		b.prices = b.prices[len(b.prices)-priceBufferSize:]
	}
}

// average returns the mean of the buffered prices and whether the buffer
// holds a full window.
func (b *priceBuffer) average() (float64, bool) {
	if len(b.prices) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range b.prices {
		sum += p
	}
	return sum / float64(len(b.prices)), len(b.prices) == priceBufferSize
}
