// Package ingestion provides tick feed sources. Feeds own all network and
// transport concerns; the pipeline core never blocks on I/O.
package ingestion

import (
	"context"
	"math"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
)

// Feed delivers ticks to the pipeline. Run blocks until the context is
// cancelled or the source is exhausted, sending every tick to out. A feed
// may be torn down at any time; the pipeline tolerates ingestion simply
// stopping.
type Feed interface {
	Run(ctx context.Context, out chan<- domain.Tick) error
}

// tickMessage is the wire format of an inbound tick record. Volume and
// side are optional and default sanely.
type tickMessage struct {
	Exchange    string  `json:"exchange"`
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Volume      float64 `json:"volume"`
	TimestampMs int64   `json:"timestamp"`
	Side        string  `json:"side,omitempty"`
}

// toTick converts a wire message to a domain tick, normalizing optional
// fields. Returns false for records with unusable prices.
func (m tickMessage) toTick(defaultExchange string) (domain.Tick, bool) {
	exchange := m.Exchange
	if exchange == "" {
		exchange = defaultExchange
	}

	t := domain.Tick{
		Exchange:    exchange,
		Symbol:      m.Symbol,
		Price:       m.Price,
		Volume:      m.Volume,
		TimestampMs: m.TimestampMs,
	}
	if t.Volume < 0 || math.IsNaN(t.Volume) {
		t.Volume = 0
	}
	switch m.Side {
	case "buy", "BUY":
		t.Side = domain.SideBuy
	case "sell", "SELL":
		t.Side = domain.SideSell
	default:
		t.Side = domain.SideNone
	}

	return t, t.Valid()
}
