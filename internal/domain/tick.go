package domain

// Side of the trade that produced a tick, when the feed reports it.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideNone Side = ""
)

// Tick is one timestamped price/volume observation for a symbol on an
// exchange. Immutable once created.
type Tick struct {
	Exchange    string  // source exchange identifier
	Symbol      string  // trading pair, e.g. "BTC-USD"
	Price       float64 // last trade price, must be > 0
	Volume      float64 // traded volume, >= 0, defaults to 0 when absent
	TimestampMs int64   // Unix timestamp in milliseconds, monotonic per key
	Side        Side    // optional trade side, SideNone when unknown
}

// Key returns the (exchange, symbol) market key the tick belongs to.
func (t Tick) Key() MarketKey {
	return MarketKey{Exchange: t.Exchange, Symbol: t.Symbol}
}

// Valid reports whether the tick carries usable price data.
// Ticks with non-positive or NaN prices are dropped at the boundary.
func (t Tick) Valid() bool {
	return t.Exchange != "" && t.Symbol != "" && t.Price > 0 && t.Price == t.Price
}

// MarketKey identifies a per-exchange symbol stream. All pipeline state
// (history, online features, price buffers, pending predictions) is
// partitioned by this key.
type MarketKey struct {
	Exchange string
	Symbol   string
}

// String renders the key as "exchange:symbol" for logging and metrics labels.
func (k MarketKey) String() string {
	return k.Exchange + ":" + k.Symbol
}
