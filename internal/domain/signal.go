package domain

// SignalType is the predicted direction.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
)

// Signal is a directional classification emitted for a symbol at a point
// in time. Immutable except for Status, which is owned by the prediction
// ledger once the signal is registered.
type Signal struct {
	ID          uint64           // process-unique monotonic identifier
	Type        SignalType       // BUY or SELL
	Exchange    string           // source exchange
	Symbol      string           // trading pair
	Price       float64          // price at emission
	Strength    int              // confidence in [0,100], truncated percent
	TimestampMs int64            // emission timestamp (ms)
	Status      PredictionStatus // lifecycle status tracked by the ledger
}
