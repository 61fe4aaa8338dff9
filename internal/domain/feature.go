package domain

// FeatureVector is the derived numeric summary of recent tick history for
// one market key. One current vector is kept per key and overwritten on
// each tick; superseded vectors are discarded.
//
// Window semantics are deliberately mixed: the pct-change, volume and
// volatility features use wall-clock windows relative to the current tick,
// while RSI14 uses the last 14 ticks by count. Unifying them would change
// output values.
type FeatureVector struct {
	Exchange       string  // source exchange
	Symbol         string  // trading pair
	Price          float64 // price of the tick that produced this vector
	Volume         float64 // volume of the tick that produced this vector
	PriceChange1m  float64 // fractional change vs oldest tick within 60s
	PriceChange5m  float64 // fractional change vs oldest tick within 300s
	PriceChange15m float64 // fractional change vs oldest tick within 900s
	VolumeMA5m     float64 // arithmetic mean volume over the 5m window
	Volatility1m   float64 // population stddev of 1m prices / their mean
	RSI14          float64 // relative strength index over last 14 ticks, [0,100]
	TimestampMs    int64   // timestamp of the producing tick
}

// RSINeutral is the RSI value reported when there is not enough history
// or when cumulative losses are zero.
const RSINeutral = 50.0
