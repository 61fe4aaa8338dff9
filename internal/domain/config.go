package domain

// IndicatorWeights distributes influence between the signal indicators.
// Weights are non-negative and sum to 1 after every tuning cycle.
type IndicatorWeights struct {
	RSI       float64 `yaml:"rsi" json:"rsi"`
	Bollinger float64 `yaml:"bollinger" json:"bollinger"`
	MACD      float64 `yaml:"macd" json:"macd"`
	Volume    float64 `yaml:"volume" json:"volume"`
}

// Sum returns the total weight mass.
func (w IndicatorWeights) Sum() float64 {
	return w.RSI + w.Bollinger + w.MACD + w.Volume
}

// DirectionWeights biases classification between market regimes.
type DirectionWeights struct {
	Bullish float64 `yaml:"bullish" json:"bullish"`
	Neutral float64 `yaml:"neutral" json:"neutral"`
	Bearish float64 `yaml:"bearish" json:"bearish"`
}

// TunedConfig is the tunable decision configuration. The tuner holds a
// mutable working copy; a copy captured into a ModelVersion is frozen.
type TunedConfig struct {
	ConfidenceThreshold float64          `yaml:"confidence_threshold" json:"confidenceThreshold"` // [5,95]
	IndicatorWeights    IndicatorWeights `yaml:"indicator_weights" json:"indicatorWeights"`
	DirectionWeights    DirectionWeights `yaml:"direction_weights" json:"directionWeights"`
	LearningRate        float64          `yaml:"learning_rate" json:"learningRate"`
}

// DefaultTunedConfig returns the hard-coded starting configuration, also
// used by the reset-config control operation.
func DefaultTunedConfig() TunedConfig {
	return TunedConfig{
		ConfidenceThreshold: 60,
		IndicatorWeights: IndicatorWeights{
			RSI:       0.25,
			Bollinger: 0.25,
			MACD:      0.25,
			Volume:    0.25,
		},
		DirectionWeights: DirectionWeights{
			Bullish: 0.4,
			Neutral: 0.2,
			Bearish: 0.4,
		},
		LearningRate: 0.05,
	}
}
