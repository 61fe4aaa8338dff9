package domain

// PredictionStatus is the lifecycle state of a tracked prediction.
// StatusPending is the initial state; all others are terminal.
type PredictionStatus string

const (
	StatusPending      PredictionStatus = "PENDING"
	StatusResolvedWin  PredictionStatus = "RESOLVED_WIN"
	StatusResolvedLoss PredictionStatus = "RESOLVED_LOSS"
	StatusExpired      PredictionStatus = "EXPIRED"
)

// Terminal reports whether the status is final.
func (s PredictionStatus) Terminal() bool {
	return s != StatusPending
}

// Prediction is the tracked, resolvable outcome record associated with a
// signal. EntryPrice is fixed at registration; ResolvedAtMs and
// ProfitLossPct are set when the prediction reaches a terminal state.
type Prediction struct {
	Signal         Signal
	EntryPrice     float64 // signal price at registration
	RegisteredAtMs int64   // registration timestamp (ms)
	ResolvedAtMs   int64   // resolution/expiry timestamp (ms), 0 while pending
	ProfitLossPct  float64 // signed pct move in predicted direction, resolved only
	Status         PredictionStatus
}

// AccuracyMetrics is a recomputed snapshot over the ledger.
//
// Expired predictions are counted in TotalPredictions but excluded from
// OverallAccuracy and the resolved averages: an expired prediction produced
// no usable directional evidence either way.
type AccuracyMetrics struct {
	OverallAccuracy        float64 // wins / (wins + losses) * 100, 0 when no resolutions
	TotalPredictions       int     // all registered predictions, any state
	ResolvedWins           int
	ResolvedLosses         int
	Expired                int
	Pending                int
	AverageProfitLossPct   float64 // mean ProfitLossPct over resolved predictions
	AverageTimeToResolveMs float64 // mean (ResolvedAtMs - RegisteredAtMs) over resolved
}
