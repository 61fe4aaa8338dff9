package domain

// VersionState is the lifecycle state of a model version.
// At most one version is in StateProduction at any time.
type VersionState string

const (
	StateStaging    VersionState = "STAGING"
	StateProduction VersionState = "PRODUCTION"
	StateArchived   VersionState = "ARCHIVED"
)

// ModelVersion is an immutable snapshot of tuned configuration with a
// lifecycle state. Config and Accuracy are frozen at capture time; only
// State changes afterwards, and only through the registry.
type ModelVersion struct {
	VersionID   string       // uuid assigned at snapshot
	Config      TunedConfig  // frozen copy of the captured config
	Accuracy    float64      // overall accuracy recorded at capture time
	CreatedAtMs int64        // capture timestamp (ms)
	State       VersionState // STAGING | PRODUCTION | ARCHIVED
}

// ConfigFieldDiff is one divergent scalar between two version configs.
type ConfigFieldDiff struct {
	Field string  // dotted field name, e.g. "indicatorWeights.rsi"
	A     float64 // value in version a
	B     float64 // value in version b
}

// VersionComparison is a structural diff of two versions, for display only.
type VersionComparison struct {
	VersionA  string
	VersionB  string
	StateA    VersionState
	StateB    VersionState
	AccuracyA float64
	AccuracyB float64
	Diffs     []ConfigFieldDiff // empty when the configs are identical
}
