// Package config exposes strongly typed application configuration loaded
// from YAML, with environment-variable overrides and bounds-checked
// defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings.
type App struct {
	Name     string `yaml:"name"`
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`
}

// Feed describes the inbound tick source.
type Feed struct {
	// Endpoint is the websocket URL of the exchange feed. Empty selects
	// the stub feed (tests, offline runs).
	Endpoint string   `yaml:"endpoint"`
	Exchange string   `yaml:"exchange"`
	Symbols  []string `yaml:"symbols"`
}

// Verifier holds the prediction resolution policy.
type Verifier struct {
	WinThresholdPct float64       `yaml:"win_threshold_pct"`
	Horizon         time.Duration `yaml:"horizon"`
}

// Tuner holds the learning cycle policy.
type Tuner struct {
	TargetAccuracy float64       `yaml:"target_accuracy"`
	MinResolved    int           `yaml:"min_resolved"`
	Interval       time.Duration `yaml:"interval"`

	// PromoteDeltaPct is the accuracy improvement over the production
	// version required before an applied cycle is auto-versioned.
	PromoteDeltaPct float64 `yaml:"promote_delta_pct"`
}

// Storage selects the persistence backends. Empty DSNs select in-memory
// implementations, which is acceptable for a single run.
type Storage struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Config collects every configuration leaf.
type Config struct {
	App      App      `yaml:"app"`
	Feed     Feed     `yaml:"feed"`
	Verifier Verifier `yaml:"verifier"`
	Tuner    Tuner    `yaml:"tuner"`
	Storage  Storage  `yaml:"storage"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		App: App{
			Name:     "signal-pipeline",
			HTTPAddr: ":8080",
			LogLevel: "info",
		},
		Feed: Feed{
			Exchange: "binance",
			Symbols:  []string{"BTC-USD", "ETH-USD"},
		},
		Verifier: Verifier{
			WinThresholdPct: 2.0,
			Horizon:         5 * time.Minute,
		},
		Tuner: Tuner{
			TargetAccuracy:  60,
			MinResolved:     10,
			Interval:        10 * time.Minute,
			PromoteDeltaPct: 2.0,
		},
	}
}

// Load reads a YAML file, applies environment overrides and clamps
// out-of-range values back to defaults. Path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.clamp()
	return cfg, nil
}

// applyEnv overrides leaves from environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("PIPELINE_HTTP_ADDR"); v != "" {
		c.App.HTTPAddr = v
	}
	if v := os.Getenv("PIPELINE_LOG_LEVEL"); v != "" {
		c.App.LogLevel = v
	}
	if v := os.Getenv("PIPELINE_FEED_ENDPOINT"); v != "" {
		c.Feed.Endpoint = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		c.Storage.ClickhouseDSN = v
	}
	if v := getEnvFloat("PIPELINE_WIN_THRESHOLD_PCT"); v != nil {
		c.Verifier.WinThresholdPct = *v
	}
	if v := getEnvDuration("PIPELINE_HORIZON"); v != nil {
		c.Verifier.Horizon = *v
	}
	if v := getEnvFloat("PIPELINE_TARGET_ACCURACY"); v != nil {
		c.Tuner.TargetAccuracy = *v
	}
	if v := getEnvInt("PIPELINE_MIN_RESOLVED"); v != nil {
		c.Tuner.MinResolved = *v
	}
	if v := getEnvDuration("PIPELINE_TUNER_INTERVAL"); v != nil {
		c.Tuner.Interval = *v
	}
}

// clamp pushes out-of-range values back to defaults rather than failing;
// a misconfigured pipeline should still start with sane policy.
func (c *Config) clamp() {
	def := Default()

	if c.Verifier.WinThresholdPct <= 0 || c.Verifier.WinThresholdPct > 50 {
		c.Verifier.WinThresholdPct = def.Verifier.WinThresholdPct
	}
	if c.Verifier.Horizon < time.Second {
		c.Verifier.Horizon = def.Verifier.Horizon
	}
	if c.Tuner.TargetAccuracy <= 0 || c.Tuner.TargetAccuracy > 100 {
		c.Tuner.TargetAccuracy = def.Tuner.TargetAccuracy
	}
	if c.Tuner.MinResolved < 1 {
		c.Tuner.MinResolved = def.Tuner.MinResolved
	}
	if c.Tuner.Interval < time.Second {
		c.Tuner.Interval = def.Tuner.Interval
	}
	if c.Tuner.PromoteDeltaPct <= 0 {
		c.Tuner.PromoteDeltaPct = def.Tuner.PromoteDeltaPct
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = def.App.HTTPAddr
	}
}

func getEnvInt(key string) *int {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func getEnvFloat(key string) *float64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func getEnvDuration(key string) *time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil
	}
	return &d
}
