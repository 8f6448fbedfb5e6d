package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort        = 8080
	DefaultSettle          = 1 * time.Second
	DefaultPause           = 1 * time.Second
	DefaultScoreEvery      = 5
	DefaultRevenueBaseline = 1_000_000
	DefaultTDPWatts        = 65
	DefaultEnergyMetric    = "node_rapl_package_joules_total"
	DefaultEnergyTimeout   = 5 * time.Second
	DefaultLogCapacity     = 500
	DefaultThreatWindow    = 50
)

// Config is the top-level configuration for the greenpulse server.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Session  SessionConfig  `yaml:"session"`
	Meter    MeterConfig    `yaml:"meter"`
	Energy   EnergyConfig   `yaml:"energy"`
	Security SecurityConfig `yaml:"security"`
	ESG      ESGConfig      `yaml:"esg"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, WebSocket stream, and /metrics
	// endpoint listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures API key authentication for the REST surface.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig controls client authentication on the REST API.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected
	// API key. Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// SessionConfig holds per-connection sampling loop settings.
type SessionConfig struct {
	// Settle is how long a measurement window stays open so usage deltas can
	// accumulate (default 1s).
	Settle time.Duration `yaml:"settle"`

	// Pause is the inter-cycle delay. The stop signal is observed here, so it
	// also bounds how quickly a session winds down (default 1s).
	Pause time.Duration `yaml:"pause"`

	// ScoreEvery is the number of successful sampling cycles between composite
	// score recomputations (default 5). Must be at least 1 so the composite
	// recompute never outpaces raw sampling.
	ScoreEvery int `yaml:"score_every"`

	// RevenueBaseline is the annual revenue figure fed into the financial
	// impact derivation (default 1,000,000).
	RevenueBaseline float64 `yaml:"revenue_baseline"`
}

// MeterConfig selects and tunes the resource measurement backend.
type MeterConfig struct {
	// Mode is one of: cpu | prom.
	//   cpu  — estimate power draw from /proc/stat utilisation deltas.
	//   prom — scrape an energy counter from a Prometheus exposition endpoint.
	Mode string `yaml:"mode"`

	// TDPWatts is the assumed package power at full utilisation, used by the
	// cpu meter (default 65).
	TDPWatts float64 `yaml:"tdp_watts"`

	// Endpoint is the metrics URL scraped by the prom meter.
	Endpoint string `yaml:"endpoint"`

	// EnergyMetric is the name of the cumulative joules counter family read
	// by the prom meter (default node_rapl_package_joules_total).
	EnergyMetric string `yaml:"energy_metric"`
}

// EnergyConfig points at the regional energy-mix lookup service.
type EnergyConfig struct {
	// Endpoint is the JSON energy-mix endpoint consulted once per connection.
	// Leave empty to always use the built-in fallback mix.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds the lookup request (default 5s).
	Timeout time.Duration `yaml:"timeout"`
}

// SecurityConfig tunes the shared security event log.
type SecurityConfig struct {
	// Capacity is the maximum number of events retained; the oldest entry is
	// evicted when the log is full (default 500).
	Capacity int `yaml:"capacity"`

	// Window is the number of most-recent events examined when deriving the
	// threat level and health score (default 50).
	Window int `yaml:"window"`
}

// ESGConfig holds the baseline metric values used when recomputing a session's
// composite score. Footprint and renewable share come from live session data;
// the remaining social/governance inputs are deployment-level figures.
type ESGConfig struct {
	WasteReduction float64 `yaml:"waste_reduction"`
	Satisfaction   float64 `yaml:"satisfaction"`
	Diversity      float64 `yaml:"diversity"`
	Community      float64 `yaml:"community"`
	Independence   float64 `yaml:"independence"`
	Transparency   float64 `yaml:"transparency"`
	Ethics         float64 `yaml:"ethics"`
}

// Load reads and parses the config file at path.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values, without reading
// any file. Useful for tests and for running with no config file at all.
func Defaults() *Config { return defaults() }

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
		},
		Session: SessionConfig{
			Settle:          DefaultSettle,
			Pause:           DefaultPause,
			ScoreEvery:      DefaultScoreEvery,
			RevenueBaseline: DefaultRevenueBaseline,
		},
		Meter: MeterConfig{
			Mode:         "cpu",
			TDPWatts:     DefaultTDPWatts,
			EnergyMetric: DefaultEnergyMetric,
		},
		Energy: EnergyConfig{
			Timeout: DefaultEnergyTimeout,
		},
		Security: SecurityConfig{
			Capacity: DefaultLogCapacity,
			Window:   DefaultThreatWindow,
		},
		ESG: ESGConfig{
			WasteReduction: 75,
			Satisfaction:   85,
			Diversity:      60,
			Community:      70,
			Independence:   80,
			Transparency:   75,
			Ethics:         85,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Session.Settle <= 0 {
		return fmt.Errorf("session.settle must be positive")
	}
	if cfg.Session.Pause <= 0 {
		return fmt.Errorf("session.pause must be positive")
	}
	if cfg.Session.ScoreEvery < 1 {
		return fmt.Errorf("session.score_every must be at least 1")
	}
	if cfg.Session.RevenueBaseline < 0 {
		return fmt.Errorf("session.revenue_baseline must not be negative")
	}
	switch cfg.Meter.Mode {
	case "cpu", "prom":
	default:
		return fmt.Errorf("meter.mode %q unknown: want cpu|prom", cfg.Meter.Mode)
	}
	if cfg.Meter.Mode == "prom" && cfg.Meter.Endpoint == "" {
		return fmt.Errorf("meter.endpoint is required when meter.mode is prom")
	}
	if cfg.Meter.TDPWatts <= 0 {
		return fmt.Errorf("meter.tdp_watts must be positive")
	}
	if cfg.Security.Capacity < 1 {
		return fmt.Errorf("security.capacity must be at least 1")
	}
	if cfg.Security.Window < 1 {
		return fmt.Errorf("security.window must be at least 1")
	}
	return nil
}
