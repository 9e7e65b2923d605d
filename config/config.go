package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edelkas/inne-sub000/pkg/observability"
)

// Config holds the server configuration.
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	HTTP          HTTPConfig          `yaml:"http"`
	CLE           CLEConfig           `yaml:"cle"`
	Mappacks      MappacksConfig      `yaml:"mappacks"`
	Leaderboard   LeaderboardConfig   `yaml:"leaderboard"`
	Simulator     SimulatorConfig     `yaml:"simulator"`
	Observability ObservabilityConfig `yaml:"observability"`
	Log           LogConfig           `yaml:"log"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration. An empty URL keeps events in process.
type NATSConfig struct {
	URL      string `yaml:"url"`
	Consumer string `yaml:"consumer"`
}

// HTTPConfig holds the listener settings.
type HTTPConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RatePerSecond   float64       `yaml:"rate_per_second"`
	RateBurst       int           `yaml:"rate_burst"`
}

// CLEConfig holds the custom leaderboard policies.
type CLEConfig struct {
	HashPassword    string        `yaml:"hash_password"`
	Forward         bool          `yaml:"forward"`
	UpstreamURL     string        `yaml:"upstream_url"`
	ForwardTimeout  time.Duration `yaml:"forward_timeout"`
	IntegrityChecks bool          `yaml:"integrity_checks"`
	RejectCorrupt   bool          `yaml:"reject_corrupt"`
	WarnVersion     bool          `yaml:"warn_version"`
	LocalLogin      bool          `yaml:"local_login"`
}

// MappacksConfig locates the mappack sources.
type MappacksConfig struct {
	Dir            string `yaml:"dir"`
	Digest         string `yaml:"digest"`
	HashCacheItems int64  `yaml:"hash_cache_items"`
}

// LeaderboardConfig tunes the leaderboard cache and periodic jobs.
type LeaderboardConfig struct {
	CacheItems      int64         `yaml:"cache_items"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	RecountInterval time.Duration `yaml:"recount_interval"`
}

// SimulatorConfig locates the physics simulator. An empty path disables it.
type SimulatorConfig struct {
	Path        string        `yaml:"path"`
	Args        []string      `yaml:"args"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int64         `yaml:"concurrency"`
}

// ObservabilityConfig holds configuration for observability components.
type ObservabilityConfig struct {
	MetricsAddress string `yaml:"metrics_address"`
	Environment    string `yaml:"environment"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used for unset fields.
func Default() Config {
	return Config{
		NATS: NATSConfig{Consumer: "inne"},
		HTTP: HTTPConfig{
			Address:         ":8126",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RatePerSecond:   5,
			RateBurst:       20,
		},
		CLE: CLEConfig{
			Forward:         true,
			UpstreamURL:     "https://dojo.nplusplus.ninja",
			ForwardTimeout:  5 * time.Second,
			IntegrityChecks: true,
			WarnVersion:     true,
			LocalLogin:      true,
		},
		Mappacks: MappacksConfig{
			Dir:            "maps/mappacks",
			Digest:         "maps/digest",
			HashCacheItems: 10000,
		},
		Leaderboard: LeaderboardConfig{
			CacheItems: 5000,
			CacheTTL:   10 * time.Minute,
		},
		Simulator: SimulatorConfig{
			Timeout:     10 * time.Second,
			Concurrency: 1,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// LoadConfig loads the configuration from a YAML file on top of the defaults.
// A missing file is not an error; environment variables always apply.
func LoadConfig(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("postgres dsn not set (config file or DATABASE_URL)")
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Observability.MetricsAddress = v
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		cfg.Observability.OTLPEndpoint = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("NPP_HASH"); v != "" {
		cfg.CLE.HashPassword = v
	}
	if v := os.Getenv("MAPPACKS_DIR"); v != "" {
		cfg.Mappacks.Dir = v
	}
	if v := os.Getenv("SIMULATOR_PATH"); v != "" {
		cfg.Simulator.Path = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	for name, dst := range map[string]*bool{
		"CLE_FORWARD":      &cfg.CLE.Forward,
		"INTEGRITY_CHECKS": &cfg.CLE.IntegrityChecks,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", name, err)
		}
		*dst = b
	}
	return nil
}

// ToObsConfig maps the configuration onto the observability settings.
func ToObsConfig(appCfg *Config) observability.Config {
	return observability.Config{
		ServiceName:   "inne",
		Environment:   appCfg.Observability.Environment,
		OTLPEndpoint:  appCfg.Observability.OTLPEndpoint,
		LogLevel:      appCfg.Log.Level,
		LogFile:       appCfg.Log.File,
		LogMaxSizeMB:  appCfg.Log.MaxSizeMB,
		LogBackups:    appCfg.Log.MaxBackups,
		LogMaxAgeDays: appCfg.Log.MaxAgeDays,
	}
}
