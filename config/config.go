package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete arena configuration.
type Config struct {
	Arena   ArenaConfig   `yaml:"arena"`
	API     APIConfig     `yaml:"api"`
	Redis   RedisConfig   `yaml:"redis"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// ArenaConfig controls the match simulation.
type ArenaConfig struct {
	TickIntervalMillis int            `yaml:"tick_interval_ms"` // minimum time between ticks
	Volatility         float64        `yaml:"volatility"`       // per-tick relative price movement bound
	MaxTicks           int64          `yaml:"max_ticks"`        // ceiling for configured match durations
	InitialBalance     float64        `yaml:"initial_balance"`  // default starting balance per participant
	Seed               int64          `yaml:"seed"`             // tick generator seed, 0 = time-based
	LeaderboardSize    int            `yaml:"leaderboard_size"`
	Provider           ProviderConfig `yaml:"provider"`
}

// ProviderConfig selects and tunes the decision provider.
type ProviderConfig struct {
	Kind           string  `yaml:"kind"` // random | sma | http
	ShortWindow    int     `yaml:"short_window"`
	LongWindow     int     `yaml:"long_window"`
	OrderQuantity  float64 `yaml:"order_quantity"`
	AgentURL       string  `yaml:"agent_url"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// APIConfig contains external API base URLs.
type APIConfig struct {
	BinanceBase string `yaml:"binance_base"` // empty = production
}

// RedisConfig points at the distributed broadcast bus. An empty Addr
// disables the bus entirely; the arena then runs local-only.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ServerConfig controls the listening sockets.
type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr"`  // websocket observer endpoint
	MetricsAddr string `yaml:"metrics_addr"` // prometheus /metrics
}

// StorageConfig controls where matches are persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config and the .env file if present. Env vars
// override matching YAML keys; defaults fill whatever is left.
func Load(path string) (*Config, error) {
	// Load .env if present (silently skipped otherwise)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// TickInterval returns the tick pacing as a time.Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Arena.TickIntervalMillis) * time.Millisecond
}

// ProviderTimeout returns the decision provider timeout.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Arena.Provider.TimeoutSeconds) * time.Second
}

// applyEnvOverrides overwrites values from environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ARENA_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("ARENA_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("AGENT_URL"); v != "" {
		cfg.Arena.Provider.AgentURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults fills every required knob with a sensible value.
func setDefaults(cfg *Config) {
	if cfg.Arena.TickIntervalMillis <= 0 {
		cfg.Arena.TickIntervalMillis = 100
	}
	if cfg.Arena.Volatility <= 0 {
		cfg.Arena.Volatility = 0.001
	}
	if cfg.Arena.MaxTicks <= 0 {
		cfg.Arena.MaxTicks = 10000
	}
	if cfg.Arena.InitialBalance <= 0 {
		cfg.Arena.InitialBalance = 10000
	}
	if cfg.Arena.Seed == 0 {
		cfg.Arena.Seed = time.Now().UnixNano()
	}
	if cfg.Arena.LeaderboardSize <= 0 {
		cfg.Arena.LeaderboardSize = 10
	}
	if cfg.Arena.Provider.Kind == "" {
		cfg.Arena.Provider.Kind = "random"
	}
	if cfg.Arena.Provider.ShortWindow <= 0 {
		cfg.Arena.Provider.ShortWindow = 20
	}
	if cfg.Arena.Provider.LongWindow <= 0 {
		cfg.Arena.Provider.LongWindow = 50
	}
	if cfg.Arena.Provider.OrderQuantity <= 0 {
		cfg.Arena.Provider.OrderQuantity = 0.01
	}
	if cfg.Arena.Provider.TimeoutSeconds <= 0 {
		cfg.Arena.Provider.TimeoutSeconds = 5
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.MetricsAddr == "" {
		cfg.Server.MetricsAddr = ":9091"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "arena.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
