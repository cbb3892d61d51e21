package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"bandtest/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the bandtest tools.
type Config struct {
	Storage  Storage                `yaml:"storage"`
	Server   Server                 `yaml:"server"`
	Alpaca   Alpaca                 `yaml:"alpaca"`
	Logging  Logging                `yaml:"logging"`
	Backtest BacktestConfig         `yaml:"backtest"`
	Import   ImportConfig           `yaml:"import"`
	Profiles []domain.SymbolProfile `yaml:"profiles"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Logging configures the application logger and tracer.
type Logging struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Tracing bool   `yaml:"tracing"`
}

// BacktestConfig holds the default parameters of a backtest run. Request
// fields left at their zero value are filled from here.
type BacktestConfig struct {
	Symbol              string  `yaml:"symbol"`
	Strategy            string  `yaml:"strategy"`
	Source              string  `yaml:"source"`
	Market              string  `yaml:"market"`
	StartDate           string  `yaml:"start_date"`
	EndDate             string  `yaml:"end_date"`
	InitialCapital      float64 `yaml:"initial_capital"`
	BollingerPeriod     int     `yaml:"bollinger_period"`
	BollingerMultiplier float64 `yaml:"bollinger_multiplier"`
	LotSize             int64   `yaml:"lot_size"`
	SeedSalt            string  `yaml:"seed_salt"`
}

// ImportConfig controls bar imports from external sources.
type ImportConfig struct {
	RateLimitPerMin int `yaml:"rate_limit_per_min"`
	MaxAttempts     int `yaml:"max_attempts"`
}

// Defaults returns a Config populated with the built-in defaults.
func Defaults() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/bandtest.db",
		},
		Server: Server{
			Host:     "127.0.0.1",
			Port:     8080,
			GRPCPort: 9090,
		},
		Alpaca: Alpaca{
			DataURL: "https://data.alpaca.markets",
			Feed:    "iex",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Backtest: BacktestConfig{
			Symbol:              "600519",
			Strategy:            "bollinger-reversion",
			Source:              "mock",
			Market:              "cn",
			StartDate:           "2023-01-01",
			EndDate:             "2023-12-31",
			InitialCapital:      500000,
			BollingerPeriod:     20,
			BollingerMultiplier: 2,
			LotSize:             100,
			SeedSalt:            "2024",
		},
		Import: ImportConfig{
			RateLimitPerMin: 200,
			MaxAttempts:     3,
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path on top of
// Defaults, and then applies environment variable overrides. An empty path
// skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("BANDTEST_TRACING"); v != "" {
		if on, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.Logging.Tracing = on
		}
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
