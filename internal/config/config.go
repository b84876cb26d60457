package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for both binaries.
type Config struct {
	CoinGecko CoinGecko `mapstructure:"coingecko"`
	Scraper   Scraper   `mapstructure:"scraper"`
	Simulator Simulator `mapstructure:"simulator"`
	Logger    Logger    `mapstructure:"logger"`
	Database  Database  `mapstructure:"database"`
	Server    Server    `mapstructure:"server"`
}

// CoinGecko holds the configuration for the CoinGecko API.
type CoinGecko struct {
	ApiKey         string  `mapstructure:"apikey"`
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	Timeout        int     `mapstructure:"timeout"`
}

// Scraper holds the configuration for the market data poller.
type Scraper struct {
	CoinIDs    []string `mapstructure:"coin_ids"`
	VsCurrency string   `mapstructure:"vs_currency"`
	Windows    []string `mapstructure:"windows"`
	Interval   int      `mapstructure:"interval"` // seconds between polls
}

// Simulator holds the configuration for the fractal strategy backtest.
type Simulator struct {
	DataFile             string  `mapstructure:"data_file"`
	Neighborhood         int     `mapstructure:"neighborhood"`
	TargetRatio          float64 `mapstructure:"target_ratio"`
	FastEMA              int     `mapstructure:"fast_ema"`
	MidEMA               int     `mapstructure:"mid_ema"`
	SlowEMA              int     `mapstructure:"slow_ema"`
	Warmup               int     `mapstructure:"warmup"`
	Sides                string  `mapstructure:"sides"`
	TrendFilter          bool    `mapstructure:"trend_filter"`
	ExitOnOppositeSignal bool    `mapstructure:"exit_on_opposite_signal"`
	StartingBalance      float64 `mapstructure:"starting_balance"`
	Persist              bool    `mapstructure:"persist"`
	ExportPath           string  `mapstructure:"export_path"`
}

// Server holds the configuration for the dashboard API.
type Server struct {
	Port int `mapstructure:"port"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Database holds the configuration for the database.
type Database struct {
	Driver string `mapstructure:"driver"` // sqlite, mysql or postgres
	DSN    string `mapstructure:"dsn"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and environment apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}
	err = config.Validate()
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("coingecko.apikey", "")
	v.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("coingecko.rate_limit", 0.5) // requests per second
	v.SetDefault("coingecko.rate_limit_burst", 2)
	v.SetDefault("coingecko.timeout", 30)

	v.SetDefault("scraper.coin_ids", []string{"bitcoin", "ethereum", "binancecoin", "solana"})
	v.SetDefault("scraper.vs_currency", "usd")
	v.SetDefault("scraper.windows", []string{"1h", "24h", "7d"})
	// 10000 demo calls a month, two per cycle: roughly six cycles an hour.
	v.SetDefault("scraper.interval", 600)

	v.SetDefault("simulator.data_file", "BTC_1.feather")
	v.SetDefault("simulator.neighborhood", 2)
	v.SetDefault("simulator.target_ratio", 1.5)
	v.SetDefault("simulator.fast_ema", 20)
	v.SetDefault("simulator.mid_ema", 50)
	v.SetDefault("simulator.slow_ema", 100)
	v.SetDefault("simulator.warmup", 0)
	v.SetDefault("simulator.sides", "long")
	v.SetDefault("simulator.trend_filter", true)
	v.SetDefault("simulator.exit_on_opposite_signal", true)
	v.SetDefault("simulator.starting_balance", 100.0)
	v.SetDefault("simulator.persist", false)
	v.SetDefault("simulator.export_path", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "market.db")

	v.SetDefault("server.port", 8080)
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	if c.Scraper.Interval <= 0 {
		return fmt.Errorf("scraper.interval must be positive, got %d", c.Scraper.Interval)
	}
	if c.CoinGecko.RateLimit <= 0 {
		return fmt.Errorf("coingecko.rate_limit must be positive, got %v", c.CoinGecko.RateLimit)
	}
	if c.Simulator.Neighborhood < 1 {
		return fmt.Errorf("simulator.neighborhood must be at least 1, got %d", c.Simulator.Neighborhood)
	}
	if c.Simulator.TargetRatio <= 0 {
		return fmt.Errorf("simulator.target_ratio must be positive, got %v", c.Simulator.TargetRatio)
	}
	s := c.Simulator
	if s.FastEMA < 1 || s.FastEMA >= s.MidEMA || s.MidEMA >= s.SlowEMA {
		return fmt.Errorf("simulator EMA periods must satisfy 0 < fast < mid < slow, got %d/%d/%d",
			s.FastEMA, s.MidEMA, s.SlowEMA)
	}
	switch strings.ToLower(s.Sides) {
	case "long", "short", "both":
	default:
		return fmt.Errorf("simulator.sides must be one of long, short, both; got %q", s.Sides)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch strings.ToLower(c.Logger.Format) {
	case "json", "console", "":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("database.driver must be one of sqlite, mysql, postgres; got %q", c.Database.Driver)
	}
	return nil
}

// LoadEnvFile loads credentials from a dotenv file into the process
// environment before LoadConfig runs. A missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
