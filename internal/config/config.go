// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Exchange describes the market-data and trading venue connectivity parameters.
type Exchange struct {
	Provider       string   `yaml:"provider"`
	Symbols        []string `yaml:"symbols"`
	APIKey         string   `yaml:"api_key"`
	APISecret      string   `yaml:"api_secret"`
	Testnet        bool     `yaml:"testnet"`
	KlineInterval  string   `yaml:"kline_interval"`
	PollIntervalMs int      `yaml:"poll_interval_ms"`
}

// Strategy holds the moving-average window lengths.
type Strategy struct {
	ShortWindow int `yaml:"short_window"`
	LongWindow  int `yaml:"long_window"`
}

// Trading bundles order sizing and execution policy knobs.
type Trading struct {
	Quantity         float64 `yaml:"quantity"`
	MaxAttempts      int     `yaml:"max_attempts"`
	OrdersPerSecond  float64 `yaml:"orders_per_second"`
	OrderBurst       int     `yaml:"order_burst"`
	MinRetriggerSecs int     `yaml:"min_retrigger_secs"`
	LedgerPath       string  `yaml:"ledger_path"`
	Live             bool    `yaml:"live"`
}

// Telegram configures the chat notification sink.
type Telegram struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Exchange Exchange `yaml:"exchange"`
	Strategy Strategy `yaml:"strategy"`
	Trading  Trading  `yaml:"trading"`
	Telegram Telegram `yaml:"telegram"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv overlays credentials from the environment so secrets stay out of
// YAML files. A .env file is loaded best-effort first.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Strategy.ShortWindow == 0 && c.Strategy.LongWindow == 0 {
		c.Strategy.ShortWindow = 9
		c.Strategy.LongWindow = 26
	}
	if c.Exchange.KlineInterval == "" {
		c.Exchange.KlineInterval = "15m"
	}
	if c.Trading.MaxAttempts == 0 {
		c.Trading.MaxAttempts = 3
	}
	if c.Trading.OrdersPerSecond == 0 {
		c.Trading.OrdersPerSecond = 2
	}
	if c.Trading.OrderBurst == 0 {
		c.Trading.OrderBurst = 1
	}
}

// Validate rejects configurations the engine must refuse to start with.
func (c *Config) Validate() error {
	if len(c.Exchange.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if c.Strategy.ShortWindow <= 0 || c.Strategy.LongWindow <= 0 {
		return fmt.Errorf("window lengths must be positive, got short=%d long=%d", c.Strategy.ShortWindow, c.Strategy.LongWindow)
	}
	if c.Strategy.ShortWindow >= c.Strategy.LongWindow {
		return fmt.Errorf("short window %d must be smaller than long window %d", c.Strategy.ShortWindow, c.Strategy.LongWindow)
	}
	if c.Trading.Quantity <= 0 {
		return fmt.Errorf("order quantity must be positive, got %v", c.Trading.Quantity)
	}
	if c.Trading.Live && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("live trading requires venue credentials")
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram notifications require token and chat id")
	}
	return nil
}
