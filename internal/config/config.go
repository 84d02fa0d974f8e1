package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds the bot parameters loaded from the YAML config file.
// API keys never live here; they come from the environment, see Secrets.
type Config struct {
	Symbol string `yaml:"symbol"`

	Trading struct {
		PollIntervalMs   int     `yaml:"poll_interval_ms"`
		ReviewIntervalMs int     `yaml:"review_interval_ms"`
		ErrorBackoffMs   int     `yaml:"error_backoff_ms"`
		MinMarginUSDT    float64 `yaml:"min_margin_usdt"`
		InitialBalance   float64 `yaml:"initial_balance_usdt"`
	} `yaml:"trading"`

	Exchange struct {
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
	} `yaml:"exchange"`

	Advisor struct {
		Model      string `yaml:"model"`
		BaseURL    string `yaml:"base_url"`
		PromptFile string `yaml:"prompt_file"`
	} `yaml:"advisor"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Server struct {
		Port        int    `yaml:"port"`
		TemplateDir string `yaml:"template_dir"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// Secrets are credentials read from the environment (optionally via a
// .env file).
type Secrets struct {
	BinanceAPIKey    string `envconfig:"BINANCE_API_KEY"`
	BinanceSecretKey string `envconfig:"BINANCE_SECRET_KEY"`
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	SerperAPIKey     string `envconfig:"SERPER_API_KEY"`
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Symbol == "" {
		c.Symbol = "BTCUSDT"
	}
	if c.Trading.PollIntervalMs <= 0 {
		c.Trading.PollIntervalMs = 60000
	}
	if c.Trading.ErrorBackoffMs <= 0 {
		c.Trading.ErrorBackoffMs = 300000
	}
	if c.Trading.MinMarginUSDT <= 0 {
		c.Trading.MinMarginUSDT = 5
	}
	if c.Trading.InitialBalance <= 0 {
		c.Trading.InitialBalance = 10000
	}
	if c.Exchange.RESTEndpoint == "" {
		c.Exchange.RESTEndpoint = "https://fapi.binance.com"
	}
	if c.Exchange.WSEndpoint == "" {
		c.Exchange.WSEndpoint = "wss://fstream.binance.com/ws"
	}
	if c.Advisor.Model == "" {
		c.Advisor.Model = "gpt-4o"
	}
	if c.Advisor.BaseURL == "" {
		c.Advisor.BaseURL = "https://api.openai.com/v1"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "trading.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.TemplateDir == "" {
		c.Server.TemplateDir = "internal/web/templates"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Trading.PollIntervalMs) * time.Millisecond
}

func (c *Config) ReviewInterval() time.Duration {
	return time.Duration(c.Trading.ReviewIntervalMs) * time.Millisecond
}

func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Trading.ErrorBackoffMs) * time.Millisecond
}

// LoadSecrets reads credentials from the environment. A missing .env
// file is fine; exported variables win either way.
func LoadSecrets() (*Secrets, error) {
	_ = godotenv.Load()

	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return &s, nil
}
