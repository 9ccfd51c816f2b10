package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"MarketForecaster/internal/calculator"
	"MarketForecaster/internal/collector"
	"MarketForecaster/internal/dataset"
	"MarketForecaster/internal/regression"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		Source      string `yaml:"source"` // yahoo, bars_api, file or mock
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		FilePath    string `yaml:"file_path"`
		Symbol      string `yaml:"symbol"`
		Interval    string `yaml:"interval"`
		HistoryDays int    `yaml:"history_days"`
	} `yaml:"data_source"`
	Pipeline struct {
		Periods       []int   `yaml:"periods"`
		Lags          []int   `yaml:"lags"`
		Horizon       int     `yaml:"horizon"`
		TrainFraction float64 `yaml:"train_fraction"`
		MinTrainRows  int     `yaml:"min_train_rows"`
	} `yaml:"pipeline"`
	Model struct {
		Family   string   `yaml:"family"`
		Lambda   *float64 `yaml:"lambda"` // nil means default; 0 is plain least squares
		MaxDepth int      `yaml:"max_depth"`
		MinLeaf  int      `yaml:"min_leaf"`
	} `yaml:"model"`
	Forecast struct {
		Steps int `yaml:"steps"`
	} `yaml:"forecast"`
	Schedule struct {
		RetrainCron  string `yaml:"retrain_cron"`
		ForecastCron string `yaml:"forecast_cron"`
	} `yaml:"schedule"`
	Storage struct {
		Backend       string `yaml:"backend"` // file, sqlite or redis
		ModelDir      string `yaml:"model_dir"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
	} `yaml:"storage"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy"`
}

// Path returns CONFIG_PATH or DefaultPath.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads a .env file if present, then the YAML file, then applies environment
// variable overrides and defaults. A missing YAML file is not an error.
func Load(path string) (*Config, error) {
	// .env never overrides variables already set in the environment.
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"DATA_SOURCE":        &c.DataSource.Source,
		"BARS_API_URL":       &c.DataSource.BaseURL,
		"BARS_API_KEY":       &c.DataSource.APIKey,
		"DATA_FILE":          &c.DataSource.FilePath,
		"SYMBOL":             &c.DataSource.Symbol,
		"MODEL_FAMILY":       &c.Model.Family,
		"HTTPS_PROXY":        &c.Proxy,
		"SQLITE_PATH":        &c.Database.SQLitePath,
		"STORAGE_BACKEND":    &c.Storage.Backend,
		"REDIS_ADDR":         &c.Storage.RedisAddr,
		"REDIS_PASSWORD":     &c.Storage.RedisPassword,
		"MODEL_DIR":          &c.Storage.ModelDir,
		"RETRAIN_CRON":       &c.Schedule.RetrainCron,
		"FORECAST_CRON":      &c.Schedule.ForecastCron,
		"LOG_LEVEL":          &c.Log.Level,
		"METRICS_ADDR":       &c.Metrics.Addr,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	ints := map[string]*int{
		"HORIZON":        &c.Pipeline.Horizon,
		"FORECAST_STEPS": &c.Forecast.Steps,
		"HISTORY_DAYS":   &c.DataSource.HistoryDays,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataSource.Source == "" {
		if c.DataSource.BaseURL != "" {
			c.DataSource.Source = "bars_api"
		} else {
			c.DataSource.Source = "yahoo"
		}
	}
	if c.DataSource.Symbol == "" {
		c.DataSource.Symbol = "SPX500"
	}
	if c.DataSource.Interval == "" {
		c.DataSource.Interval = "1d"
	}
	if c.DataSource.HistoryDays == 0 {
		c.DataSource.HistoryDays = 730
	}
	if len(c.Pipeline.Periods) == 0 {
		c.Pipeline.Periods = append([]int(nil), calculator.DefaultPeriods...)
	}
	if c.Pipeline.Lags == nil {
		c.Pipeline.Lags = append([]int(nil), calculator.DefaultLags...)
	}
	if c.Pipeline.Horizon == 0 {
		c.Pipeline.Horizon = dataset.DefaultHorizon
	}
	if c.Pipeline.TrainFraction == 0 {
		c.Pipeline.TrainFraction = dataset.DefaultTrainFraction
	}
	if c.Pipeline.MinTrainRows == 0 {
		c.Pipeline.MinTrainRows = 30
	}
	hyper := regression.DefaultHyper()
	if c.Model.Family == "" {
		c.Model.Family = regression.FamilyLinear
	}
	if c.Model.Lambda == nil {
		c.Model.Lambda = &hyper.Lambda
	}
	if c.Model.MaxDepth == 0 {
		c.Model.MaxDepth = hyper.MaxDepth
	}
	if c.Model.MinLeaf == 0 {
		c.Model.MinLeaf = hyper.MinLeaf
	}
	if c.Forecast.Steps == 0 {
		c.Forecast.Steps = 1
	}
	if c.Schedule.RetrainCron == "" {
		c.Schedule.RetrainCron = "0 0 7 * * 1"
	}
	if c.Schedule.ForecastCron == "" {
		c.Schedule.ForecastCron = "0 30 22 * * 1-5"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.ModelDir == "" {
		c.Storage.ModelDir = "data/models"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/market_forecaster.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that all settings are usable.
func (c *Config) Validate() error {
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	switch c.DataSource.Source {
	case "yahoo", "mock":
	case "bars_api":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for bars_api")
		}
	case "file":
		if c.DataSource.FilePath == "" {
			return fmt.Errorf("data_source.file_path is required for file source")
		}
	default:
		return fmt.Errorf("unknown data_source.source %q", c.DataSource.Source)
	}
	if !collector.ValidInterval(c.DataSource.Interval) {
		return fmt.Errorf("data_source.interval %q must be 1d, 1wk or an intraday size", c.DataSource.Interval)
	}
	if collector.IsIntraday(c.DataSource.Interval) && (c.DataSource.Source == "bars_api" || c.DataSource.Source == "mock") {
		return fmt.Errorf("data_source.source %s has no intraday bars", c.DataSource.Source)
	}
	if c.DataSource.HistoryDays <= 0 {
		return fmt.Errorf("data_source.history_days must be positive")
	}
	if err := calculator.ValidateConfig(c.IndicatorConfig()); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.DatasetOptions().Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if c.Pipeline.MinTrainRows < 0 {
		return fmt.Errorf("pipeline.min_train_rows must be non-negative")
	}
	if _, err := regression.New(c.Model.Family, c.Hyper()); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if c.Forecast.Steps <= 0 {
		return fmt.Errorf("forecast.steps must be positive")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for name, spec := range map[string]string{"retrain_cron": c.Schedule.RetrainCron, "forecast_cron": c.Schedule.ForecastCron} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("schedule.%s: %w", name, err)
		}
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "file", "sqlite":
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for redis backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	return nil
}

// TelegramEnabled reports whether notifications are configured.
func (c *Config) TelegramEnabled() bool { return c.Telegram.BotToken != "" }

// IndicatorConfig converts the pipeline section for the indicator engine.
func (c *Config) IndicatorConfig() calculator.IndicatorConfig {
	return calculator.IndicatorConfig{
		Periods: append([]int(nil), c.Pipeline.Periods...),
		Lags:    append([]int(nil), c.Pipeline.Lags...),
	}
}

// DatasetOptions converts the pipeline section for the dataset builder. Bias is decided
// by the model family at build time.
func (c *Config) DatasetOptions() dataset.Options {
	return dataset.Options{Horizon: c.Pipeline.Horizon, TrainFraction: c.Pipeline.TrainFraction}
}

// Hyper converts the model section into regression hyperparameters.
func (c *Config) Hyper() regression.Hyper {
	h := regression.Hyper{Lambda: regression.DefaultHyper().Lambda, MaxDepth: c.Model.MaxDepth, MinLeaf: c.Model.MinLeaf}
	if c.Model.Lambda != nil {
		h.Lambda = *c.Model.Lambda
	}
	return h
}
