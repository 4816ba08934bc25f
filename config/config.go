package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log          Logger         `mapstructure:"logger"`
	DB           Database       `mapstructure:"database"`
	API          API            `mapstructure:"api"`
	Backtest     Backtest       `mapstructure:"backtest"`
	YahooFinance YahooFinance   `mapstructure:"yahoo_finance"`
	BarCache     BarCache       `mapstructure:"bar_cache"`
	Cache        Cache          `mapstructure:"cache"`
	Scheduler    Scheduler      `mapstructure:"scheduler"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
	Gemini       Gemini         `mapstructure:"gemini"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type API struct {
	Port              int     `mapstructure:"port"`
	RateLimitPerSec   float64 `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst    int     `mapstructure:"rate_limit_burst"`
	MaxRequestSeconds int     `mapstructure:"max_request_seconds"`
}

// Backtest holds engine defaults applied to every run unless a request overrides them.
type Backtest struct {
	InitialCapital      float64 `mapstructure:"initial_capital"`
	Commission          float64 `mapstructure:"commission"`
	Slippage            float64 `mapstructure:"slippage"`
	PositionSizePercent float64 `mapstructure:"position_size_percent"`
	Interval            string  `mapstructure:"interval"`
	TradingDaysPerYear  int     `mapstructure:"trading_days_per_year"`
	RiskFreeRate        float64 `mapstructure:"risk_free_rate"`
	MaxEquityPoints     int     `mapstructure:"max_equity_points"`
	HistoryRetention    int     `mapstructure:"history_retention_days"`
}

type YahooFinance struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	MaxRetries          int           `mapstructure:"max_retries"`
}

type BarCache struct {
	Capacity int `mapstructure:"capacity"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type Scheduler struct {
	Enabled          bool          `mapstructure:"enabled"`
	Timezone         string        `mapstructure:"timezone"`
	TickCron         string        `mapstructure:"tick_cron"`
	MaxConcurrency   int           `mapstructure:"max_concurrency"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	TimeoutDuration  time.Duration `mapstructure:"timeout_duration"`
}

type TelegramConfig struct {
	BotToken                  string        `mapstructure:"bot_token"`
	WebhookURL                string        `mapstructure:"webhook_url"`
	ChatID                    int64         `mapstructure:"chat_id"`
	TimeoutDuration           time.Duration `mapstructure:"timeout_duration"`
	MaxGlobalRequestPerSecond int           `mapstructure:"max_global_request_per_second"`
	MaxUserRequestPerSecond   int           `mapstructure:"max_user_request_per_second"`
	RatelimitExpireDuration   time.Duration `mapstructure:"ratelimit_expire_duration"`
	RateLimitCleanupDuration  time.Duration `mapstructure:"rate_limit_cleanup_duration"`
}

type Gemini struct {
	APIKey              string        `mapstructure:"api_key"`
	Model               string        `mapstructure:"model"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int           `mapstructure:"max_token_per_minute"`
}

// Enabled reports whether a bot token is configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != ""
}

func (g Gemini) Enabled() bool {
	return g.APIKey != ""
}

// Default returns the configuration used when neither config.yaml nor the
// environment sets a key.
func Default() *Config {
	return &Config{
		Log: Logger{Level: "info", Encoding: "json"},
		DB: Database{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			DBName:          "golang_backtest",
			SSLMode:         "disable",
			MaxIdleConns:    5,
			MaxOpenConns:    20,
			ConnMaxLifetime: "30m",
			LogLevel:        "Warn",
		},
		API: API{Port: 8080, RateLimitPerSec: 10, RateLimitBurst: 30, MaxRequestSeconds: 60},
		Backtest: Backtest{
			InitialCapital:      10000,
			Commission:          0.001,
			Slippage:            0.0005,
			PositionSizePercent: 100,
			Interval:            "1d",
			TradingDaysPerYear:  252,
			RiskFreeRate:        0.02,
			MaxEquityPoints:     100,
			HistoryRetention:    90,
		},
		YahooFinance: YahooFinance{
			BaseURL:             "https://query1.finance.yahoo.com/v8/finance/chart",
			Timeout:             15 * time.Second,
			MaxRequestPerMinute: 60,
			MaxRetries:          3,
		},
		BarCache: BarCache{Capacity: 100},
		Cache:    Cache{DefaultExpiration: 10 * time.Minute, CleanupInterval: 20 * time.Minute},
		Scheduler: Scheduler{
			Timezone:         "UTC",
			TickCron:         "@every 1m",
			MaxConcurrency:   2,
			BatchConcurrency: 4,
			TimeoutDuration:  10 * time.Minute,
		},
		Telegram: TelegramConfig{
			TimeoutDuration:           2 * time.Minute,
			MaxGlobalRequestPerSecond: 30,
			MaxUserRequestPerSecond:   1,
			RatelimitExpireDuration:   10 * time.Minute,
			RateLimitCleanupDuration:  5 * time.Minute,
		},
		Gemini: Gemini{Model: "gemini-2.0-flash", Timeout: 30 * time.Second, MaxRequestPerMinute: 15, MaxTokenPerMinute: 1000000},
	}
}

func Load() (*Config, error) {
	// .env is optional; real environment variables still win.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AddConfigPath(".")
	v.AutomaticEnv()

	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers every default key so AutomaticEnv can resolve it
// during Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("logger.level", d.Log.Level)
	v.SetDefault("logger.encoding", d.Log.Encoding)

	v.SetDefault("database.host", d.DB.Host)
	v.SetDefault("database.port", d.DB.Port)
	v.SetDefault("database.user", d.DB.User)
	v.SetDefault("database.password", d.DB.Password)
	v.SetDefault("database.name", d.DB.DBName)
	v.SetDefault("database.ssl_mode", d.DB.SSLMode)
	v.SetDefault("database.time_zone", d.DB.TimeZone)
	v.SetDefault("database.max_idle_conns", d.DB.MaxIdleConns)
	v.SetDefault("database.max_open_conns", d.DB.MaxOpenConns)
	v.SetDefault("database.conn_max_lifetime", d.DB.ConnMaxLifetime)
	v.SetDefault("database.log_level", d.DB.LogLevel)

	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("api.rate_limit_per_sec", d.API.RateLimitPerSec)
	v.SetDefault("api.rate_limit_burst", d.API.RateLimitBurst)
	v.SetDefault("api.max_request_seconds", d.API.MaxRequestSeconds)

	v.SetDefault("backtest.initial_capital", d.Backtest.InitialCapital)
	v.SetDefault("backtest.commission", d.Backtest.Commission)
	v.SetDefault("backtest.slippage", d.Backtest.Slippage)
	v.SetDefault("backtest.position_size_percent", d.Backtest.PositionSizePercent)
	v.SetDefault("backtest.interval", d.Backtest.Interval)
	v.SetDefault("backtest.trading_days_per_year", d.Backtest.TradingDaysPerYear)
	v.SetDefault("backtest.risk_free_rate", d.Backtest.RiskFreeRate)
	v.SetDefault("backtest.max_equity_points", d.Backtest.MaxEquityPoints)
	v.SetDefault("backtest.history_retention_days", d.Backtest.HistoryRetention)

	v.SetDefault("yahoo_finance.base_url", d.YahooFinance.BaseURL)
	v.SetDefault("yahoo_finance.timeout", d.YahooFinance.Timeout)
	v.SetDefault("yahoo_finance.max_request_per_minute", d.YahooFinance.MaxRequestPerMinute)
	v.SetDefault("yahoo_finance.max_retries", d.YahooFinance.MaxRetries)

	v.SetDefault("bar_cache.capacity", d.BarCache.Capacity)

	v.SetDefault("cache.default_expiration", d.Cache.DefaultExpiration)
	v.SetDefault("cache.cleanup_interval", d.Cache.CleanupInterval)

	v.SetDefault("scheduler.enabled", d.Scheduler.Enabled)
	v.SetDefault("scheduler.timezone", d.Scheduler.Timezone)
	v.SetDefault("scheduler.tick_cron", d.Scheduler.TickCron)
	v.SetDefault("scheduler.max_concurrency", d.Scheduler.MaxConcurrency)
	v.SetDefault("scheduler.batch_concurrency", d.Scheduler.BatchConcurrency)
	v.SetDefault("scheduler.timeout_duration", d.Scheduler.TimeoutDuration)

	v.SetDefault("telegram.bot_token", d.Telegram.BotToken)
	v.SetDefault("telegram.webhook_url", d.Telegram.WebhookURL)
	v.SetDefault("telegram.chat_id", d.Telegram.ChatID)
	v.SetDefault("telegram.timeout_duration", d.Telegram.TimeoutDuration)
	v.SetDefault("telegram.max_global_request_per_second", d.Telegram.MaxGlobalRequestPerSecond)
	v.SetDefault("telegram.max_user_request_per_second", d.Telegram.MaxUserRequestPerSecond)
	v.SetDefault("telegram.ratelimit_expire_duration", d.Telegram.RatelimitExpireDuration)
	v.SetDefault("telegram.rate_limit_cleanup_duration", d.Telegram.RateLimitCleanupDuration)

	v.SetDefault("gemini.api_key", d.Gemini.APIKey)
	v.SetDefault("gemini.model", d.Gemini.Model)
	v.SetDefault("gemini.timeout", d.Gemini.Timeout)
	v.SetDefault("gemini.max_request_per_minute", d.Gemini.MaxRequestPerMinute)
	v.SetDefault("gemini.max_token_per_minute", d.Gemini.MaxTokenPerMinute)
}
