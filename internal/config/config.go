// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/beborico/runway-crawler/internal/retry"
	"github.com/beborico/runway-crawler/internal/storage"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Browser BrowserConfig `mapstructure:"browser"`
	Storage StorageConfig `mapstructure:"storage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Status  StatusConfig  `mapstructure:"status"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlConfig governs run planning and parallelism.
type CrawlConfig struct {
	Mode              string  `mapstructure:"mode"`
	Workers           int     `mapstructure:"workers"`
	SortOrder         string  `mapstructure:"sort_order"`
	AuthURL           string  `mapstructure:"auth_url"`
	BaseURL           string  `mapstructure:"base_url"`
	Checkpoint        string  `mapstructure:"checkpoint"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	RequestBurst      int     `mapstructure:"request_burst"`
}

// BrowserConfig configures the headless browser layer.
type BrowserConfig struct {
	UserAgent       string `mapstructure:"user_agent"`
	PageLoadWaitSec int    `mapstructure:"page_load_wait_seconds"`
	ElementWaitSec  int    `mapstructure:"element_wait_seconds"`
	AuthTimeoutSec  int    `mapstructure:"auth_timeout_seconds"`
	OpTimeoutSec    int    `mapstructure:"op_timeout_seconds"`
}

// StorageConfig selects and parameterizes the state backend.
type StorageConfig struct {
	Mode       string `mapstructure:"mode"`
	DataDir    string `mapstructure:"data_dir"`
	FilePrefix string `mapstructure:"file_prefix"`
}

// RedisConfig controls access to Redis when the redis backend is used.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// RetryConfig tunes the shared retry policy.
type RetryConfig struct {
	Attempts        int `mapstructure:"attempts"`
	DelaySeconds    int `mapstructure:"delay_seconds"`
	MaxDelaySeconds int `mapstructure:"max_delay_seconds"`
}

// StatusConfig controls the HTTP status endpoint.
type StatusConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RUNWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.mode", "designers")
	v.SetDefault("crawl.workers", 4)
	v.SetDefault("crawl.sort_order", "descending")
	v.SetDefault("crawl.base_url", "https://www.vogue.com")
	v.SetDefault("crawl.requests_per_second", 1.0)
	v.SetDefault("crawl.request_burst", 2)
	v.SetDefault("browser.user_agent", "Fashion Research (beborico16@gmail.com)")
	v.SetDefault("browser.page_load_wait_seconds", 5)
	v.SetDefault("browser.element_wait_seconds", 10)
	v.SetDefault("browser.auth_timeout_seconds", 120)
	v.SetDefault("browser.op_timeout_seconds", 45)
	v.SetDefault("storage.mode", "document")
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.file_prefix", "runway")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay_seconds", 2)
	v.SetDefault("retry.max_delay_seconds", 30)
	v.SetDefault("status.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.Crawl.Mode {
	case "", "seasons", "designers", "looks":
	default:
		return fmt.Errorf("crawl.mode must be one of seasons, designers, looks")
	}
	if c.Crawl.Workers <= 0 {
		return fmt.Errorf("crawl.workers must be > 0")
	}
	switch c.Crawl.SortOrder {
	case "ascending", "descending":
	default:
		return fmt.Errorf("crawl.sort_order must be ascending or descending")
	}
	switch storage.Mode(c.Storage.Mode) {
	case storage.ModeDocument:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir must be set for document storage")
		}
	case storage.ModeRedis:
		if c.Redis.Host == "" || c.Redis.Port <= 0 {
			return fmt.Errorf("redis.host and redis.port must be set for redis storage")
		}
	default:
		return fmt.Errorf("storage.mode must be document or redis")
	}
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("retry.attempts must be > 0")
	}
	if c.Status.Port <= 0 {
		return fmt.Errorf("status.port must be > 0")
	}
	return nil
}

// Descending reports whether seasons should be crawled newest first.
func (c Config) Descending() bool {
	return c.Crawl.SortOrder == "descending"
}

// StorageConfig assembles the backend configuration, including the
// checkpoint to resume from.
func (c Config) StorageConfig() storage.Config {
	return storage.Config{
		Mode:       storage.Mode(c.Storage.Mode),
		DataDir:    c.Storage.DataDir,
		FilePrefix: c.Storage.FilePrefix,
		RedisAddr:  fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port),
		RedisDB:    c.Redis.DB,
		RedisPass:  c.Redis.Password,
		Checkpoint: c.Crawl.Checkpoint,
	}
}

// RetryPolicy converts the retry knobs into the shared policy config.
func (c Config) RetryPolicy() retry.Config {
	return retry.Config{
		Attempts:  c.Retry.Attempts,
		BaseDelay: time.Duration(c.Retry.DelaySeconds) * time.Second,
		MaxDelay:  time.Duration(c.Retry.MaxDelaySeconds) * time.Second,
	}
}
