package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the chat service
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Cache      CacheConfig      `mapstructure:"cache"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json or console
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	BodyLimit      string        `mapstructure:"body_limit"` // e.g. "64K", "1M"
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address required")
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be > 0")
	}
	return nil
}

// RateLimitConfig controls per-client admission. Quota requests are admitted per Window.
type RateLimitConfig struct {
	Window    time.Duration `mapstructure:"window"`
	Quota     int           `mapstructure:"quota"`
	Store     string        `mapstructure:"store"` // redis or memory
	KeyPrefix string        `mapstructure:"key_prefix"`
}

func (r RateLimitConfig) Validate() error {
	if r.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be > 0")
	}
	if r.Quota <= 0 {
		return fmt.Errorf("rate_limit.quota must be > 0")
	}
	switch r.Store {
	case "redis", "memory":
	default:
		return fmt.Errorf("rate_limit.store must be redis or memory, got %q", r.Store)
	}
	return nil
}

// FetcherConfig configures the headless renderer.
type FetcherConfig struct {
	Type      string        `mapstructure:"type"` // chromedp or rod
	Timeout   time.Duration `mapstructure:"timeout"`
	Grace     time.Duration `mapstructure:"grace"`
	MaxChars  int           `mapstructure:"max_chars"`
	UserAgent string        `mapstructure:"user_agent"`
	Headless  bool          `mapstructure:"headless"`
}

func (f FetcherConfig) Validate() error {
	switch f.Type {
	case "chromedp", "rod":
	default:
		return fmt.Errorf("fetcher.type must be chromedp or rod, got %q", f.Type)
	}
	if f.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if f.Grace < 0 {
		return fmt.Errorf("fetcher.grace cannot be negative")
	}
	return nil
}

// ClassifierConfig lists the not-found signatures matched against page signals.
type ClassifierConfig struct {
	Signatures []string `mapstructure:"signatures"`
}

// Normalize drops blank and duplicate signatures, keeping order.
func (c ClassifierConfig) Normalize() ClassifierConfig {
	seen := make(map[string]struct{}, len(c.Signatures))
	out := make([]string, 0, len(c.Signatures))
	for _, s := range c.Signatures {
		if strings.TrimSpace(s) == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	c.Signatures = out
	return c
}

func (c ClassifierConfig) Validate() error {
	if len(c.Signatures) == 0 {
		return fmt.Errorf("classifier.signatures cannot be empty")
	}
	return nil
}

// CacheConfig selects the page cache backend. A zero TTL keeps entries until the store evicts them.
type CacheConfig struct {
	Backend   string        `mapstructure:"backend"` // redis or memory
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

func (c CacheConfig) Validate() error {
	switch c.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("cache.backend must be redis or memory, got %q", c.Backend)
	}
	if c.TTL < 0 {
		return fmt.Errorf("cache.ttl cannot be negative")
	}
	return nil
}

// LLMConfig contains the answer generation provider settings
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.Provider) == "" {
		return fmt.Errorf("llm.provider required")
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model required")
	}
	return nil
}

// StorageConfig contains storage connection settings
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// TelemetryConfig contains tracing settings. Metrics are always exported on /metrics.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Cache.Backend == "redis" || c.RateLimit.Store == "redis"
}

// DefaultSignatures is the not-found signature set used when none is configured.
var DefaultSignatures = []string{
	"404",
	"Not Found",
	"Page Not Found",
	"Error",
	"Error 404",
	"404 Not Found",
	"404 Page Not Found",
	"404 Error",
	"404 Page Not Found Error",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "json")
	v.SetDefault("server.address", ":10001")
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.body_limit", "1M")
	v.SetDefault("rate_limit.window", 10*time.Second)
	v.SetDefault("rate_limit.quota", 1)
	v.SetDefault("rate_limit.store", "redis")
	v.SetDefault("rate_limit.key_prefix", "ratelimit:")
	v.SetDefault("fetcher.type", "chromedp")
	v.SetDefault("fetcher.timeout", 15000*time.Millisecond)
	v.SetDefault("fetcher.grace", 2*time.Second)
	v.SetDefault("fetcher.max_chars", 20000)
	v.SetDefault("fetcher.user_agent", "GroundChat/1.0 (+contact@example.com)")
	v.SetDefault("fetcher.headless", true)
	v.SetDefault("classifier.signatures", DefaultSignatures)
	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.ttl", 0)
	v.SetDefault("cache.key_prefix", "page:")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("telemetry.service_name", "groundchat")
}

// LoadConfig loads config from path, or from the default search paths when path is empty.
// A missing config file is not an error: defaults and GROUNDCHAT_* environment variables apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("GROUNDCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.Classifier = cfg.Classifier.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		c.Server, c.RateLimit, c.Fetcher, c.Classifier, c.Cache, c.LLM,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if c.UsesRedis() {
		if err := c.Storage.Redis.Validate(); err != nil {
			return err
		}
	}
	return nil
}
