package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Detector modes
const (
	DetectorNone = ""
	DetectorGold = "gold"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36"

// Config represents the application configuration
type Config struct {
	// Watch configuration
	SearchURLs    []string
	WatchInterval time.Duration
	Bootstrap     bool
	SeenPath      string
	Verbose       bool

	// Deal detector configuration
	Detector        string
	MaxPrice        float64
	Currency        string
	DebugCandidates int

	// Retrieval configuration
	FetchTimeout    time.Duration
	MaxAttempts     int
	RetryBase       time.Duration
	RetryJitter     time.Duration
	UserAgent       string
	BrowserFallback bool
	BrowserTimeout  time.Duration

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr  string
	BlockCooldown time.Duration

	// Metrics server address
	MetricsAddr string

	// Environment
	Environment string
}

// New returns a viper instance with defaults, environment binding and the
// optional file named by WATCH_CONFIG_FILE merged in.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("search_urls", "")
	v.SetDefault("watch_interval_seconds", 0)
	v.SetDefault("bootstrap", false)
	v.SetDefault("seen_path", "seen.json")
	v.SetDefault("verbose", false)
	v.SetDefault("detector", DetectorNone)
	v.SetDefault("max_price", 25.0)
	v.SetDefault("currency", "EUR")
	v.SetDefault("debug_candidates", 5)
	v.SetDefault("fetch_timeout_seconds", 20)
	v.SetDefault("max_attempts", 3)
	v.SetDefault("retry_base_ms", 750)
	v.SetDefault("retry_jitter_ms", 400)
	v.SetDefault("user_agent", defaultUserAgent)
	v.SetDefault("browser_fallback", false)
	v.SetDefault("browser_timeout_seconds", 20)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_stream", "listings")
	v.SetDefault("redis_stream_max_length", 1000)
	v.SetDefault("memcache_addr", "")
	v.SetDefault("block_cooldown_seconds", 0)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("watch_environment", "development")

	v.AutomaticEnv()

	if file := os.Getenv("WATCH_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		// A missing or broken file falls back to env and defaults; Validate
		// catches anything that matters.
		_ = v.MergeInConfig()
	}

	return v
}

// Load materializes a Config from a prepared viper instance
func Load(v *viper.Viper) *Config {
	return &Config{
		SearchURLs:           splitURLs(v.Get("search_urls")),
		WatchInterval:        time.Duration(v.GetInt("watch_interval_seconds")) * time.Second,
		Bootstrap:            v.GetBool("bootstrap"),
		SeenPath:             v.GetString("seen_path"),
		Verbose:              v.GetBool("verbose"),
		Detector:             strings.ToLower(strings.TrimSpace(v.GetString("detector"))),
		MaxPrice:             v.GetFloat64("max_price"),
		Currency:             strings.ToUpper(v.GetString("currency")),
		DebugCandidates:      v.GetInt("debug_candidates"),
		FetchTimeout:         time.Duration(v.GetInt("fetch_timeout_seconds")) * time.Second,
		MaxAttempts:          v.GetInt("max_attempts"),
		RetryBase:            time.Duration(v.GetInt("retry_base_ms")) * time.Millisecond,
		RetryJitter:          time.Duration(v.GetInt("retry_jitter_ms")) * time.Millisecond,
		UserAgent:            v.GetString("user_agent"),
		BrowserFallback:      v.GetBool("browser_fallback"),
		BrowserTimeout:       time.Duration(v.GetInt("browser_timeout_seconds")) * time.Second,
		RedisAddr:            v.GetString("redis_addr"),
		RedisDB:              v.GetInt("redis_db"),
		RedisStream:          v.GetString("redis_stream"),
		RedisStreamMaxLength: v.GetInt("redis_stream_max_length"),
		MemcacheAddr:         v.GetString("memcache_addr"),
		BlockCooldown:        time.Duration(v.GetInt("block_cooldown_seconds")) * time.Second,
		MetricsAddr:          v.GetString("metrics_addr"),
		Environment:          v.GetString("watch_environment"),
	}
}

// splitURLs accepts a comma separated string (env) or a list (config file, CLI)
func splitURLs(raw interface{}) []string {
	var parts []string
	switch val := raw.(type) {
	case string:
		parts = strings.Split(val, ",")
	case []string:
		for _, s := range val {
			parts = append(parts, strings.Split(s, ",")...)
		}
	case []interface{}:
		for _, item := range val {
			parts = append(parts, strings.Split(fmt.Sprint(item), ",")...)
		}
	}

	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}

// Validate ensures all configuration values are coherent
func (c *Config) Validate() error {
	if len(c.SearchURLs) == 0 {
		return fmt.Errorf("at least one search URL is required")
	}
	for _, raw := range c.SearchURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid search URL %q: %w", raw, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("search URL %q must be an absolute http(s) URL", raw)
		}
	}
	if c.WatchInterval < 0 {
		return fmt.Errorf("watch interval cannot be negative")
	}
	if c.SeenPath == "" {
		return fmt.Errorf("seen path cannot be empty")
	}
	switch c.Detector {
	case DetectorNone:
	case DetectorGold:
		if c.MaxPrice <= 0 {
			return fmt.Errorf("max price must be positive when the %s detector is enabled", DetectorGold)
		}
	default:
		return fmt.Errorf("unknown detector %q", c.Detector)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if c.RetryBase < 0 || c.RetryJitter < 0 {
		return fmt.Errorf("retry delays cannot be negative")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.BrowserFallback && c.BrowserTimeout <= 0 {
		return fmt.Errorf("browser timeout must be positive")
	}
	if c.BlockCooldown < 0 {
		return fmt.Errorf("block cooldown cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}
