// Package config loads and validates extractor configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/newsletter-extractor/internal/fetcher/direct"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Extraction   ExtractionConfig   `mapstructure:"extraction"`
	Fetch        FetchConfig        `mapstructure:"fetch"`
	CloudBrowser CloudBrowserConfig `mapstructure:"cloud_browser"`
	LocalBrowser LocalBrowserConfig `mapstructure:"local_browser"`
	Browser      BrowserConfig      `mapstructure:"browser"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ExtractionConfig bounds the article extraction engine.
type ExtractionConfig struct {
	ArticleTextMax     int `mapstructure:"article_text_max"`
	FallbackTextMax    int `mapstructure:"fallback_text_max"`
	ContainerScanLimit int `mapstructure:"container_scan_limit"`
}

// FetchConfig holds defaults for linked-article fetching.
type FetchConfig struct {
	TimeoutSeconds        int     `mapstructure:"timeout_seconds"`
	MaxContentLength      int     `mapstructure:"max_content_length"`
	MaxConcurrent         int     `mapstructure:"max_concurrent"`
	PerHostRPS            float64 `mapstructure:"per_host_rps"`
	ResolveTimeoutSeconds int     `mapstructure:"resolve_timeout_seconds"`
	UserAgent             string  `mapstructure:"user_agent"`
	// SkipHosts are host patterns ("example.com", "*.example.com") never fetched.
	SkipHosts []string `mapstructure:"skip_hosts"`
}

// CloudBrowserConfig configures the remote headless browser tier.
type CloudBrowserConfig struct {
	Endpoint          string `mapstructure:"endpoint"`
	APIKey            string `mapstructure:"api_key"`
	MinTimeoutSeconds int    `mapstructure:"min_timeout_seconds"`
	PollAttempts      int    `mapstructure:"poll_attempts"`
}

// LocalBrowserConfig configures the locally launched browser tier.
type LocalBrowserConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	MinTimeoutSeconds int    `mapstructure:"min_timeout_seconds"`
	PollAttempts      int    `mapstructure:"poll_attempts"`
	BinPath           string `mapstructure:"bin_path"`
}

// BrowserConfig holds polling knobs shared by both browser tiers.
type BrowserConfig struct {
	PollIntervalMs     int `mapstructure:"poll_interval_ms"`
	ContentWaitSeconds int `mapstructure:"content_wait_seconds"`
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EXTRACTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("cloud_browser.api_key", "EXTRACTOR_CLOUD_BROWSER_API_KEY", "BROWSERLESS_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

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
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.request_timeout_seconds", 180)
	v.SetDefault("logging.development", true)
	v.SetDefault("extraction.article_text_max", 1000)
	v.SetDefault("extraction.fallback_text_max", 2000)
	v.SetDefault("extraction.container_scan_limit", 10)
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("fetch.max_content_length", 5000)
	v.SetDefault("fetch.max_concurrent", 5)
	v.SetDefault("fetch.per_host_rps", 0)
	v.SetDefault("fetch.resolve_timeout_seconds", 10)
	v.SetDefault("fetch.user_agent", direct.DefaultUserAgent)
	v.SetDefault("fetch.skip_hosts", []string{})
	v.SetDefault("cloud_browser.endpoint", "wss://chrome.browserless.io")
	v.SetDefault("cloud_browser.api_key", "")
	v.SetDefault("cloud_browser.min_timeout_seconds", 60)
	v.SetDefault("cloud_browser.poll_attempts", 15)
	v.SetDefault("local_browser.enabled", true)
	v.SetDefault("local_browser.min_timeout_seconds", 30)
	v.SetDefault("local_browser.poll_attempts", 10)
	v.SetDefault("local_browser.bin_path", "")
	v.SetDefault("browser.poll_interval_ms", 2000)
	v.SetDefault("browser.content_wait_seconds", 5)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "newsletter-extractor")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Extraction.ArticleTextMax <= 0 || c.Extraction.FallbackTextMax <= 0 {
		return fmt.Errorf("extraction text limits must be > 0")
	}
	if c.Extraction.ContainerScanLimit <= 0 {
		return fmt.Errorf("extraction.container_scan_limit must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxContentLength <= 0 {
		return fmt.Errorf("fetch.max_content_length must be > 0")
	}
	if c.Fetch.MaxConcurrent <= 0 {
		return fmt.Errorf("fetch.max_concurrent must be > 0")
	}
	if c.Fetch.PerHostRPS < 0 {
		return fmt.Errorf("fetch.per_host_rps must be >= 0")
	}
	if c.CloudBrowser.APIKey != "" {
		u, err := url.Parse(c.CloudBrowser.Endpoint)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("cloud_browser.endpoint must be a ws:// or wss:// URL when an api key is set")
		}
	}
	if c.Browser.PollIntervalMs <= 0 {
		return fmt.Errorf("browser.poll_interval_ms must be > 0")
	}
	if c.Tracing.Enabled && (c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1) {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]")
	}
	return nil
}

// CloudEnabled reports whether the cloud browser tier has credentials.
func (c Config) CloudEnabled() bool {
	return c.CloudBrowser.APIKey != ""
}

// FetchTimeout is the default per-tier budget for linked-article fetches.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// RequestTimeout bounds linked-article fetching for a single extraction.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// PollInterval is the delay between browser page reads.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Browser.PollIntervalMs) * time.Millisecond
}

// ContentWait bounds the final content-selector wait in browser tiers.
func (c Config) ContentWait() time.Duration {
	return time.Duration(c.Browser.ContentWaitSeconds) * time.Second
}
