// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Brand     BrandConfig     `mapstructure:"brand"`
	Scraping  ScrapingConfig  `mapstructure:"scraping"`
	Selectors SelectorConfig  `mapstructure:"selectors"`
	Store     StoreConfig     `mapstructure:"store"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// BrandConfig describes the one catalog this service targets.
type BrandConfig struct {
	Name            string `mapstructure:"name"`
	Source          string `mapstructure:"source"`
	IDPrefix        string `mapstructure:"id_prefix"`
	BaseURL         string `mapstructure:"base_url"`
	CategoryURL     string `mapstructure:"category_url"`
	ItemPathPattern string `mapstructure:"item_path_pattern"`
	DefaultCategory string `mapstructure:"default_category"`
	DefaultGender   string `mapstructure:"default_gender"`
	DefaultCurrency string `mapstructure:"default_currency"`
	SecondHand      bool   `mapstructure:"second_hand"`
}

// ScrapingConfig governs pacing, limits and the fetch retry budget.
type ScrapingConfig struct {
	DelaySeconds   float64 `mapstructure:"delay_seconds"`
	MaxPages       int     `mapstructure:"max_pages"`
	MaxRetries     int     `mapstructure:"max_retries"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	Headless       bool    `mapstructure:"headless"`
}

// SelectorConfig lets deployments override the markup fallback selectors
// per field without a code change.
type SelectorConfig struct {
	Image []string `mapstructure:"image"`
	Size  []string `mapstructure:"size"`
}

// StoreConfig controls access to the persistent product store.
type StoreConfig struct {
	Provider string `mapstructure:"provider"`
	URL      string `mapstructure:"url"`
	Key      string `mapstructure:"key"`
	Table    string `mapstructure:"table"`
	DSN      string `mapstructure:"dsn"`
}

// EmbeddingConfig configures the image embedding service boundary.
type EmbeddingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Endpoint       string `mapstructure:"endpoint"`
	Dimension      int    `mapstructure:"dimension"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ArchiveConfig controls optional raw-HTML archiving of fetched pages.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for sync event notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the status/metrics HTTP listener.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
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
	v.SetDefault("brand.source", "scraper")
	v.SetDefault("brand.item_path_pattern", "/product/")
	v.SetDefault("brand.default_category", "Clothing")
	v.SetDefault("brand.default_gender", "women")
	v.SetDefault("brand.default_currency", "EUR")
	v.SetDefault("brand.second_hand", false)
	v.SetDefault("scraping.delay_seconds", 1.5)
	v.SetDefault("scraping.max_pages", 20)
	v.SetDefault("scraping.max_retries", 3)
	v.SetDefault("scraping.timeout_seconds", 30)
	v.SetDefault("scraping.headless", false)
	v.SetDefault("store.provider", "rest")
	v.SetDefault("store.table", "products")
	v.SetDefault("embedding.enabled", true)
	v.SetDefault("embedding.dimension", 768)
	v.SetDefault("embedding.timeout_seconds", 60)
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Brand.BaseURL == "" {
		return fmt.Errorf("brand.base_url is required")
	}
	if c.Brand.IDPrefix == "" {
		return fmt.Errorf("brand.id_prefix is required")
	}
	if c.Scraping.MaxPages <= 0 {
		return fmt.Errorf("scraping.max_pages must be > 0")
	}
	if c.Scraping.MaxRetries <= 0 {
		return fmt.Errorf("scraping.max_retries must be > 0")
	}
	switch c.Store.Provider {
	case "rest":
		if c.Store.URL == "" || c.Store.Key == "" {
			return fmt.Errorf("store.url and store.key are required for the rest provider")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres provider")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store provider %q", c.Store.Provider)
	}
	if c.Embedding.Enabled && c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be > 0 when embedding is enabled")
	}
	if c.Embedding.Enabled && c.Embedding.Endpoint == "" {
		return fmt.Errorf("embedding.endpoint is required when embedding is enabled")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	return nil
}

// RequestDelay converts the configured inter-request delay to a Duration.
func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Scraping.DelaySeconds * float64(time.Second))
}

// FetchTimeout converts the configured HTTP timeout to a Duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scraping.TimeoutSeconds) * time.Second
}

// EmbeddingTimeout converts the embedding service timeout to a Duration.
func (c Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSeconds) * time.Second
}
