// Package config loads service configuration from defaults, an optional YAML
// file and FINANCE_-prefixed environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/spf13/viper"
)

const EnvPrefix = "FINANCE"

const (
	BackendMemory   = "memory"
	BackendBigQuery = "bigquery"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	BigQuery   BigQueryConfig   `mapstructure:"bigquery"`
	GCS        GCSConfig        `mapstructure:"gcs"`
	ML         MLConfig         `mapstructure:"ml"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Insights   InsightsConfig   `mapstructure:"insights"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
}

type GCSConfig struct {
	// ArchiveBucket enables raw insight archiving when set.
	ArchiveBucket string `mapstructure:"archive_bucket"`
}

type MLConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LLMConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

type InsightsConfig struct {
	TTL                 time.Duration `mapstructure:"ttl"`
	RateLimitRetryDelay time.Duration `mapstructure:"rate_limit_retry_delay"`
}

type EnrichmentConfig struct {
	QueueSize int           `mapstructure:"queue_size"`
	Workers   int           `mapstructure:"workers"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.dataset", "finance")
	v.SetDefault("gcs.archive_bucket", "")
	v.SetDefault("ml.base_url", "http://localhost:8000")
	v.SetDefault("ml.timeout", 5*time.Second)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.requests_per_minute", 0)
	v.SetDefault("insights.ttl", domain.InsightTTL)
	v.SetDefault("insights.rate_limit_retry_delay", 8*time.Second)
	v.SetDefault("enrichment.queue_size", 100)
	v.SetDefault("enrichment.workers", 5)
	v.SetDefault("enrichment.timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration. path may be empty, in which case only defaults and
// the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Load: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Load: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendMemory:
	case BackendBigQuery:
		if c.BigQuery.Project == "" {
			errs = append(errs, errors.New("bigquery.project is required for the bigquery backend"))
		}
		if c.BigQuery.Dataset == "" {
			errs = append(errs, errors.New("bigquery.dataset is required for the bigquery backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of %s, %s", c.Store.Backend, BackendMemory, BackendBigQuery))
	}

	if c.ML.BaseURL == "" {
		errs = append(errs, errors.New("ml.base_url is required"))
	}

	durations := map[string]time.Duration{
		"ml.timeout":                      c.ML.Timeout,
		"llm.timeout":                     c.LLM.Timeout,
		"insights.ttl":                    c.Insights.TTL,
		"insights.rate_limit_retry_delay": c.Insights.RateLimitRetryDelay,
		"enrichment.timeout":              c.Enrichment.Timeout,
	}
	for _, key := range []string{"ml.timeout", "llm.timeout", "insights.ttl", "insights.rate_limit_retry_delay", "enrichment.timeout"} {
		if durations[key] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}

	if c.LLM.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("llm.requests_per_minute must not be negative"))
	}
	if c.Enrichment.QueueSize <= 0 {
		errs = append(errs, errors.New("enrichment.queue_size must be positive"))
	}
	if c.Enrichment.Workers <= 0 {
		errs = append(errs, errors.New("enrichment.workers must be positive"))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is not one of console, json", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
