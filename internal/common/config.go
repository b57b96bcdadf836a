// Package common provides shared utilities for the orchestrator.
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the orchestrator.
type Config struct {
	Environment  string             `toml:"environment"`
	Server       ServerConfig       `toml:"server"`
	Storage      StorageConfig      `toml:"storage"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Dataset      DatasetConfig      `toml:"dataset"`
	Clients      ClientsConfig      `toml:"clients"`
	Logging      LoggingConfig      `toml:"logging"`
	Auth         AuthConfig         `toml:"auth"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the blob store backing dataset exports and artifacts.
type StorageConfig struct {
	Backend string            `toml:"backend"`
	File    FileStorageConfig `toml:"file"`
}

// FileStorageConfig is the local filesystem blob store location.
type FileStorageConfig struct {
	Path string `toml:"path"`
}

// OrchestratorConfig holds the Worker Pool and Subscription Hub knobs
// enumerated in the configuration contract.
type OrchestratorConfig struct {
	MaxConcurrentJobs     int    `toml:"max_concurrent_jobs"`
	WorkerGracePeriod     string `toml:"worker_grace_period"`
	SubscriberSendTimeout int    `toml:"subscriber_send_timeout"`
	// ContinuousJobLimit caps concurrent Continuous-kind jobs independently
	// of MaxConcurrentJobs. 0 means unlimited.
	ContinuousJobLimit int `toml:"continuous_job_limit"`
}

// GetWorkerGracePeriod parses the configured grace period, defaulting to 30s.
func (c *OrchestratorConfig) GetWorkerGracePeriod() time.Duration {
	d, err := time.ParseDuration(c.WorkerGracePeriod)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetSubscriberSendTimeout returns the configured per-subscriber send bound.
func (c *OrchestratorConfig) GetSubscriberSendTimeout() time.Duration {
	return time.Duration(c.SubscriberSendTimeout) * time.Millisecond
}

// DatasetConfig holds the Dataset Builder pipeline knobs.
type DatasetConfig struct {
	PipelineBatchSize int     `toml:"pipeline_batch_size"`
	MaxFileSize       int64   `toml:"max_file_size"`
	QualityThreshold  float64 `toml:"quality_threshold"`
	DedupEnabled      bool    `toml:"dedup_enabled"`
	EnableHistogram   bool    `toml:"enable_histogram"`
}

// ClientsConfig holds optional external API client configurations.
type ClientsConfig struct {
	Gemini GeminiConfig `toml:"gemini"`
}

// GeminiConfig holds Gemini API configuration for the optional
// query-expansion helper. Selected by presence of APIKey, not required.
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
	// QueryExpansionVariants is how many alternative phrasings the expander
	// requests per dataset build. Defaults to 3.
	QueryExpansionVariants int `toml:"query_expansion_variants"`
}

// AuthConfig holds JWT verification configuration for the identity provider.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults, matching §6.4's
// enumerated defaults (max_concurrent_jobs defaults to 2).
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend: "file",
			File:    FileStorageConfig{Path: "data/blobs"},
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrentJobs:     2,
			WorkerGracePeriod:     "30s",
			SubscriberSendTimeout: 5000,
			ContinuousJobLimit:    0,
		},
		Dataset: DatasetConfig{
			PipelineBatchSize: 32,
			MaxFileSize:       500 * 1024 * 1024,
			QualityThreshold:  0.5,
			DedupEnabled:      true,
			EnableHistogram:   false,
		},
		Clients: ClientsConfig{
			Gemini: GeminiConfig{
				QueryExpansionVariants: 3,
			},
		},
		Auth: AuthConfig{
			JWTSecret: "dev-jwt-secret-change-in-production",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides,
// validating every out-of-range value enumerated in §6.4 at startup.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects out-of-range configuration values per §6.4.
func (c *Config) Validate() error {
	if c.Orchestrator.MaxConcurrentJobs < 1 {
		return fmt.Errorf("orchestrator.max_concurrent_jobs must be >= 1, got %d", c.Orchestrator.MaxConcurrentJobs)
	}
	if _, err := time.ParseDuration(c.Orchestrator.WorkerGracePeriod); err != nil {
		return fmt.Errorf("orchestrator.worker_grace_period is not a valid duration: %w", err)
	}
	if c.Orchestrator.SubscriberSendTimeout < 1 {
		return fmt.Errorf("orchestrator.subscriber_send_timeout must be >= 1 (milliseconds), got %d", c.Orchestrator.SubscriberSendTimeout)
	}
	if c.Orchestrator.ContinuousJobLimit < 0 {
		return fmt.Errorf("orchestrator.continuous_job_limit must be >= 0, got %d", c.Orchestrator.ContinuousJobLimit)
	}
	if c.Dataset.PipelineBatchSize < 1 {
		return fmt.Errorf("dataset.pipeline_batch_size must be >= 1, got %d", c.Dataset.PipelineBatchSize)
	}
	if c.Dataset.MaxFileSize < 1 {
		return fmt.Errorf("dataset.max_file_size must be >= 1, got %d", c.Dataset.MaxFileSize)
	}
	if c.Dataset.QualityThreshold < 0 || c.Dataset.QualityThreshold > 1 {
		return fmt.Errorf("dataset.quality_threshold must be in [0,1], got %f", c.Dataset.QualityThreshold)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FORGE_ENV"); env != "" {
		config.Environment = env
	}
	if host := os.Getenv("FORGE_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("FORGE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if level := os.Getenv("FORGE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if path := os.Getenv("FORGE_DATA_PATH"); path != "" {
		config.Storage.File.Path = path
	}
	if v := os.Getenv("FORGE_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("FORGE_MAX_CONCURRENT_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Orchestrator.MaxConcurrentJobs = n
		}
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	}
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
