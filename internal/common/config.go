// Package common provides shared utilities for the insights server
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/vire-insights/internal/models"
)

// Config holds all configuration for the insights server
type Config struct {
	Environment string         `toml:"environment"`
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Clients     ClientsConfig  `toml:"clients"`
	Insights    InsightsConfig `toml:"insights"`
	Logging     LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Storage backends
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// StorageConfig selects and configures the key-value backend used by the cache and correlator.
type StorageConfig struct {
	Backend string      `toml:"backend"` // memory, badger or redis
	Badger  AreaConfig  `toml:"badger"`
	Redis   RedisConfig `toml:"redis"`
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address  string `toml:"address"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"` // prepended to every key
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Positions PositionsConfig `toml:"positions"`
	Narrative NarrativeConfig `toml:"narrative"`
	Gemini    GeminiConfig    `toml:"gemini"`
}

// PositionsConfig holds position source API configuration
type PositionsConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *PositionsConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// Narrative providers
const (
	ProviderService = "service"
	ProviderGemini  = "gemini"
)

// NarrativeConfig holds the completion service configuration
type NarrativeConfig struct {
	Provider  string `toml:"provider"` // service or gemini
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *NarrativeConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 90*time.Second)
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// InsightsConfig holds pipeline defaults
type InsightsConfig struct {
	DefaultModel         string `toml:"default_model"`
	DefaultHorizonMonths int    `toml:"default_horizon_months"`
	DefaultRiskProfile   string `toml:"default_risk_profile"`
	PromptCharCap        int    `toml:"prompt_char_cap"`
	RequestTimeout       string `toml:"request_timeout"`
}

// GetRequestTimeout returns the client-side deadline for one narrative request
func (c *InsightsConfig) GetRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, 120*time.Second)
}

// DefaultParams returns the configured analysis defaults
func (c *InsightsConfig) DefaultParams() models.AnalysisParams {
	return models.AnalysisParams{
		Model:         c.DefaultModel,
		HorizonMonths: c.DefaultHorizonMonths,
		RiskProfile:   c.DefaultRiskProfile,
	}.Normalized()
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json or console
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8484,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Badger:  AreaConfig{Path: "data/insights"},
			Redis: RedisConfig{
				Address: "localhost:6379",
				Prefix:  "vire-insights:",
			},
		},
		Clients: ClientsConfig{
			Positions: PositionsConfig{
				BaseURL:   "http://localhost:4242",
				RateLimit: 5,
				Timeout:   "30s",
			},
			Narrative: NarrativeConfig{
				Provider:  ProviderService,
				BaseURL:   "http://localhost:8090",
				RateLimit: 2,
				Timeout:   "90s",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
		},
		Insights: InsightsConfig{
			DefaultModel:         "gemini-2.0-flash",
			DefaultHorizonMonths: models.DefaultHorizonMonths,
			DefaultRiskProfile:   models.RiskProfileBalanced,
			PromptCharCap:        5000,
			RequestTimeout:       "120s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
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
	normalizeConfig(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("INSIGHTS_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("INSIGHTS_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("INSIGHTS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("INSIGHTS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if backend := os.Getenv("INSIGHTS_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}

	if path := os.Getenv("INSIGHTS_DATA_PATH"); path != "" {
		config.Storage.Badger.Path = filepath.Join(path, "insights")
	}

	if addr := os.Getenv("INSIGHTS_REDIS_ADDRESS"); addr != "" {
		config.Storage.Redis.Address = addr
	}

	if u := os.Getenv("INSIGHTS_POSITIONS_URL"); u != "" {
		config.Clients.Positions.BaseURL = u
	}

	if u := os.Getenv("INSIGHTS_NARRATIVE_URL"); u != "" {
		config.Clients.Narrative.BaseURL = u
	}

	if p := os.Getenv("INSIGHTS_NARRATIVE_PROVIDER"); p != "" {
		config.Clients.Narrative.Provider = p
	}
}

// normalizeConfig canonicalises enumerations and defaults after loading.
func normalizeConfig(config *Config) {
	switch strings.ToLower(strings.TrimSpace(config.Storage.Backend)) {
	case BackendBadger:
		config.Storage.Backend = BackendBadger
	case BackendRedis:
		config.Storage.Backend = BackendRedis
	default:
		config.Storage.Backend = BackendMemory
	}

	switch strings.ToLower(strings.TrimSpace(config.Clients.Narrative.Provider)) {
	case ProviderGemini:
		config.Clients.Narrative.Provider = ProviderGemini
	default:
		config.Clients.Narrative.Provider = ProviderService
	}

	defaults := config.Insights.DefaultParams()
	config.Insights.DefaultHorizonMonths = defaults.HorizonMonths
	config.Insights.DefaultRiskProfile = defaults.RiskProfile
	if config.Insights.DefaultModel == "" {
		config.Insights.DefaultModel = config.Clients.Gemini.Model
	}
	if config.Insights.PromptCharCap <= 0 {
		config.Insights.PromptCharCap = 5000
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from environment or the config fallback
func ResolveAPIKey(name string, fallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"GEMINI_API_KEY", "INSIGHTS_GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"narrative_api_key": {"INSIGHTS_NARRATIVE_API_KEY"},
		"positions_api_key": {"INSIGHTS_POSITIONS_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
