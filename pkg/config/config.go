// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for the analysis knobs. The safety buffer pads suggested
// requests above observed peaks; the bulk multiplier pads detector-side
// projections, which deliberately run hotter than patch suggestions.
const (
	DefaultSafetyBuffer       = 1.25
	DefaultReductionThreshold = 0.85
	DefaultBulkMultiplier     = 2.2
	DefaultCarbonIntensity    = 475 // gCO2e per kWh, world grid average
	DefaultImageSizeMB        = 200
)

// Config holds application configuration.
type Config struct {
	// Metrics
	PrometheusURL    string
	UseMetricsServer bool
	CarbonIntensity  float64
	MetricsWindow    time.Duration

	// Storage
	StorageEnabled bool
	DatabaseURL    string

	// Advisory backend
	AIProvider     string // ollama, openai, anthropic
	OllamaURL      string
	OllamaModel    string
	OpenAIKey      string
	OpenAIModel    string
	AnthropicKey   string
	AnthropicModel string
	AITimeout      time.Duration

	// Analysis
	SafetyBuffer       float64
	ReductionThreshold float64
	BulkMultiplier     float64
	ImageSizeMB        int

	// Output
	OutputFormat string // text, csv
	Verbose      bool
}

// New creates a configuration from the environment with defaults.
func New() *Config {
	return &Config{
		PrometheusURL:    getEnv("PROMETHEUS_URL", "http://localhost:9090"),
		UseMetricsServer: getEnvBool("USE_METRICS_SERVER", false),
		CarbonIntensity:  getEnvFloat("CARBON_INTENSITY_G_PER_KWH", DefaultCarbonIntensity),
		MetricsWindow:    24 * time.Hour,

		StorageEnabled: getEnvBool("STORAGE_ENABLED", false),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		AIProvider:     getEnv("AI_PROVIDER", "ollama"),
		OllamaURL:      getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:    getEnv("OLLAMA_MODEL", "mistral:7b"),
		OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-3-haiku-20240307"),
		AITimeout:      60 * time.Second,

		SafetyBuffer:       getEnvFloat("SAFETY_BUFFER", DefaultSafetyBuffer),
		ReductionThreshold: getEnvFloat("REDUCTION_THRESHOLD", DefaultReductionThreshold),
		BulkMultiplier:     getEnvFloat("BULK_MULTIPLIER", DefaultBulkMultiplier),
		ImageSizeMB:        getEnvInt("IMAGE_SIZE_THRESHOLD_MB", DefaultImageSizeMB),

		OutputFormat: getEnv("OUTPUT_FORMAT", "text"),
		Verbose:      getEnvBool("VERBOSE", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// Validate checks if configuration is valid. Missing credentials for the
// selected provider fail here rather than on first use.
func (c *Config) Validate() error {
	switch c.AIProvider {
	case "ollama":
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY must be set when AI_PROVIDER=openai")
		}
	case "anthropic":
		if c.AnthropicKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY must be set when AI_PROVIDER=anthropic")
		}
	default:
		return fmt.Errorf("unknown AI_PROVIDER: %s", c.AIProvider)
	}

	if c.StorageEnabled && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when storage is enabled")
	}
	if c.SafetyBuffer < 1.0 {
		return fmt.Errorf("safety buffer must be >= 1.0")
	}
	if c.ReductionThreshold <= 0 || c.ReductionThreshold > 1 {
		return fmt.Errorf("reduction threshold must be in (0, 1]")
	}
	if c.BulkMultiplier < 1.0 {
		return fmt.Errorf("bulk multiplier must be >= 1.0")
	}
	if c.CarbonIntensity <= 0 {
		return fmt.Errorf("carbon intensity must be positive")
	}
	return nil
}
