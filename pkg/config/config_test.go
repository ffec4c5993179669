package config

import (
	"strings"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()

	if cfg.PrometheusURL != "http://localhost:9090" {
		t.Errorf("Expected default Prometheus URL, got %s", cfg.PrometheusURL)
	}
	if cfg.SafetyBuffer != 1.25 {
		t.Errorf("Expected safety buffer 1.25, got %.2f", cfg.SafetyBuffer)
	}
	if cfg.ReductionThreshold != 0.85 {
		t.Errorf("Expected reduction threshold 0.85, got %.2f", cfg.ReductionThreshold)
	}
	if cfg.BulkMultiplier != 2.2 {
		t.Errorf("Expected bulk multiplier 2.2, got %.2f", cfg.BulkMultiplier)
	}
	if cfg.CarbonIntensity != 475 {
		t.Errorf("Expected carbon intensity 475, got %.0f", cfg.CarbonIntensity)
	}
	if cfg.AIProvider != "ollama" {
		t.Errorf("Expected default provider ollama, got %s", cfg.AIProvider)
	}
	if cfg.ImageSizeMB != 200 {
		t.Errorf("Expected image threshold 200, got %d", cfg.ImageSizeMB)
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("PROMETHEUS_URL", "http://prometheus:9090")
	t.Setenv("SAFETY_BUFFER", "1.5")
	t.Setenv("CARBON_INTENSITY_G_PER_KWH", "120")
	t.Setenv("AI_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg := New()

	if cfg.PrometheusURL != "http://prometheus:9090" {
		t.Errorf("Expected custom Prometheus URL, got %s", cfg.PrometheusURL)
	}
	if cfg.SafetyBuffer != 1.5 {
		t.Errorf("Expected safety buffer 1.5 from env, got %.2f", cfg.SafetyBuffer)
	}
	if cfg.CarbonIntensity != 120 {
		t.Errorf("Expected carbon intensity 120 from env, got %.0f", cfg.CarbonIntensity)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got: %v", err)
	}
}

func TestInvalidEnvValuesFallBack(t *testing.T) {
	t.Setenv("SAFETY_BUFFER", "not-a-number")
	t.Setenv("IMAGE_SIZE_THRESHOLD_MB", "huge")

	cfg := New()

	if cfg.SafetyBuffer != 1.25 {
		t.Errorf("Expected fallback to default 1.25, got %.2f", cfg.SafetyBuffer)
	}
	if cfg.ImageSizeMB != 200 {
		t.Errorf("Expected fallback to default 200, got %d", cfg.ImageSizeMB)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name          string
		setupConfig   func(*Config)
		expectError   bool
		errorContains string
	}{
		{
			name:        "valid default config",
			setupConfig: func(c *Config) {},
			expectError: false,
		},
		{
			name: "openai without key",
			setupConfig: func(c *Config) {
				c.AIProvider = "openai"
				c.OpenAIKey = ""
			},
			expectError:   true,
			errorContains: "OPENAI_API_KEY",
		},
		{
			name: "anthropic without key",
			setupConfig: func(c *Config) {
				c.AIProvider = "anthropic"
				c.AnthropicKey = ""
			},
			expectError:   true,
			errorContains: "ANTHROPIC_API_KEY",
		},
		{
			name: "unknown provider",
			setupConfig: func(c *Config) {
				c.AIProvider = "bard"
			},
			expectError:   true,
			errorContains: "unknown AI_PROVIDER",
		},
		{
			name: "safety buffer too low",
			setupConfig: func(c *Config) {
				c.SafetyBuffer = 0.5
			},
			expectError:   true,
			errorContains: "must be >= 1.0",
		},
		{
			name: "reduction threshold above one",
			setupConfig: func(c *Config) {
				c.ReductionThreshold = 1.2
			},
			expectError:   true,
			errorContains: "reduction threshold",
		},
		{
			name: "storage without database URL",
			setupConfig: func(c *Config) {
				c.StorageEnabled = true
				c.DatabaseURL = ""
			},
			expectError:   true,
			errorContains: "DATABASE_URL",
		},
		{
			name: "valid edge case - buffer 1.0",
			setupConfig: func(c *Config) {
				c.SafetyBuffer = 1.0
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.setupConfig(cfg)

			err := cfg.Validate()

			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
			if tt.expectError && err != nil && tt.errorContains != "" {
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error containing %q, got %q", tt.errorContains, err.Error())
				}
			}
		})
	}
}
