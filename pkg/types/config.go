package types

import (
	"time"
)

// Config represents the application configuration loaded from the config
// file and environment. Runtime tunables that must survive restarts
// (rate limit, delay, timeout, detection threshold, category toggles)
// live in the store's key/value config surface instead; see the Config*
// key constants below.
type Config struct {
	// Database settings
	Database DatabaseSettings `yaml:"database" mapstructure:"database"`

	// Replay settings
	Replay ReplaySettings `yaml:"replay" mapstructure:"replay"`

	// Output settings
	Output OutputSettings `yaml:"output" mapstructure:"output"`

	// Remediation advisor (LLM) settings
	Advisor AdvisorSettings `yaml:"advisor" mapstructure:"advisor"`
}

// DatabaseSettings holds store configuration.
type DatabaseSettings struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ReplaySettings holds replay executor configuration.
type ReplaySettings struct {
	MaxConcurrent int           `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RequestDelay  time.Duration `yaml:"request_delay" mapstructure:"request_delay"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// VerifySSL is false by default: this tool targets systems under
	// test, which routinely run self-signed certificates. Enabling it is
	// an explicit operator choice.
	VerifySSL bool   `yaml:"verify_ssl" mapstructure:"verify_ssl"`
	ProxyURL  string `yaml:"proxy_url" mapstructure:"proxy_url"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// OutputSettings holds report output configuration.
type OutputSettings struct {
	Format string `yaml:"format" mapstructure:"format"` // json, html, csv
	File   string `yaml:"file" mapstructure:"file"`
	Color  bool   `yaml:"color" mapstructure:"color"`
}

// AdvisorSettings holds remediation advisor configuration.
type AdvisorSettings struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseSettings{
			Path: ".anomdet.db",
		},
		Replay: ReplaySettings{
			MaxConcurrent: DefaultMaxConcurrentRequests,
			RequestDelay:  DefaultRequestDelay,
			Timeout:       DefaultTimeout,
			VerifySSL:     false,
			UserAgent:     "anomdet/1.0 (Business Logic Security Tester)",
		},
		Output: OutputSettings{
			Format: "json",
			Color:  true,
		},
		Advisor: AdvisorSettings{
			Enabled:     false,
			Model:       "gpt-4o",
			MaxTokens:   1024,
			Temperature: 0.2,
		},
	}
}

// Store config keys read by the core through typed accessors.
const (
	ConfigMaxConcurrentRequests = "max_concurrent_requests"
	ConfigRequestDelayMs        = "request_delay_ms"
	ConfigTimeoutSeconds        = "timeout_seconds"
	ConfigDetectionThreshold    = "anomaly_detection_threshold"
	ConfigKeywordRules          = "keyword_rules"
	ConfigStatusCodeRules       = "status_code_rules"
)

// ConfigCategoryEnabled returns the store config key gating payload
// generation for a mutation category, e.g. "enable_numeric_payloads".
func ConfigCategoryEnabled(category string) string {
	return "enable_" + category + "_payloads"
}

// Defaults applied when a store config key is unset or unparseable.
const (
	DefaultMaxConcurrentRequests = 10
	DefaultRequestDelay          = 100 * time.Millisecond
	DefaultTimeout               = 30 * time.Second
	DefaultDetectionThreshold    = 0.7
)
