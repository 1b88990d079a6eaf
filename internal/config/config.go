// Package config provides configuration parsing and validation for cvewatch.
package config

import (
	"fmt"
	"os"
	"time"
)

// Defaults for external interfaces. The feed URLs point at the live sources
// and are overridable for testing against fixtures.
const (
	DefaultKubernetesFeedURL = "https://kubernetes.io/docs/reference/issues-security/official-cve-feed/index.json"
	DefaultRedHatAPIURL      = "https://access.redhat.com/labs/securitydataapi/cve.json"
	DefaultMetricsPort       = "8000"
	DefaultStatePath         = "last_run_state.json"
	DefaultKafkaTopic        = "advisories.dispatched"
	DefaultInterval          = 5 * time.Minute
	DefaultLookbackHours     = 1
)

// State backend selectors.
const (
	StateBackendFile  = "file"
	StateBackendRedis = "redis"
)

// Config holds all configuration parameters for the watcher.
type Config struct {
	WebhookURL        string
	KubernetesFeedURL string
	RedHatAPIURL      string
	MetricsPort       string

	StateBackend string
	StatePath    string
	RedisAddr    string

	Interval      time.Duration
	LookbackHours int

	// Optional integrations; empty values disable them.
	KafkaBrokers string
	KafkaTopic   string
	PostgresDSN  string
	EmailTo      string
	EmailFrom    string
}

// Validate checks that all required configuration fields are set and have
// valid values. The webhook URL may be empty: dispatch then degrades to a
// logged failure instead of crashing the loop.
func (c *Config) Validate() error {
	if c.KubernetesFeedURL == "" {
		return fmt.Errorf("kubernetes-feed-url cannot be empty")
	}
	if c.RedHatAPIURL == "" {
		return fmt.Errorf("redhat-api-url cannot be empty")
	}
	if c.MetricsPort == "" {
		return fmt.Errorf("metrics-port cannot be empty")
	}
	if c.StateBackend != StateBackendFile && c.StateBackend != StateBackendRedis {
		return fmt.Errorf("state-backend must be %q or %q", StateBackendFile, StateBackendRedis)
	}
	if c.StateBackend == StateBackendFile && c.StatePath == "" {
		return fmt.Errorf("state-path cannot be empty with the file state backend")
	}
	if c.StateBackend == StateBackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty with the redis state backend")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.LookbackHours <= 0 {
		return fmt.Errorf("lookback-hours must be positive")
	}
	if c.KafkaBrokers != "" && c.KafkaTopic == "" {
		return fmt.Errorf("kafka-topic cannot be empty when kafka-brokers is set")
	}
	if c.EmailTo != "" && c.EmailFrom == "" {
		return fmt.Errorf("email-from cannot be empty when email-to is set")
	}
	return nil
}

// Lookback returns the default lookback window as a duration.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}

// GetEnvOrDefault returns the environment variable value or a default if not set.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
