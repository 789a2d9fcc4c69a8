// Package config loads the core's runtime configuration: environment
// variables first, optionally overridden by a YAML profile file. The
// safety thresholds (low-confidence acknowledgement, donation
// confidence) are fixed constants in their packages, not configuration.
package config

import (
	"os"
	"strconv"
)

// Config holds the runtime configuration of the authorization core.
type Config struct {
	DatabasePath     string
	LogLevel         string
	AuditMaxEvents   int
	OTLPEndpoint     string
	TelemetryEnabled bool
	StrictInvariants bool
	IntentsPerMinute int
	IntentBurst      int
}

// Load reads configuration from environment variables with defaults
// suitable for a local, on-device deployment.
func Load() *Config {
	return &Config{
		DatabasePath:     getenv("OPERATORKIT_DB", "operatorkit.db"),
		LogLevel:         getenv("OPERATORKIT_LOG_LEVEL", "INFO"),
		AuditMaxEvents:   getenvInt("OPERATORKIT_AUDIT_MAX_EVENTS", 500),
		OTLPEndpoint:     getenv("OPERATORKIT_OTLP_ENDPOINT", "localhost:4317"),
		TelemetryEnabled: os.Getenv("OPERATORKIT_TELEMETRY") == "true",
		StrictInvariants: os.Getenv("OPERATORKIT_STRICT_INVARIANTS") == "true",
		IntentsPerMinute: getenvInt("OPERATORKIT_INTENTS_PER_MINUTE", 30),
		IntentBurst:      getenvInt("OPERATORKIT_INTENT_BURST", 5),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
