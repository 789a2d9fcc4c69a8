package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is an optional YAML override for Config, for deployments that
// ship a file instead of environment variables. Zero values leave the
// corresponding Config field untouched.
type Profile struct {
	DatabasePath     string `yaml:"database_path,omitempty"`
	LogLevel         string `yaml:"log_level,omitempty"`
	AuditMaxEvents   int    `yaml:"audit_max_events,omitempty"`
	OTLPEndpoint     string `yaml:"otlp_endpoint,omitempty"`
	TelemetryEnabled *bool  `yaml:"telemetry_enabled,omitempty"`
	StrictInvariants *bool  `yaml:"strict_invariants,omitempty"`
	IntentsPerMinute int    `yaml:"intents_per_minute,omitempty"`
	IntentBurst      int    `yaml:"intent_burst,omitempty"`
}

// LoadProfile reads and parses a profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	return &profile, nil
}

// Apply overlays the profile onto cfg.
func (p *Profile) Apply(cfg *Config) {
	if p.DatabasePath != "" {
		cfg.DatabasePath = p.DatabasePath
	}
	if p.LogLevel != "" {
		cfg.LogLevel = p.LogLevel
	}
	if p.AuditMaxEvents > 0 {
		cfg.AuditMaxEvents = p.AuditMaxEvents
	}
	if p.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = p.OTLPEndpoint
	}
	if p.TelemetryEnabled != nil {
		cfg.TelemetryEnabled = *p.TelemetryEnabled
	}
	if p.StrictInvariants != nil {
		cfg.StrictInvariants = *p.StrictInvariants
	}
	if p.IntentsPerMinute > 0 {
		cfg.IntentsPerMinute = p.IntentsPerMinute
	}
	if p.IntentBurst > 0 {
		cfg.IntentBurst = p.IntentBurst
	}
}
