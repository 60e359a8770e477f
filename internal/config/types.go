package config

import "time"

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage selects where notifications are persisted.
	Storage StorageConfig `json:"storage"`

	// Server controls the JSON HTTP surface used by rendering layers.
	Server ServerConfig `json:"server"`

	// Template controls the template draft service (external endpoint or
	// the built-in markdown renderer when no endpoint is set).
	Template TemplateConfig `json:"template"`

	// Wizard controls draft session housekeeping.
	Wizard WizardConfig `json:"wizard,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig selects the notification store backend.
//
// Driver is "sqlite" (default) or "memory". Memory keeps everything
// in-process and is mainly useful for tests and demos.
type StorageConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`

	// BusyTimeout is a Go duration string (e.g. "5s").
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address,omitempty"`
}

// TemplateConfig controls template drafting.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type TemplateConfig struct {
	// Endpoint of the external draft generator. Empty selects the
	// built-in markdown renderer.
	Endpoint string `json:"endpoint,omitempty"`

	Timeout string `json:"timeout,omitempty"`

	// BusinessName is passed to the generator for personalization.
	BusinessName string `json:"business_name,omitempty"`

	// RegeneratePerMin caps user-triggered regenerations per draft.
	RegeneratePerMin int `json:"regenerate_per_min,omitempty"`
}

type WizardConfig struct {
	// SessionTTL expires abandoned draft sessions. "0s" disables expiry.
	SessionTTL string `json:"session_ttl,omitempty"`

	MaxSessions int `json:"max_sessions,omitempty"`
}

// ---- resolved defaults ----

func (c ServerConfig) AddressOrDefault() string {
	if c.Address == "" {
		return "127.0.0.1:8743"
	}
	return c.Address
}

func (c StorageConfig) DriverOrDefault() string {
	if c.Driver == "" {
		return "sqlite"
	}
	return c.Driver
}

func (c TemplateConfig) TimeoutOrDefault() (time.Duration, error) {
	return ParseDurationOrDefault("template.timeout", c.Timeout, 10*time.Second)
}

func (c WizardConfig) SessionTTLOrDefault() (time.Duration, error) {
	return ParseDurationOrDefault("wizard.session_ttl", c.SessionTTL, 30*time.Minute)
}
