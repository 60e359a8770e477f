package app

import (
	"strings"
	"time"

	"remind/internal/config"
	"remind/internal/storage"
	"remind/internal/template"
	"remind/internal/wizard"
	logx "remind/pkg/logx"
)

// Mapping between the file config shape and each component's own config.
// Everything here must stay pure: the validator calls these before a
// reload commits, so a mapping error rejects the new config.

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	path := strings.TrimSpace(cfg.Storage.Path)
	if path == "" {
		path = "./remind.db"
	}
	return storage.Config{
		Driver:      cfg.Storage.DriverOrDefault(),
		Path:        path,
		BusyTimeout: busy,
	}, nil
}

// mapTemplateService builds the generator the wizard drafts with. An
// endpoint selects the HTTP generator; otherwise the built-in markdown
// renderer serves drafts locally.
func mapTemplateService(cfg *config.Config, log logx.Logger) (template.Service, error) {
	timeout, err := cfg.Template.TimeoutOrDefault()
	if err != nil {
		return nil, err
	}
	endpoint := strings.TrimSpace(cfg.Template.Endpoint)
	if endpoint == "" {
		return template.NewMarkdown(), nil
	}
	return template.NewHTTP(endpoint, timeout, log), nil
}

func mapWizardConfig(cfg *config.Config) (wizard.Config, wizard.SessionsConfig, error) {
	ttl, err := cfg.Wizard.SessionTTLOrDefault()
	if err != nil {
		return wizard.Config{}, wizard.SessionsConfig{}, err
	}
	wc := wizard.Config{
		BusinessName:     cfg.Template.BusinessName,
		RegeneratePerMin: cfg.Template.RegeneratePerMin,
	}
	sc := wizard.SessionsConfig{
		TTL: ttl,
		Max: cfg.Wizard.MaxSessions,
	}
	return wc, sc, nil
}
