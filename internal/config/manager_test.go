package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestParseJSONAndYAML(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "config.json",
			content: `{
				"logging": {"level": "debug", "console": true},
				"storage": {"driver": "memory"},
				"server": {"enabled": true, "address": "127.0.0.1:9000"},
				"template": {"business_name": "Chayo"}
			}`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: strings.Join([]string{
				"logging:",
				"  level: debug",
				"  console: true",
				"storage:",
				"  driver: memory",
				"server:",
				"  enabled: true",
				"  address: 127.0.0.1:9000",
				"template:",
				"  business_name: Chayo",
			}, "\n"),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager(writeTemp(t, tt.file, tt.content))
			cfg, err := m.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Logging.Level != "debug" {
				t.Fatalf("logging.level = %q, want debug", cfg.Logging.Level)
			}
			if cfg.Storage.DriverOrDefault() != "memory" {
				t.Fatalf("storage.driver = %q, want memory", cfg.Storage.DriverOrDefault())
			}
			if cfg.Server.AddressOrDefault() != "127.0.0.1:9000" {
				t.Fatalf("server.address = %q", cfg.Server.AddressOrDefault())
			}
			if got := m.Get(); got != cfg {
				t.Fatal("Get() should return the committed snapshot")
			}
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeTemp(t, "config.json", `{"loging": {}}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := NewManager(writeTemp(t, "config.json", `{"logging": {"console": true}} {}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestParseRejectsBadDriver(t *testing.T) {
	t.Parallel()
	m := NewManager(writeTemp(t, "config.json", `{"storage": {"driver": "postgres"}}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	t.Parallel()
	m := NewManager(writeTemp(t, "config.json", `{"template": {"timeout": "soon"}}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestDurationDefaults(t *testing.T) {
	t.Parallel()
	var tc TemplateConfig
	d, err := tc.TimeoutOrDefault()
	if err != nil {
		t.Fatalf("TimeoutOrDefault: %v", err)
	}
	if d <= 0 {
		t.Fatalf("expected positive default timeout, got %v", d)
	}
}
