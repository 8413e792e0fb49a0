package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoad_FileValues(t *testing.T) {
	dir := writeConfig(t, `
port: "9090"
log_level: DEBUG
db:
  path: /tmp/history.db
ckan:
  base_url: https://catalog.example.org/
  api_key: secret
  namespace: /admin-dashboard/
  languages: [en, fr]
panel:
  flush_interval: 150ms
  log_cap: 100
`)
	cfg, err := Load(viper.New(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.LogLevel != "debug" || cfg.DB.Path != "/tmp/history.db" {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if cfg.CKAN.BaseURL != "https://catalog.example.org" {
		t.Errorf("base url not trimmed: %q", cfg.CKAN.BaseURL)
	}
	if cfg.CKAN.WSURL != "wss://catalog.example.org" {
		t.Errorf("ws url not derived: %q", cfg.CKAN.WSURL)
	}
	if got := cfg.CKAN.ChannelURL(); got != "wss://catalog.example.org/admin-dashboard" {
		t.Errorf("ChannelURL = %q", got)
	}
	if len(cfg.CKAN.Languages) != 2 || cfg.CKAN.Languages[1] != "fr" {
		t.Errorf("languages: %v", cfg.CKAN.Languages)
	}
	if cfg.Panel.FlushInterval != 150*time.Millisecond || cfg.Panel.LogCap != 100 {
		t.Errorf("panel: %+v", cfg.Panel)
	}
	if cfg.CKAN.Timeout != defaultTimeout {
		t.Errorf("timeout default: %v", cfg.CKAN.Timeout)
	}
}

func TestLoad_MissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("IMPORTPANEL_CKAN_BASE_URL", "http://localhost:5000")
	t.Setenv("IMPORTPANEL_PORT", "7000")

	cfg, err := Load(viper.New(), t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7000" {
		t.Errorf("port from env: %q", cfg.Port)
	}
	if cfg.CKAN.WSURL != "ws://localhost:5000" {
		t.Errorf("ws url: %q", cfg.CKAN.WSURL)
	}
	if cfg.Panel.FlushInterval != defaultFlushInterval || cfg.Panel.LogCap != defaultLogCap {
		t.Errorf("panel defaults: %+v", cfg.Panel)
	}
	if cfg.CKAN.Namespace != defaultNamespace {
		t.Errorf("namespace default: %q", cfg.CKAN.Namespace)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing base url", "port: \"8080\"\n", "BaseURL"},
		{"bad log level", "log_level: loud\nckan:\n  base_url: http://x.org\n", "LogLevel"},
		{"negative cap", "ckan:\n  base_url: http://x.org\npanel:\n  log_cap: -1\n", "LogCap"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(viper.New(), writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}
