package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	if cfg.Server.Addr != "0.0.0.0:12212" {
		t.Errorf("Expected default addr, got %s", cfg.Server.Addr)
	}
	if cfg.Channels.Print != "com.joopos/escpos" || cfg.Channels.DeepLink != "com.joopos/deeplink" {
		t.Errorf("Unexpected channels: %+v", cfg.Channels)
	}
	if cfg.DeepLink.Scheme != "app://" {
		t.Errorf("Expected app:// scheme, got %s", cfg.DeepLink.Scheme)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 127.0.0.1:9000
printer:
  transport: network
  host: 192.168.1.50
  vendorId: 0x0416
  writeTimeout: 3s
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Expected file addr, got %s", cfg.Server.Addr)
	}
	if cfg.Printer.Transport != "network" || cfg.Printer.Host != "192.168.1.50" {
		t.Errorf("Unexpected printer config: %+v", cfg.Printer)
	}
	if cfg.Printer.VendorID != 0x0416 {
		t.Errorf("Expected vendor 0x0416, got %#x", cfg.Printer.VendorID)
	}
	if cfg.Printer.WriteTimeout != 3*time.Second {
		t.Errorf("Expected 3s write timeout, got %s", cfg.Printer.WriteTimeout)
	}
	// Untouched keys keep their defaults
	if cfg.Printer.Charset != "CP858" || cfg.Printer.CompletionTimeout != 30*time.Second {
		t.Errorf("Expected defaults to survive, got %+v", cfg.Printer)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("POSBRIDGE_TRANSPORT", "SERIAL")
	t.Setenv("POSBRIDGE_LOG_LEVEL", "warn")
	t.Setenv("POSBRIDGE_DEEPLINK_SCHEME", "joopos://")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Addr != "0.0.0.0:8080" {
		t.Errorf("Expected port override, got %s", cfg.Server.Addr)
	}
	if cfg.Printer.Transport != "serial" {
		t.Errorf("Expected serial transport, got %s", cfg.Printer.Transport)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Expected warn level, got %s", cfg.Log.Level)
	}
	if cfg.DeepLink.Scheme != "joopos://" {
		t.Errorf("Expected scheme override, got %s", cfg.DeepLink.Scheme)
	}
}

func TestApplyEnvOverrides_AddrThenPort(t *testing.T) {
	t.Setenv("POSBRIDGE_ADDR", "127.0.0.1:1234")
	t.Setenv("SERVER_PORT", "5678")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:5678" {
		t.Errorf("Expected 127.0.0.1:5678, got %s", cfg.Server.Addr)
	}
}

func TestApplyEnvOverrides_InvalidPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	if _, err := Load(""); err == nil {
		t.Error("Expected error for invalid SERVER_PORT")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad addr", func(c *Config) { c.Server.Addr = "nope" }, "invalid server address"},
		{"empty scheme", func(c *Config) { c.DeepLink.Scheme = "" }, "scheme"},
		{"empty channel", func(c *Config) { c.Channels.Print = "" }, "channel"},
		{"unknown transport", func(c *Config) { c.Printer.Transport = "bluetooth" }, "unsupported transport"},
		{"serial without device", func(c *Config) { c.Printer.Transport = "serial" }, "serialDevice"},
		{"network without host", func(c *Config) { c.Printer.Transport = "network" }, "host"},
		{"zero write timeout", func(c *Config) { c.Printer.WriteTimeout = 0 }, "writeTimeout"},
		{"negative completion timeout", func(c *Config) { c.Printer.CompletionTimeout = -time.Second }, "completionTimeout"},
		{"feed lines", func(c *Config) { c.Printer.FeedLines = 300 }, "feedLines"},
		{"burst", func(c *Config) { c.Alerts.Burst = 0 }, "burst"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
