// Package config loads the bridge configuration from YAML and the
// environment
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete daemon configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Channels ChannelsConfig `yaml:"channels"`
	DeepLink DeepLinkConfig `yaml:"deeplink"`
	Printer  PrinterConfig  `yaml:"printer"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig sets where the API listens
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ChannelsConfig names the method channels exposed to the UI
type ChannelsConfig struct {
	Print    string `yaml:"print"`
	DeepLink string `yaml:"deeplink"`
}

// DeepLinkConfig sets which activation URIs are forwarded
type DeepLinkConfig struct {
	Scheme string `yaml:"scheme"`
}

// PrinterConfig selects the transport and tunes print framing
type PrinterConfig struct {
	Transport         string        `yaml:"transport"`
	VendorID          uint16        `yaml:"vendorId"`
	ProductID         uint16        `yaml:"productId"`
	SerialDevice      string        `yaml:"serialDevice"`
	Baud              int           `yaml:"baud"`
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	Charset           string        `yaml:"charset"`
	FeedLines         int           `yaml:"feedLines"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"`
	DialTimeout       time.Duration `yaml:"dialTimeout"`
	CompletionTimeout time.Duration `yaml:"completionTimeout"`
	MonitorInterval   time.Duration `yaml:"monitorInterval"`
}

// AlertsConfig throttles printer error alerts per diagnostic
type AlertsConfig struct {
	Interval time.Duration `yaml:"interval"`
	Burst    int           `yaml:"burst"`
}

// LogConfig selects the log level and encoder
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultPort is the port the daemon listens on unless configured
const DefaultPort = "12212"

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: net.JoinHostPort("0.0.0.0", DefaultPort),
		},
		Channels: ChannelsConfig{
			Print:    "com.joopos/escpos",
			DeepLink: "com.joopos/deeplink",
		},
		DeepLink: DeepLinkConfig{
			Scheme: "app://",
		},
		Printer: PrinterConfig{
			Transport:         "usb",
			Baud:              9600,
			Port:              9100,
			Charset:           "CP858",
			FeedLines:         2,
			WriteTimeout:      2 * time.Second,
			DialTimeout:       5 * time.Second,
			CompletionTimeout: 30 * time.Second,
			MonitorInterval:   2 * time.Second,
		},
		Alerts: AlertsConfig{
			Interval: 10 * time.Second,
			Burst:    3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies SERVER_PORT and the POSBRIDGE_* variables
func ApplyEnvOverrides(cfg *Config) error {
	if addr := strings.TrimSpace(os.Getenv("POSBRIDGE_ADDR")); addr != "" {
		cfg.Server.Addr = addr
	}
	if port := strings.TrimSpace(os.Getenv("SERVER_PORT")); port != "" {
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q", port)
		}
		host, _, err := net.SplitHostPort(cfg.Server.Addr)
		if err != nil {
			host = "0.0.0.0"
		}
		cfg.Server.Addr = net.JoinHostPort(host, port)
	}
	if transport := strings.TrimSpace(os.Getenv("POSBRIDGE_TRANSPORT")); transport != "" {
		cfg.Printer.Transport = strings.ToLower(transport)
	}
	if level := strings.TrimSpace(os.Getenv("POSBRIDGE_LOG_LEVEL")); level != "" {
		cfg.Log.Level = level
	}
	if scheme := strings.TrimSpace(os.Getenv("POSBRIDGE_DEEPLINK_SCHEME")); scheme != "" {
		cfg.DeepLink.Scheme = scheme
	}
	return nil
}

// Validate reports the first invalid setting
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("invalid server address %q: %w", c.Server.Addr, err)
	}
	if c.Channels.Print == "" || c.Channels.DeepLink == "" {
		return errors.New("channel names must not be empty")
	}
	if c.DeepLink.Scheme == "" {
		return errors.New("deep-link scheme must not be empty")
	}

	switch c.Printer.Transport {
	case "usb":
	case "serial":
		if c.Printer.SerialDevice == "" {
			return errors.New("serial transport requires printer.serialDevice")
		}
	case "network":
		if c.Printer.Host == "" {
			return errors.New("network transport requires printer.host")
		}
	default:
		return fmt.Errorf("unsupported transport %q", c.Printer.Transport)
	}

	if c.Printer.FeedLines < 0 || c.Printer.FeedLines > 255 {
		return fmt.Errorf("feedLines must be between 0 and 255, got %d", c.Printer.FeedLines)
	}

	for name, d := range map[string]time.Duration{
		"writeTimeout":      c.Printer.WriteTimeout,
		"dialTimeout":       c.Printer.DialTimeout,
		"completionTimeout": c.Printer.CompletionTimeout,
		"monitorInterval":   c.Printer.MonitorInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("printer.%s must be positive", name)
		}
	}
	if c.Alerts.Burst <= 0 {
		return errors.New("alerts.burst must be positive")
	}

	return nil
}
