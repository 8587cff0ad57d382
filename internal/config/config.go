package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"labelpress/internal/label"
	"labelpress/internal/symbol"
	"labelpress/internal/transport"
)

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Database  DatabaseConfig   `yaml:"database"`
	Label     label.Spec       `yaml:"label"`
	Printer   transport.Config `yaml:"printer"`
	Fallback  FallbackConfig   `yaml:"fallback"`
	Audit     AuditConfig      `yaml:"audit"`
	Retention RetentionConfig  `yaml:"retention"`
	Logging   LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type FallbackConfig struct {
	Dir        string `yaml:"dir"`
	AutoExport bool   `yaml:"auto_export"`
}

type AuditConfig struct {
	URL     string        `yaml:"url"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
}

type RetentionConfig struct {
	Days int `yaml:"days"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/labelpress.db",
		},
		Label: label.Spec{
			WidthMM:  50,
			HeightMM: 30,
			GapMM:    3,
			// QR is the only symbology whose tracking payload fits a
			// 50x30 mm label; Code 128 needs roughly 110 mm of width.
			Symbology: symbol.SymbologyQR,
			Density:   8,
			Speed:     4,
		},
		Printer: transport.Config{
			Mode:        transport.ModeUSB,
			Device:      transport.DefaultUSBDevice,
			BaudRate:    transport.DefaultBaudRate,
			SendTimeout: transport.DefaultSendTimeout,
			Retries:     transport.DefaultRetries,
		},
		Fallback: FallbackConfig{
			Dir:        "./exports",
			AutoExport: true,
		},
		Audit: AuditConfig{
			Timeout: 10 * time.Second,
		},
		Retention: RetentionConfig{
			Days: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Default() *Config {
	return defaults()
}

// Load reads the YAML config over the defaults. A missing file is not an
// error; the defaults apply.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate rejects invalid settings eagerly; nothing is silently coerced.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if err := c.Label.Validate(); err != nil {
		return fmt.Errorf("label: %w", err)
	}

	if err := c.Printer.Validate(); err != nil {
		return fmt.Errorf("printer: %w", err)
	}

	if c.Fallback.Dir == "" {
		return fmt.Errorf("fallback directory is required")
	}

	if c.Audit.URL != "" && c.Audit.Timeout <= 0 {
		return fmt.Errorf("audit timeout must be positive when an audit URL is set")
	}

	if c.Retention.Days < 0 {
		return fmt.Errorf("retention days must be non-negative, got %d", c.Retention.Days)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Logging.Format)
	}

	return nil
}
