package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"labelpress/internal/config"
	"labelpress/internal/payload"
	"labelpress/internal/symbol"
	"labelpress/internal/transport"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Label.WidthMM != 50 || cfg.Label.HeightMM != 30 {
		t.Fatalf("unexpected default label geometry: %+v", cfg.Label)
	}
	if cfg.Printer.Mode != transport.ModeUSB || cfg.Printer.Retries != 2 {
		t.Fatalf("unexpected default printer config: %+v", cfg.Printer)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
label:
  width_mm: 100
  height_mm: 60
  gap_mm: 2
  symbology: qr
  density: 12
  speed: 2
printer:
  mode: serial
  device: /dev/ttyUSB0
  baud_rate: 115200
  send_timeout: 3s
  retries: 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Label.WidthMM != 100 || cfg.Label.Symbology != symbol.SymbologyQR {
		t.Fatalf("label overrides not applied: %+v", cfg.Label)
	}
	if cfg.Printer.Mode != transport.ModeSerial || cfg.Printer.BaudRate != 115200 {
		t.Fatalf("printer overrides not applied: %+v", cfg.Printer)
	}
	if cfg.Printer.SendTimeout != 3*time.Second {
		t.Fatalf("send timeout not parsed: %v", cfg.Printer.SendTimeout)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("untouched defaults lost: %+v", cfg.Server)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("overridden config must validate: %v", err)
	}
}

// The shipped defaults must be able to print a real tracking payload, not
// just validate. Code 128 renders a full payload at roughly 110 mm of bar
// width, far past a 50 mm label, so the default symbology is QR.
func TestDefaultLabelRendersTrackingPayload(t *testing.T) {
	cfg := config.Default()

	code, err := payload.Encode("A01", "SKU12345", "P07",
		time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	sym, err := symbol.Render(code, cfg.Label.Symbology, cfg.Label.WidthMM, cfg.Label.HeightMM)
	if err != nil {
		t.Fatalf("default label cannot render payload %q: %v", code, err)
	}
	if sym.Kind != symbol.SymbologyQR {
		t.Fatalf("expected default symbology qr, got %s", sym.Kind)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad port", func(c *config.Config) { c.Server.Port = 0 }},
		{"empty db path", func(c *config.Config) { c.Database.Path = "" }},
		{"density too high", func(c *config.Config) { c.Label.Density = 16 }},
		{"speed too low", func(c *config.Config) { c.Label.Speed = 0 }},
		{"bad symbology", func(c *config.Config) { c.Label.Symbology = "ean13" }},
		{"bad mode", func(c *config.Config) { c.Printer.Mode = "tcp" }},
		{"no device", func(c *config.Config) { c.Printer.Device = "" }},
		{"negative retries", func(c *config.Config) { c.Printer.Retries = -1 }},
		{"empty fallback dir", func(c *config.Config) { c.Fallback.Dir = "" }},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"negative retention days", func(c *config.Config) { c.Retention.Days = -1 }},
		{"audit url without timeout", func(c *config.Config) {
			c.Audit.URL = "http://example.com/hook"
			c.Audit.Timeout = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
