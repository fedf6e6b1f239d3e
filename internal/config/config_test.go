package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	valid := func() *Config { return CreateDefaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "log_level"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "log_format"},
		{name: "port zero", mutate: func(c *Config) { c.Capture.Port = 0 }, wantErr: "capture.port"},
		{name: "port too large", mutate: func(c *Config) { c.Capture.Port = 70000 }, wantErr: "capture.port"},
		{name: "too many workers", mutate: func(c *Config) { c.Capture.Workers = 1000 }, wantErr: "capture.workers"},
		{name: "bad output", mutate: func(c *Config) { c.Output.Format = "xml" }, wantErr: "output.format"},
		{name: "csv output", mutate: func(c *Config) { c.Output.Format = FormatCSV }},
		{name: "negative log_every", mutate: func(c *Config) { c.LogEvery = -2 }, wantErr: "log_every"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateConfig() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateConfig() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_AutoCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagdecode.yaml")

	if _, err := LoadConfig(path, false); err == nil {
		t.Fatal("expected error for missing config without autoCreate")
	}

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config not written: %v", err)
	}
	if cfg.Capture.Port != 13400 {
		t.Errorf("Capture.Port = %d, want 13400", cfg.Capture.Port)
	}
	if cfg.Output.Format != FormatText {
		t.Errorf("Output.Format = %q, want text", cfg.Output.Format)
	}
	if want := min(runtime.NumCPU(), maxWorkers); cfg.Capture.Workers != want {
		t.Errorf("Capture.Workers = %d, want %d", cfg.Capture.Workers, want)
	}
	if cfg.LogEvery != 1 {
		t.Errorf("LogEvery = %d, want 1", cfg.LogEvery)
	}
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagdecode.yaml")
	content := "schema_path: ecu.yaml\ncapture:\n  workers: 2\noutput:\n  format: JSON\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.SchemaPath != "ecu.yaml" {
		t.Errorf("SchemaPath = %q", cfg.SchemaPath)
	}
	if cfg.Capture.Workers != 2 || cfg.Capture.Port != 13400 {
		t.Errorf("Capture = %+v", cfg.Capture)
	}
	if cfg.Output.Format != FormatJSON {
		t.Errorf("Output.Format = %q, want json", cfg.Output.Format)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"bad yaml":  "capture: [",
		"bad port":  "capture:\n  port: -1\n",
		"bad level": "log_level: chatty\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadConfig(path, false)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), path) {
				t.Errorf("error should name the config path, got %q", err.Error())
			}
		})
	}
}

func TestCreateDefaultConfig_ValidOnAnyHost(t *testing.T) {
	cfg := CreateDefaultConfig()
	if cfg.Capture.Workers < 1 || cfg.Capture.Workers > maxWorkers {
		t.Errorf("default Capture.Workers = %d, outside 1..%d", cfg.Capture.Workers, maxWorkers)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadConfig_LogEvery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagdecode.yaml")
	if err := os.WriteFile(path, []byte("log_every: 10\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.LogEvery != 10 {
		t.Errorf("LogEvery = %d, want 10", cfg.LogEvery)
	}
}
