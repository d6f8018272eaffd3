package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyUSB0" {
		t.Fatalf("unexpected serial port: %q", cfg.Serial.Port)
	}
	if cfg.Serial.Simulate {
		t.Fatalf("expected simulate disabled")
	}
	if cfg.Server.Listen != ":8080" {
		t.Fatalf("unexpected listen address: %q", cfg.Server.Listen)
	}
	if cfg.Server.LX200 != ":4030" {
		t.Fatalf("unexpected lx200 address: %q", cfg.Server.LX200)
	}
	if cfg.Site.Latitude != 0 || cfg.Site.Longitude != 0 {
		t.Fatalf("unexpected site: %+v", cfg.Site)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[serial]
port = "/dev/ttyS3"
simulate = true

[site]
latitude = 45.0
longitude = -71.5

[server]
listen = "127.0.0.1:9090"
lx200 = "127.0.0.1:4031"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyS3" {
		t.Fatalf("unexpected serial port: %q", cfg.Serial.Port)
	}
	if !cfg.Serial.Simulate {
		t.Fatalf("expected simulate enabled")
	}
	if cfg.Site.Latitude != 45 {
		t.Fatalf("unexpected latitude: %v", cfg.Site.Latitude)
	}
	if cfg.Site.Longitude != -71.5 {
		t.Fatalf("unexpected longitude: %v", cfg.Site.Longitude)
	}
	if cfg.Server.Listen != "127.0.0.1:9090" {
		t.Fatalf("unexpected listen address: %q", cfg.Server.Listen)
	}
	if cfg.Server.LX200 != "127.0.0.1:4031" {
		t.Fatalf("unexpected lx200 address: %q", cfg.Server.LX200)
	}
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[site]
latitude = 52.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Site.Latitude != 52.5 {
		t.Fatalf("unexpected latitude: %v", cfg.Site.Latitude)
	}
	if cfg.Serial.Port != "/dev/ttyUSB0" {
		t.Fatalf("unexpected serial port: %q", cfg.Serial.Port)
	}
	if cfg.Server.Listen != ":8080" {
		t.Fatalf("unexpected listen address: %q", cfg.Server.Listen)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
