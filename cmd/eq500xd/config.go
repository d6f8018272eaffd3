package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config carries the daemon settings read from the TOML config file.
// Command line flags override individual fields after loading.
type Config struct {
	Serial SerialConfig `toml:"serial"`
	Site   SiteConfig   `toml:"site"`
	Server ServerConfig `toml:"server"`
}

type SerialConfig struct {
	// Port is the serial device the mount hangs off.
	Port string `toml:"port"`
	// Simulate swaps the serial link for the built-in simulator.
	Simulate bool `toml:"simulate"`
}

type SiteConfig struct {
	Latitude  float64 `toml:"latitude"`
	Longitude float64 `toml:"longitude"`
}

type ServerConfig struct {
	// Listen is the address of the HTTP status and metrics server.
	Listen string `toml:"listen"`
	// LX200 is the address of the TCP bridge speaking the mount's
	// command language. Empty disables the bridge.
	LX200 string `toml:"lx200"`
}

func defaultConfig() Config {
	return Config{
		Serial: SerialConfig{Port: "/dev/ttyUSB0"},
		Server: ServerConfig{Listen: ":8080", LX200: ":4030"},
	}
}

// loadConfig reads path over the defaults. An empty path keeps the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
