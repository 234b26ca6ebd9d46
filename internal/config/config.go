package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the file or a field is absent.
const (
	DefaultHost = ""
	DefaultPort = 8080
	DefaultName = "lanchat"
)

// Config holds the server configuration loaded from YAML.
//
//	host: ""            # bind address, empty = all interfaces
//	port: 8080
//	name: "living-room" # instance name shown in mDNS scans
//	log_level: "info"   # empty = silent unless LANCHAT_LOG_LEVEL is set
//	discovery: true     # advertise over mDNS and serve network peers
type Config struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	Discovery bool   `yaml:"discovery"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Host:      DefaultHost,
		Port:      DefaultPort,
		Name:      DefaultName,
		Discovery: true,
	}
}

// Load reads a YAML config file and applies defaults for missing fields.
// An empty path returns the defaults without touching the filesystem.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %s", cfg.Port, path)
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	return cfg, nil
}
