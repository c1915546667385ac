package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"
)

// Config represents the complete peek configuration
type Config struct {
	BaseDir    string           `yaml:"-"` // Directory containing config file, for resolving relative paths
	Path       string           `yaml:"-"` // Config file that was loaded, empty for defaults
	Connection ConnectionConfig `yaml:"connection"`
	History    HistoryConfig    `yaml:"history"`
	Display    DisplayConfig    `yaml:"display"`
	Logging    LoggingConfig    `yaml:"logging"`
	Extensions ExtensionsConfig `yaml:"extensions"`
	Watch      bool             `yaml:"watch"` // Reload the config file when it changes
}

// ConnectionConfig describes the connection opened at startup
type ConnectionConfig struct {
	Connect     bool              `yaml:"connect"` // Open the connection at startup (default: true)
	Name        string            `yaml:"name"`
	Hosts       StringOrSlice     `yaml:"hosts"` // "host:port" or list; comma separated values are split
	Username    string            `yaml:"username"`
	Password    SecretString      `yaml:"password"`
	APIKey      SecretString      `yaml:"api_key"` // "id:key"
	UseSSL      bool              `yaml:"use_ssl"`
	Timeout     string            `yaml:"timeout"`     // Request timeout, e.g. "30s"; empty for none
	Compression bool              `yaml:"compression"` // Ask for gzip responses (default: true)
	Cookies     bool              `yaml:"cookies"`     // Keep cookies between requests
	Headers     map[string]string `yaml:"headers"`
}

// HistoryConfig holds history store settings
type HistoryConfig struct {
	Enabled    bool   `yaml:"enabled"`     // default: true
	Path       string `yaml:"path"`        // SQLite file (default: ~/.config/peek/history)
	MaxEntries int    `yaml:"max_entries"` // default: 10000
}

// DisplayConfig holds result rendering settings
type DisplayConfig struct {
	Format string `yaml:"format"` // "json", "yaml" or "raw" (default: "json")
	Pretty bool   `yaml:"pretty"` // Indent JSON (default: true)
	Footer bool   `yaml:"footer"` // Print result size after structured results
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error" (default: "warn")
	Format string `yaml:"format"` // "json" or "text" (default: "text")
	Output string `yaml:"output"` // "stderr", "stdout", or file path (default: "stderr")
}

// ExtensionsConfig lists the extensions to enable
type ExtensionsConfig struct {
	Names StringOrSlice `yaml:"names"` // extension names, "*" for all
}

// StringOrSlice supports YAML fields that can be either a string or a slice of strings
type StringOrSlice []string

// UnmarshalYAML implements yaml.Unmarshaler to handle both string and []string
func (s *StringOrSlice) UnmarshalYAML(unmarshal func(any) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = []string{single}
		return nil
	}

	var slice []string
	if err := unmarshal(&slice); err != nil {
		return err
	}
	*s = slice
	return nil
}

// Contains checks if the slice contains the given string
func (s StringOrSlice) Contains(str string) bool {
	return slices.Contains(s, str)
}

// TimeoutDuration parses the request timeout. An empty value means none.
func (c ConnectionConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Timeout)
}

// Dir returns the per-user peek directory, ~/.config/peek.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".peek"
	}
	return filepath.Join(home, ".config", "peek")
}

// Defaults returns a Config with default values
func Defaults() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Connect:     true,
			Hosts:       StringOrSlice{"localhost:9200"},
			Compression: true,
		},
		History: HistoryConfig{
			Enabled:    true,
			Path:       filepath.Join(Dir(), "history"),
			MaxEntries: 10000,
		},
		Display: DisplayConfig{
			Format: "json",
			Pretty: true,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
		},
	}
}
