package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations; when none of
// them exists the defaults are returned.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return Defaults(), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data, getenv)
	if err != nil {
		return nil, err
	}
	cfg.Path = absPath
	cfg.BaseDir = filepath.Dir(absPath)

	// Resolve relative history path
	if cfg.History.Path != "" && !filepath.IsAbs(cfg.History.Path) {
		cfg.History.Path = filepath.Join(cfg.BaseDir, cfg.History.Path)
	}
	if cfg.Logging.Output != "" && cfg.Logging.Output != "stderr" && cfg.Logging.Output != "stdout" &&
		!filepath.IsAbs(cfg.Logging.Output) {
		cfg.Logging.Output = filepath.Join(cfg.BaseDir, cfg.Logging.Output)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes configuration text over the defaults.
func Parse(data []byte, getenv func(string) string) (*Config, error) {
	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Connection.Hosts = splitHosts(cfg.Connection.Hosts)
	return cfg, nil
}

// splitHosts allows "a:9200,b:9200" as well as a list.
func splitHosts(hosts StringOrSlice) StringOrSlice {
	var out StringOrSlice
	for _, h := range hosts {
		for _, part := range strings.Split(h, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// resolveConfigPath finds the config file to use.
// Search order: explicit path > PEEK_CONFIG env > ./peek.yaml > ~/.config/peek/peek.yaml
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	// Try PEEK_CONFIG environment variable
	if envPath := getenv("PEEK_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("PEEK_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	if _, err := os.Stat("peek.yaml"); err == nil {
		return "peek.yaml", nil
	}

	xdgPath := filepath.Join(Dir(), "peek.yaml")
	if _, err := os.Stat(xdgPath); err == nil {
		return xdgPath, nil
	}

	return "", nil
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := string(parts[1])
		value := getenv(varName)

		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}

		return []byte(value)
	})
}

// Validate checks the configuration and reports every problem at once.
func Validate(cfg *Config) error {
	var errs []string

	if len(cfg.Connection.Hosts) == 0 {
		errs = append(errs, "connection.hosts: at least one host is required")
	}
	if _, err := cfg.Connection.TimeoutDuration(); err != nil {
		errs = append(errs, fmt.Sprintf("connection.timeout: invalid duration %q", cfg.Connection.Timeout))
	}
	if key := cfg.Connection.APIKey.Value(); key != "" && !strings.Contains(key, ":") {
		errs = append(errs, "connection.api_key: must be of the form id:key")
	}
	if cfg.Connection.Username == "" && !cfg.Connection.Password.IsZero() {
		errs = append(errs, "connection.password: set without connection.username")
	}

	if cfg.History.MaxEntries < 0 {
		errs = append(errs, fmt.Sprintf("history.max_entries: %d (must be 0 or more)", cfg.History.MaxEntries))
	}
	if cfg.History.Enabled && cfg.History.Path == "" {
		errs = append(errs, "history.path: required when history is enabled")
	}

	validDisplay := map[string]bool{"json": true, "yaml": true, "raw": true}
	if !validDisplay[cfg.Display.Format] {
		errs = append(errs, fmt.Sprintf("invalid display format: %s (must be json, yaml, or raw)", cfg.Display.Format))
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be json or text)", cfg.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
