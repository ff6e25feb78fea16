// Package config provides YAML configuration parsing for statusboard.
//
// This package enables running statusboard as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
// Running without a file is valid: every key has a default.
//
// Example configuration:
//
//	backend_url: ${BACKEND_URL:-http://localhost:8080}
//	poll_interval: 10s
//	request_timeout: 5s
//	port: 3000
//	title: Container status
//	locale: ru_RU.UTF-8
//	timezone: Europe/Moscow
//	overlap: skip
//	refresh_rate: 1
//	refresh_burst: 3
//
//	resolver:
//	  server: 10.0.0.53:53
//	  timeout: 2s
//
// The backend URL is taken from the file, then from $BACKEND_URL, then
// defaults to http://localhost:8080.
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/statusboard"
	"github.com/jpalmerr/statusboard/internal/poller"
)

const (
	// minPollInterval is the minimum allowed polling interval.
	// This prevents accidental DoS of the backend with overly aggressive polling.
	minPollInterval = 1 * time.Second

	defaultPort           = 3000
	defaultPollInterval   = 10 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultRefreshRate    = 1.0
	defaultRefreshBurst   = 3
)

// Config is the root configuration structure for statusboard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// BackendURL is the base URL of the status backend; /status is appended.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BackendURL string `yaml:"backend_url"`

	// PollInterval is the time between fetches. Defaults to 10s.
	PollInterval Duration `yaml:"poll_interval"`

	// RequestTimeout bounds each fetch. Defaults to 10s, capped at
	// PollInterval.
	RequestTimeout Duration `yaml:"request_timeout"`

	// Port is the HTTP server port. Defaults to 3000.
	Port int `yaml:"port"`

	// Title is the dashboard title. Defaults to the localized
	// "Container status".
	Title string `yaml:"title"`

	// Locale selects header language and date/number formats, as BCP 47
	// ("ru-RU") or POSIX ("ru_RU.UTF-8"). Defaults to $LC_ALL, $LC_TIME or
	// $LANG, in that order.
	Locale string `yaml:"locale"`

	// Timezone is an IANA zone name for last-success times. Defaults to
	// the local zone.
	Timezone string `yaml:"timezone"`

	// Overlap is "skip" (default) or "allow".
	Overlap string `yaml:"overlap"`

	// RefreshRate is the allowed POST /api/refresh rate per second.
	RefreshRate float64 `yaml:"refresh_rate"`

	// RefreshBurst is the refresh limiter burst.
	RefreshBurst int `yaml:"refresh_burst"`

	// Resolver enables the reverse-DNS hostname column.
	Resolver ResolverConfig `yaml:"resolver"`

	location *time.Location
}

// ResolverConfig configures reverse-DNS lookups.
type ResolverConfig struct {
	// Server is the DNS server as host:port. Empty disables the column.
	Server string `yaml:"server"`

	// Timeout is the per-query timeout.
	Timeout Duration `yaml:"timeout"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Location returns the display time zone, nil meaning local time.
func (c *Config) Location() *time.Location {
	return c.location
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file. An empty path yields
// the defaults.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables, applies defaults and
// validates the config.
func (c *Config) expandAndValidate() error {
	fields := []struct {
		name string
		val  *string
	}{
		{"backend_url", &c.BackendURL},
		{"title", &c.Title},
		{"locale", &c.Locale},
		{"timezone", &c.Timezone},
		{"resolver.server", &c.Resolver.Server},
	}
	for _, f := range fields {
		expanded, err := expandEnvVars(*f.val)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.val = expanded
	}

	if c.BackendURL == "" {
		c.BackendURL = statusboard.BackendURLFromEnv()
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(defaultPollInterval)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(min(defaultRequestTimeout, c.PollInterval.Duration()))
	}
	if c.Locale == "" {
		c.Locale = localeFromEnv()
	}
	if c.RefreshRate == 0 {
		c.RefreshRate = defaultRefreshRate
	}
	if c.RefreshBurst == 0 {
		c.RefreshBurst = defaultRefreshBurst
	}

	if _, err := statusboard.ParseOverlapPolicy(c.Overlap); err != nil {
		return fmt.Errorf("overlap: %w", err)
	}
	if c.Overlap == "" {
		c.Overlap = string(statusboard.OverlapSkip)
	}

	if _, err := poller.StatusURL(c.BackendURL); err != nil {
		return fmt.Errorf("backend_url: %w", err)
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.RequestTimeout.Duration() < 0 {
		return fmt.Errorf("request_timeout cannot be negative, got %s", c.RequestTimeout.Duration())
	}
	if c.RequestTimeout.Duration() > c.PollInterval.Duration() {
		return fmt.Errorf("request_timeout (%s) must not exceed poll_interval (%s)",
			c.RequestTimeout.Duration(), c.PollInterval.Duration())
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.RefreshRate < 0 {
		return fmt.Errorf("refresh_rate must be positive, got %v", c.RefreshRate)
	}
	if c.RefreshBurst < 0 {
		return fmt.Errorf("refresh_burst must be at least 1, got %d", c.RefreshBurst)
	}

	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
		c.location = loc
	}

	if c.Resolver.Server != "" {
		host, port, err := net.SplitHostPort(c.Resolver.Server)
		if err != nil || host == "" || port == "" {
			return fmt.Errorf("resolver.server must be host:port, got %q", c.Resolver.Server)
		}
	}
	if c.Resolver.Timeout.Duration() < 0 {
		return fmt.Errorf("resolver.timeout cannot be negative, got %s", c.Resolver.Timeout.Duration())
	}

	return nil
}

// localeFromEnv follows POSIX precedence for LC_TIME.
func localeFromEnv() string {
	for _, name := range []string{"LC_ALL", "LC_TIME", "LANG"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
