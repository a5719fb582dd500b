// Package config provides YAML configuration parsing for the import desk.
//
// This package enables running the desk as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Импорт кадровых данных
//	port: 8080
//	backend_url: ${KADRSP_BACKEND:-http://localhost:8000}
//	request_timeout: 30s
//
//	poll:
//	  interval: 2s
//	  max_attempts: 10
//
//	curriculum:
//	  sheets: [ПланСвод, План]
//	  verify_sheets: true
//
//	headers:
//	  Authorization: Bearer ${KADRSP_TOKEN}
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// minPollInterval keeps a misconfigured desk from hammering the backend.
	minPollInterval = 1 * time.Second

	// maxPollAttempts bounds how long a single poll cycle may run.
	maxPollAttempts = 100

	defaultPort           = 8080
	defaultRequestTimeout = 30 * time.Second
	defaultPollInterval   = 2 * time.Second
	defaultMaxAttempts    = 10
)

// defaultSheets are the workbook sheets named in curriculum uploads.
var defaultSheets = []string{"ПланСвод", "План"}

// Config is the root configuration structure for the import desk.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the page title. Defaults to "Импорт кадровых данных" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port of the local page. Defaults to 8080.
	Port int `yaml:"port"`

	// BackendURL is the root of the records backend, e.g. http://localhost:8000.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BackendURL string `yaml:"backend_url"`

	// RequestTimeout bounds every backend request. Defaults to 30s.
	RequestTimeout Duration `yaml:"request_timeout"`

	Poll PollConfig `yaml:"poll"`

	Curriculum CurriculumConfig `yaml:"curriculum"`

	// Headers are custom HTTP headers sent with every backend request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`
}

// PollConfig tunes the wait for imported teachers.
type PollConfig struct {
	// Interval is the pause between attempts. Defaults to 2s.
	Interval Duration `yaml:"interval"`

	// MaxAttempts is how many times the backend is checked. Defaults to 10.
	MaxAttempts int `yaml:"max_attempts"`
}

// CurriculumConfig tunes curriculum uploads.
type CurriculumConfig struct {
	// Sheets are the workbook sheets the backend should import.
	// Defaults to [ПланСвод, План].
	Sheets []string `yaml:"sheets"`

	// VerifySheets opens the workbook locally before upload and refuses it
	// when a sheet is missing.
	VerifySheets bool `yaml:"verify_sheets"`
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

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
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

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in backend_url and header values.
// Defaults are applied for port, request_timeout, poll and curriculum.sheets.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = Duration(defaultRequestTimeout)
	}
	if cfg.Poll.Interval == 0 {
		cfg.Poll.Interval = Duration(defaultPollInterval)
	}
	if cfg.Poll.MaxAttempts == 0 {
		cfg.Poll.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Curriculum.Sheets == nil {
		cfg.Curriculum.Sheets = append([]string(nil), defaultSheets...)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.BackendURL == "" {
		return errors.New("backend_url is required")
	}
	expanded, err := expandEnvVars(c.BackendURL)
	if err != nil {
		return fmt.Errorf("backend_url: %w", err)
	}
	c.BackendURL = expanded

	parsedURL, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid backend_url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("backend_url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("backend_url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	if c.RequestTimeout.Duration() < time.Second {
		return fmt.Errorf("request_timeout must be at least 1s, got %s", c.RequestTimeout.Duration())
	}

	if c.Poll.Interval.Duration() < minPollInterval {
		return fmt.Errorf("poll.interval must be at least %s, got %s", minPollInterval, c.Poll.Interval.Duration())
	}
	if c.Poll.Interval.Duration() > time.Hour {
		return fmt.Errorf("poll.interval must not exceed 1h, got %s", c.Poll.Interval.Duration())
	}
	if c.Poll.MaxAttempts < 1 || c.Poll.MaxAttempts > maxPollAttempts {
		return fmt.Errorf("poll.max_attempts must be between 1 and %d, got %d", maxPollAttempts, c.Poll.MaxAttempts)
	}

	if len(c.Curriculum.Sheets) == 0 {
		return errors.New("curriculum.sheets: at least one sheet is required")
	}
	seen := make(map[string]struct{}, len(c.Curriculum.Sheets))
	for i, s := range c.Curriculum.Sheets {
		if s == "" {
			return fmt.Errorf("curriculum.sheets[%d]: name is required", i)
		}
		if _, exists := seen[s]; exists {
			return fmt.Errorf("curriculum.sheets[%d]: duplicate sheet %q", i, s)
		}
		seen[s] = struct{}{}
	}

	for k, v := range c.Headers {
		if k == "" {
			return errors.New("headers: header name cannot be empty")
		}
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		c.Headers[k] = expanded
	}

	return nil
}
