// Package config provides configuration management for stickermirror.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults match the fixed constants of the classic mirror script
const (
	DefaultInputDir    = "element"
	DefaultPattern     = "e%d.json"
	DefaultOutputDir   = "Fotor_Mirror_Data"
	DefaultArchiveName = "Fotor_Assets_Full"
	DefaultBaseDomain  = "https://pub-static.fotor.com"
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultReferer     = "https://www.fotor.com/"
	DefaultTimeout     = 20 * time.Second
	DefaultWorkers     = 50
)

// ErrInvalid marks a configuration that failed validation
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete stickermirror configuration
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Output  OutputConfig  `yaml:"output"`
	Source  SourceConfig  `yaml:"source"`
	Workers int           `yaml:"workers"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Hooks   HooksConfig   `yaml:"hooks"`
}

// InputConfig locates the manifests
type InputConfig struct {
	Directory string `yaml:"directory"`
	Pattern   string `yaml:"pattern"` // must contain %d
}

// OutputConfig holds output settings
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Archive   string `yaml:"archive"`  // archive base name, ".zip" is appended
	Progress  string `yaml:"progress"` // auto, line, bar, json, tui, none
}

// SourceConfig holds settings for fetching assets
type SourceConfig struct {
	BaseDomain         string        `yaml:"base_domain"`
	UserAgent          string        `yaml:"user_agent"`
	Referer            string        `yaml:"referer"`
	Timeout            time.Duration `yaml:"timeout"`
	Proxy              string        `yaml:"proxy"` // http://, https:// or socks5://
	HTTP3              bool          `yaml:"http3"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Netrc              bool          `yaml:"netrc"`
	SSHKey             string        `yaml:"ssh_key"`
	KnownHosts         string        `yaml:"known_hosts"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"` // debug, info, warn, error
	File   string `yaml:"file"`
	Format string `yaml:"format"` // text, json
}

// MetricsConfig enables the Prometheus endpoint when Addr is set
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// HooksConfig holds commands and webhooks fired at the end of a run
type HooksConfig struct {
	OnComplete string `yaml:"on_complete"`
	OnError    string `yaml:"on_error"`
	Webhook    string `yaml:"webhook"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Directory: DefaultInputDir,
			Pattern:   DefaultPattern,
		},
		Output: OutputConfig{
			Directory: DefaultOutputDir,
			Archive:   DefaultArchiveName,
			Progress:  "line",
		},
		Source: SourceConfig{
			BaseDomain: DefaultBaseDomain,
			UserAgent:  DefaultUserAgent,
			Referer:    DefaultReferer,
			Timeout:    DefaultTimeout,
		},
		Workers: DefaultWorkers,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigPaths returns the list of config file paths in priority order
func ConfigPaths() []string {
	paths := make([]string, 0, 4)

	if envPath := os.Getenv("STICKERMIRROR_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}

	paths = append(paths, ".stickermirror.yaml", ".stickermirror.yml")

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "stickermirror", "config.yaml"))
	}

	return paths
}

// Load returns the defaults overlaid with the first config file found
func Load() (*Config, error) {
	config := DefaultConfig()

	for _, path := range ConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := config.LoadFile(path); err != nil {
				return nil, fmt.Errorf("loading config from %s: %w", path, err)
			}
			return config, nil
		}
	}

	return config, nil
}

// LoadFile overlays the yaml file at path onto c
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks the settings the pipeline cannot run without
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Input.Directory) == "" {
		errs = append(errs, errors.New("input.directory is empty"))
	}
	if strings.Count(c.Input.Pattern, "%d") != 1 {
		errs = append(errs, fmt.Errorf("input.pattern %q must contain %%d exactly once", c.Input.Pattern))
	}
	if strings.TrimSpace(c.Output.Directory) == "" {
		errs = append(errs, errors.New("output.directory is empty"))
	}
	if strings.TrimSpace(c.Output.Archive) == "" {
		errs = append(errs, errors.New("output.archive is empty"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Source.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("source.timeout must be positive, got %s", c.Source.Timeout))
	}
	if u, err := url.Parse(c.Source.BaseDomain); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("source.base_domain %q is not an absolute URL", c.Source.BaseDomain))
	}
	if c.Source.Proxy != "" {
		if u, err := url.Parse(c.Source.Proxy); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("source.proxy %q is not a URL", c.Source.Proxy))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// GetDefaultConfigPath returns the default path for saving user config
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "stickermirror", "config.yaml"), nil
}

// GenerateDefaultConfig generates a default config file content
func GenerateDefaultConfig() string {
	return `# stickermirror configuration file

# Manifests e1.json, e2.json, ... are read until the first missing index
input:
  directory: "element"
  pattern: "e%d.json"

output:
  directory: "Fotor_Mirror_Data"   # Mirror root, files keep their URL paths
  archive: "Fotor_Assets_Full"     # Archive name, .zip is appended
  progress: "line"                 # auto, line, bar, json, tui, none

source:
  base_domain: "https://pub-static.fotor.com"  # Prepended to root-relative references
  user_agent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
  referer: "https://www.fotor.com/"
  timeout: 20s                     # Per-request timeout
  proxy: ""                        # http://host:port or socks5://host:port
  http3: false                     # Fetch https:// over QUIC
  insecure_skip_verify: false
  netrc: false                     # Read FTP/SFTP logins from ~/.netrc
  ssh_key: ""                      # Private key for sftp:// sources
  known_hosts: ""                  # Defaults to ~/.ssh/known_hosts

workers: 50                        # Concurrent downloads

logging:
  level: "info"                    # debug, info, warn, error
  file: ""                         # Log file path (empty = stderr only)
  format: "text"                   # text, json

metrics:
  addr: ""                         # e.g. "127.0.0.1:9090" to serve /metrics

hooks:
  on_complete: ""                  # Shell command run after the archive is written
  on_error: ""                     # Shell command run when the run fails
  webhook: ""                      # URL receiving a JSON POST for both events
`
}
