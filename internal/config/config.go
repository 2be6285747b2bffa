package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds all validation errors
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Config is the ghd configuration file
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database" json:"database"`
	GitHub   GitHubConfig   `yaml:"github" mapstructure:"github" json:"github"`
	Sync     SyncConfig     `yaml:"sync" mapstructure:"sync" json:"sync"`
}

// DatabaseConfig locates the local cache
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path" json:"path"` // empty means the XDG data dir
}

// GitHubConfig controls requests to the GitHub REST API
type GitHubConfig struct {
	APIURL   string        `yaml:"api_url" mapstructure:"api_url" json:"api_url"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout"`
	PerPage  int           `yaml:"per_page" mapstructure:"per_page" json:"per_page"`
	MaxPages int           `yaml:"max_pages" mapstructure:"max_pages" json:"max_pages"`
}

// SyncConfig controls pull request reconciliation
type SyncConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval" json:"refresh_interval"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{
			APIURL:   "https://api.github.com/",
			Timeout:  30 * time.Second,
			PerPage:  50,
			MaxPages: 10,
		},
		Sync: SyncConfig{
			RefreshInterval: 15 * time.Minute,
		},
	}
}

// SetDefaults registers the built-in values with viper so that env vars and
// flags bound to these keys are picked up by Load.
func SetDefaults() {
	d := Default()
	viper.SetDefault("database.path", d.Database.Path)
	viper.SetDefault("github.api_url", d.GitHub.APIURL)
	viper.SetDefault("github.timeout", d.GitHub.Timeout)
	viper.SetDefault("github.per_page", d.GitHub.PerPage)
	viper.SetDefault("github.max_pages", d.GitHub.MaxPages)
	viper.SetDefault("sync.refresh_interval", d.Sync.RefreshInterval)
}

// Load loads configuration from viper
func Load() (*Config, error) {
	cfg := Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads configuration from a yaml file on top of the defaults
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ErrConfigExists is returned by WriteDefault when the file is already present.
var ErrConfigExists = errors.New("config file already exists")

// WriteDefault writes the default configuration to path. An existing file is
// only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s: %w", path, ErrConfigExists)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate validates the configuration
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	if c.Database.Path == "" {
		result.AddWarning("database.path", "not set, using the XDG data directory")
	} else if !filepath.IsAbs(c.Database.Path) {
		result.AddWarning("database.path", fmt.Sprintf("relative path %q depends on the working directory", c.Database.Path))
	}

	c.validateGitHub(result)

	if c.Sync.RefreshInterval <= 0 {
		result.AddError("sync.refresh_interval", "must be positive")
	} else if c.Sync.RefreshInterval < time.Minute {
		result.AddWarning("sync.refresh_interval", "intervals under a minute may hit GitHub rate limits")
	}

	return result
}

func (c *Config) validateGitHub(result *ValidationResult) {
	if c.GitHub.APIURL == "" {
		result.AddError("github.api_url", "api url is required")
	} else if u, err := url.Parse(c.GitHub.APIURL); err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		result.AddError("github.api_url", fmt.Sprintf("invalid url %q (must be absolute http or https)", c.GitHub.APIURL))
	} else if u.Scheme == "http" {
		result.AddWarning("github.api_url", "tokens will be sent over plain http")
	}

	if c.GitHub.Timeout <= 0 {
		result.AddError("github.timeout", "must be positive")
	} else if c.GitHub.Timeout > 5*time.Minute {
		result.AddWarning("github.timeout", "timeouts over 5m make a stalled request look like a hang")
	}

	// search API caps per_page at 100
	if c.GitHub.PerPage < 1 || c.GitHub.PerPage > 100 {
		result.AddError("github.per_page", fmt.Sprintf("per_page %d out of range 1-100", c.GitHub.PerPage))
	}

	if c.GitHub.MaxPages < 1 {
		result.AddError("github.max_pages", "must be at least 1")
	} else if c.GitHub.PerPage*c.GitHub.MaxPages > 1000 {
		result.AddWarning("github.max_pages", "search results stop at 1000 items")
	}
}
