// Package config loads the forge-driver YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Engine selects the browser surface implementation.
type Engine string

const (
	// EnginePlaywright drives Chromium through playwright-go
	EnginePlaywright Engine = "playwright"
	// EngineChromedp drives Chrome over the DevTools protocol with chromedp
	EngineChromedp Engine = "chromedp"
)

// Config represents the driver configuration file.
type Config struct {
	// Browser surface settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Initial session timeouts
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Navigation restrictions enforced by the get command
	Navigation NavigationConfig `yaml:"navigation" json:"navigation"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BrowserConfig defines how the browser surface is started.
type BrowserConfig struct {
	Engine   Engine `yaml:"engine" json:"engine"`
	Headless bool   `yaml:"headless" json:"headless"`
	Width    int    `yaml:"width" json:"width"`
	Height   int    `yaml:"height" json:"height"`
	StartURL string `yaml:"start_url" json:"start_url"`

	// RemoteURL attaches the chromedp engine to a running browser (ws://host:port/devtools/browser/...)
	RemoteURL string `yaml:"remote_url" json:"remote_url"`

	// BindingName overrides the page global the dialog shim reports through
	BindingName string `yaml:"binding_name" json:"binding_name"`

	CacheClearTimeout time.Duration `yaml:"cache_clear_timeout" json:"cache_clear_timeout"`
}

// TimeoutConfig holds the timeouts a new session starts with.
// A zero async script or page load timeout leaves that timeout unset.
type TimeoutConfig struct {
	ImplicitWait time.Duration `yaml:"implicit_wait" json:"implicit_wait"`
	AsyncScript  time.Duration `yaml:"async_script" json:"async_script"`
	PageLoad     time.Duration `yaml:"page_load" json:"page_load"`
}

// NavigationConfig restricts which URLs the driver may load.
type NavigationConfig struct {
	AllowedURLs []string `yaml:"allowed_urls" json:"allowed_urls"`
	DeniedURLs  []string `yaml:"denied_urls" json:"denied_urls"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// Validate validates the configuration and fills in defaults for empty fields.
func (c *Config) Validate() error {
	if c.Browser.Engine == "" {
		c.Browser.Engine = EnginePlaywright
	}
	if c.Browser.Engine != EnginePlaywright && c.Browser.Engine != EngineChromedp {
		return fmt.Errorf("invalid browser engine: %s (must be 'playwright' or 'chromedp')", c.Browser.Engine)
	}

	if c.Browser.RemoteURL != "" && c.Browser.Engine != EngineChromedp {
		return fmt.Errorf("remote_url is only supported by the chromedp engine")
	}

	if c.Browser.Width < 0 || c.Browser.Height < 0 {
		return fmt.Errorf("browser dimensions cannot be negative")
	}

	if c.Browser.CacheClearTimeout < 0 {
		return fmt.Errorf("cache_clear_timeout cannot be negative")
	}

	if c.Timeouts.ImplicitWait < 0 {
		return fmt.Errorf("implicit_wait cannot be negative")
	}

	if _, err := NewURLMatcher(c.Navigation.AllowedURLs, c.Navigation.DeniedURLs); err != nil {
		return err
	}

	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}

	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// URLMatcher compiles the navigation restrictions.
func (c *Config) URLMatcher() (*URLMatcher, error) {
	return NewURLMatcher(c.Navigation.AllowedURLs, c.Navigation.DeniedURLs)
}

// DefaultConfig returns a default configuration suitable for most use cases
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Engine:            EnginePlaywright,
			Headless:          true,
			Width:             480,
			Height:            800,
			StartURL:          "about:blank",
			CacheClearTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration over the defaults.
func Parse(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}
