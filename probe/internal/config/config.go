// Package config handles couponscan configuration from YAML files.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level couponscan configuration.
type Config struct {
	// RunID names the enumeration run. Results and checkpoints are keyed
	// by it; reusing a RunID resumes from its checkpoint. Empty = a fresh
	// ID is generated at startup.
	RunID string `yaml:"run_id"`

	// BasePattern is the known code whose digit and lowercase positions
	// define the enumeration space.
	BasePattern string `yaml:"base_pattern"`

	Target   TargetConfig   `yaml:"target"`
	Probe    ProbeConfig    `yaml:"probe"`
	Browser  BrowserConfig  `yaml:"browser"`
	Classify ClassifyConfig `yaml:"classify"`
	Store    StoreConfig    `yaml:"store"`
	Status   StatusConfig   `yaml:"status"`
}

// TargetConfig describes the site under test.
type TargetConfig struct {
	// BaseURL is the page that redeems the coupon parameter.
	BaseURL string `yaml:"base_url"`
	// CouponParam is the query parameter carrying the candidate code.
	CouponParam string `yaml:"coupon_param"`
}

// ProbeConfig bounds a single probe and paces the loop.
type ProbeConfig struct {
	// Timeout bounds one page load.
	Timeout time.Duration `yaml:"timeout"`
	// Delay is the pause between consecutive probes.
	Delay time.Duration `yaml:"delay"`
	// MaxRetries bounds reattempts of a failing probe before the
	// candidate is recorded inconclusive and skipped.
	MaxRetries int `yaml:"max_retries"`
	// RetryDelay is the pause before a reattempt.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// BrowserConfig controls the Chrome session.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Headless         *bool    `yaml:"headless"`
	XvfbDisplay      string   `yaml:"xvfb_display"`
	ResourceBlocking []string `yaml:"resource_blocking"`
	// ScreenshotsDir enables PNG capture of accepted pages when set.
	ScreenshotsDir string `yaml:"screenshots_dir"`
}

// ClassifyConfig holds the page-content indicators.
type ClassifyConfig struct {
	AcceptIndicators []string `yaml:"accept_indicators"`
	RejectIndicators []string `yaml:"reject_indicators"`
	MinMatches       int      `yaml:"min_matches"`
}

// StoreConfig locates the results database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// StatusConfig enables the progress endpoint.
type StatusConfig struct {
	// Listen is the HTTP listen address (e.g. "127.0.0.1:8900").
	// Empty disables the endpoint.
	Listen string `yaml:"listen"`
}

// LoadFile reads a YAML configuration file, applies defaults, and
// validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with working values.
func (c *Config) ApplyDefaults() {
	if c.Target.CouponParam == "" {
		c.Target.CouponParam = "coupon"
	}
	if c.Probe.Timeout <= 0 {
		c.Probe.Timeout = 10 * time.Second
	}
	if c.Probe.Delay < 0 {
		c.Probe.Delay = 0
	} else if c.Probe.Delay == 0 {
		c.Probe.Delay = 500 * time.Millisecond
	}
	if c.Probe.MaxRetries <= 0 {
		c.Probe.MaxRetries = 3
	}
	if c.Probe.RetryDelay <= 0 {
		c.Probe.RetryDelay = time.Second
	}
	if c.Browser.Headless == nil {
		headless := true
		c.Browser.Headless = &headless
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"images", "fonts", "media"}
	}
	if c.Classify.MinMatches <= 0 {
		c.Classify.MinMatches = 2
	}
	if c.Store.Path == "" {
		c.Store.Path = "couponscan.db"
	}
}

// Validate rejects configurations the Runner cannot act on.
func (c *Config) Validate() error {
	if c.BasePattern == "" {
		return fmt.Errorf("config: base_pattern is required")
	}
	hasMutable := false
	for i := 0; i < len(c.BasePattern); i++ {
		ch := c.BasePattern[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'z') {
			hasMutable = true
			break
		}
	}
	if !hasMutable {
		return fmt.Errorf("config: base_pattern must contain at least one digit or lowercase letter")
	}

	if c.Target.BaseURL == "" {
		return fmt.Errorf("config: target.base_url is required")
	}
	u, err := url.Parse(c.Target.BaseURL)
	if err != nil {
		return fmt.Errorf("config: target.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: target.base_url must be http or https, got %q", u.Scheme)
	}

	if len(c.Classify.AcceptIndicators) == 0 {
		return fmt.Errorf("config: classify.accept_indicators is required")
	}
	if c.Classify.MinMatches > len(c.Classify.AcceptIndicators) {
		return fmt.Errorf("config: classify.min_matches %d exceeds the %d accept indicators",
			c.Classify.MinMatches, len(c.Classify.AcceptIndicators))
	}
	return nil
}
