package probe

import (
	"github.com/hazyhaar/couponscan/probe/internal/config"
)

// Config is the top-level couponscan configuration. Re-exported from internal.
type Config = config.Config

// TargetConfig describes the site under test.
type TargetConfig = config.TargetConfig

// ProbeConfig bounds a single probe and paces the loop.
type ProbeConfig = config.ProbeConfig

// BrowserConfig controls the Chrome session.
type BrowserConfig = config.BrowserConfig

// ClassifyConfig holds the page-content indicators.
type ClassifyConfig = config.ClassifyConfig

// StoreConfig locates the results database.
type StoreConfig = config.StoreConfig

// StatusConfig enables the progress endpoint.
type StatusConfig = config.StatusConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}
