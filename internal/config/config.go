// Package config holds runtime tuning for the converter. Everything here
// has an environment default so deployments can tune backoff and timeout
// behavior without flag changes; CLI flags override on top.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Config is the tunable surface of a conversion run.
type Config struct {
	// Soffice is the LibreOffice binary. Empty means autodetect.
	Soffice string `envconfig:"SHEETPDF_SOFFICE" default:""`

	// MaxRetries bounds extra attempts per file after the first.
	MaxRetries int `envconfig:"SHEETPDF_MAX_RETRIES" default:"3"`

	// RetryDelay is the pause before retrying after Timeout/Unknown.
	RetryDelay time.Duration `envconfig:"SHEETPDF_RETRY_DELAY" default:"1s"`

	// LockRetryDelay is the longer pause before retrying a locked source,
	// giving whoever holds the file time to release it.
	LockRetryDelay time.Duration `envconfig:"SHEETPDF_LOCK_RETRY_DELAY" default:"5s"`

	// ExportTimeout caps a single export call.
	ExportTimeout time.Duration `envconfig:"SHEETPDF_EXPORT_TIMEOUT" default:"2m"`

	LogLevel string `envconfig:"SHEETPDF_LOG_LEVEL" default:"info"`
}

// New loads config from the environment on top of defaults.
func New() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, errors.Wrap(err, "processing environment config")
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("max retries must be non-negative")
	}
	if c.RetryDelay < 0 || c.LockRetryDelay < 0 {
		return errors.New("retry delays must be non-negative")
	}
	if c.ExportTimeout <= 0 {
		return errors.New("export timeout must be positive")
	}
	return nil
}
