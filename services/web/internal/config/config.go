package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	pkgconfig "github.com/jbytow/coffeetica/pkg/config"
)

// Config holds all configuration for the review client.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"warn"`

	// Review service
	APIBaseURL     string        `env:"REVIEWCTL_API_URL" envDefault:"http://localhost:8080"`
	RequestTimeout time.Duration `env:"REVIEWCTL_TIMEOUT" envDefault:"10s"`

	// Circuit breaker around the review service
	BreakerFailureRatio float64       `env:"REVIEWCTL_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests  uint32        `env:"REVIEWCTL_BREAKER_MIN_REQUESTS" envDefault:"5"`
	BreakerOpenTimeout  time.Duration `env:"REVIEWCTL_BREAKER_OPEN_TIMEOUT" envDefault:"30s"`

	// SessionFile is the BoltDB file holding the signed-in credential.
	// Empty means <user config dir>/coffeetica/session.db.
	SessionFile string `env:"REVIEWCTL_SESSION_FILE"`

	FeedPageSize int `env:"REVIEWCTL_FEED_PAGE_SIZE" envDefault:"3"`
}

// Load reads configuration from the environment, after an optional .env file.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load reviewctl config: %w", err)
	}
	if cfg.SessionFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locate config dir: %w", err)
		}
		cfg.SessionFile = filepath.Join(dir, "coffeetica", "session.db")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("REVIEWCTL_API_URL must be an http(s) URL, got %q", c.APIBaseURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REVIEWCTL_TIMEOUT must be positive")
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("REVIEWCTL_BREAKER_FAILURE_RATIO must be in (0, 1], got %v", c.BreakerFailureRatio)
	}
	if c.BreakerOpenTimeout <= 0 {
		return fmt.Errorf("REVIEWCTL_BREAKER_OPEN_TIMEOUT must be positive")
	}
	if c.FeedPageSize < 1 || c.FeedPageSize > 100 {
		return fmt.Errorf("REVIEWCTL_FEED_PAGE_SIZE must be between 1 and 100, got %d", c.FeedPageSize)
	}
	return nil
}
