// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/rizome-dev/researchgo/pkg/research"
)

const (
	EnvBaseURL    = "RESEARCH_API_BASE_URL"
	EnvTimeout    = "RESEARCH_TIMEOUT"
	EnvListenAddr = "RESEARCH_LISTEN_ADDR"
	EnvLogLevel   = "RESEARCH_LOG_LEVEL"

	DefaultListenAddr = ":5173"
)

// Config holds the settings shared by the CLI and the web UI
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	ListenAddr string
	LogLevel   research.LogLevel
}

// Load reads the given .env files (".env" when none are given) and then the
// environment. Missing .env files are ignored; variables already set in the
// environment win over file values.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", p, err)
		}
	}

	return FromEnv()
}

// FromEnv builds a Config from environment variables only
func FromEnv() (*Config, error) {
	cfg := &Config{
		BaseURL:    research.DefaultBaseURL,
		ListenAddr: DefaultListenAddr,
		LogLevel:   research.LogLevelInfo,
	}

	if v := os.Getenv(EnvBaseURL); v != "" {
		u, err := url.Parse(v)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%s must be an absolute URL, got %q", EnvBaseURL, v)
		}
		cfg.BaseURL = v
	}

	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%s must be a non-negative duration, got %q", EnvTimeout, v)
		}
		cfg.Timeout = d
	}

	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.ListenAddr = v
	}

	level, err := research.ParseLogLevel(os.Getenv(EnvLogLevel))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvLogLevel, err)
	}
	cfg.LogLevel = level

	return cfg, nil
}

// ClientOptions returns the research.Client options matching cfg
func (c *Config) ClientOptions(logger research.Logger) []research.Option {
	opts := []research.Option{research.WithBaseURL(c.BaseURL)}
	if c.Timeout > 0 {
		opts = append(opts, research.WithTimeout(c.Timeout))
	}
	if logger != nil {
		opts = append(opts, research.WithLogger(logger))
	}
	return opts
}
