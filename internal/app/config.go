package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/specialistvlad/burstbuild/internal/blueprint"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ProjectDir string
	// PipelinePath names an HCL pipeline definition. When empty, the
	// project's burstbuild.hcl is used if present, else the built-in blueprint.
	PipelinePath string
	Env          string
	// Dest is a directory or an s3://bucket/prefix URL.
	Dest string

	Watch    bool
	Debounce time.Duration
	// Port serves /health, /metrics and the live-reload channel in watch
	// mode. 0 is disabled.
	Port          int
	LiveReloadURL string

	Strict      bool
	WorkerCount int

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectDir == "" {
		return nil, errors.New("ProjectDir is a required configuration field and cannot be empty")
	}
	if cfg.Env == "" {
		cfg.Env = blueprint.EnvDevelopment
	}
	if err := blueprint.ValidateEnv(cfg.Env); err != nil {
		return nil, err
	}
	if cfg.Dest == "" {
		cfg.Dest = filepath.Join(cfg.ProjectDir, "dist")
	}
	if cfg.Debounce < 0 {
		return nil, fmt.Errorf("debounce must not be negative, got %s", cfg.Debounce)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port must be between 0 and 65535, got %d", cfg.Port)
	}
	if cfg.WorkerCount < 0 {
		return nil, fmt.Errorf("worker count must not be negative, got %d", cfg.WorkerCount)
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Development reports whether the configuration builds for development.
func (c *Config) Development() bool {
	return c.Env == blueprint.EnvDevelopment
}
