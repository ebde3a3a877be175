package config

import (
	"log/slog"
	"strings"
)

// ObservabilityConfig groups configuration that controls logging and metrics.
type ObservabilityConfig struct {
	Metrics ObservabilityMetricsConfig
	Log     LogConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Log.Sanitize()
}

// ObservabilityMetricsConfig controls the Prometheus endpoint.
type ObservabilityMetricsConfig struct {
	Enabled bool   `env:"OBSERVABILITY_METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"OBSERVABILITY_METRICS_PATH"    envDefault:"/metrics"`
}

// Sanitize normalises the metrics path.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.Path = strings.TrimSpace(c.Path)
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if !strings.HasPrefix(c.Path, "/") {
		c.Path = "/" + c.Path
	}
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Sanitize lower-cases values and falls back to info/json on anything unknown.
func (c *LogConfig) Sanitize() {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	var lvl slog.Level
	if lvl.UnmarshalText([]byte(c.Level)) != nil {
		c.Level = "info"
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format != "text" {
		c.Format = "json"
	}
}

// SlogLevel returns the configured level.
func (c *LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
