package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeReaper runs the stale-job reaper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeReaper}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, reaper)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// AnalyticsConfig tunes the result analyzer.
type AnalyticsConfig struct {
	// ChangeTolerance is the absolute tolerance before a supplied change is recomputed.
	ChangeTolerance float64 `env:"ANALYTICS_CHANGE_TOLERANCE" envDefault:"0.000001"`

	// SummaryTolerance is the relative tolerance before a declared summary field is flagged.
	SummaryTolerance float64 `env:"ANALYTICS_SUMMARY_TOLERANCE" envDefault:"0.01"`

	// Metrics maps display metric names to JMESPath expressions over the raw result document,
	// e.g. "efficiency=kpis.efficiency;utilization=kpis.utilization".
	Metrics map[string]string `env:"ANALYTICS_METRICS" envSeparator:";" envKeyValSeparator:"="`
}

// Sanitize applies guardrails to analytics configuration values.
func (a *AnalyticsConfig) Sanitize() {
	if a.ChangeTolerance <= 0 {
		a.ChangeTolerance = 1e-6
	}
	if a.SummaryTolerance <= 0 {
		a.SummaryTolerance = 0.01
	}
	clean := make(map[string]string, len(a.Metrics))
	for name, expr := range a.Metrics {
		name, expr = strings.TrimSpace(name), strings.TrimSpace(expr)
		if name != "" && expr != "" {
			clean[name] = expr
		}
	}
	a.Metrics = clean
}

// ReaperConfig contains stale-job reaper configuration.
type ReaperConfig struct {
	Enabled bool `env:"REAPER_ENABLED" envDefault:"true"`

	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// MaxAge is how long a pending or running job may go without any write before it is cancelled.
	MaxAge time.Duration `env:"REAPER_MAX_AGE" envDefault:"2h"`

	// BatchSize is the maximum number of jobs cancelled per sweep batch.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"100"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.MaxAge < 5*time.Minute {
		r.MaxAge = 5 * time.Minute
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 1000 {
		r.BatchSize = 1000
	}
}
