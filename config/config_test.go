package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "both services with spaces",
			input:    " http , reaper ",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true, ServiceModeReaper: true},
		},
		{
			name:     "duplicate services",
			input:    "reaper,reaper",
			expected: map[ServiceMode]bool{ServiceModeReaper: true},
		},
		{name: "empty string", input: "", expectError: true},
		{name: "only spaces and commas", input: " , , ", expectError: true},
		{name: "invalid service name", input: "http,scheduler", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestAppConfig_ParseDefaults(t *testing.T) {
	var cfg AppConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.Postgres.Name != "ares" || cfg.Postgres.Port != 5432 {
		t.Errorf("unexpected postgres defaults: %+v", cfg.Postgres)
	}
	if cfg.Cache.AnalysisTTL != time.Hour {
		t.Errorf("expected analysis ttl 1h, got %v", cfg.Cache.AnalysisTTL)
	}
	if cfg.Analytics.ChangeTolerance != 1e-6 || cfg.Analytics.SummaryTolerance != 0.01 {
		t.Errorf("unexpected analytics tolerances: %+v", cfg.Analytics)
	}
	if cfg.Reaper.MaxAge != 2*time.Hour || cfg.Reaper.Interval != 5*time.Minute {
		t.Errorf("unexpected reaper defaults: %+v", cfg.Reaper)
	}
	if !cfg.IsHTTPServerEnabled() || !cfg.IsReaperEnabled() {
		t.Errorf("expected http and reaper enabled by default")
	}
	if cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("expected /metrics, got %q", cfg.Observability.Metrics.Path)
	}
}

func TestAppConfig_ParseAnalyticsMetrics(t *testing.T) {
	var cfg AppConfig
	err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{
		"ANALYTICS_METRICS": "efficiency=kpis.efficiency; utilization = kpis.utilization",
	}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Sanitize()

	want := map[string]string{"efficiency": "kpis.efficiency", "utilization": "kpis.utilization"}
	if !reflect.DeepEqual(cfg.Analytics.Metrics, want) {
		t.Errorf("expected %v, got %v", want, cfg.Analytics.Metrics)
	}
}

func TestConfig_ServiceEnabledMethodsWithInvalidConfig(t *testing.T) {
	cfg := &AppConfig{Services: "bogus", Reaper: ReaperConfig{Enabled: true}}
	if cfg.IsHTTPServerEnabled() {
		t.Error("expected http disabled for invalid services")
	}
	if cfg.IsReaperEnabled() {
		t.Error("expected reaper disabled for invalid services")
	}
}

func TestConfig_ReaperRequiresFlag(t *testing.T) {
	cfg := &AppConfig{Services: "http,reaper", Reaper: ReaperConfig{Enabled: false}}
	if cfg.IsReaperEnabled() {
		t.Error("expected reaper disabled when REAPER_ENABLED=false")
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	r := ReaperConfig{Interval: time.Second, MaxAge: time.Second, BatchSize: 5000}
	r.Sanitize()
	want := ReaperConfig{Interval: time.Minute, MaxAge: 5 * time.Minute, BatchSize: 1000}
	if r != want {
		t.Errorf("expected %+v, got %+v", want, r)
	}
}

func TestHTTPConfig_Sanitize(t *testing.T) {
	h := HTTPConfig{WriteTimeout: 30 * time.Second, WatchMaxWait: 2 * time.Minute}
	h.Sanitize()
	if h.WatchMaxWait != 25*time.Second {
		t.Errorf("expected watch wait capped to 25s, got %v", h.WatchMaxWait)
	}
	if h.MaxBodyBytes != 10<<20 {
		t.Errorf("expected default body limit, got %d", h.MaxBodyBytes)
	}
}

func TestLogConfig_Sanitize(t *testing.T) {
	tests := []struct {
		in        LogConfig
		wantLevel string
		wantFmt   string
	}{
		{in: LogConfig{Level: "DEBUG", Format: "TEXT"}, wantLevel: "debug", wantFmt: "text"},
		{in: LogConfig{Level: "loud", Format: "xml"}, wantLevel: "info", wantFmt: "json"},
	}
	for _, tt := range tests {
		c := tt.in
		c.Sanitize()
		if c.Level != tt.wantLevel || c.Format != tt.wantFmt {
			t.Errorf("Sanitize(%+v) = %+v", tt.in, c)
		}
	}
}

func TestValidServiceModes(t *testing.T) {
	modes := ValidServiceModes()
	if len(modes) != 2 {
		t.Fatalf("expected 2 modes, got %d", len(modes))
	}
	for _, m := range modes {
		if _, err := ParseServices(string(m)); err != nil {
			t.Errorf("mode %q should parse: %v", m, err)
		}
	}
}
