package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"90s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// MaxBodyBytes caps request bodies, raw solver results included.
	MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" envDefault:"10485760"`

	// WatchMaxWait caps the long-poll wait of the job watch endpoint. It must stay below
	// WriteTimeout or the server cuts the response off.
	WatchMaxWait time.Duration `env:"HTTP_WATCH_MAX_WAIT" envDefault:"60s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 15 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 90 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
	if h.MaxBodyBytes <= 0 {
		h.MaxBodyBytes = 10 << 20
	}
	if h.WatchMaxWait <= 0 {
		h.WatchMaxWait = 60 * time.Second
	}
	if limit := h.WriteTimeout - 5*time.Second; h.WatchMaxWait > limit && limit > 0 {
		h.WatchMaxWait = limit
	}
}
