package config

import (
	"strings"
	"time"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"ares"`
	Password string `env:"PASSWORD" envDefault:"ares"`
	Name     string `env:"NAME"     envDefault:"ares"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"    envDefault:"20"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// CacheConfig controls caching of analysis reports in Redis.
type CacheConfig struct {
	Enabled bool `env:"CACHE_ENABLED" envDefault:"true"`
	// AnalysisTTL bounds how long a report stays cached. Reports are keyed by payload digest so
	// they never go stale; the TTL only caps memory.
	AnalysisTTL time.Duration `env:"CACHE_ANALYSIS_TTL" envDefault:"1h"`
	KeyPrefix   string        `env:"CACHE_KEY_PREFIX"   envDefault:"ares:"`
}

// Sanitize applies guardrails to cache configuration values.
func (c *CacheConfig) Sanitize() {
	if c.AnalysisTTL < 0 {
		c.AnalysisTTL = 0
	}
	c.KeyPrefix = strings.TrimSpace(c.KeyPrefix)
}
