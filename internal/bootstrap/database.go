package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/redis/go-redis/v9"

	"github.com/VihangaMunasinghe/ares-sub001/config"
	"github.com/VihangaMunasinghe/ares-sub001/internal/data"
)

// DatabaseConfig contains configuration for database connections.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

// postgresDSN builds the connection URL. url.URL escapes special characters in credentials.
func postgresDSN(cfg config.DBConfig) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	q := u.Query()
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// ConnectDB opens the job store, sizes its pool and verifies the connection.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", postgresDSN(cfg.DBConfig))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBConfig.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DBConfig.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConfig.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close database connection: %w", closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("database connected",
			"host", cfg.DBConfig.Host,
			"port", cfg.DBConfig.Port,
			"database", cfg.DBConfig.Name,
			"max_open_conns", cfg.DBConfig.MaxOpenConns,
		)
	}

	return db, nil
}

// redisMode names the topology selected by RedisConfig.
type redisMode string

const (
	redisModeDirect   redisMode = "direct"
	redisModeSentinel redisMode = "sentinel"
	redisModeCluster  redisMode = "cluster"
)

func (m redisMode) String() string { return string(m) }

// redisTarget is the resolved connection plan for the analysis cache.
type redisTarget struct {
	mode     redisMode
	direct   *redis.Options
	failover *redis.FailoverOptions
	cluster  *redis.ClusterOptions
	// desc is logged on connect and never carries credentials.
	desc string
}

// resolveRedisTarget validates cfg and picks the client options. Cluster wins over sentinel.
func resolveRedisTarget(cfg config.RedisConfig) (redisTarget, error) {
	switch {
	case cfg.UseCluster:
		addrs := normalizeAddrs(cfg.ClusterNodes)
		if len(addrs) == 0 {
			return redisTarget{}, errors.New("redis cluster configuration requires REDIS_CLUSTER_NODES")
		}
		return redisTarget{
			mode:    redisModeCluster,
			cluster: &redis.ClusterOptions{Addrs: addrs, Password: cfg.Password},
			desc:    strings.Join(addrs, ","),
		}, nil

	case cfg.UseSentinel:
		nodes := normalizeAddrs(cfg.SentinelNodes)
		if len(nodes) == 0 {
			return redisTarget{}, errors.New("redis sentinel configuration requires at least one sentinel node")
		}
		return redisTarget{
			mode: redisModeSentinel,
			failover: &redis.FailoverOptions{
				MasterName:       cfg.SentinelMasterName,
				SentinelAddrs:    nodes,
				Password:         cfg.Password,
				SentinelPassword: cfg.SentinelPassword,
				DB:               cfg.DB,
			},
			desc: cfg.SentinelMasterName,
		}, nil
	}

	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return redisTarget{}, errors.New("redis direct configuration requires REDIS_URI")
	}
	if strings.HasPrefix(uri, "redis://") || strings.HasPrefix(uri, "rediss://") {
		opt, err := redis.ParseURL(uri)
		if err != nil {
			return redisTarget{}, fmt.Errorf("parse redis url: %w", err)
		}
		return redisTarget{mode: redisModeDirect, direct: opt, desc: opt.Addr}, nil
	}
	return redisTarget{
		mode:   redisModeDirect,
		direct: &redis.Options{Addr: uri, Password: cfg.Password, DB: cfg.DB},
		desc:   uri,
	}, nil
}

//nolint:ireturn // the cache only needs redis.UniversalClient whatever the topology.
func (t redisTarget) client() redis.UniversalClient {
	switch t.mode {
	case redisModeCluster:
		return redis.NewClusterClient(t.cluster)
	case redisModeSentinel:
		return redis.NewFailoverClient(t.failover)
	default:
		return redis.NewClient(t.direct)
	}
}

// ConnectRedis connects the analysis cache client and verifies it with a ping.
//
//nolint:ireturn // returning redis.UniversalClient lets us pick single, sentinel, or cluster clients at runtime.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	target, err := resolveRedisTarget(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}
	client := target.client()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis (%s): %w", target.mode, pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "mode", target.mode.String(), "addr", target.desc)
	}
	return client, nil
}

func normalizeAddrs(raw []string) []string {
	result := make([]string, 0, len(raw))
	for _, addr := range raw {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// RunMigrations runs database migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := data.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed")
	}

	return nil
}
