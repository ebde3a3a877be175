package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/VihangaMunasinghe/ares-sub001/config"
	"github.com/VihangaMunasinghe/ares-sub001/internal/bootstrap"
)

var errRedisNotConfigured = errors.New("redis not configured")

type connectInfraOptions struct {
	Logger    *slog.Logger
	Config    *config.AppConfig
	WantRedis bool
}

// connectInfra opens the database and, when requested and configured, Redis.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func connectInfra(opts *connectInfraOptions) (*sql.DB, redis.UniversalClient, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: opts.Config.Postgres, Logger: opts.Logger})
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}
	if !opts.WantRedis {
		return db, nil, nil
	}

	client, err := maybeConnectRedis(opts.Logger, &opts.Config.Redis)
	switch {
	case err == nil:
		return db, client, nil
	case errors.Is(err, errRedisNotConfigured):
		opts.Logger.Info("no redis configuration detected; skipping redis connection")
		return db, nil, nil
	}
	if closeErr := db.Close(); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("close db: %w", closeErr))
	}
	return nil, nil, err
}

// maybeConnectRedis returns a connected client when configuration is present.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func maybeConnectRedis(logger *slog.Logger, cfg *config.RedisConfig) (redis.UniversalClient, error) {
	if !hasRedisConfig(cfg) {
		return nil, errRedisNotConfigured
	}
	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: *cfg, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func hasRedisConfig(cfg *config.RedisConfig) bool {
	if cfg == nil {
		return false
	}
	if cfg.UseCluster {
		return len(cfg.ClusterNodes) > 0 || cfg.URI != ""
	}
	if cfg.UseSentinel {
		return len(cfg.SentinelNodes) > 0
	}
	return cfg.URI != ""
}

func closeInfra(db *sql.DB, redisClient redis.UniversalClient) error {
	var closeErr error
	if db != nil {
		if err := db.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	return closeErr
}

// withServices connects infrastructure, builds the service container and closes everything
// once fn returns.
func withServices(
	ctx context.Context,
	cmdCtx *commandContext,
	fn func(ctx context.Context, db *sql.DB, services bootstrap.ServiceContainer) error,
) (err error) {
	db, redisClient, err := connectInfra(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantRedis: cmdCtx.Config.Cache.Enabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeInfra(db, redisClient); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cmdCtx.Config,
		DB:          db,
		RedisClient: redisClient,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	return fn(ctx, db, services)
}
