// Package testutil provides database, Redis and fixture helpers for ares tests.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	// Import pgx driver for database/sql compatibility in tests.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/VihangaMunasinghe/ares-sub001/internal/migrate"
)

// TestingTB is the subset of testing.TB the helpers need.
type TestingTB interface {
	Helper()
	Skip(args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
	Cleanup(fn func())
}

// TestDBConfig holds configuration for the test database.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DefaultTestDBConfig returns the test database configuration.
// Defaults to port 55432 (local test DB from docker-compose test profile).
// CI should set TEST_DB_PORT=5432 explicitly.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     getEnvOrDefault("TEST_DB_HOST", "localhost"),
		Port:     getEnvOrDefault("TEST_DB_PORT", "55432"),
		User:     getEnvOrDefault("TEST_DB_USER", "ares"),
		Password: getEnvOrDefault("TEST_DB_PASSWORD", "ares"),
		DBName:   getEnvOrDefault("TEST_DB_NAME", "ares"),
	}
}

// DSN builds a postgres URL. A non-empty schema becomes the connection's search_path.
func (c TestDBConfig) DSN(schema string) string {
	q := url.Values{}
	q.Set("sslmode", getEnvOrDefault("DB_SSL_MODE", "disable"))
	if schema != "" {
		q.Set("search_path", schema)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// SkipIfNoTestDB skips the test when Postgres is unreachable, or fails it when
// TEST_REQUIRE_DB / TEST_REQUIRE_INFRA is set. It reports whether the database is available.
func SkipIfNoTestDB(t TestingTB) bool {
	t.Helper()

	db, err := sql.Open("pgx", DefaultTestDBConfig().DSN(""))
	if err == nil {
		defer closeAndLog(t, "availability check DB", db)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = db.PingContext(ctx)
	}
	if err == nil {
		return true
	}
	if requireDB() {
		t.Fatal("Test database not available:", err)
		return false
	}
	t.Skip("Test database not available:", err)
	return false
}

// WithEphemeralDB runs fn against a freshly migrated schema that is dropped when the test ends.
func WithEphemeralDB(t TestingTB, fn func(*sql.DB)) {
	t.Helper()
	if !SkipIfNoTestDB(t) {
		return
	}
	cfg := DefaultTestDBConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin, err := sql.Open("pgx", cfg.DSN(""))
	if err != nil {
		t.Fatal("Failed to open admin DB:", err)
		return
	}
	schema := schemaName()
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		closeAndLog(t, "admin DB", admin)
		t.Fatalf("Failed to create schema %s: %v", schema, err)
		return
	}

	db, err := sql.Open("pgx", cfg.DSN(schema))
	if err != nil {
		closeAndLog(t, "admin DB", admin)
		t.Fatal("Failed to open schema DB:", err)
		return
	}
	db.SetMaxOpenConns(10)

	// Registered before migrating so a failed migration still drops the schema.
	t.Cleanup(func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer ccancel()
		closeAndLog(t, "schema DB", db)
		if _, err := admin.ExecContext(cctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schema, err)
		}
		closeAndLog(t, "admin DB", admin)
	})

	if err := migrate.Run(ctx, db); err != nil {
		t.Fatal("Failed to run migrations:", err)
		return
	}
	t.Logf("Using ephemeral schema: %s", schema)
	fn(db)
}

func schemaName() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "t_" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return "t_" + hex.EncodeToString(b)
}

func closeAndLog(t TestingTB, name string, closer interface{ Close() error }) {
	if err := closer.Close(); err != nil {
		t.Logf("warning: failed to close %s: %v", name, err)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envBool parses common truthy values from env vars.
func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func requireDB() bool    { return envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") }
func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }

// TestTime returns a fixed time for testing.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// RunConcurrent runs fns at the same time and returns their errors in call order.
func RunConcurrent(fns ...func() error) []error {
	errs := make([]error, len(fns))
	done := make(chan struct{})
	start := make(chan struct{})
	for i, fn := range fns {
		go func() {
			<-start
			errs[i] = fn()
			done <- struct{}{}
		}()
	}
	close(start)
	for range fns {
		<-done
	}
	return errs
}

// TestRedisAddr returns REDIS_ADDR when set, otherwise the local test Redis on port 56379.
func TestRedisAddr() string {
	return getEnvOrDefault("REDIS_ADDR", "localhost:56379")
}

// SetupTestRedis connects to the test Redis and flushes the selected DB (TEST_REDIS_DB, default 1).
// Tests are skipped when Redis is unreachable unless TEST_REQUIRE_REDIS is set.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	dbIndex := 1
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			dbIndex = i
		}
	}
	addr := TestRedisAddr()
	client := redis.NewClient(&redis.Options{Addr: addr, DB: dbIndex})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		closeAndLog(t, "redis client", client)
		if requireRedis() {
			t.Fatalf("Redis not available for testing at %s: %v", addr, err)
			return nil
		}
		t.Skip("Redis not available for testing at", addr, err)
		return nil
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Logf("warning: failed to flush redis db %d: %v", dbIndex, err)
	}
	return client
}
