// Package testsupport holds helpers for integration tests against real
// redis, postgres and clickhouse instances. Every helper skips the test
// when the backing service is not configured.
package testsupport

import (
	"fmt"
	"os"
	"testing"

	"exconnect/internal/adapters/config"
)

// RequirePostgres returns postgres settings or skips t.
func RequirePostgres(t testing.TB) config.PostgresConfig {
	t.Helper()
	skipUnless(t, "POSTGRES_HOST", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB")

	return config.PostgresConfig{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     intValue("POSTGRES_PORT", 5432),
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: os.Getenv("POSTGRES_DB"),
		SSLMode:  valueWithDefault("POSTGRES_SSL_MODE", "disable"),
		MaxConns: 5,
	}
}

// RequireClickHouse returns clickhouse settings or skips t.
func RequireClickHouse(t testing.TB) config.ClickHouseConfig {
	t.Helper()
	skipUnless(t, "CLICKHOUSE_HOST", "CLICKHOUSE_DB")

	return config.ClickHouseConfig{
		Host:      os.Getenv("CLICKHOUSE_HOST"),
		Port:      intValue("CLICKHOUSE_PORT", 9000),
		User:      valueWithDefault("CLICKHOUSE_USER", "default"),
		Password:  os.Getenv("CLICKHOUSE_PASSWORD"),
		Database:  os.Getenv("CLICKHOUSE_DB"),
		BatchSize: 10,
	}
}

// RequireRedis returns redis settings or skips t.
func RequireRedis(t testing.TB) config.RedisConfig {
	t.Helper()
	skipUnless(t, "REDIS_HOST")

	return config.RedisConfig{
		Host:     os.Getenv("REDIS_HOST"),
		Port:     intValue("REDIS_PORT", 6379),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       intValue("REDIS_DB", 0),
	}
}

func skipUnless(t testing.TB, keys ...string) {
	t.Helper()

	missing := make([]string, 0)
	for _, key := range keys {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		t.Skipf("integration environment missing, set %v to run", missing)
	}
}

func valueWithDefault(key string, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func intValue(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		_, err := fmt.Sscanf(val, "%d", &parsed)
		if err == nil {
			return parsed
		}
	}

	return fallback
}
