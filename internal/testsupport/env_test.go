package testsupport

import "testing"

func TestRequireReadsEnvironment(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_USER", "user")
	t.Setenv("POSTGRES_PASSWORD", "pass")
	t.Setenv("POSTGRES_DB", "db")
	t.Setenv("POSTGRES_PORT", "5543")

	t.Setenv("CLICKHOUSE_HOST", "click")
	t.Setenv("CLICKHOUSE_DB", "analytics")
	t.Setenv("CLICKHOUSE_PORT", "8123")

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")

	pg := RequirePostgres(t)
	if pg.Host != "localhost" || pg.Port != 5543 || pg.SSLMode != "disable" {
		t.Fatalf("unexpected postgres config %+v", pg)
	}

	ch := RequireClickHouse(t)
	if ch.Host != "click" || ch.Port != 8123 || ch.User != "default" {
		t.Fatalf("unexpected clickhouse config %+v", ch)
	}

	rd := RequireRedis(t)
	if rd.Host != "redis" || rd.Port != 6380 || rd.DB != 2 {
		t.Fatalf("unexpected redis config %+v", rd)
	}
}

func TestIntValueFallsBack(t *testing.T) {
	t.Setenv("TESTSUPPORT_PORT", "not-a-number")
	if got := intValue("TESTSUPPORT_PORT", 42); got != 42 {
		t.Fatalf("got %d", got)
	}
}
