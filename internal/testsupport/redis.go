package testsupport

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// FlushRedis empties the selected database now and again at cleanup.
func FlushRedis(t testing.TB, client *redis.Client) {
	t.Helper()

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis before test: %v", err)
	}

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
	})
}
