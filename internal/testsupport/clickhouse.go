package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"exconnect/internal/adapters/clickhouse"
)

// ClickHouseTestHelper manages cleanup for ClickHouse integration tests.
type ClickHouseTestHelper struct {
	client *clickhouse.Client
}

// NewTestClickHouse connects using the environment, applying the schema.
// The test is skipped when clickhouse is not configured.
func NewTestClickHouse(t *testing.T) *ClickHouseTestHelper {
	t.Helper()

	client, err := clickhouse.NewClient(context.Background(), RequireClickHouse(t))
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate clickhouse: %v", err)
	}
	return &ClickHouseTestHelper{client: client}
}

// Client returns the connected client.
func (h *ClickHouseTestHelper) Client() *clickhouse.Client {
	return h.client
}

// RegisterTableCleanup schedules deletion of matching rows after the test.
// Example: RegisterTableCleanup(t, "tickers", "exchange = 'test'")
func (h *ClickHouseTestHelper) RegisterTableCleanup(t *testing.T, table, condition string) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		query := fmt.Sprintf("DELETE FROM %s WHERE %s", table, condition)
		_ = h.client.Exec(ctx, query)
	})
}

// CountRows returns the number of rows in table matching condition.
func (h *ClickHouseTestHelper) CountRows(t *testing.T, table, condition string) uint64 {
	t.Helper()

	var n uint64
	query := fmt.Sprintf("SELECT count() FROM %s WHERE %s", table, condition)
	if err := h.client.Conn().QueryRow(context.Background(), query).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
