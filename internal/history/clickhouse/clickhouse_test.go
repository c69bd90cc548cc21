package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/gatewatch/internal/history"
)

// setupClickHouseContainer starts a ClickHouse container for testing
func setupClickHouseContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	clickHouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3.2.23",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(""),
		clickhouse.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "start ClickHouse container")

	host, err := clickHouseContainer.Host(ctx)
	require.NoError(t, err)

	port, err := clickHouseContainer.MappedPort(ctx, "9000")
	require.NoError(t, err)

	return clickHouseContainer, host + ":" + port.Port()
}

// setupSinkWithTable creates a sink and sets up the test table
func setupSinkWithTable(ctx context.Context, t *testing.T, dsn string, tableName string) *Sink {
	t.Helper()

	sink, err := New(dsn, tableName)
	require.NoError(t, err, "create sink")

	err = sink.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+tableName+` (
			type String,
			occurred_at DateTime64(6),
			name String,
			severity String,
			message String
		) ENGINE = MergeTree()
		ORDER BY occurred_at`)
	require.NoError(t, err, "create table")
	return sink
}

func TestClickHouseSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	container, dsn := setupClickHouseContainer(ctx, t)
	defer func() {
		require.NoError(t, container.Terminate(ctx))
	}()

	sink := setupSinkWithTable(ctx, t, dsn, "agent_events_test")
	defer func() {
		require.NoError(t, sink.Close())
	}()

	e := history.Event{
		Type:       history.EventAlert,
		OccurredAt: time.Now().UTC(),
		Name:       "latency_critical",
		Severity:   "critical",
		Message:    "latency 12000ms",
	}
	require.NoError(t, sink.Send(ctx, e))

	var n uint64
	row := sink.conn.QueryRow(ctx, `SELECT COUNT(*) FROM agent_events_test WHERE name = 'latency_critical'`)
	require.NoError(t, row.Scan(&n))
	require.EqualValues(t, 1, n)
}
