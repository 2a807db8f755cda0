//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/fittracker/internal/storage/postgres"
)

func TestPersistenceHandlerStoresEventOnce(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	handler := NewPersistenceHandler(pool)

	payload := json.RawMessage(`{"workout_id":"abc","user_id":"user-123"}`)
	msg := Message{
		EventType:     "workout.created",
		UserID:        "user-123",
		SchemaID:      42,
		SchemaSubject: "workout_events-value",
		Topic:         "workout_events",
		Partition:     0,
		Offset:        5,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
	}

	require.NoError(t, handler.Handle(ctx, msg))
	require.NoError(t, handler.Handle(ctx, msg))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM workout_event_log`).Scan(&count))
	require.Equal(t, 1, count)

	var stored []byte
	require.NoError(t, pool.QueryRow(ctx, `SELECT payload FROM workout_event_log LIMIT 1`).Scan(&stored))
	require.JSONEq(t, string(payload), string(stored))
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("fitness"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	deadline := time.Now().Add(30 * time.Second)
	for {
		conn, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = conn.Ping(ctx)
			conn.Close()
		}
		if err == nil {
			break
		}
		require.False(t, time.Now().After(deadline), "database not ready: %v", err)
		time.Sleep(time.Second)
	}
	require.NoError(t, postgres.Migrate(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}
