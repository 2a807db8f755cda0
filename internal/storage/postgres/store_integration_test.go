//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/storage/kv"
)

func TestStoreRecordsAndOutbox(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)
	store := NewStore(pool, WithOutbox(true))

	_, err := store.Get(ctx, "fittracker_user")
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Set(ctx, "fittracker_user", []byte(`{"id":"u1","email":"a@b.c"}`)))
	value, err := store.Get(ctx, "fittracker_user")
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"u1","email":"a@b.c"}`, string(value))

	owner := domain.User{ID: uuid.NewString(), Email: "runner@example.com"}
	workout := domain.Workout{
		ID:       uuid.NewString(),
		Type:     domain.CategoryRunning,
		Duration: 30,
		Calories: 300,
		Date:     time.Date(2024, time.January, 1, 7, 0, 0, 0, time.UTC),
	}
	changes := []domain.Change{
		{Kind: domain.ChangeCreated, Owner: owner, Workout: workout, OccurredAt: time.Now().UTC()},
		{Kind: domain.ChangeDeleted, Owner: owner, Workout: workout, OccurredAt: time.Now().UTC()},
	}
	require.NoError(t, store.SetWithChanges(ctx, "fittracker_workouts", []byte(`[]`), changes))

	rows, err := pool.Query(ctx, `SELECT event_type, topic, partition_key FROM outbox ORDER BY event_id`)
	require.NoError(t, err)
	defer rows.Close()

	var got [][3]string
	for rows.Next() {
		var row [3]string
		require.NoError(t, rows.Scan(&row[0], &row[1], &row[2]))
		got = append(got, row)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, [][3]string{
		{"workout.created", "workout_events", "runner@example.com"},
		{"workout.deleted", "workout_deleted", "runner@example.com"},
	}, got)

	require.NoError(t, store.Delete(ctx, "fittracker_user"))
	_, err = store.Get(ctx, "fittracker_user")
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStoreSkipsOutboxWhenDisabled(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)
	store := NewStore(pool)

	owner := domain.User{ID: uuid.NewString(), Email: "runner@example.com"}
	workout := domain.Workout{
		ID:       uuid.NewString(),
		Type:     domain.CategoryYoga,
		Duration: 45,
		Calories: 150,
		Date:     time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC),
	}
	changes := []domain.Change{{Kind: domain.ChangeCreated, Owner: owner, Workout: workout, OccurredAt: time.Now().UTC()}}
	require.NoError(t, store.SetWithChanges(ctx, "fittracker_workouts", []byte(`[{"id":"w1"}]`), changes))

	value, err := store.Get(ctx, "fittracker_workouts")
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":"w1"}]`, string(value))

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&pending))
	require.Zero(t, pending)
}

func startPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
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
	require.NoError(t, waitForDatabase(ctx, connStr))
	require.NoError(t, Migrate(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
