// Package postgres persists keyed records in PostgreSQL and records workout
// change events in the transactional outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/events"
	"example.com/fittracker/internal/observability"
	"example.com/fittracker/internal/storage/kv"
)

// Store provides Postgres-backed records and outbox events.
type Store struct {
	pool   *pgxpool.Pool
	outbox bool
}

// Option configures a Store.
type Option func(*Store)

// WithOutbox controls whether SetWithChanges records outbox events. Leave it
// off unless a dispatcher drains the table.
func WithOutbox(enabled bool) Option {
	return func(s *Store) { s.outbox = enabled }
}

// NewStore constructs a Store. Outbox events are not written by default.
func NewStore(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv_records WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, upsertRecord, key, value)
	if err != nil {
		return err
	}
	observability.RecordWorkoutsPersisted(time.Now())
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_records WHERE key = $1`, key)
	return err
}

// SetWithChanges writes the record and, when the outbox is enabled, one
// outbox event per change inside a single transaction.
func (s *Store) SetWithChanges(ctx context.Context, key string, value []byte, changes []domain.Change) (err error) {
	if !s.outbox {
		return s.Set(ctx, key, value)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, upsertRecord, key, value); err != nil {
		return err
	}

	for _, change := range changes {
		if err = insertOutbox(ctx, tx, change); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordWorkoutsPersisted(time.Now())
	return nil
}

const upsertRecord = `INSERT INTO kv_records (key, value, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

func insertOutbox(ctx context.Context, tx pgx.Tx, change domain.Change) error {
	eventType, payload := events.FromChange(change)
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		change.Owner.ID,
		"workout",
		change.Workout.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(change),
		body,
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.Change) string
}

func byOwner(c domain.Change) string {
	if c.Owner.Email != "" {
		return c.Owner.Email
	}
	return c.Owner.ID
}

var eventCatalog = map[string]EventMetadata{
	events.TypeWorkoutCreated: {
		Topic:          "workout_events",
		SchemaSubject:  "workout_events-value",
		PartitionKeyFn: byOwner,
	},
	events.TypeWorkoutUpdated: {
		Topic:          "workout_events",
		SchemaSubject:  "workout_events-value",
		PartitionKeyFn: byOwner,
	},
	events.TypeWorkoutDeleted: {
		Topic:          "workout_deleted",
		SchemaSubject:  "workout_deleted-value",
		PartitionKeyFn: byOwner,
	},
}
