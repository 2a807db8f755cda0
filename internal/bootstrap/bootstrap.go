// Package bootstrap assembles storage and the tracker from configuration for
// the command binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"example.com/fittracker/internal/config"
	"example.com/fittracker/internal/storage"
	"example.com/fittracker/internal/storage/kv"
	"example.com/fittracker/internal/storage/postgres"
	redisstore "example.com/fittracker/internal/storage/redis"
	"example.com/fittracker/internal/tracker"
)

// Storage is the opened backend plus the handles that must be released.
type Storage struct {
	Store kv.Store
	// Pool is set for the postgres backend only.
	Pool    *pgxpool.Pool
	closers []func() error
}

// Close releases every backend connection.
func (s *Storage) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.closers[i]())
	}
	return err
}

// OpenStorage connects the configured backend and wraps it in the
// in-process read cache.
func OpenStorage(ctx context.Context, cfg config.Config) (*Storage, error) {
	s := &Storage{}

	switch cfg.Storage.Backend {
	case config.BackendRedis:
		client, err := redisstore.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		s.Store = redisstore.NewStore(client, cfg.Redis.Prefix)
	case config.BackendPostgres:
		if cfg.Postgres.MigrateOnStart {
			if err := postgres.Migrate(cfg.Postgres.URL); err != nil {
				return nil, err
			}
		}
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		s.closers = append(s.closers, func() error { pool.Close(); return nil })
		s.Pool = pool
		s.Store = postgres.NewStore(pool, postgres.WithOutbox(cfg.Outbox.Enabled))
	case config.BackendFile:
		s.Store = kv.NewFile(cfg.Storage.File)
	default:
		s.Store = kv.NewMemory()
	}

	remote := cfg.Storage.Backend == config.BackendRedis || cfg.Storage.Backend == config.BackendPostgres
	if remote && cfg.Storage.CacheSizeMB > 0 {
		s.Store = kv.NewCached(s.Store, cfg.Storage.CacheSizeMB, int(cfg.Storage.CacheTTL.Seconds()))
	}

	log.Infof("storage backend %s (partition=%s)", cfg.Storage.Backend, cfg.Partition())
	return s, nil
}

// RestoreTracker builds a tracker over store and resumes any stored session.
func RestoreTracker(ctx context.Context, cfg config.Config, store kv.Store) (*tracker.Tracker, error) {
	t := tracker.New(storage.NewRepository(store, cfg.Partition()))
	if err := t.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return t, nil
}
