package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresActorStore durably records actor placement/migration requests,
// the actor.MigrationStore this runtime plugs into its actor manager.
type PostgresActorStore struct {
	pool *pgxpool.Pool
}

// NewPostgresActorStore connects to dsn and ensures the migrations table
// exists.
func NewPostgresActorStore(ctx context.Context, dsn string) (*PostgresActorStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s := &PostgresActorStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresActorStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS actor_migrations (
			actor_id     TEXT PRIMARY KEY,
			target_node  TEXT NOT NULL,
			requested_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

// RecordMigration upserts the migration request for actorID.
func (s *PostgresActorStore) RecordMigration(actorID, nodeID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO actor_migrations (actor_id, target_node, requested_at)
		VALUES ($1, $2, now())
		ON CONFLICT (actor_id) DO UPDATE SET target_node = $2, requested_at = now()
	`, actorID, nodeID)
	return err
}

func (s *PostgresActorStore) Close() {
	s.pool.Close()
}
