// Package store is the Postgres persistence layer: conversations, their
// message history, and the opaque session-state blob the orchestrator owns.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the schema if it does not exist yet. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS conversations (
			id           text PRIMARY KEY,
			status       text NOT NULL DEFAULT 'active',
			config_json  jsonb NOT NULL DEFAULT '{}'::jsonb,
			created_at   timestamptz NOT NULL DEFAULT now(),
			updated_at   timestamptz NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS messages (
			id              text PRIMARY KEY,
			conversation_id text NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			seq             bigserial,
			role            text NOT NULL,
			content         text NOT NULL,
			display_json    jsonb,
			metadata_json   jsonb,
			created_at      timestamptz NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages (conversation_id, seq);
	`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// newID builds a prefixed short identifier like conv_a1b2c3d4e5f6.
func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
