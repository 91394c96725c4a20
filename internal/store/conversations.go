package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound is returned when a conversation or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConversationInactive is returned when writing to a cancelled conversation.
	ErrConversationInactive = errors.New("conversation is not active")
)

const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

type Conversation struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateConversation inserts a new active conversation with an empty session
// blob and returns it.
func (s *Store) CreateConversation(ctx context.Context) (Conversation, error) {
	c := Conversation{ID: newID("conv"), Status: StatusActive}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, status)
		VALUES ($1, $2)
		RETURNING created_at, updated_at`,
		c.ID, c.Status,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	return c, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var c Conversation
	err := s.pool.QueryRow(ctx, `
		SELECT id, status, created_at, updated_at
		FROM conversations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("select conversation: %w", err)
	}
	return c, nil
}

// CancelConversation marks the conversation cancelled. History and session
// state survive; only new turns are rejected.
func (s *Store) CancelConversation(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations SET status = $1, updated_at = now()
		WHERE id = $2`,
		StatusCancelled, id,
	)
	if err != nil {
		return fmt.Errorf("cancel conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes the conversation and, via cascade, its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSessionState returns the raw session blob. A missing conversation is
// ErrNotFound; an empty blob is valid and decodes to a fresh session.
func (s *Store) GetSessionState(ctx context.Context, conversationID string) ([]byte, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx, `
		SELECT config_json FROM conversations WHERE id = $1`,
		conversationID,
	).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session state: %w", err)
	}
	return blob, nil
}

// SetSessionState overwrites the session blob. Last writer wins.
func (s *Store) SetSessionState(ctx context.Context, conversationID string, blob []byte) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations SET config_json = $1, updated_at = now()
		WHERE id = $2`,
		blob, conversationID,
	)
	if err != nil {
		return fmt.Errorf("update session state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
