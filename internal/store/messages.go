package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/breslow-outdoor/quoteflow/internal/openai"
)

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Display        []byte    `json:"-"`
	Metadata       []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// AddMessage appends one message to an active conversation. display and
// metadata are pre-marshalled JSON and may be nil.
func (s *Store) AddMessage(ctx context.Context, conversationID, role, content string, display, metadata []byte) (Message, error) {
	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return Message{}, err
	}
	if conv.Status != StatusActive {
		return Message{}, ErrConversationInactive
	}

	m := Message{
		ID:             newID("msg"),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Display:        display,
		Metadata:       metadata,
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, display_json, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		m.ID, m.ConversationID, m.Role, m.Content, m.Display, m.Metadata,
	).Scan(&m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

// ListMessages returns the conversation's messages in insertion order,
// optionally only those after the given message ID, capped at limit
// (0 = no cap).
func (s *Store) ListMessages(ctx context.Context, conversationID, afterID string, limit int) ([]Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, conversation_id, role, content, display_json, metadata_json, created_at
		FROM messages
		WHERE conversation_id = $1`
	args := []any{conversationID}
	if afterID != "" {
		query += ` AND seq > (SELECT seq FROM messages WHERE id = $2)`
		args = append(args, afterID)
	}
	query += ` ORDER BY seq`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Display, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

// History returns the conversation as provider-shaped messages, oldest first.
// Only user and assistant turns are included.
func (s *Store) History(ctx context.Context, conversationID string) ([]openai.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT role, content FROM messages
		WHERE conversation_id = $1 AND role IN ('user', 'assistant')
		ORDER BY seq`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	var out []openai.Message
	for rows.Next() {
		var m openai.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// GetMessage fetches one message by ID within a conversation.
func (s *Store) GetMessage(ctx context.Context, conversationID, messageID string) (Message, error) {
	var m Message
	err := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, role, content, display_json, metadata_json, created_at
		FROM messages WHERE conversation_id = $1 AND id = $2`,
		conversationID, messageID,
	).Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Display, &m.Metadata, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("select message: %w", err)
	}
	return m, nil
}
