// Package events publishes quoting lifecycle notifications over NATS so
// downstream consumers (CRM sync, analytics) can react without polling.
// The publisher is optional: a nil *Publisher silently drops everything.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectConversationCreated   = "quote.conversation.created"
	SubjectConversationCancelled = "quote.conversation.cancelled"
	SubjectGateAdvanced          = "quote.gate.advanced"
	SubjectQuoteCompleted        = "quote.completed"
)

// ConversationEvent announces a conversation being opened or cancelled.
type ConversationEvent struct {
	ConversationID string    `json:"conversation_id"`
	At             time.Time `json:"at"`
}

// GateAdvancedEvent announces the session cursor moving forward, including
// any gates the turn chained through without user input.
type GateAdvancedEvent struct {
	ConversationID string    `json:"conversation_id"`
	FromGate       int       `json:"from_gate"`
	ToGate         int       `json:"to_gate"`
	SkippedGates   []int     `json:"skipped_gates,omitempty"`
	At             time.Time `json:"at"`
}

// QuoteCompletedEvent announces a conversation reaching the end of its gate
// sequence.
type QuoteCompletedEvent struct {
	ConversationID string    `json:"conversation_id"`
	FinalGate      int       `json:"final_gate"`
	At             time.Time `json:"at"`
}

type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewPublisher(url, token string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Publisher{conn: nc, logger: logger}, nil
}

// Publish marshals and sends one event. Failures are logged, never returned:
// notification is best-effort and must not fail the quoting turn.
func (p *Publisher) Publish(subject string, data any) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		p.logger.Warn("event marshal failed", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn("event publish failed", "subject", subject, "error", err)
	}
}

func (p *Publisher) ConversationCreated(conversationID string) {
	p.Publish(SubjectConversationCreated, ConversationEvent{
		ConversationID: conversationID,
		At:             time.Now().UTC(),
	})
}

func (p *Publisher) ConversationCancelled(conversationID string) {
	p.Publish(SubjectConversationCancelled, ConversationEvent{
		ConversationID: conversationID,
		At:             time.Now().UTC(),
	})
}

func (p *Publisher) GateAdvanced(conversationID string, from, to int, skipped []int) {
	p.Publish(SubjectGateAdvanced, GateAdvancedEvent{
		ConversationID: conversationID,
		FromGate:       from,
		ToGate:         to,
		SkippedGates:   skipped,
		At:             time.Now().UTC(),
	})
}

func (p *Publisher) QuoteCompleted(conversationID string, finalGate int) {
	p.Publish(SubjectQuoteCompleted, QuoteCompletedEvent{
		ConversationID: conversationID,
		FinalGate:      finalGate,
		At:             time.Now().UTC(),
	})
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.conn.Close()
}
