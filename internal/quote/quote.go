// Package quote is the use-case layer: it owns one conversational turn end to
// end, from persisting the user's message through gate resolution, the
// completion call, advancement, and the assistant reply that comes back out.
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/breslow-outdoor/quoteflow/internal/display"
	"github.com/breslow-outdoor/quoteflow/internal/events"
	"github.com/breslow-outdoor/quoteflow/internal/openai"
	"github.com/breslow-outdoor/quoteflow/internal/orchestrator"
	"github.com/breslow-outdoor/quoteflow/internal/store"
)

// Sentinels re-exported so callers need not import the store package.
var (
	ErrNotFound             = store.ErrNotFound
	ErrConversationInactive = store.ErrConversationInactive
)

// Store is the persistence surface the service needs.
type Store interface {
	CreateConversation(ctx context.Context) (store.Conversation, error)
	GetConversation(ctx context.Context, id string) (store.Conversation, error)
	CancelConversation(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, id string) error
	AddMessage(ctx context.Context, conversationID, role, content string, displayJSON, metadataJSON []byte) (store.Message, error)
	ListMessages(ctx context.Context, conversationID, afterID string, limit int) ([]store.Message, error)
	History(ctx context.Context, conversationID string) ([]openai.Message, error)
}

// CompletionClient is the external completion service, streaming and not.
type CompletionClient interface {
	Complete(ctx context.Context, promptID, version string, variables map[string]string, messages []openai.Message) (string, error)
	CompleteStream(ctx context.Context, promptID, version string, variables map[string]string, messages []openai.Message, onDelta func(delta string)) (string, error)
}

// TurnResult is one completed assistant turn, ready for the transport layer.
type TurnResult struct {
	MessageID      string          `json:"message_id"`
	ConversationID string          `json:"conversation_id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	Response       map[string]any  `json:"response"`
	Metadata       map[string]any  `json:"metadata"`
	Display        display.Display `json:"display"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Service struct {
	store  Store
	orch   *orchestrator.Orchestrator
	llm    CompletionClient
	events *events.Publisher
	logger *slog.Logger
}

func NewService(st Store, orch *orchestrator.Orchestrator, llm CompletionClient, ev *events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:  st,
		orch:   orch,
		llm:    llm,
		events: ev,
		logger: logger,
	}
}

func (s *Service) CreateConversation(ctx context.Context) (store.Conversation, error) {
	conv, err := s.store.CreateConversation(ctx)
	if err != nil {
		return store.Conversation{}, err
	}
	s.events.ConversationCreated(conv.ID)
	s.logger.Info("conversation created", "conversation_id", conv.ID)
	return conv, nil
}

func (s *Service) GetConversation(ctx context.Context, id string) (store.Conversation, error) {
	return s.store.GetConversation(ctx, id)
}

// CloseConversation cancels the conversation, or removes it entirely when
// hardDelete is set.
func (s *Service) CloseConversation(ctx context.Context, id string, hardDelete bool) error {
	if hardDelete {
		if err := s.store.DeleteConversation(ctx, id); err != nil {
			return err
		}
	} else {
		if err := s.store.CancelConversation(ctx, id); err != nil {
			return err
		}
	}
	s.events.ConversationCancelled(id)
	s.logger.Info("conversation closed", "conversation_id", id, "hard_delete", hardDelete)
	return nil
}

func (s *Service) ListMessages(ctx context.Context, conversationID, afterID string, limit int) ([]store.Message, error) {
	return s.store.ListMessages(ctx, conversationID, afterID, limit)
}

// HandleMessage runs one full quoting turn and returns the persisted
// assistant reply.
func (s *Service) HandleMessage(ctx context.Context, conversationID, text string) (TurnResult, error) {
	return s.handleTurn(ctx, conversationID, text, nil)
}

// HandleMessageStream is HandleMessage with the completion streamed: deltas
// are forwarded to onDelta in arrival order, and everything after the stream
// ends (parsing, advancement, persistence) is identical.
func (s *Service) HandleMessageStream(ctx context.Context, conversationID, text string, onDelta func(delta string)) (TurnResult, error) {
	return s.handleTurn(ctx, conversationID, text, onDelta)
}

func (s *Service) handleTurn(ctx context.Context, conversationID, text string, onDelta func(delta string)) (TurnResult, error) {
	if _, err := s.store.AddMessage(ctx, conversationID, "user", text, nil, nil); err != nil {
		return TurnResult{}, err
	}

	def, state, err := s.orch.ResolveGate(ctx, conversationID)
	if err != nil {
		return TurnResult{}, err
	}

	vars := s.orch.ResolveVariables(def, state)
	history, err := s.store.History(ctx, conversationID)
	if err != nil {
		return TurnResult{}, err
	}

	var raw string
	if onDelta != nil {
		raw, err = s.llm.CompleteStream(ctx, def.PromptID, def.PromptVersion, vars, history, onDelta)
	} else {
		raw, err = s.llm.Complete(ctx, def.PromptID, def.PromptVersion, vars, history)
	}
	if err != nil {
		return TurnResult{}, fmt.Errorf("completion for gate %d: %w", def.Number, err)
	}

	parsed := display.ParseReply(raw)
	metadata := map[string]any{
		"prompt_id":   def.PromptID,
		"gate_number": def.Number,
		"gate_name":   def.Name,
	}
	if status, ok := parsed["status"].(string); ok {
		metadata["parsed_status"] = status
	}

	var meta display.AdvanceMeta
	if s.orch.ShouldAdvance(parsed) {
		nxt, ok, err := s.orch.AdvanceGate(ctx, conversationID, state, parsed)
		if err != nil {
			return TurnResult{}, err
		}
		if ok {
			meta = s.orch.ChainAdvance(ctx, conversationID, state, history, nxt)
			s.events.GateAdvanced(conversationID, def.Number, meta.AdvancedTo, meta.SkippedGates)
			metadata["advanced_to_gate"] = meta.AdvancedTo
			if len(meta.SkippedGates) > 0 {
				metadata["skipped_gates"] = meta.SkippedGates
			}
			if meta.NextGateErr != "" {
				metadata["next_gate_error"] = meta.NextGateErr
			}
		} else {
			s.events.QuoteCompleted(conversationID, def.Number)
			metadata["quote_complete"] = true
		}
	}

	disp := display.Build(parsed, raw, meta, def.Number, def.Name)

	displayJSON, err := json.Marshal(disp)
	if err != nil {
		return TurnResult{}, fmt.Errorf("marshal display: %w", err)
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return TurnResult{}, fmt.Errorf("marshal metadata: %w", err)
	}

	msg, err := s.store.AddMessage(ctx, conversationID, "assistant", raw, displayJSON, metadataJSON)
	if err != nil {
		return TurnResult{}, err
	}

	s.logger.Info("turn handled",
		"conversation_id", conversationID,
		"gate", def.Number,
		"status", disp.Status,
		"advanced_to", meta.AdvancedTo,
	)

	return TurnResult{
		MessageID:      msg.ID,
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        raw,
		Response:       parsed,
		Metadata:       metadata,
		Display:        disp,
		CreatedAt:      msg.CreatedAt,
	}, nil
}
