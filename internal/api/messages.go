package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/breslow-outdoor/quoteflow/internal/quote"
	"github.com/breslow-outdoor/quoteflow/internal/store"
)

type postMessageRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	result, err := s.quotes.HandleMessage(r.Context(), id, req.Message)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, turnEnvelope(result))
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, "validation",
				fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
			return
		}
		limit = n
	}
	after := r.URL.Query().Get("after")

	conv, err := s.quotes.GetConversation(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	msgs, err := s.quotes.ListMessages(r.Context(), id, after, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageEnvelope(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id":     id,
		"conversation_status": conv.Status,
		"messages":            out,
	})
}

// streamMessage runs the turn with the completion streamed out as SSE:
// chunk events while text arrives, then exactly one done event with the full
// envelope, or one error event.
func (s *Server) streamMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	result, err := s.quotes.HandleMessageStream(r.Context(), id, req.Message, func(delta string) {
		writeSSE(w, "chunk", map[string]any{
			"conversation_id": id,
			"delta":           delta,
		})
		flusher.Flush()
	})
	if err != nil {
		writeSSE(w, "error", errorEnvelope{Error: errorBody{
			Code:    streamErrorCode(err),
			Message: err.Error(),
		}})
		flusher.Flush()
		return
	}

	writeSSE(w, "done", turnEnvelope(result))
	flusher.Flush()
}

func streamErrorCode(err error) string {
	switch {
	case errors.Is(err, quote.ErrNotFound):
		return "not_found"
	case errors.Is(err, quote.ErrConversationInactive):
		return "conversation_inactive"
	default:
		return "completion_error"
	}
}

func writeSSE(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

func turnEnvelope(r quote.TurnResult) map[string]any {
	return map[string]any{
		"message_id":      r.MessageID,
		"conversation_id": r.ConversationID,
		"role":            r.Role,
		"content":         r.Content,
		"response":        r.Response,
		"metadata":        r.Metadata,
		"display":         r.Display,
		"gate_number":     r.Display.GateNumber,
		"gate_name":       r.Display.GateName,
		"created_at":      r.CreatedAt,
	}
}

func messageEnvelope(m store.Message) map[string]any {
	out := map[string]any{
		"message_id": m.ID,
		"role":       m.Role,
		"content":    m.Content,
		"created_at": m.CreatedAt,
	}
	if len(m.Display) > 0 {
		out["display"] = json.RawMessage(m.Display)
	}
	if len(m.Metadata) > 0 {
		out["metadata"] = json.RawMessage(m.Metadata)
	}
	return out
}
