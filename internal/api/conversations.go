package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.quotes.CreateConversation(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"conversation_id": conv.ID,
		"status":          conv.Status,
		"created_at":      conv.CreatedAt,
	})
}

func (s *Server) closeConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	hard := r.URL.Query().Get("hard_delete") == "true"

	if err := s.quotes.CloseConversation(r.Context(), id, hard); err != nil {
		s.writeServiceError(w, err)
		return
	}

	status := "cancelled"
	if hard {
		status = "deleted"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"status":          status,
	})
}
