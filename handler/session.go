package handler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rag-agent/internal/domain"
)

const (
	sessionCookie = "session_id"
	sessionHeader = "X-Session-Id"
)

type sessionResponse struct {
	SessionID     string         `json:"session_id"`
	ChatHistory   domain.History `json:"chat_history"`
	QuestionCount int            `json:"question_count"`
}

// sessionID returns the caller's session id from the cookie or, for
// non-browser clients, the session header. Ids that are not UUIDs are ignored.
func sessionID(r *http.Request) (string, bool) {
	candidates := []string{r.Header.Get(sessionHeader)}
	if c, err := r.Cookie(sessionCookie); err == nil {
		candidates = append([]string{c.Value}, candidates...)
	}
	for _, id := range candidates {
		id = strings.TrimSpace(id)
		if _, err := uuid.Parse(id); err == nil {
			return id, true
		}
	}
	return "", false
}

func (h *Handler) setSession(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(sessionHeader, id)
}

// startSession begins a fresh conversation.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	id := h.newID()
	s, err := h.sessions.ResetSession(r.Context(), id)
	if err != nil {
		h.log(r).Error("failed to reset session", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to start session")
		return
	}
	h.setSession(w, id)
	respondJSON(w, http.StatusOK, sessionResponse{
		SessionID:     id,
		ChatHistory:   s.Conversation.History.Clone(),
		QuestionCount: s.Conversation.QuestionCount,
	})
}
