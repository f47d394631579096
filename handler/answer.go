package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"rag-agent/internal/domain"
	"rag-agent/internal/repository"
	"rag-agent/internal/usecase"
)

const limitMessage = "You have reached the chat limit of this session. Please refresh the page to start a new session."

type answerRequest struct {
	Question string `json:"question" validate:"required"`
}

type partialPayload struct {
	PartialAnswer string `json:"partial_answer"`
}

type completePayload struct {
	Complete      bool           `json:"complete"`
	ChatHistory   domain.History `json:"chat_history"`
	QuestionCount int            `json:"question_count"`
}

type errorPayload struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sseWriter writes server-sent events, one JSON document per event.
type sseWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

func (s *sseWriter) send(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("handler: encode event: %w", err)
	}
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", raw); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func (h *Handler) getAnswer(w http.ResponseWriter, r *http.Request) {
	log := h.log(r)

	var req answerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, string(usecase.ErrorInvalidInput), err.Error())
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		respondError(w, http.StatusBadRequest, string(usecase.ErrorInvalidInput), "question is required")
		return
	}

	id, ok := sessionID(r)
	if !ok {
		id = h.newID()
	}
	h.setSession(w, id)

	sess, err := h.sessions.LoadSession(r.Context(), id)
	if err != nil {
		log.Error("failed to load session", zap.String("session_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, string(usecase.ErrorInternal), "failed to load session")
		return
	}
	if h.questionLimit > 0 && sess.Conversation.QuestionCount >= h.questionLimit {
		respondJSON(w, http.StatusOK, map[string]string{"answer": limitMessage})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	sse := newSSEWriter(w)
	conv := sess.Conversation
	for ev := range h.answers.Answer(ctx, question, &conv) {
		switch ev.Kind {
		case usecase.EventPartial:
			if err := sse.send(partialPayload{PartialAnswer: ev.PartialAnswer}); err != nil {
				log.Info("client went away during answer stream", zap.Error(err))
				return
			}
		case usecase.EventError:
			code, reason := string(usecase.ErrorInternal), "unknown_error"
			if ev.Err != nil {
				code, reason = string(ev.Err.Code), ev.Err.Reason
			}
			log.Warn("answer failed", zap.String("code", code), zap.String("reason", reason))
			_ = sse.send(errorPayload{Error: true, Code: code, Message: reason})
			return
		case usecase.EventComplete:
			sess.Conversation = conv
			if _, err := h.sessions.SaveTurn(ctx, sess, h.turnRecord(question, conv)); err != nil {
				code := string(usecase.ErrorInternal)
				if errors.Is(err, repository.ErrVersionConflict) {
					code = "SESSION_CONFLICT"
				}
				log.Error("failed to save turn", zap.String("session_id", id), zap.Error(err))
				_ = sse.send(errorPayload{Error: true, Code: code, Message: "failed to save conversation"})
				return
			}
			_ = sse.send(completePayload{
				Complete:      true,
				ChatHistory:   ev.ChatHistory,
				QuestionCount: ev.QuestionCount,
			})
		}
	}
}

func (h *Handler) turnRecord(question string, conv domain.Conversation) repository.TurnRecord {
	rec := repository.TurnRecord{Question: question}
	if n := len(conv.History); n > 0 {
		rec.Answer = conv.History[n-1].Answer
	}
	if h.tokens != nil {
		rec.QuestionTokens = h.tokens.Count(rec.Question)
		rec.AnswerTokens = h.tokens.Count(rec.Answer)
	}
	return rec
}
