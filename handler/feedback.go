package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"rag-agent/internal/domain"
)

type feedbackRequest struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
	Feedback string `json:"feedback" validate:"required,oneof=positive negative"`
}

type feedbackResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) storeFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeAndValidate(r, &req); err != nil || strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		respondJSON(w, http.StatusBadRequest, feedbackResponse{Error: "Missing or invalid data"})
		return
	}

	_, err := h.feedback.Append(r.Context(), domain.Feedback{
		Question: req.Question,
		Answer:   req.Answer,
		Feedback: domain.FeedbackKind(req.Feedback),
	})
	if err != nil {
		h.log(r).Error("failed to store feedback", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, feedbackResponse{Error: "failed to store feedback"})
		return
	}
	respondJSON(w, http.StatusOK, feedbackResponse{Success: true})
}

// viewFeedback lists feedback newest first.
func (h *Handler) viewFeedback(w http.ResponseWriter, r *http.Request) {
	records, err := h.feedback.List(r.Context())
	if err != nil {
		h.log(r).Error("failed to list feedback", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read feedback")
		return
	}
	if records == nil {
		records = []domain.Feedback{}
	}
	respondJSON(w, http.StatusOK, records)
}
