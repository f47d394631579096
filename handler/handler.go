package handler

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rag-agent/internal/domain"
	"rag-agent/internal/repository"
	"rag-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// Answerer produces the event sequence for one question.
type Answerer interface {
	Answer(ctx context.Context, question string, conv *domain.Conversation) iter.Seq[usecase.Event]
}

type FeedbackStore interface {
	Append(ctx context.Context, fb domain.Feedback) (domain.Feedback, error)
	List(ctx context.Context) ([]domain.Feedback, error)
}

type TokenCounter interface {
	Count(text string) int
}

// Handler serves the chat and feedback endpoints.
type Handler struct {
	answers  Answerer
	sessions repository.SessionStore
	feedback FeedbackStore

	tokens         TokenCounter
	logger         *zap.Logger
	questionLimit  int
	allowedOrigins []string
	requestTimeout time.Duration
	secureCookies  bool
	newID          func() string
}

type Option func(*Handler)

// WithQuestionLimit caps the questions per session. Zero disables the cap.
func WithQuestionLimit(n int) Option {
	return func(h *Handler) {
		if n >= 0 {
			h.questionLimit = n
		}
	}
}

func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		if len(origins) > 0 {
			h.allowedOrigins = origins
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithTokenCounter(c TokenCounter) Option {
	return func(h *Handler) {
		h.tokens = c
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.requestTimeout = d
		}
	}
}

// WithSecureCookies marks the session cookie Secure.
func WithSecureCookies(secure bool) Option {
	return func(h *Handler) {
		h.secureCookies = secure
	}
}

func NewHandler(answers Answerer, sessions repository.SessionStore, feedback FeedbackStore, opts ...Option) (*Handler, error) {
	if answers == nil {
		return nil, errors.New("handler: answerer must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("handler: session store must not be nil")
	}
	if feedback == nil {
		return nil, errors.New("handler: feedback store must not be nil")
	}
	h := &Handler{
		answers:        answers,
		sessions:       sessions,
		feedback:       feedback,
		logger:         zap.NewNop(),
		allowedOrigins: []string{"*"},
		requestTimeout: 2 * time.Minute,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Router returns the HTTP routes with middleware applied.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(h.correlationID)
	r.Use(h.requestLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", correlationHeader, sessionHeader},
		ExposedHeaders:   []string{correlationHeader, sessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.health)
	r.Get("/", h.startSession)
	r.Post("/get_answer", h.getAnswer)
	r.Post("/store_feedback", h.storeFeedback)
	r.Get("/view_feedback", h.viewFeedback)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "the requested resource was not found")
	})
	return r
}

type ctxKey int

const correlationKey ctxKey = iota

func (h *Handler) correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationHeader)
		if id == "" {
			id = h.newID()
		}
		w.Header().Set(correlationHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), correlationKey, id)))
	})
}

func correlationFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}

func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("correlation_id", correlationFrom(r.Context())))
	})
}

// log returns the handler logger tagged with the request correlation id.
func (h *Handler) log(r *http.Request) *zap.Logger {
	return h.logger.With(zap.String("correlation_id", correlationFrom(r.Context())))
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
