package usecase

import (
	"context"
	"errors"
	"iter"
	"strings"

	"go.uber.org/zap"

	"rag-agent/internal/domain"
)

const defaultTopK = 10

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorIndex interface {
	Query(ctx context.Context, q domain.IndexQuery) ([]domain.Match, error)
}

type ChatModel interface {
	StreamChat(ctx context.Context, messages []domain.ChatMessage) (domain.ChatStream, error)
}

type TokenCounter interface {
	Count(text string) int
}

// AnswerService answers questions from retrieved document passages and
// streams the model output.
type AnswerService struct {
	embedder Embedder
	index    VectorIndex
	chat     ChatModel

	topK        int
	namespace   string
	sourceNames map[string]string
	tokens      TokenCounter
	logger      *zap.Logger
}

type Option func(*AnswerService)

func WithTopK(k int) Option {
	return func(s *AnswerService) {
		if k > 0 {
			s.topK = k
		}
	}
}

func WithNamespace(namespace string) Option {
	return func(s *AnswerService) {
		s.namespace = strings.TrimSpace(namespace)
	}
}

// WithSourceNames maps stored source identifiers to display names.
func WithSourceNames(names map[string]string) Option {
	return func(s *AnswerService) {
		s.sourceNames = names
	}
}

func WithTokenCounter(c TokenCounter) Option {
	return func(s *AnswerService) {
		s.tokens = c
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *AnswerService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewAnswerService(e Embedder, idx VectorIndex, chat ChatModel, opts ...Option) (*AnswerService, error) {
	if e == nil {
		return nil, errors.New("usecase: embedder must not be nil")
	}
	if idx == nil {
		return nil, errors.New("usecase: vector index must not be nil")
	}
	if chat == nil {
		return nil, errors.New("usecase: chat model must not be nil")
	}
	s := &AnswerService{
		embedder: e,
		index:    idx,
		chat:     chat,
		topK:     defaultTopK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Answer returns the event sequence for one question. conv is read for prompt
// history and, only after the answer was streamed to the end, updated with the
// new turn. A consumer that stops early, a cancelled ctx, or any failure
// leaves conv untouched.
func (s *AnswerService) Answer(ctx context.Context, question string, conv *domain.Conversation) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if conv == nil {
			yield(errorEvent(newError(ErrorInvalidInput, "missing_conversation", nil)))
			return
		}
		if strings.TrimSpace(question) == "" {
			yield(errorEvent(newError(ErrorInvalidInput, "empty_question", nil)))
			return
		}

		answers, uerr := s.prepare(ctx, question, conv.History)
		if uerr != nil {
			s.logger.Error("answer preparation failed",
				zap.String("code", string(uerr.Code)),
				zap.String("reason", uerr.Reason),
				zap.Error(uerr.Err))
			yield(errorEvent(uerr))
			return
		}

		final := ""
		for partial, err := range answers {
			if err != nil {
				uerr := upstreamError(ErrorModelStream, "chat", err)
				s.logger.Error("answer stream failed", zap.String("reason", uerr.Reason), zap.Error(err))
				yield(errorEvent(uerr))
				return
			}
			final = partial
			if !yield(partialEvent(partial)) {
				s.logger.Debug("answer stream abandoned before completion")
				return
			}
		}

		conv.Record(domain.ChatTurn{Question: question, Answer: final})
		if s.tokens != nil {
			s.logger.Info("answer completed",
				zap.Int("answer_tokens", s.tokens.Count(final)),
				zap.Int("question_count", conv.QuestionCount))
		}
		yield(completeEvent(conv))
	}
}

// prepare runs retrieval and returns the answer sequence to forward.
func (s *AnswerService) prepare(ctx context.Context, question string, history domain.History) (iter.Seq2[string, error], *Error) {
	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, upstreamError(ErrorEmbedding, "embed", err)
	}
	if len(vector) == 0 {
		return nil, newError(ErrorEmbedding, "empty_embedding", nil)
	}

	matches, err := s.index.Query(ctx, domain.IndexQuery{
		Vector:          vector,
		TopK:            s.topK,
		Namespace:       s.namespace,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, upstreamError(ErrorRetrieval, "index_query", err)
	}

	contextBlock := buildContext(s.collectPassages(matches))
	if strings.TrimSpace(contextBlock) == "" {
		s.logger.Info("no relevant context found", zap.Int("matches", len(matches)))
		return sentinelAnswer(), nil
	}

	messages, err := assembleMessages(history, question, contextBlock)
	if err != nil {
		return nil, newError(ErrorInternal, "prompt_render_error", err)
	}
	if s.tokens != nil {
		s.logger.Debug("prompt assembled",
			zap.Int("messages", len(messages)),
			zap.Int("prompt_tokens", s.countMessages(messages)))
	}
	return streamAnswer(ctx, s.chat, messages), nil
}

// collectPassages decodes matches in rank order, skipping the ones with
// unreadable metadata.
func (s *AnswerService) collectPassages(matches []domain.Match) []domain.Passage {
	passages := make([]domain.Passage, 0, len(matches))
	for _, m := range matches {
		p, err := parsePassage(m, s.sourceNames)
		if err != nil {
			s.logger.Warn("skipping passage with unreadable metadata",
				zap.String("match_id", m.ID),
				zap.Error(err))
			continue
		}
		passages = append(passages, p)
	}
	return passages
}

func (s *AnswerService) countMessages(messages []domain.ChatMessage) int {
	total := 0
	for _, m := range messages {
		total += s.tokens.Count(m.Content)
	}
	return total
}
