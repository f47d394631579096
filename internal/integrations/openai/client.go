package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	go_openai "github.com/sashabaranov/go-openai"

	"rag-agent/internal/domain"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultChatModel      = "gpt-4o-mini"
	defaultEmbeddingModel = string(go_openai.SmallEmbedding3)
	defaultTemperature    = 0.3
)

type TokenGetter interface {
	GetToken(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Err
}

// Client embeds text and streams chat completions against an
// OpenAI-compatible API.
type Client struct {
	tokens      TokenGetter
	tokenName   string
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	chatModel   string
	embedModel  string
	dimensions  int
	temperature float32

	mu  sync.Mutex
	api *go_openai.Client
}

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithChatModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.chatModel = m
		}
	}
}

func WithEmbeddingModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.embedModel = m
		}
	}
}

// WithEmbeddingDimensions truncates embeddings to n dimensions. Zero keeps the
// model default.
func WithEmbeddingDimensions(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.dimensions = n
		}
	}
}

func WithTemperature(t float32) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// NewClient creates a Client whose API key is read through tokens under
// tokenName on first use and reused once it resolves. With
// WithAPIKey the getter is not consulted and may be nil.
func NewClient(tokens TokenGetter, tokenName string, opts ...Option) (*Client, error) {
	c := &Client{
		tokens:      tokens,
		tokenName:   strings.TrimSpace(tokenName),
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		chatModel:   defaultChatModel,
		embedModel:  defaultEmbeddingModel,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		if c.tokens == nil {
			return nil, errors.New("openai: token getter must not be nil")
		}
		if c.tokenName == "" {
			return nil, errors.New("openai: token name must not be empty")
		}
	}
	return c, nil
}

// apiBaseURL returns base with a trailing /v1, the form go-openai expects.
func apiBaseURL(base string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

// client builds the SDK client on first successful key resolution. A failed
// lookup is not cached, so the next call tries again.
func (c *Client) client(ctx context.Context) (*go_openai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}

	key := c.apiKey
	if key == "" {
		var err error
		key, err = c.tokens.GetToken(ctx, c.tokenName)
		if err != nil {
			return nil, fmt.Errorf("openai: resolve api key: %w", err)
		}
	}
	cfg := go_openai.DefaultConfig(key)
	cfg.BaseURL = apiBaseURL(c.baseURL)
	if c.httpClient != nil {
		cfg.HTTPClient = c.httpClient
	}
	c.api = go_openai.NewClientWithConfig(cfg)
	return c.api, nil
}

// Embed returns the embedding vector of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	api, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	res, err := api.CreateEmbeddings(ctx, go_openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      go_openai.EmbeddingModel(c.embedModel),
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, mapError("embeddings", err)
	}
	if len(res.Data) == 0 {
		return nil, errors.New("openai: embeddings: no data in response")
	}
	return res.Data[0].Embedding, nil
}

// StreamChat starts a streamed chat completion.
func (c *Client) StreamChat(ctx context.Context, messages []domain.ChatMessage) (domain.ChatStream, error) {
	api, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	req := go_openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    toChatMessages(messages),
		Temperature: c.temperature,
		Stream:      true,
	}
	stream, err := api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, mapError("chat", err)
	}
	return &chatStream{stream: stream}, nil
}

func toChatMessages(messages []domain.ChatMessage) []go_openai.ChatCompletionMessage {
	out := make([]go_openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, go_openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

type chatStream struct {
	stream *go_openai.ChatCompletionStream
}

func (s *chatStream) Recv() (domain.ChatChunk, error) {
	res, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return domain.ChatChunk{}, io.EOF
	}
	if err != nil {
		return domain.ChatChunk{}, mapError("chat", err)
	}
	if len(res.Choices) == 0 {
		return domain.ChatChunk{}, nil
	}
	return domain.ChatChunk{Content: res.Choices[0].Delta.Content}, nil
}

func (s *chatStream) Close() error {
	s.stream.Close()
	return nil
}

// mapError exposes the upstream status code of API and request errors.
func mapError(op string, err error) error {
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		return &HTTPStatusError{Op: op, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		return &HTTPStatusError{Op: op, StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	return fmt.Errorf("openai: %s: %w", op, err)
}
