package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rag-agent/internal/domain"
)

type fakeTokens struct {
	token string
	err   error
	calls int
	name  string
}

func (f *fakeTokens) GetToken(_ context.Context, name string) (string, error) {
	f.calls++
	f.name = name
	return f.token, f.err
}

func TestAPIBaseURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1"},
		{"http://localhost:8080", "http://localhost:8080/v1"},
		{"", defaultBaseURL},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, apiBaseURL(tc.base), "base=%q", tc.base)
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, "/rag-agent/openai-token")
	require.ErrorContains(t, err, "nil")

	_, err = NewClient(&fakeTokens{}, " ")
	require.ErrorContains(t, err, "empty")

	c, err := NewClient(nil, "", WithAPIKey("sk-direct"))
	require.NoError(t, err)
	require.Equal(t, defaultChatModel, c.chatModel)
	require.Equal(t, defaultEmbeddingModel, c.embedModel)
	require.InDelta(t, 0.3, c.temperature, 1e-6)
}

func TestClient_ResolvesKeyOnce(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		writeEmbedding(w, []float32{1})
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "sk-from-ssm"}
	c, err := NewClient(tokens, "/rag-agent/openai-token", WithBaseURL(srv.URL))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.Embed(context.Background(), "q")
		require.NoError(t, err)
	}
	require.Equal(t, 1, tokens.calls)
	require.Equal(t, "/rag-agent/openai-token", tokens.name)
	require.Equal(t, []string{"Bearer sk-from-ssm", "Bearer sk-from-ssm", "Bearer sk-from-ssm"}, auth)
}

// ctxTokens fails while the caller's context is done, like an SSM call
// interrupted by a cancelled request.
type ctxTokens struct {
	calls int
}

func (f *ctxTokens) GetToken(ctx context.Context, _ string) (string, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "sk-late", nil
}

func TestClient_RetriesKeyAfterCancelledLookup(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		writeEmbedding(w, []float32{1})
	}))
	defer srv.Close()

	tokens := &ctxTokens{}
	c, err := NewClient(tokens, "/rag-agent/openai-token", WithBaseURL(srv.URL))
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Embed(cancelled, "q")
	require.ErrorIs(t, err, context.Canceled)

	_, err = c.Embed(context.Background(), "q")
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "q")
	require.NoError(t, err)

	require.Equal(t, 2, tokens.calls)
	require.Equal(t, []string{"Bearer sk-late", "Bearer sk-late"}, auth)
}

func TestClient_TokenError(t *testing.T) {
	c, err := NewClient(&fakeTokens{err: errors.New("ssm unavailable")}, "/rag-agent/openai-token")
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "q")
	require.ErrorContains(t, err, "ssm unavailable")
	_, err = c.StreamChat(context.Background(), nil)
	require.ErrorContains(t, err, "resolve api key")
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	}, opts...)
	c, err := NewClient(&fakeTokens{token: "sk-test"}, "/rag-agent/openai-token", opts...)
	require.NoError(t, err)
	return c
}

func writeEmbedding(w http.ResponseWriter, vec []float32) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"model":  "text-embedding-3-small",
		"data": []map[string]any{
			{"object": "embedding", "index": 0, "embedding": vec},
		},
	})
}

func TestEmbed_HappyPath(t *testing.T) {
	var body map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeEmbedding(w, []float32{0.25, -0.5})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithEmbeddingModel("text-embedding-3-large"), WithEmbeddingDimensions(256))
	vec, err := c.Embed(context.Background(), "What is CX?")
	require.NoError(t, err)
	require.Equal(t, []float32{0.25, -0.5}, vec)

	require.Equal(t, "/v1/embeddings", path)
	require.Equal(t, "text-embedding-3-large", body["model"])
	require.Equal(t, []any{"What is CX?"}, body["input"])
	require.EqualValues(t, 256, body["dimensions"])
}

func TestEmbed_NoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Embed(context.Background(), "q")
	require.ErrorContains(t, err, "no data")
}

func TestEmbed_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Embed(context.Background(), "q")
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
	require.Equal(t, "embeddings", statusErr.Op)
}

func sseChunk(content string) string {
	return fmt.Sprintf(`data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":%q}}]}`+"\n\n", content)
}

func TestStreamChat_HappyPath(t *testing.T) {
	var body map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "text/event-stream")
		var b strings.Builder
		b.WriteString(sseChunk(""))
		b.WriteString(sseChunk("CX"))
		b.WriteString(sseChunk(" is customer experience."))
		b.WriteString("data: [DONE]\n\n")
		_, _ = io.WriteString(w, b.String())
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithChatModel("gpt-4o"))
	stream, err := c.StreamChat(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
		{Role: domain.RoleUser, Content: "What is CX?"},
	})
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	var chunks []string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk.Content)
	}
	require.Equal(t, []string{"", "CX", " is customer experience."}, chunks)

	require.Equal(t, "/v1/chat/completions", path)
	require.Equal(t, "gpt-4o", body["model"])
	require.Equal(t, true, body["stream"])
	require.InDelta(t, 0.3, body["temperature"], 1e-6)
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 3)
	require.Equal(t, map[string]any{"role": "user", "content": "What is CX?"}, msgs[2])
}

func TestStreamChat_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"requests"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).StreamChat(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "q"}})
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	require.Equal(t, "chat", statusErr.Op)
}

func TestMapError(t *testing.T) {
	plain := errors.New("dial tcp: refused")
	err := mapError("chat", plain)
	require.ErrorIs(t, err, plain)
	var statusErr *HTTPStatusError
	require.False(t, errors.As(err, &statusErr))
}
