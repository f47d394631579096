package pinecone

import (
	"context"
	"errors"
	"testing"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"rag-agent/internal/domain"
)

type fakeConn struct {
	res    *pinecone.QueryVectorsResponse
	err    error
	last   *pinecone.QueryByVectorValuesRequest
	closed bool
}

func (f *fakeConn) QueryByVectorValues(_ context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error) {
	f.last = in
	return f.res, f.err
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func scored(t *testing.T, id string, score float32, fields map[string]any) *pinecone.ScoredVector {
	t.Helper()
	md, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return &pinecone.ScoredVector{Vector: &pinecone.Vector{Id: id, Metadata: md}, Score: score}
}

func clientWith(conns map[string]*fakeConn, dialed *[]string) *Client {
	return newClient(func(namespace string) (queryAPI, error) {
		if dialed != nil {
			*dialed = append(*dialed, namespace)
		}
		conn, ok := conns[namespace]
		if !ok {
			return nil, errors.New("unknown namespace")
		}
		return conn, nil
	}, nil)
}

func TestQuery_ConvertsMatches(t *testing.T) {
	conn := &fakeConn{res: &pinecone.QueryVectorsResponse{Matches: []*pinecone.ScoredVector{
		scored(t, "doc-1", 0.91, map[string]any{
			"text":     "CX stands for customer experience.",
			"metadata": `{"source":"guide.pdf","page_numbers":"5-5"}`,
		}),
		scored(t, "doc-2", 0.55, map[string]any{
			"text":     "Nested citation.",
			"metadata": map[string]any{"source": "b.pdf", "page_numbers": "2-3"},
		}),
		scored(t, "doc-3", 0.12, map[string]any{"text": "No citation."}),
	}}}
	c := clientWith(map[string]*fakeConn{"docs": conn}, nil)

	got, err := c.Query(context.Background(), domain.IndexQuery{
		Vector: []float32{0.1, 0.2}, TopK: 10, Namespace: "docs", IncludeMetadata: true,
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, domain.Match{
		ID: "doc-1", Score: 0.91, Text: "CX stands for customer experience.",
		Metadata: `{"source":"guide.pdf","page_numbers":"5-5"}`,
	}, got[0])
	require.JSONEq(t, `{"source":"b.pdf","page_numbers":"2-3"}`, got[1].Metadata)
	require.Equal(t, "", got[2].Metadata)

	require.Equal(t, []float32{0.1, 0.2}, conn.last.Vector)
	require.EqualValues(t, 10, conn.last.TopK)
	require.True(t, conn.last.IncludeMetadata)
}

func TestQuery_MissingTextFails(t *testing.T) {
	conn := &fakeConn{res: &pinecone.QueryVectorsResponse{Matches: []*pinecone.ScoredVector{
		scored(t, "doc-1", 0.9, map[string]any{"metadata": "{}"}),
	}}}
	c := clientWith(map[string]*fakeConn{"": conn}, nil)

	_, err := c.Query(context.Background(), domain.IndexQuery{Vector: []float32{1}, TopK: 1})
	require.ErrorContains(t, err, `"doc-1" has no text`)

	conn.res = &pinecone.QueryVectorsResponse{Matches: []*pinecone.ScoredVector{
		{Vector: &pinecone.Vector{Id: "doc-2"}, Score: 0.5},
	}}
	_, err = c.Query(context.Background(), domain.IndexQuery{Vector: []float32{1}, TopK: 1})
	require.ErrorContains(t, err, "no metadata")
}

func TestQuery_ReusesConnectionPerNamespace(t *testing.T) {
	empty := &pinecone.QueryVectorsResponse{}
	conns := map[string]*fakeConn{"a": {res: empty}, "b": {res: empty}}
	var dialed []string
	c := clientWith(conns, &dialed)

	for _, ns := range []string{"a", "b", "a", "a"} {
		got, err := c.Query(context.Background(), domain.IndexQuery{Vector: []float32{1}, TopK: 3, Namespace: ns})
		require.NoError(t, err)
		require.Empty(t, got)
	}
	require.Equal(t, []string{"a", "b"}, dialed)

	require.NoError(t, c.Close())
	require.True(t, conns["a"].closed)
	require.True(t, conns["b"].closed)
}

func TestQuery_Errors(t *testing.T) {
	conn := &fakeConn{err: errors.New("unavailable")}
	c := clientWith(map[string]*fakeConn{"": conn}, nil)

	_, err := c.Query(context.Background(), domain.IndexQuery{TopK: 3})
	require.ErrorContains(t, err, "vector is empty")

	_, err = c.Query(context.Background(), domain.IndexQuery{Vector: []float32{1}})
	require.ErrorContains(t, err, "top_k")

	_, err = c.Query(context.Background(), domain.IndexQuery{Vector: []float32{1}, TopK: 3})
	require.ErrorContains(t, err, "unavailable")

	_, err = c.Query(context.Background(), domain.IndexQuery{Vector: []float32{1}, TopK: 3, Namespace: "missing"})
	require.ErrorContains(t, err, "unknown namespace")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), " ", "idx", nil)
	require.ErrorContains(t, err, "api key")

	_, err = New(context.Background(), "pc-key", "", nil)
	require.ErrorContains(t, err, "index name")
}
