package pinecone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"rag-agent/internal/domain"
)

const (
	textField     = "text"
	metadataField = "metadata"
)

// queryAPI is the subset of *pinecone.IndexConnection used here.
type queryAPI interface {
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
}

type connectFunc func(namespace string) (queryAPI, error)

// Client queries one Pinecone index. Index connections are opened lazily, one
// per namespace, and reused.
type Client struct {
	connect connectFunc
	logger  *zap.Logger

	mu    sync.Mutex
	conns map[string]queryAPI
}

// New resolves the host of indexName and returns a Client for it.
func New(ctx context.Context, apiKey, indexName string, logger *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("pinecone: api key must not be empty")
	}
	indexName = strings.TrimSpace(indexName)
	if indexName == "" {
		return nil, errors.New("pinecone: index name must not be empty")
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("pinecone: create client: %w", err)
	}
	idx, err := pc.DescribeIndex(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("pinecone: describe index %q: %w", indexName, err)
	}

	host := idx.Host
	return newClient(func(namespace string) (queryAPI, error) {
		conn, err := pc.Index(pinecone.NewIndexConnParams{Host: host, Namespace: namespace})
		if err != nil {
			return nil, fmt.Errorf("pinecone: connect to %s: %w", host, err)
		}
		return conn, nil
	}, logger), nil
}

func newClient(connect connectFunc, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{connect: connect, logger: logger, conns: make(map[string]queryAPI)}
}

func (c *Client) conn(namespace string) (queryAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[namespace]; ok {
		return conn, nil
	}
	conn, err := c.connect(namespace)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("opened index connection", zap.String("namespace", namespace))
	c.conns[namespace] = conn
	return conn, nil
}

// Query returns the top matches for q.Vector, best first. Every match must
// carry its chunk text; a match without it fails the whole query.
func (c *Client) Query(ctx context.Context, q domain.IndexQuery) ([]domain.Match, error) {
	if len(q.Vector) == 0 {
		return nil, errors.New("pinecone: query vector is empty")
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("pinecone: invalid top_k %d", q.TopK)
	}
	conn, err := c.conn(q.Namespace)
	if err != nil {
		return nil, err
	}

	res, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          q.Vector,
		TopK:            uint32(q.TopK),
		IncludeMetadata: q.IncludeMetadata,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone: query: %w", err)
	}
	if res == nil {
		return nil, nil
	}

	matches := make([]domain.Match, 0, len(res.Matches))
	for _, sv := range res.Matches {
		m, err := toMatch(sv)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func toMatch(sv *pinecone.ScoredVector) (domain.Match, error) {
	if sv == nil || sv.Vector == nil {
		return domain.Match{}, errors.New("pinecone: match without vector")
	}
	id := sv.Vector.Id
	md := sv.Vector.Metadata
	if md == nil {
		return domain.Match{}, fmt.Errorf("pinecone: match %q has no metadata", id)
	}

	text, ok := md.GetFields()[textField].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return domain.Match{}, fmt.Errorf("pinecone: match %q has no text", id)
	}
	citation, err := citationJSON(md.GetFields()[metadataField])
	if err != nil {
		return domain.Match{}, fmt.Errorf("pinecone: match %q: %w", id, err)
	}
	return domain.Match{ID: id, Score: sv.Score, Text: text.StringValue, Metadata: citation}, nil
}

// citationJSON returns the citation metadata as a JSON string. Indexers store
// it either pre-encoded or as a nested object.
func citationJSON(v *structpb.Value) (string, error) {
	switch kind := v.GetKind().(type) {
	case nil:
		return "", nil
	case *structpb.Value_StringValue:
		return kind.StringValue, nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		raw, err := json.Marshal(v.AsInterface())
		if err != nil {
			return "", fmt.Errorf("encode citation metadata: %w", err)
		}
		return string(raw), nil
	}
}

// Close releases every open index connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for ns, conn := range c.conns {
		if closer, ok := conn.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("pinecone: close namespace %q: %w", ns, err))
			}
		}
		delete(c.conns, ns)
	}
	return errors.Join(errs...)
}
