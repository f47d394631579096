package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"rag-agent/internal/domain"
)

const (
	skState      = "STATE#"
	skPrefixTurn = "TURN#"
	ttlDuration  = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client stores session state in a single DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

var _ SessionStore = (*Client)(nil)

func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

func sessionPK(id string) string {
	return "SESSION#" + id
}

func turnSK(ts time.Time) string {
	return skPrefixTurn + ts.UTC().Format(time.RFC3339Nano)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

func (c *Client) LoadSession(ctx context.Context, id string) (domain.Session, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Session{}, errors.New("repository: LoadSession: session id is required")
	}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(id)},
			"SK": &types.AttributeValueMemberS{Value: skState},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: LoadSession get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return emptySession(id), nil
	}
	s, err := itemToSession(id, out.Item)
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: LoadSession decode: %w", err)
	}
	return s, nil
}

// ResetSession overwrites the session with an empty conversation.
func (c *Client) ResetSession(ctx context.Context, id string) (domain.Session, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Session{}, errors.New("repository: ResetSession: session id is required")
	}
	s := emptySession(id)
	s.LastActivity = c.now().UTC().Format(time.RFC3339)
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      c.stateItem(s),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: ResetSession: %w", err)
	}
	return s, nil
}

// SaveTurn writes the turn audit item and the new state in one transaction.
func (c *Client) SaveTurn(ctx context.Context, s domain.Session, turn TurnRecord) (domain.Session, error) {
	if strings.TrimSpace(s.ID) == "" {
		return domain.Session{}, errors.New("repository: SaveTurn: session id is required")
	}
	now := c.now()
	next := s
	next.Conversation.History = s.Conversation.History.Clone()
	next.Version = s.Version + 1
	next.LastActivity = now.UTC().Format(time.RFC3339)

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                c.turnItem(s.ID, now, turn),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                c.stateItem(next),
					ConditionExpression: aws.String("attribute_not_exists(PK) OR #version = :expected"),
					ExpressionAttributeNames: map[string]string{
						"#version": "version",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(s.Version, 10)},
					},
				},
			},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return domain.Session{}, ErrVersionConflict
		}
		return domain.Session{}, fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return next, nil
}

func isConditionFailure(err error) bool {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, r := range canceled.CancellationReasons {
			if aws.ToString(r.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
		return false
	}
	var failed *types.ConditionalCheckFailedException
	return errors.As(err, &failed)
}

func emptySession(id string) domain.Session {
	return domain.Session{ID: id, Conversation: domain.Conversation{History: domain.History{}}}
}

func (c *Client) stateItem(s domain.Session) map[string]types.AttributeValue {
	turns := make([]types.AttributeValue, 0, len(s.Conversation.History))
	for _, t := range s.Conversation.History {
		turns = append(turns, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"question": &types.AttributeValueMemberS{Value: t.Question},
			"answer":   &types.AttributeValueMemberS{Value: t.Answer},
		}})
	}
	return map[string]types.AttributeValue{
		"PK":            &types.AttributeValueMemberS{Value: sessionPK(s.ID)},
		"SK":            &types.AttributeValueMemberS{Value: skState},
		"sessionId":     &types.AttributeValueMemberS{Value: s.ID},
		"history":       &types.AttributeValueMemberL{Value: turns},
		"questionCount": &types.AttributeValueMemberN{Value: strconv.Itoa(s.Conversation.QuestionCount)},
		"version":       &types.AttributeValueMemberN{Value: strconv.FormatInt(s.Version, 10)},
		"lastActivity":  &types.AttributeValueMemberS{Value: s.LastActivity},
		"ttl":           &types.AttributeValueMemberN{Value: strconv.FormatInt(c.ttlValue(), 10)},
	}
}

func (c *Client) turnItem(id string, ts time.Time, turn TurnRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: sessionPK(id)},
		"SK":             &types.AttributeValueMemberS{Value: turnSK(ts)},
		"sessionId":      &types.AttributeValueMemberS{Value: id},
		"question":       &types.AttributeValueMemberS{Value: turn.Question},
		"answer":         &types.AttributeValueMemberS{Value: turn.Answer},
		"questionTokens": &types.AttributeValueMemberN{Value: strconv.Itoa(turn.QuestionTokens)},
		"answerTokens":   &types.AttributeValueMemberN{Value: strconv.Itoa(turn.AnswerTokens)},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(c.ttlValue(), 10)},
	}
}

func itemToSession(id string, item map[string]types.AttributeValue) (domain.Session, error) {
	count, err := intAttr(item, "questionCount")
	if err != nil {
		return domain.Session{}, err
	}
	version, err := intAttr(item, "version")
	if err != nil {
		return domain.Session{}, err
	}
	lastActivity, _ := strAttr(item, "lastActivity") // allow empty

	history := domain.History{}
	if v, ok := item["history"]; ok {
		list, ok := v.(*types.AttributeValueMemberL)
		if !ok {
			return domain.Session{}, errors.New(`repository: attribute "history" is not a list`)
		}
		for i, entry := range list.Value {
			m, ok := entry.(*types.AttributeValueMemberM)
			if !ok {
				return domain.Session{}, fmt.Errorf("repository: history entry %d is not a map", i)
			}
			q, err := strAttr(m.Value, "question")
			if err != nil {
				return domain.Session{}, err
			}
			a, err := strAttr(m.Value, "answer")
			if err != nil {
				return domain.Session{}, err
			}
			history = append(history, domain.ChatTurn{Question: q, Answer: a})
		}
	}

	return domain.Session{
		ID:           id,
		Conversation: domain.Conversation{History: history, QuestionCount: count},
		Version:      int64(version),
		LastActivity: lastActivity,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
