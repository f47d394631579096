package repository

import (
	"context"
	"errors"

	"rag-agent/internal/domain"
)

// ErrVersionConflict is returned by SaveTurn when the session changed since
// it was loaded.
var ErrVersionConflict = errors.New("repository: session version conflict")

// TurnRecord is the audit entry written next to each committed turn.
type TurnRecord struct {
	Question       string
	Answer         string
	QuestionTokens int
	AnswerTokens   int
}

// SessionStore persists conversation state per browser session.
type SessionStore interface {
	// LoadSession returns the stored session, or an empty one at version 0.
	LoadSession(ctx context.Context, id string) (domain.Session, error)
	ResetSession(ctx context.Context, id string) (domain.Session, error)
	// SaveTurn stores s.Conversation if the stored version still equals
	// s.Version and returns the session with its new version.
	SaveTurn(ctx context.Context, s domain.Session, turn TurnRecord) (domain.Session, error)
}
