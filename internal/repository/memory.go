package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"rag-agent/internal/domain"
)

// MemoryStore keeps sessions in process memory. It honours the same version
// checks as Client and is used for local runs.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	turns    map[string][]TurnRecord
}

var _ SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]domain.Session),
		turns:    make(map[string][]TurnRecord),
	}
}

func (m *MemoryStore) LoadSession(_ context.Context, id string) (domain.Session, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Session{}, errors.New("repository: LoadSession: session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return emptySession(id), nil
	}
	return copySession(s), nil
}

func (m *MemoryStore) ResetSession(_ context.Context, id string) (domain.Session, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Session{}, errors.New("repository: ResetSession: session id is required")
	}
	s := emptySession(id)
	s.LastActivity = time.Now().UTC().Format(time.RFC3339)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s
	delete(m.turns, id)
	return copySession(s), nil
}

func (m *MemoryStore) SaveTurn(_ context.Context, s domain.Session, turn TurnRecord) (domain.Session, error) {
	if strings.TrimSpace(s.ID) == "" {
		return domain.Session{}, errors.New("repository: SaveTurn: session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.ID]; ok && cur.Version != s.Version {
		return domain.Session{}, ErrVersionConflict
	}
	next := copySession(s)
	next.Version = s.Version + 1
	next.LastActivity = time.Now().UTC().Format(time.RFC3339)
	m.sessions[s.ID] = next
	m.turns[s.ID] = append(m.turns[s.ID], turn)
	return copySession(next), nil
}

// Turns returns the audit records of a session in commit order.
func (m *MemoryStore) Turns(id string) []TurnRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TurnRecord(nil), m.turns[id]...)
}

func copySession(s domain.Session) domain.Session {
	s.Conversation.History = s.Conversation.History.Clone()
	return s
}
