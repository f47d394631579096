package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"rag-agent/internal/domain"
)

func TestMemoryStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	s, err := m.LoadSession(ctx, "abc")
	require.NoError(t, err)
	require.Zero(t, s.Version)

	s.Conversation.Record(domain.ChatTurn{Question: "q1", Answer: "a1"})
	saved, err := m.SaveTurn(ctx, s, TurnRecord{Question: "q1", Answer: "a1"})
	require.NoError(t, err)
	require.EqualValues(t, 1, saved.Version)

	loaded, err := m.LoadSession(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, saved.Conversation, loaded.Conversation)
	require.EqualValues(t, 1, loaded.Version)

	loaded.Conversation.History[0].Answer = "mutated"
	again, err := m.LoadSession(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "a1", again.Conversation.History[0].Answer)

	require.Equal(t, []TurnRecord{{Question: "q1", Answer: "a1"}}, m.Turns("abc"))
}

func TestMemoryStore_VersionConflict(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	first, err := m.LoadSession(ctx, "abc")
	require.NoError(t, err)
	second, err := m.LoadSession(ctx, "abc")
	require.NoError(t, err)

	_, err = m.SaveTurn(ctx, first, TurnRecord{})
	require.NoError(t, err)
	_, err = m.SaveTurn(ctx, second, TurnRecord{})
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestMemoryStore_Reset(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	s, err := m.LoadSession(ctx, "abc")
	require.NoError(t, err)
	s.Conversation.Record(domain.ChatTurn{Question: "q", Answer: "a"})
	_, err = m.SaveTurn(ctx, s, TurnRecord{})
	require.NoError(t, err)

	reset, err := m.ResetSession(ctx, "abc")
	require.NoError(t, err)
	require.Zero(t, reset.Conversation.QuestionCount)
	require.Empty(t, reset.Conversation.History)
	require.Empty(t, m.Turns("abc"))

	_, err = m.ResetSession(ctx, "")
	require.Error(t, err)
}
