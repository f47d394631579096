package usecase

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/require"

	"rag-agent/internal/domain"
)

type yielded struct {
	answer string
	err    error
}

func drain(seq iter.Seq2[string, error]) []yielded {
	var out []yielded
	for a, err := range seq {
		out = append(out, yielded{answer: a, err: err})
	}
	return out
}

func TestStreamAnswer_AccumulatesNonEmptyChunks(t *testing.T) {
	chat := &fakeChat{chunks: []string{"", "Hel", "", "lo", " world"}}
	msgs := []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}}

	got := drain(streamAnswer(context.Background(), chat, msgs))
	require.Equal(t, []yielded{{answer: "Hel"}, {answer: "Hello"}, {answer: "Hello world"}}, got)
	require.Equal(t, msgs, chat.captured)
	require.True(t, chat.stream.closed)

	for i := 1; i < len(got); i++ {
		require.True(t, len(got[i].answer) > len(got[i-1].answer))
		require.Equal(t, got[i-1].answer, got[i].answer[:len(got[i-1].answer)])
	}
}

func TestStreamAnswer_ErrorEndsSequence(t *testing.T) {
	boom := errors.New("boom")
	chat := &fakeChat{chunks: []string{"a"}, recvErr: boom}

	got := drain(streamAnswer(context.Background(), chat, nil))
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].answer)
	require.Equal(t, "", got[1].answer)
	require.ErrorIs(t, got[1].err, boom)

	chat = &fakeChat{startErr: boom}
	got = drain(streamAnswer(context.Background(), chat, nil))
	require.Equal(t, []yielded{{err: boom}}, got)
}

func TestStreamAnswer_SingleUse(t *testing.T) {
	chat := &fakeChat{chunks: []string{"x"}}
	seq := streamAnswer(context.Background(), chat, nil)

	require.Len(t, drain(seq), 1)
	got := drain(seq)
	require.Len(t, got, 1)
	require.ErrorIs(t, got[0].err, errAnswerConsumed)
	require.Equal(t, 1, chat.calls)
}

func TestStreamAnswer_BreakClosesStream(t *testing.T) {
	chat := &fakeChat{chunks: []string{"a", "b", "c"}}
	for a := range streamAnswer(context.Background(), chat, nil) {
		require.Equal(t, "a", a)
		break
	}
	require.True(t, chat.stream.closed)
	require.Equal(t, 1, chat.stream.pos)
}

func TestStreamAnswer_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	chat := &fakeChat{chunks: []string{"a"}}

	got := drain(streamAnswer(ctx, chat, nil))
	require.Len(t, got, 1)
	require.ErrorIs(t, got[0].err, context.Canceled)
}

func TestSentinelAnswer(t *testing.T) {
	require.Equal(t, []yielded{{answer: NoContextAnswer}}, drain(sentinelAnswer()))
}
