package usecase

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync/atomic"

	"rag-agent/internal/domain"
)

// NoContextAnswer is the answer given when retrieval produced no usable context.
const NoContextAnswer = "No relevant context found to answer the question."

var errAnswerConsumed = errors.New("usecase: answer stream already consumed")

// streamAnswer drives one streamed completion. Each element is the whole
// answer accumulated so far; chunks without content are not yielded. A model
// failure ends the sequence with a single ("", err) element. The sequence is
// single-use, and stopping early closes the model stream.
func streamAnswer(ctx context.Context, model ChatModel, messages []domain.ChatMessage) iter.Seq2[string, error] {
	var started atomic.Bool
	return func(yield func(string, error) bool) {
		if !started.CompareAndSwap(false, true) {
			yield("", errAnswerConsumed)
			return
		}

		stream, err := model.StreamChat(ctx, messages)
		if err != nil {
			yield("", err)
			return
		}
		defer func() { _ = stream.Close() }()

		var answer strings.Builder
		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if chunk.Content == "" {
				continue
			}
			answer.WriteString(chunk.Content)
			if !yield(answer.String(), nil) {
				return
			}
		}
	}
}

// sentinelAnswer is the single-element answer used when there is no context.
func sentinelAnswer() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield(NoContextAnswer, nil)
	}
}
