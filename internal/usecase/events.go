package usecase

import "rag-agent/internal/domain"

type EventKind string

const (
	EventPartial  EventKind = "partial"
	EventComplete EventKind = "complete"
	EventError    EventKind = "error"
)

// Event is one element of the answer sequence. Partial events carry the
// cumulative answer, the complete event carries the updated conversation, and
// an error event ends a failed sequence.
type Event struct {
	Kind          EventKind
	PartialAnswer string
	ChatHistory   domain.History
	QuestionCount int
	Err           *Error
}

func partialEvent(answer string) Event {
	return Event{Kind: EventPartial, PartialAnswer: answer}
}

func completeEvent(conv *domain.Conversation) Event {
	return Event{
		Kind:          EventComplete,
		ChatHistory:   conv.History.Clone(),
		QuestionCount: conv.QuestionCount,
	}
}

func errorEvent(err *Error) Event {
	return Event{Kind: EventError, Err: err}
}
