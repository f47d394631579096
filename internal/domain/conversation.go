package domain

// MaxHistoryTurns bounds the conversation history kept per session.
const MaxHistoryTurns = 20

// ChatTurn is one completed question/answer exchange.
type ChatTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// History is an ordered sequence of turns, oldest first.
type History []ChatTurn

// Append returns a new history with turn added and the oldest turns evicted
// beyond MaxHistoryTurns. The receiver is never modified.
func (h History) Append(turn ChatTurn) History {
	out := make(History, 0, len(h)+1)
	out = append(out, h...)
	out = append(out, turn)
	if len(out) > MaxHistoryTurns {
		out = out[len(out)-MaxHistoryTurns:]
	}
	return out
}

// Recent returns at most the last n turns, oldest first.
func (h History) Recent(n int) History {
	if n <= 0 {
		return nil
	}
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// Clone returns a copy that does not share backing storage with h.
func (h History) Clone() History {
	if h == nil {
		return History{}
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Conversation is the caller-owned state of one chat. It is read by the answer
// pipeline and updated in place once per fully streamed answer. It is not safe
// for concurrent use; hosts serving one conversation from several requests
// must serialize access.
type Conversation struct {
	History       History `json:"chat_history"`
	QuestionCount int     `json:"question_count"`
}

// Record appends turn to the bounded history and bumps the question counter.
func (c *Conversation) Record(turn ChatTurn) {
	c.History = c.History.Append(turn)
	c.QuestionCount++
}

// Session is a persisted conversation keyed by the browser session id.
type Session struct {
	ID           string
	Conversation Conversation
	Version      int64
	LastActivity string
}
