package domain

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the answer
// pipeline and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatChunk is one incremental unit of a streamed completion. Content may be
// empty (role-only or finish chunks).
type ChatChunk struct {
	Content string
}

// ChatStream is a single in-flight streamed completion. Recv returns io.EOF
// once the model signals completion.
type ChatStream interface {
	Recv() (ChatChunk, error)
	Close() error
}
