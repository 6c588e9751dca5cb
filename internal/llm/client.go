// Package llm provides the completion client the reasoning loop talks to.
package llm

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is an ordered conversation. Messages are only ever appended.
type Transcript []Message

// Append returns t with a new message of the given role added at the end.
func (t Transcript) Append(role Role, content string) Transcript {
	return append(t, Message{Role: role, Content: content})
}

// Clone returns a copy that shares no backing array with t.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// FileContent is an auxiliary file attached to a query.
type FileContent struct {
	Path    string
	Content string
}

// Options controls a single completion request.
type Options struct {
	Model string
	// MaxTokens caps the completion length. Zero means no cap.
	MaxTokens int
}

// Client is the interface the orchestrator uses for model calls.
type Client interface {
	ListModels(ctx context.Context) ([]string, error)
	Complete(ctx context.Context, messages Transcript, opts Options) (string, error)
}
