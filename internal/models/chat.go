package models

import (
	"html"
	"strings"
	"time"
)

// Message represents one rendered entry of the chat history. Content always holds markup that is safe to
// insert into the view: user text is escaped, assistant text is the output of a Renderer.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time

	StreamingState StreamingState
}

// Role represents the role of a message participant.
type Role string

// StreamingState describes where an assistant message is in its lifecycle.
type StreamingState string

const (
	// RoleUser represents a message typed, spoken or mirrored on behalf of the user.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the backend persona.
	RoleAssistant Role = "assistant"
	// RoleSystem represents console notices such as connection errors.
	RoleSystem Role = "system"

	StreamingStateLoading   StreamingState = "loading"
	StreamingStateStreaming StreamingState = "streaming"
	StreamingStateEnded     StreamingState = "ended"
)

// Feedback is the reward signal attached to a finalized assistant message. It is bound once, when the
// message is finalized, and never changes afterwards.
type Feedback struct {
	TurnID   string
	Persona  string
	Query    string
	Response string
	Score    int
}

// UserContent escapes raw user input and keeps its line breaks.
func UserContent(text string) string {
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}
