package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn entry. Ordering is append order and defines the
// rolling window; messages are never mutated after append.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ConversationContext holds the per-session consultation state. Callers must
// serialize mutation per session; the type itself carries no locking.
type ConversationContext struct {
	SessionID        string    `json:"session_id"`
	History          []Message `json:"history"`
	CurrentTopic     string    `json:"current_topic"`
	RetrievedContext []string  `json:"retrieved_context"`
	LastQuery        string    `json:"last_query"`
}

func NewConversationContext(sessionID string) *ConversationContext {
	return &ConversationContext{SessionID: sessionID}
}

// Append records a message timestamped at call time.
func (c *ConversationContext) Append(role, content string) {
	c.History = append(c.History, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// RecentWindow returns the last n user/assistant pairs (2n messages) as
// "role: content" lines in chronological order. When fewer messages exist the
// full history is returned. Windowing is by pair count, not tokens: long
// messages are never truncated here.
func (c *ConversationContext) RecentWindow(n int) string {
	if n <= 0 || len(c.History) == 0 {
		return ""
	}
	recent := c.History
	if len(recent) > 2*n {
		recent = recent[len(recent)-2*n:]
	}
	var b strings.Builder
	for _, msg := range recent {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return b.String()
}

// LastActivity reports the timestamp of the newest message, empty when the
// history is empty.
func (c *ConversationContext) LastActivity() string {
	if len(c.History) == 0 {
		return ""
	}
	return c.History[len(c.History)-1].Timestamp
}

// SessionInfo is the listing projection of a session.
type SessionInfo struct {
	SessionID    string `json:"session_id"`
	MessageCount int    `json:"message_count"`
	LastActivity string `json:"last_activity,omitempty"`
	CurrentTopic string `json:"current_topic,omitempty"`
}
