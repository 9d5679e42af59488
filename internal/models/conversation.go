package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxHistoryMessages bounds the chat window carried in a context and
// forwarded to the extractor.
const MaxHistoryMessages = 10

// ChatRole identifies the author of a chat message
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one message of the recent conversation window
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ConversationContext is the per-user dialogue state of one search session
type ConversationContext struct {
	SessionID             uuid.UUID     `json:"session_id"`
	UserID                string        `json:"user_id"`
	Confirmed             Criteria      `json:"confirmed"`
	Rejected              Rejections    `json:"rejected"`
	CurrentParameters     Criteria      `json:"current_parameters"`
	MessageCount          int           `json:"message_count"`
	LastInteraction       time.Time     `json:"last_interaction"`
	LastUserIntent        string        `json:"last_user_intent,omitempty"`
	LastQuestionAskedByAI string        `json:"last_question_asked_by_ai,omitempty"`
	PendingClarification  []Field       `json:"pending_clarification,omitempty"`
	ShownItemIDs          []int64       `json:"shown_item_ids,omitempty"`
	TopicContext          TopicFlags    `json:"topic_context"`
	ModelUsed             string        `json:"model_used,omitempty"`
	History               []ChatMessage `json:"history,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`

	// Version is the persistence version the context was loaded at. It is
	// stored alongside the payload, not inside it.
	Version int64 `json:"-"`
}

// NewConversationContext starts an empty session for userID.
func NewConversationContext(userID, modelUsed string, now time.Time) *ConversationContext {
	return &ConversationContext{
		SessionID:       uuid.New(),
		UserID:          userID,
		ModelUsed:       modelUsed,
		CreatedAt:       now,
		LastInteraction: now,
	}
}

// IsExpired reports whether the session has been idle longer than idle.
func (c *ConversationContext) IsExpired(now time.Time, idle time.Duration) bool {
	if c.LastInteraction.IsZero() {
		return false
	}
	return now.Sub(c.LastInteraction) > idle
}

// HasShown reports whether id was already surfaced in this session.
func (c *ConversationContext) HasShown(id int64) bool {
	for _, shown := range c.ShownItemIDs {
		if shown == id {
			return true
		}
	}
	return false
}

// MarkShown appends ids not seen before and returns only those new ids.
func (c *ConversationContext) MarkShown(ids []int64) []int64 {
	var fresh []int64
	for _, id := range ids {
		if c.HasShown(id) {
			continue
		}
		c.ShownItemIDs = append(c.ShownItemIDs, id)
		fresh = append(fresh, id)
	}
	return fresh
}

// AppendHistory records a message, dropping the oldest beyond the window.
func (c *ConversationContext) AppendHistory(role ChatRole, content string) {
	if content == "" {
		return
	}
	c.History = append(c.History, ChatMessage{Role: role, Content: content})
	if over := len(c.History) - MaxHistoryMessages; over > 0 {
		c.History = append([]ChatMessage(nil), c.History[over:]...)
	}
}

// Clone returns a deep copy.
func (c *ConversationContext) Clone() *ConversationContext {
	if c == nil {
		return nil
	}
	out := *c
	out.Confirmed = c.Confirmed.Clone()
	out.Rejected = c.Rejected.Clone()
	out.CurrentParameters = c.CurrentParameters.Clone()
	out.PendingClarification = cloneSlice(c.PendingClarification)
	out.ShownItemIDs = cloneSlice(c.ShownItemIDs)
	out.History = cloneSlice(c.History)
	return &out
}
