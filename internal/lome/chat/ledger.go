package chat

import (
	"time"

	"github.com/google/uuid"
)

// PendingMessage is a user message shown before the backend has confirmed it.
// It is never mutated after creation.
type PendingMessage struct {
	ID             string    `json:"id"` // UUID v4, disjoint from server ULIDs
	ConversationID string    `json:"conversation_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Ledger holds pending messages per conversation, in insertion order.
// It lives in memory only and is not safe for concurrent use: the Controller
// is its only writer. The zero value is ready to use.
type Ledger struct {
	entries map[string][]PendingMessage
	now     func() time.Time
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string][]PendingMessage)}
}

// Add appends a pending message to the conversation and returns its generated id.
// Content is stored as given; callers validate it first.
func (l *Ledger) Add(conversationID, content string) string {
	if l.entries == nil {
		l.entries = make(map[string][]PendingMessage)
	}
	now := time.Now
	if l.now != nil {
		now = l.now
	}

	msg := PendingMessage{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Content:        content,
		CreatedAt:      now(),
	}
	l.entries[conversationID] = append(l.entries[conversationID], msg)
	return msg.ID
}

// Remove drops the entry with the given id. Unknown conversations and ids are ignored.
// The conversation key stays in place even when its list becomes empty; only
// Clear deletes it.
func (l *Ledger) Remove(conversationID, id string) {
	existing, ok := l.entries[conversationID]
	if !ok {
		return
	}

	kept := make([]PendingMessage, 0, len(existing))
	for _, msg := range existing {
		if msg.ID != id {
			kept = append(kept, msg)
		}
	}
	l.entries[conversationID] = kept
}

// Clear deletes the conversation's key from the ledger.
func (l *Ledger) Clear(conversationID string) {
	delete(l.entries, conversationID)
}

// Has reports whether the ledger has a key for the conversation.
func (l *Ledger) Has(conversationID string) bool {
	_, ok := l.entries[conversationID]
	return ok
}

// Pending returns a copy of the conversation's pending messages in insertion order.
func (l *Ledger) Pending(conversationID string) []PendingMessage {
	existing := l.entries[conversationID]
	if len(existing) == 0 {
		return nil
	}
	out := make([]PendingMessage, len(existing))
	copy(out, existing)
	return out
}
