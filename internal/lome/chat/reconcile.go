package chat

import (
	"time"

	"github.com/longkey1/lome/internal/lome"
)

// Kind distinguishes where a rendered entry comes from.
type Kind string

const (
	KindPersisted Kind = "persisted" // Confirmed by the backend
	KindPending   Kind = "pending"   // Shown before confirmation
	KindStreaming Kind = "streaming" // Assistant reply still arriving, never persisted
)

// Entry is one row of the sequence the UI renders.
type Entry struct {
	Kind           Kind
	ID             string // Empty for the streaming entry
	ConversationID string
	Role           lome.Role
	Content        string
	Model          string
	CreatedAt      time.Time // Zero for the streaming entry
}

type reconcileOptions struct {
	contentMatch bool
	window       time.Duration
}

// ReconcileOption adjusts how Reconcile treats pending messages.
type ReconcileOption func(*reconcileOptions)

// WithContentMatch hides a pending message when a persisted user message with the
// same content exists that was created no earlier than window before the pending
// one. Each persisted message hides at most one pending message. This closes the
// gap where the confirmed copy (with its server id) is fetched before the pending
// copy is removed.
func WithContentMatch(window time.Duration) ReconcileOption {
	return func(o *reconcileOptions) {
		o.contentMatch = true
		o.window = window
	}
}

// Reconcile merges persisted messages, pending messages and the streaming content
// of one conversation into a single ordered sequence: persisted messages in the
// order given, then pending messages not yet persisted in ledger order, then one
// streaming entry when stream is non-nil. Reconcile does not sort and has no side
// effects, so equal inputs always produce equal output.
func Reconcile(conversationID string, persisted []lome.Message, pending []PendingMessage, stream *string, opts ...ReconcileOption) []Entry {
	var o reconcileOptions
	for _, opt := range opts {
		opt(&o)
	}

	out := make([]Entry, 0, len(persisted)+len(pending)+1)

	persistedIDs := make(map[string]struct{}, len(persisted))
	for _, msg := range persisted {
		persistedIDs[msg.ID] = struct{}{}
		out = append(out, Entry{
			Kind:           KindPersisted,
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			Role:           msg.Role,
			Content:        msg.Content,
			Model:          msg.Model,
			CreatedAt:      msg.CreatedAt,
		})
	}

	var claimed []bool
	if o.contentMatch {
		claimed = make([]bool, len(persisted))
	}

	for _, p := range pending {
		if _, ok := persistedIDs[p.ID]; ok {
			continue
		}
		if o.contentMatch && claimContentMatch(persisted, claimed, p, o.window) {
			continue
		}
		out = append(out, Entry{
			Kind:           KindPending,
			ID:             p.ID,
			ConversationID: p.ConversationID,
			Role:           lome.RoleUser,
			Content:        p.Content,
			CreatedAt:      p.CreatedAt,
		})
	}

	if stream != nil {
		out = append(out, Entry{
			Kind:           KindStreaming,
			ConversationID: conversationID,
			Role:           lome.RoleAssistant,
			Content:        *stream,
		})
	}

	return out
}

func claimContentMatch(persisted []lome.Message, claimed []bool, p PendingMessage, window time.Duration) bool {
	earliest := p.CreatedAt.Add(-window)
	for i, msg := range persisted {
		if claimed[i] || msg.Role != lome.RoleUser || msg.Content != p.Content {
			continue
		}
		if msg.CreatedAt.Before(earliest) {
			continue
		}
		claimed[i] = true
		return true
	}
	return false
}
