// Package chat reconciles locally composed messages and streamed assistant text
// with the messages the backend has confirmed.
//
// A Controller owns a Ledger of pending messages and an Accumulator for the
// reply being streamed, for as long as a conversation view is open. It is the
// only component that mutates them or talks to the backend; readers call
// Snapshot or Messages to get the sequence to render.
package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/longkey1/lome/internal/lome"
)

// ChunkFunc receives streamed text in the order the transport produced it.
type ChunkFunc func(chunk string)

// Fetcher returns the persisted messages of a conversation in server order.
type Fetcher interface {
	Messages(ctx context.Context, conversationID string) ([]lome.Message, error)
}

// Sender persists a message and returns the confirmed record.
type Sender interface {
	SendMessage(ctx context.Context, conversationID string, msg lome.NewMessage) (*lome.Message, error)
}

// Streamer generates an assistant reply for a conversation, delivering text
// chunks to fn as they arrive, and returns the persisted reply on completion.
// Cancelling ctx aborts the stream.
type Streamer interface {
	StreamReply(ctx context.Context, conversationID, model string, fn ChunkFunc) (*lome.Message, error)
}

// Backend is everything the Controller needs from the backend.
type Backend interface {
	Fetcher
	Sender
	Streamer
}

// Identity reports the signed-in user, or nil when there is none.
type Identity interface {
	CurrentUser(ctx context.Context) (*lome.User, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithIdentity makes Send refuse to run when no user is signed in.
func WithIdentity(identity Identity) Option {
	return func(c *Controller) {
		c.identity = identity
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOnChange registers fn to be called after every state change. fn runs
// without the Controller's lock held and may call Snapshot.
func WithOnChange(fn func()) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// WithDedupeWindow enables content matching in reconciliation. A zero or
// negative window leaves matching by id only.
func WithDedupeWindow(window time.Duration) Option {
	return func(c *Controller) {
		if window > 0 {
			c.reconcileOpts = append(c.reconcileOpts, WithContentMatch(window))
		}
	}
}

// Controller orchestrates sending messages and streaming replies.
type Controller struct {
	backend  Backend
	identity Identity
	logger   *slog.Logger
	onChange func()

	reconcileOpts []ReconcileOption

	mu                 sync.Mutex
	ledger             *Ledger
	stream             *Accumulator
	streamConversation string
	generation         uint64
	cancel             context.CancelFunc
}

// NewController creates a Controller over the given backend.
func NewController(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		ledger:  NewLedger(),
		stream:  &Accumulator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CanSend reports whether content would be accepted by Send.
func (c *Controller) CanSend(content string) bool {
	return strings.TrimSpace(content) != ""
}

// Send persists a user message. The trimmed content is shown as pending until
// the backend answers; the pending copy is removed on success and on failure.
// Failures are returned as *SendError and the content is not kept anywhere.
func (c *Controller) Send(ctx context.Context, conversationID, content string) (*lome.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	if c.identity != nil {
		user, err := c.identity.CurrentUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving session: %w", err)
		}
		if user == nil {
			return nil, ErrSignedOut
		}
	}

	c.mu.Lock()
	pendingID := c.ledger.Add(conversationID, content)
	c.mu.Unlock()
	c.changed()

	msg, err := c.backend.SendMessage(ctx, conversationID, lome.NewMessage{
		Role:    lome.RoleUser,
		Content: content,
	})

	c.mu.Lock()
	c.ledger.Remove(conversationID, pendingID)
	c.mu.Unlock()
	c.changed()

	if err != nil {
		c.logger.Warn("send failed", "conversation_id", conversationID, "pending_id", pendingID, "error", err)
		return nil, &SendError{ConversationID: conversationID, Err: err}
	}

	c.logger.Debug("message sent", "conversation_id", conversationID, "message_id", msg.ID)
	return msg, nil
}

// Respond streams an assistant reply for the conversation. Any stream already
// running is superseded. The accumulated text is visible through Snapshot while
// the stream runs and is cleared when it ends, whatever the outcome.
//
// Respond returns ErrStopped when Stop was called or a newer stream started,
// and *StreamError when the transport failed.
func (c *Controller) Respond(ctx context.Context, conversationID, model string) (*lome.Message, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	gen := c.generation
	c.cancel = cancel
	c.streamConversation = conversationID
	c.stream.Set("")
	c.mu.Unlock()
	c.changed()

	c.logger.Debug("stream started", "conversation_id", conversationID, "model", model, "generation", gen)

	msg, err := c.backend.StreamReply(streamCtx, conversationID, model, func(chunk string) {
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return
		}
		c.stream.Append(chunk)
		c.mu.Unlock()
		c.changed()
	})

	c.mu.Lock()
	current := c.generation == gen
	var partial int
	if current {
		content, _ := c.stream.Content()
		partial = len(content)
		c.finishStreamLocked()
	}
	c.mu.Unlock()
	c.changed()

	if err != nil {
		if !current {
			c.logger.Debug("stream stopped", "conversation_id", conversationID, "generation", gen)
			return nil, ErrStopped
		}
		c.logger.Warn("stream failed", "conversation_id", conversationID, "partial_bytes", partial, "error", err)
		return nil, &StreamError{ConversationID: conversationID, Partial: partial, Err: err}
	}

	c.logger.Debug("stream completed", "conversation_id", conversationID, "generation", gen)
	return msg, nil
}

// Stop cancels the stream in flight and clears the accumulated text. Chunks
// that arrive afterwards are discarded. Calling Stop with no stream is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.cancel == nil && !c.stream.Active() {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	c.finishStreamLocked()
	c.mu.Unlock()

	c.logger.Debug("stop requested")
	c.changed()
}

func (c *Controller) finishStreamLocked() {
	c.stream.Clear()
	c.streamConversation = ""
	c.cancel = nil
}

// Streaming reports whether a reply is being streamed.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.Active()
}

// StreamingContent returns the text received so far and whether a stream is active.
func (c *Controller) StreamingContent() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.Content()
}

// Pending returns the conversation's pending messages.
func (c *Controller) Pending(conversationID string) []PendingMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Pending(conversationID)
}

// HasPending reports whether the ledger holds a key for the conversation.
func (c *Controller) HasPending(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Has(conversationID)
}

// Discard forgets the conversation's pending messages, for example when the
// view navigates away from it.
func (c *Controller) Discard(conversationID string) {
	c.mu.Lock()
	c.ledger.Clear(conversationID)
	c.mu.Unlock()
	c.changed()
}

// Messages fetches the persisted messages and returns the reconciled sequence.
// Pending messages whose id is among the persisted ones are dropped from the ledger.
func (c *Controller) Messages(ctx context.Context, conversationID string) ([]Entry, error) {
	persisted, err := c.backend.Messages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	persistedIDs := make(map[string]struct{}, len(persisted))
	for _, msg := range persisted {
		persistedIDs[msg.ID] = struct{}{}
	}

	c.mu.Lock()
	for _, p := range c.ledger.Pending(conversationID) {
		if _, ok := persistedIDs[p.ID]; ok {
			c.ledger.Remove(conversationID, p.ID)
		}
	}
	entries := c.snapshotLocked(conversationID, persisted)
	c.mu.Unlock()

	return entries, nil
}

// Snapshot reconciles the given persisted messages with the current local state.
func (c *Controller) Snapshot(conversationID string, persisted []lome.Message) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(conversationID, persisted)
}

func (c *Controller) snapshotLocked(conversationID string, persisted []lome.Message) []Entry {
	var stream *string
	if content, ok := c.stream.Content(); ok && c.streamConversation == conversationID {
		stream = &content
	}
	return Reconcile(conversationID, persisted, c.ledger.Pending(conversationID), stream, c.reconcileOpts...)
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
