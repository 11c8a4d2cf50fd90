// Package service implements conversation operations on top of a store and
// a model transport. It is shared by the HTTP server and the in-process
// backend of the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/longkey1/lome/internal/lome"
	"github.com/longkey1/lome/internal/lome/chat"
	"github.com/longkey1/lome/internal/lome/store"
	"github.com/longkey1/lome/internal/openrouter"
)

// DefaultModel is used when neither the request nor the conversation names a model.
const DefaultModel = "openai/gpt-4-turbo"

var (
	// ErrInvalid marks input validation failures.
	ErrInvalid = errors.New("invalid request")
	// ErrEmptyReply is returned when the model finished without producing text.
	ErrEmptyReply = errors.New("model returned an empty reply")
)

// Transport streams a completion for a message history.
type Transport interface {
	ChatStream(ctx context.Context, model string, messages []openrouter.Message, fn openrouter.ChunkFunc) (string, error)
}

// Hooks observe stream outcomes. Nil fields are skipped.
type Hooks struct {
	MessageSent     func()
	StreamStarted   func()
	StreamCompleted func()
	StreamFailed    func()
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaultModel overrides DefaultModel.
func WithDefaultModel(model string) Option {
	return func(s *Service) {
		if model != "" {
			s.defaultModel = model
		}
	}
}

// WithHooks registers stream observers.
func WithHooks(hooks Hooks) Option {
	return func(s *Service) {
		s.hooks = hooks
	}
}

// Service holds the conversation operations.
type Service struct {
	store        store.Store
	transport    Transport
	logger       *slog.Logger
	defaultModel string
	hooks        Hooks
}

// New creates a Service.
func New(st store.Store, transport Transport, opts ...Option) *Service {
	s := &Service{
		store:        st,
		transport:    transport,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaultModel: DefaultModel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultModel returns the model used when none is given.
func (s *Service) DefaultModel() string {
	return s.defaultModel
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalid, err)
}

func validateModel(model string) error {
	if model == "" {
		return nil
	}
	if _, _, err := lome.ParseModelString(model); err != nil {
		return invalid(err)
	}
	return nil
}

// CreateConversation creates a conversation owned by userID. An empty title is
// filled in from the first user message.
func (s *Service) CreateConversation(ctx context.Context, userID, title, model string) (*lome.Conversation, error) {
	if err := validateModel(model); err != nil {
		return nil, err
	}

	conv := &lome.Conversation{
		UserID: userID,
		Title:  strings.TrimSpace(title),
		Model:  model,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("conversation created", "conversation_id", conv.ID, "user_id", userID)
	return conv, nil
}

// ListConversations returns the user's conversations, newest first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]lome.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

// GetConversation returns a conversation the user owns. Conversations of
// other users are reported as store.ErrNotFound.
func (s *Service) GetConversation(ctx context.Context, userID, id string) (*lome.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	return conv, nil
}

// FindConversation resolves an id, id prefix or "latest" among the user's conversations.
func (s *Service) FindConversation(ctx context.Context, userID, prefix string) (*lome.Conversation, error) {
	return store.FindConversation(ctx, s.store, userID, prefix)
}

// ConversationUpdate lists the fields to change. Nil fields are kept.
type ConversationUpdate struct {
	Title *string `json:"title,omitempty"`
	Model *string `json:"model,omitempty"`
}

// UpdateConversation renames a conversation or changes its model.
func (s *Service) UpdateConversation(ctx context.Context, userID, id string, update ConversationUpdate) (*lome.Conversation, error) {
	conv, err := s.GetConversation(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		conv.Title = strings.TrimSpace(*update.Title)
	}
	if update.Model != nil {
		if err := validateModel(*update.Model); err != nil {
			return nil, err
		}
		conv.Model = *update.Model
	}

	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("updating conversation: %w", err)
	}
	return conv, nil
}

// DeleteConversation deletes a conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, userID, id string) error {
	if _, err := s.GetConversation(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	s.logger.Debug("conversation deleted", "conversation_id", id, "user_id", userID)
	return nil
}

// Messages returns the conversation's messages in creation order.
func (s *Service) Messages(ctx context.Context, userID, conversationID string) ([]lome.Message, error) {
	if _, err := s.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.Messages(ctx, conversationID)
}

// SendMessage validates and persists a message. The first user message of an
// untitled conversation also becomes its title.
func (s *Service) SendMessage(ctx context.Context, userID, conversationID string, msg lome.NewMessage) (*lome.Message, error) {
	conv, err := s.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	msg.Content = strings.TrimSpace(msg.Content)
	if err := msg.Validate(); err != nil {
		return nil, invalid(err)
	}
	if err := validateModel(msg.Model); err != nil {
		return nil, err
	}

	stored, err := s.store.AppendMessage(ctx, conversationID, msg)
	if err != nil {
		return nil, fmt.Errorf("saving message: %w", err)
	}

	if conv.Title == "" && msg.Role == lome.RoleUser {
		conv.Title = lome.TitleFromContent(msg.Content)
		if err := s.store.UpdateConversation(ctx, conv); err != nil {
			s.logger.Warn("failed to set conversation title", "conversation_id", conversationID, "error", err)
		}
	}

	if s.hooks.MessageSent != nil {
		s.hooks.MessageSent()
	}
	s.logger.Debug("message saved", "conversation_id", conversationID, "message_id", stored.ID, "role", stored.Role)
	return stored, nil
}

// CreateProject creates a project owned by userID.
func (s *Service) CreateProject(ctx context.Context, userID, name, description string) (*lome.Project, error) {
	project := &lome.Project{
		UserID:      userID,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
	}
	if err := project.Validate(); err != nil {
		return nil, invalid(err)
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.logger.Debug("project created", "project_id", project.ID, "user_id", userID)
	return project, nil
}

// ListProjects returns the user's projects, most recently updated first.
func (s *Service) ListProjects(ctx context.Context, userID string) ([]lome.Project, error) {
	return s.store.ListProjects(ctx, userID)
}

// GetProject returns a project the user owns. Projects of other users are
// reported as store.ErrProjectNotFound.
func (s *Service) GetProject(ctx context.Context, userID, id string) (*lome.Project, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, fmt.Errorf("%s: %w", id, store.ErrProjectNotFound)
	}
	return project, nil
}

// FindProject resolves an id or id prefix among the user's projects.
func (s *Service) FindProject(ctx context.Context, userID, prefix string) (*lome.Project, error) {
	return store.FindProject(ctx, s.store, userID, prefix)
}

// ProjectUpdate lists the fields to change. Nil fields are kept.
type ProjectUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// UpdateProject renames a project or changes its description.
func (s *Service) UpdateProject(ctx context.Context, userID, id string, update ProjectUpdate) (*lome.Project, error) {
	project, err := s.GetProject(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		project.Name = strings.TrimSpace(*update.Name)
	}
	if update.Description != nil {
		project.Description = strings.TrimSpace(*update.Description)
	}
	if err := project.Validate(); err != nil {
		return nil, invalid(err)
	}

	if err := s.store.UpdateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}
	return project, nil
}

// DeleteProject deletes a project.
func (s *Service) DeleteProject(ctx context.Context, userID, id string) error {
	if _, err := s.GetProject(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	s.logger.Debug("project deleted", "project_id", id, "user_id", userID)
	return nil
}

// ResolveModel picks the requested model, then the conversation's, then the default.
func (s *Service) ResolveModel(conv *lome.Conversation, requested string) string {
	switch {
	case requested != "":
		return requested
	case conv.Model != "":
		return conv.Model
	default:
		return s.defaultModel
	}
}

// StreamReply generates the assistant reply to the conversation history,
// passing each chunk to fn as it arrives. The reply is persisted only when the
// stream completes; on cancellation or transport failure nothing is saved.
func (s *Service) StreamReply(ctx context.Context, userID, conversationID, model string, fn chat.ChunkFunc) (*lome.Message, error) {
	conv, err := s.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	model = s.ResolveModel(conv, model)
	if err := validateModel(model); err != nil {
		return nil, err
	}

	history, err := s.store.Messages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	messages := make([]openrouter.Message, 0, len(history))
	for _, m := range history {
		messages = append(messages, openrouter.Message{Role: string(m.Role), Content: m.Content})
	}

	if s.hooks.StreamStarted != nil {
		s.hooks.StreamStarted()
	}
	s.logger.Debug("stream started", "conversation_id", conversationID, "model", model, "history", len(messages))

	text, err := s.transport.ChatStream(ctx, model, messages, func(chunk string) {
		if fn != nil {
			fn(chunk)
		}
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyReply
	}
	if err != nil {
		if s.hooks.StreamFailed != nil {
			s.hooks.StreamFailed()
		}
		if ctx.Err() != nil {
			s.logger.Debug("stream cancelled", "conversation_id", conversationID, "partial_bytes", len(text))
			return nil, ctx.Err()
		}
		s.logger.Warn("stream failed", "conversation_id", conversationID, "model", model, "partial_bytes", len(text), "error", err)
		return nil, fmt.Errorf("streaming reply: %w", err)
	}

	// The reply is complete; keep it even if the caller went away meanwhile
	stored, err := s.store.AppendMessage(context.WithoutCancel(ctx), conversationID, lome.NewMessage{
		Role:    lome.RoleAssistant,
		Content: text,
		Model:   model,
	})
	if err != nil {
		if s.hooks.StreamFailed != nil {
			s.hooks.StreamFailed()
		}
		return nil, fmt.Errorf("saving reply: %w", err)
	}

	if s.hooks.StreamCompleted != nil {
		s.hooks.StreamCompleted()
	}
	s.logger.Debug("stream completed", "conversation_id", conversationID, "message_id", stored.ID, "bytes", len(text))
	return stored, nil
}
