package service

import (
	"context"

	"github.com/longkey1/lome/internal/lome"
	"github.com/longkey1/lome/internal/lome/chat"
)

// Backend binds a Service to one signed-in user. It satisfies chat.Backend
// and chat.Identity for the in-process client.
type Backend struct {
	svc  *Service
	user *lome.User
}

var (
	_ chat.Backend  = (*Backend)(nil)
	_ chat.Identity = (*Backend)(nil)
)

// As returns a Backend acting for user. A nil user is signed out.
func (s *Service) As(user *lome.User) *Backend {
	return &Backend{svc: s, user: user}
}

func (b *Backend) userID() string {
	if b.user == nil {
		return ""
	}
	return b.user.ID
}

// CurrentUser returns the bound user.
func (b *Backend) CurrentUser(ctx context.Context) (*lome.User, error) {
	return b.user, nil
}

func (b *Backend) CreateConversation(ctx context.Context, title, model string) (*lome.Conversation, error) {
	return b.svc.CreateConversation(ctx, b.userID(), title, model)
}

func (b *Backend) ListConversations(ctx context.Context) ([]lome.Conversation, error) {
	return b.svc.ListConversations(ctx, b.userID())
}

func (b *Backend) FindConversation(ctx context.Context, prefix string) (*lome.Conversation, error) {
	return b.svc.FindConversation(ctx, b.userID(), prefix)
}

func (b *Backend) UpdateConversation(ctx context.Context, id string, update ConversationUpdate) (*lome.Conversation, error) {
	return b.svc.UpdateConversation(ctx, b.userID(), id, update)
}

func (b *Backend) DeleteConversation(ctx context.Context, id string) error {
	return b.svc.DeleteConversation(ctx, b.userID(), id)
}

func (b *Backend) Messages(ctx context.Context, conversationID string) ([]lome.Message, error) {
	return b.svc.Messages(ctx, b.userID(), conversationID)
}

func (b *Backend) SendMessage(ctx context.Context, conversationID string, msg lome.NewMessage) (*lome.Message, error) {
	return b.svc.SendMessage(ctx, b.userID(), conversationID, msg)
}

func (b *Backend) StreamReply(ctx context.Context, conversationID, model string, fn chat.ChunkFunc) (*lome.Message, error) {
	return b.svc.StreamReply(ctx, b.userID(), conversationID, model, fn)
}

func (b *Backend) CreateProject(ctx context.Context, name, description string) (*lome.Project, error) {
	return b.svc.CreateProject(ctx, b.userID(), name, description)
}

func (b *Backend) ListProjects(ctx context.Context) ([]lome.Project, error) {
	return b.svc.ListProjects(ctx, b.userID())
}

func (b *Backend) FindProject(ctx context.Context, prefix string) (*lome.Project, error) {
	return b.svc.FindProject(ctx, b.userID(), prefix)
}

func (b *Backend) UpdateProject(ctx context.Context, id string, update ProjectUpdate) (*lome.Project, error) {
	return b.svc.UpdateProject(ctx, b.userID(), id, update)
}

func (b *Backend) DeleteProject(ctx context.Context, id string) error {
	return b.svc.DeleteProject(ctx, b.userID(), id)
}
