package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/longkey1/lome/internal/lome"
	"github.com/longkey1/lome/internal/lome/api"
	"github.com/longkey1/lome/internal/lome/auth"
	"github.com/longkey1/lome/internal/lome/chat"
	"github.com/longkey1/lome/internal/lome/config"
	"github.com/longkey1/lome/internal/lome/service"
	"github.com/longkey1/lome/internal/lome/store"
	"github.com/longkey1/lome/internal/openrouter"
)

// conversationBackend is what the client commands need, whether the
// conversations live on a remote server or in the local store
type conversationBackend interface {
	chat.Backend
	chat.Identity
	CreateConversation(ctx context.Context, title, model string) (*lome.Conversation, error)
	ListConversations(ctx context.Context) ([]lome.Conversation, error)
	FindConversation(ctx context.Context, prefix string) (*lome.Conversation, error)
	UpdateConversation(ctx context.Context, id string, update service.ConversationUpdate) (*lome.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	CreateProject(ctx context.Context, name, description string) (*lome.Project, error)
	ListProjects(ctx context.Context) ([]lome.Project, error)
	FindProject(ctx context.Context, prefix string) (*lome.Project, error)
	UpdateProject(ctx context.Context, id string, update service.ProjectUpdate) (*lome.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

var (
	_ conversationBackend = (*api.Client)(nil)
	_ conversationBackend = (*service.Backend)(nil)
)

// openStore opens the configured conversation store
func openStore(cfg *config.Config) (store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.Open(cfg.StoreDriver, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

// newService wires the store and the OpenRouter transport
func newService(cfg *config.Config, st store.Store, logger *slog.Logger, opts ...service.Option) *service.Service {
	transport := openrouter.NewClient(cfg)
	opts = append([]service.Option{
		service.WithLogger(logger),
		service.WithDefaultModel(cfg.Model),
	}, opts...)
	return service.New(st, transport, opts...)
}

// newBackend returns the remote API client when server_url is set and an
// in-process backend acting as local_user otherwise. The returned function
// releases the backend's resources.
func newBackend(cfg *config.Config, logger *slog.Logger) (conversationBackend, func(), error) {
	if cfg.Remote() {
		logger.Debug("using remote backend", "server_url", cfg.ServerURL)
		return api.NewClient(cfg.ServerURL, cfg.SessionToken), func() {}, nil
	}

	user, err := auth.Persona(cfg.LocalUser)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid local_user: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("using local backend", "data_dir", cfg.DataDir, "store_driver", cfg.StoreDriver, "user", user.Email)

	closeFn := func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing store", "error", err)
		}
	}
	return newService(cfg, st, logger).As(user), closeFn, nil
}

// requireUser fails with a hint when the backend has no signed-in user
func requireUser(ctx context.Context, backend conversationBackend) (*lome.User, error) {
	user, err := backend.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving session: %w", err)
	}
	if user == nil {
		return nil, api.ErrUnauthorized
	}
	return user, nil
}
