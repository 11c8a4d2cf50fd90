// Package store persists conversations, their messages and projects.
//
// Two backends are provided: FileStore keeps one JSON document per
// conversation or project, SQLiteStore keeps everything in a single SQLite database.
// Both assign message ids (ULIDs) and timestamps on append, and return
// messages in creation order.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/longkey1/lome/internal/lome"
)

// Supported drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// ErrProjectNotFound is returned when a project does not exist. It matches
// ErrNotFound under errors.Is.
var ErrProjectNotFound error = &notFoundError{msg: "project not found"}

type notFoundError struct {
	msg string
}

func (e *notFoundError) Error() string {
	return e.msg
}

func (e *notFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Store is the system of record for conversations and messages.
type Store interface {
	// CreateConversation assigns an id and timestamps when they are unset.
	CreateConversation(ctx context.Context, conv *lome.Conversation) error
	GetConversation(ctx context.Context, id string) (*lome.Conversation, error)
	// ListConversations returns conversations of userID, newest first.
	// An empty userID lists every conversation.
	ListConversations(ctx context.Context, userID string) ([]lome.Conversation, error)
	// UpdateConversation stores the title and model of an existing conversation.
	UpdateConversation(ctx context.Context, conv *lome.Conversation) error
	// DeleteConversation removes the conversation and its messages.
	DeleteConversation(ctx context.Context, id string) error
	Messages(ctx context.Context, conversationID string) ([]lome.Message, error)
	AppendMessage(ctx context.Context, conversationID string, msg lome.NewMessage) (*lome.Message, error)

	// CreateProject assigns an id and timestamps when they are unset.
	CreateProject(ctx context.Context, project *lome.Project) error
	GetProject(ctx context.Context, id string) (*lome.Project, error)
	// ListProjects returns projects of userID, most recently updated first.
	ListProjects(ctx context.Context, userID string) ([]lome.Project, error)
	// UpdateProject stores the name and description of an existing project.
	UpdateProject(ctx context.Context, project *lome.Project) error
	DeleteProject(ctx context.Context, id string) error

	Close() error
}

// Open returns the store for driver rooted at dataDir.
func Open(driver, dataDir string) (Store, error) {
	switch driver {
	case "", DriverFile:
		return NewFileStore(dataDir), nil
	case DriverSQLite:
		return NewSQLiteStore(SQLitePath(dataDir))
	default:
		return nil, fmt.Errorf("unsupported store driver: %s (supported: %s, %s)", driver, DriverFile, DriverSQLite)
	}
}

// AmbiguousIDError is returned when multiple conversations match a prefix
type AmbiguousIDError struct {
	Prefix  string
	Matches []lome.Conversation
}

func (e *AmbiguousIDError) Error() string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Ambiguous conversation ID %q. Multiple matches found:", e.Prefix))
	for _, match := range e.Matches {
		lines = append(lines, fmt.Sprintf("- %s (%s, %s)",
			match.ShortID(),
			match.DisplayName(),
			match.CreatedAt.Format("2006-01-02")))
	}
	lines = append(lines, "")
	lines = append(lines, "Please use a longer prefix or run 'lome conversations list'.")
	return strings.Join(lines, "\n")
}

// FindConversation finds a conversation of userID by full id, by an id prefix
// of at least 4 characters, or by "latest" for the most recently updated one.
func FindConversation(ctx context.Context, s Store, userID, prefix string) (*lome.Conversation, error) {
	conversations, err := s.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	return MatchConversation(conversations, prefix)
}

// MatchConversation resolves prefix against conversations sorted newest first.
func MatchConversation(conversations []lome.Conversation, prefix string) (*lome.Conversation, error) {
	if prefix == "latest" {
		if len(conversations) == 0 {
			return nil, fmt.Errorf("no conversations found: %w", ErrNotFound)
		}
		return &conversations[0], nil
	}

	if len(prefix) < 4 {
		return nil, fmt.Errorf("conversation ID prefix must be at least 4 characters (got %d)", len(prefix))
	}

	var matches []lome.Conversation
	for _, conv := range conversations {
		if conv.ID == prefix {
			return &conv, nil
		}
		if strings.HasPrefix(conv.ID, prefix) {
			matches = append(matches, conv)
		}
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("%s: %w", prefix, ErrNotFound)
	}

	if len(matches) > 1 {
		return nil, &AmbiguousIDError{
			Prefix:  prefix,
			Matches: matches,
		}
	}

	return &matches[0], nil
}

func prepareConversation(conv *lome.Conversation) {
	now := time.Now().UTC()
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
}

// FindProject finds a project of userID by full id or by an id prefix of at
// least 4 characters.
func FindProject(ctx context.Context, s Store, userID, prefix string) (*lome.Project, error) {
	projects, err := s.ListProjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	return MatchProject(projects, prefix)
}

// MatchProject resolves prefix against projects.
func MatchProject(projects []lome.Project, prefix string) (*lome.Project, error) {
	if len(prefix) < 4 {
		return nil, fmt.Errorf("project ID prefix must be at least 4 characters (got %d)", len(prefix))
	}

	var matches []lome.Project
	for _, project := range projects {
		if project.ID == prefix {
			return &project, nil
		}
		if strings.HasPrefix(project.ID, prefix) {
			matches = append(matches, project)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%s: %w", prefix, ErrProjectNotFound)
	case 1:
		return &matches[0], nil
	}

	names := make([]string, 0, len(matches))
	for _, match := range matches {
		names = append(names, fmt.Sprintf("%s (%s)", match.ShortID(), match.Name))
	}
	return nil, fmt.Errorf("ambiguous project ID %q, matches: %s", prefix, strings.Join(names, ", "))
}

func prepareProject(project *lome.Project) {
	now := time.Now().UTC()
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	if project.UpdatedAt.IsZero() {
		project.UpdatedAt = project.CreatedAt
	}
}

func newMessage(conversationID string, msg lome.NewMessage) (*lome.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &lome.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		Model:          msg.Model,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
