package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/longkey1/lome/internal/lome"
)

// conversationFile is the on-disk layout of one conversation.
type conversationFile struct {
	lome.Conversation
	Messages []lome.Message `json:"messages"`
}

// FileStore stores each conversation with its messages as a JSON file
// under <dir>/conversations, and each project under <dir>/projects.
type FileStore struct {
	dir        string
	projectDir string
	mu         sync.Mutex
}

// NewFileStore creates a FileStore rooted at dataDir.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{
		dir:        filepath.Join(dataDir, "conversations"),
		projectDir: filepath.Join(dataDir, "projects"),
	}
}

// Dir returns the directory holding the conversation files.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) load(id string) (*conversationFile, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var doc conversationFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse conversation file %s: %w (the file may be corrupted)", id, err)
	}
	if doc.Messages == nil {
		doc.Messages = []lome.Message{}
	}
	return &doc, nil
}

func (s *FileStore) save(doc *conversationFile) error {
	return writeJSON(s.dir, doc.ID, doc, "conversation")
}

// writeJSON stores v as <dir>/<id>.json.
func writeJSON(dir, id string, v any, kind string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", kind, err)
	}

	// Write through a temp file so readers never see a partial document
	tmp, err := os.CreateTemp(dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s file: %w", kind, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s file: %w", kind, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, id+".json")); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s file: %w", kind, err)
	}
	return nil
}

// CreateConversation saves a new conversation without messages.
func (s *FileStore) CreateConversation(ctx context.Context, conv *lome.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepareConversation(conv)
	if _, err := os.Stat(s.path(conv.ID)); err == nil {
		return fmt.Errorf("conversation already exists: %s", conv.ID)
	}
	return s.save(&conversationFile{Conversation: *conv, Messages: []lome.Message{}})
}

// GetConversation loads a conversation by full id.
func (s *FileStore) GetConversation(ctx context.Context, id string) (*lome.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return &doc.Conversation, nil
}

// ListConversations returns conversations sorted by UpdatedAt (newest first).
// Corrupted files are skipped.
func (s *FileStore) ListConversations(ctx context.Context, userID string) ([]lome.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []lome.Conversation{}, nil
		}
		return nil, fmt.Errorf("failed to read conversation directory: %w", err)
	}

	conversations := []lome.Conversation{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		doc, err := s.load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		if userID != "" && doc.UserID != userID {
			continue
		}
		conversations = append(conversations, doc.Conversation)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})

	return conversations, nil
}

// UpdateConversation stores the title and model and bumps UpdatedAt.
func (s *FileStore) UpdateConversation(ctx context.Context, conv *lome.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(conv.ID)
	if err != nil {
		return err
	}
	doc.Title = conv.Title
	doc.Model = conv.Model
	doc.UpdatedAt = time.Now().UTC()
	if err := s.save(doc); err != nil {
		return err
	}
	*conv = doc.Conversation
	return nil
}

// DeleteConversation removes the conversation file.
func (s *FileStore) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.load(id); err != nil {
		return err
	}
	if err := os.Remove(s.path(id)); err != nil {
		return fmt.Errorf("failed to delete conversation file: %w", err)
	}
	return nil
}

// Messages returns the conversation's messages in creation order.
func (s *FileStore) Messages(ctx context.Context, conversationID string) ([]lome.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(conversationID)
	if err != nil {
		return nil, err
	}
	return doc.Messages, nil
}

// AppendMessage validates and appends a message, assigning its id and timestamp.
func (s *FileStore) AppendMessage(ctx context.Context, conversationID string, msg lome.NewMessage) (*lome.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(conversationID)
	if err != nil {
		return nil, err
	}

	stored, err := newMessage(conversationID, msg)
	if err != nil {
		return nil, err
	}
	doc.Messages = append(doc.Messages, *stored)
	doc.UpdatedAt = stored.CreatedAt

	if err := s.save(doc); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *FileStore) loadProject(id string) (*lome.Project, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%q: %w", id, ErrProjectNotFound)
	}

	data, err := os.ReadFile(filepath.Join(s.projectDir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrProjectNotFound)
		}
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	var project lome.Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse project file %s: %w", id, err)
	}
	return &project, nil
}

// CreateProject saves a new project.
func (s *FileStore) CreateProject(ctx context.Context, project *lome.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepareProject(project)
	if _, err := os.Stat(filepath.Join(s.projectDir, project.ID+".json")); err == nil {
		return fmt.Errorf("project already exists: %s", project.ID)
	}
	return writeJSON(s.projectDir, project.ID, project, "project")
}

// GetProject loads a project by full id.
func (s *FileStore) GetProject(ctx context.Context, id string) (*lome.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadProject(id)
}

// ListProjects returns projects of userID sorted by UpdatedAt (newest first).
// Corrupted files are skipped.
func (s *FileStore) ListProjects(ctx context.Context, userID string) ([]lome.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.projectDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []lome.Project{}, nil
		}
		return nil, fmt.Errorf("failed to read project directory: %w", err)
	}

	projects := []lome.Project{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		project, err := s.loadProject(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil || project.UserID != userID {
			continue
		}
		projects = append(projects, *project)
	}

	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].UpdatedAt.After(projects[j].UpdatedAt)
	})
	return projects, nil
}

// UpdateProject stores the name and description and bumps UpdatedAt.
func (s *FileStore) UpdateProject(ctx context.Context, project *lome.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.loadProject(project.ID)
	if err != nil {
		return err
	}
	stored.Name = project.Name
	stored.Description = project.Description
	stored.UpdatedAt = time.Now().UTC()
	if err := writeJSON(s.projectDir, stored.ID, stored, "project"); err != nil {
		return err
	}
	*project = *stored
	return nil
}

// DeleteProject removes the project file.
func (s *FileStore) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.loadProject(id); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.projectDir, id+".json")); err != nil {
		return fmt.Errorf("failed to delete project file: %w", err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
