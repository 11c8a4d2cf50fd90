package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longkey1/lome/internal/lome"
)

func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	drivers := []string{DriverFile, DriverSQLite}
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			s, err := Open(driver, t.TempDir())
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			fn(t, s)
		})
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open("postgres", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestCreateAndGetConversation(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		conv := &lome.Conversation{UserID: "user-1", Title: "Hello", Model: "openai/gpt-4-turbo"}
		require.NoError(t, s.CreateConversation(ctx, conv))

		assert.NotEmpty(t, conv.ID)
		assert.False(t, conv.CreatedAt.IsZero())
		assert.Equal(t, conv.CreatedAt, conv.UpdatedAt)

		got, err := s.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, conv.ID, got.ID)
		assert.Equal(t, "user-1", got.UserID)
		assert.Equal(t, "Hello", got.Title)
		assert.Equal(t, "openai/gpt-4-turbo", got.Model)
		assert.True(t, conv.CreatedAt.Equal(got.CreatedAt))
	})
}

func TestGetConversationNotFound(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		_, err := s.GetConversation(context.Background(), "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestListConversationsNewestFirst(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		for i, c := range []struct{ id, user string }{
			{"aaaa-0001", "user-1"},
			{"bbbb-0002", "user-2"},
			{"cccc-0003", "user-1"},
		} {
			at := base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, s.CreateConversation(ctx, &lome.Conversation{
				ID: c.id, UserID: c.user, CreatedAt: at, UpdatedAt: at,
			}))
		}

		all, err := s.ListConversations(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "cccc-0003", all[0].ID)
		assert.Equal(t, "aaaa-0001", all[2].ID)

		mine, err := s.ListConversations(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, "cccc-0003", mine[0].ID)
		assert.Equal(t, "aaaa-0001", mine[1].ID)

		none, err := s.ListConversations(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})
}

func TestAppendMessagesKeepsOrderAndTouchesConversation(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		conv := &lome.Conversation{UserID: "user-1", CreatedAt: created, UpdatedAt: created}
		require.NoError(t, s.CreateConversation(ctx, conv))

		first, err := s.AppendMessage(ctx, conv.ID, lome.NewMessage{Role: lome.RoleUser, Content: "Hi"})
		require.NoError(t, err)
		second, err := s.AppendMessage(ctx, conv.ID, lome.NewMessage{Role: lome.RoleAssistant, Content: "Hello!", Model: "openai/gpt-4-turbo"})
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, conv.ID, first.ConversationID)

		messages, err := s.Messages(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, first.ID, messages[0].ID)
		assert.Equal(t, lome.RoleUser, messages[0].Role)
		assert.Equal(t, second.ID, messages[1].ID)
		assert.Equal(t, "openai/gpt-4-turbo", messages[1].Model)

		got, err := s.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.After(created))
	})
}

func TestAppendMessageErrors(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.AppendMessage(ctx, "missing", lome.NewMessage{Role: lome.RoleUser, Content: "Hi"})
		assert.True(t, errors.Is(err, ErrNotFound))

		conv := &lome.Conversation{UserID: "user-1"}
		require.NoError(t, s.CreateConversation(ctx, conv))

		_, err = s.AppendMessage(ctx, conv.ID, lome.NewMessage{Role: lome.RoleUser, Content: ""})
		assert.Error(t, err)

		_, err = s.AppendMessage(ctx, conv.ID, lome.NewMessage{Role: "robot", Content: "beep"})
		assert.Error(t, err)

		messages, err := s.Messages(ctx, conv.ID)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})
}

func TestUpdateConversation(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		conv := &lome.Conversation{UserID: "user-1", Title: "Old"}
		require.NoError(t, s.CreateConversation(ctx, conv))

		conv.Title = "New"
		conv.Model = "anthropic/claude-3.5-sonnet"
		require.NoError(t, s.UpdateConversation(ctx, conv))

		got, err := s.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "New", got.Title)
		assert.Equal(t, "anthropic/claude-3.5-sonnet", got.Model)

		err = s.UpdateConversation(ctx, &lome.Conversation{ID: "missing"})
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestDeleteConversationRemovesMessages(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		conv := &lome.Conversation{UserID: "user-1"}
		require.NoError(t, s.CreateConversation(ctx, conv))
		_, err := s.AppendMessage(ctx, conv.ID, lome.NewMessage{Role: lome.RoleUser, Content: "Hi"})
		require.NoError(t, err)

		require.NoError(t, s.DeleteConversation(ctx, conv.ID))

		_, err = s.GetConversation(ctx, conv.ID)
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = s.Messages(ctx, conv.ID)
		assert.True(t, errors.Is(err, ErrNotFound))

		err = s.DeleteConversation(ctx, conv.ID)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestFindConversation(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		ids := []string{"abcd1111", "abcd2222", "ef012345"}
		for i, id := range ids {
			at := base.Add(time.Duration(i) * time.Hour)
			require.NoError(t, s.CreateConversation(ctx, &lome.Conversation{
				ID: id, UserID: "user-1", CreatedAt: at, UpdatedAt: at,
			}))
		}

		tests := []struct {
			name    string
			prefix  string
			wantID  string
			wantErr func(error) bool
		}{
			{name: "latest", prefix: "latest", wantID: "ef012345"},
			{name: "exact", prefix: "abcd1111", wantID: "abcd1111"},
			{name: "unique prefix", prefix: "ef01", wantID: "ef012345"},
			{
				name:   "ambiguous prefix",
				prefix: "abcd",
				wantErr: func(err error) bool {
					var ambiguous *AmbiguousIDError
					return errors.As(err, &ambiguous) && len(ambiguous.Matches) == 2
				},
			},
			{
				name:    "not found",
				prefix:  "9999",
				wantErr: func(err error) bool { return errors.Is(err, ErrNotFound) },
			},
			{
				name:    "too short",
				prefix:  "ab",
				wantErr: func(err error) bool { return err != nil && !errors.Is(err, ErrNotFound) },
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				conv, err := FindConversation(ctx, s, "user-1", tt.prefix)
				if tt.wantErr != nil {
					assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, conv.ID)
			})
		}

		_, err := FindConversation(ctx, s, "user-2", "latest")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestAmbiguousIDErrorMessage(t *testing.T) {
	err := &AmbiguousIDError{
		Prefix: "abcd",
		Matches: []lome.Conversation{
			{ID: "abcd1111", Title: "First", CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "abcd2222", CreatedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		},
	}
	msg := err.Error()
	assert.Contains(t, msg, `Ambiguous conversation ID "abcd"`)
	assert.Contains(t, msg, "abcd1111 (First, 2024-05-01)")
	assert.Contains(t, msg, "lome conversations list")
}

func TestFileStoreSkipsCorruptedFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	ctx := context.Background()

	require.NoError(t, s.CreateConversation(ctx, &lome.Conversation{UserID: "user-1"}))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "broken.json"), []byte("{not json"), 0o644))

	conversations, err := s.ListConversations(ctx, "")
	require.NoError(t, err)
	assert.Len(t, conversations, 1)
}

func TestSQLiteInMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	conv := &lome.Conversation{UserID: "user-1"}
	require.NoError(t, s.CreateConversation(context.Background(), conv))
	_, err = s.GetConversation(context.Background(), conv.ID)
	assert.NoError(t, err)
}

func TestProjectLifecycle(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		project := &lome.Project{UserID: "user-1", Name: "Research", Description: "papers"}
		require.NoError(t, s.CreateProject(ctx, project))
		assert.NotEmpty(t, project.ID)
		assert.False(t, project.CreatedAt.IsZero())

		got, err := s.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, "Research", got.Name)
		assert.Equal(t, "papers", got.Description)
		assert.True(t, project.CreatedAt.Equal(got.CreatedAt))

		got.Name = "Reading list"
		got.Description = ""
		require.NoError(t, s.UpdateProject(ctx, got))
		assert.Equal(t, "Reading list", got.Name)
		assert.False(t, got.UpdatedAt.Before(project.UpdatedAt))

		reloaded, err := s.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, "Reading list", reloaded.Name)
		assert.Empty(t, reloaded.Description)

		require.NoError(t, s.DeleteProject(ctx, project.ID))
		_, err = s.GetProject(ctx, project.ID)
		assert.ErrorIs(t, err, ErrProjectNotFound)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteProject(ctx, project.ID), ErrNotFound)
		assert.ErrorIs(t, s.UpdateProject(ctx, &lome.Project{ID: "missing", Name: "x"}), ErrNotFound)
	})
}

func TestListProjectsByUser(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		for i, p := range []struct{ id, user string }{
			{"aaaa-0001", "user-1"},
			{"bbbb-0002", "user-2"},
			{"cccc-0003", "user-1"},
		} {
			at := base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, s.CreateProject(ctx, &lome.Project{
				ID: p.id, UserID: p.user, Name: p.id, CreatedAt: at, UpdatedAt: at,
			}))
		}

		projects, err := s.ListProjects(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, projects, 2)
		assert.Equal(t, "cccc-0003", projects[0].ID)
		assert.Equal(t, "aaaa-0001", projects[1].ID)

		none, err := s.ListProjects(ctx, "user-3")
		require.NoError(t, err)
		assert.Empty(t, none)

		found, err := FindProject(ctx, s, "user-1", "aaaa")
		require.NoError(t, err)
		assert.Equal(t, "aaaa-0001", found.ID)

		_, err = FindProject(ctx, s, "user-1", "bbbb")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = FindProject(ctx, s, "user-1", "aa")
		assert.ErrorContains(t, err, "at least 4 characters")
	})
}

func TestFindProjectAmbiguous(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, id := range []string{"abcd-0001", "abcd-0002"} {
			require.NoError(t, s.CreateProject(ctx, &lome.Project{ID: id, UserID: "user-1", Name: id}))
		}

		_, err := FindProject(ctx, s, "user-1", "abcd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ambiguous project ID")

		found, err := FindProject(ctx, s, "user-1", "abcd-0002")
		require.NoError(t, err)
		assert.Equal(t, "abcd-0002", found.ID)
	})
}
