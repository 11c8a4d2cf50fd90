package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/longkey1/lome/internal/lome"
	"github.com/longkey1/lome/internal/lome/chat"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func plain() *Renderer {
	return New(Options{Now: func() time.Time { return now }})
}

func TestEntries(t *testing.T) {
	entries := []chat.Entry{
		{Kind: chat.KindPersisted, Role: lome.RoleUser, Content: "Hi", CreatedAt: now.Add(-3 * time.Minute)},
		{Kind: chat.KindPersisted, Role: lome.RoleAssistant, Model: "openai/gpt-4-turbo", Content: "Hello!", CreatedAt: now.Add(-3 * time.Minute)},
		{Kind: chat.KindPending, Role: lome.RoleUser, Content: "How are you?"},
		{Kind: chat.KindStreaming, Role: lome.RoleAssistant, Content: "I am"},
	}

	want := strings.Join([]string{
		"You 3 minutes ago\nHi\n",
		"Assistant (openai/gpt-4-turbo) 3 minutes ago\nHello!\n",
		"You sending…\nHow are you?\n",
		"Assistant ▍\nI am▍\n",
	}, "\n")

	assert.Equal(t, want, plain().Entries(entries))
}

func TestEntriesEmpty(t *testing.T) {
	assert.Equal(t, "", plain().Entries(nil))
}

func TestConversations(t *testing.T) {
	r := plain()
	assert.Equal(t, "No conversations found.\n", r.Conversations(nil))

	out := r.Conversations([]lome.Conversation{
		{ID: "0123456789abcdef", Title: "Go questions", Model: "openai/gpt-4-turbo", UpdatedAt: now.Add(-2 * time.Hour)},
		{ID: "fedcba9876543210", UpdatedAt: now.Add(-48 * time.Hour)},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "01234567")
	assert.Contains(t, lines[1], "Go questions")
	assert.Contains(t, lines[1], "2 hours ago")
	assert.Contains(t, lines[2], "(untitled)")
	assert.Contains(t, lines[2], "2 days ago")
}

func TestConversation(t *testing.T) {
	out := plain().Conversation(&lome.Conversation{ID: "0123456789abcdef", CreatedAt: now.Add(-time.Hour)}, 1234)
	assert.Contains(t, out, "01234567\n")
	assert.Contains(t, out, "ID: 0123456789abcdef")
	assert.Contains(t, out, "1 hour ago")
	assert.Contains(t, out, "Messages: 1,234")
	assert.NotContains(t, out, "Model:")
}

func TestProjects(t *testing.T) {
	r := plain()
	assert.Equal(t, "No projects found.\n", r.Projects(nil))

	out := r.Projects([]lome.Project{
		{ID: "0123456789abcdef", Name: "Research", Description: "papers", UpdatedAt: now.Add(-2 * time.Hour)},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "01234567")
	assert.Contains(t, lines[1], "Research")
	assert.Contains(t, lines[1], "papers")
	assert.Contains(t, lines[1], "2 hours ago")
}

func TestProject(t *testing.T) {
	out := plain().Project(&lome.Project{ID: "0123456789abcdef", Name: "Research", CreatedAt: now.Add(-time.Hour)})
	assert.Contains(t, out, "Research\n")
	assert.Contains(t, out, "ID: 0123456789abcdef")
	assert.Contains(t, out, "1 hour ago")
}

func TestErrorHints(t *testing.T) {
	assert.Equal(t, "boom\n  try again", plain().Error("boom", "try again"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
