package lome

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a persisted message as returned by the backend.
type Message struct {
	ID             string    `json:"id"` // Server-assigned ULID
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Model          string    `json:"model,omitempty"` // Model that produced an assistant message
	CreatedAt      time.Time `json:"created_at"`
}

// NewMessage is the payload for persisting a message.
type NewMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// Validate checks the role and that content is not blank.
func (m NewMessage) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid role: %q", m.Role)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("message content cannot be empty")
	}
	return nil
}

// Conversation represents a stored conversation
type Conversation struct {
	ID        string    `json:"id"` // UUID v4
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Model     string    `json:"model,omitempty"` // Default model for replies
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShortID returns the shortened conversation ID (first 8 characters)
func (c *Conversation) ShortID() string {
	if len(c.ID) >= 8 {
		return c.ID[:8]
	}
	return c.ID
}

// DisplayName returns the title, or the short ID when the title is empty.
func (c *Conversation) DisplayName() string {
	if c.Title != "" {
		return c.Title
	}
	return c.ShortID()
}

// User is the identity attached to a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// TitleMaxLength is the number of runes kept when deriving a title.
const TitleMaxLength = 50

// TitleFromContent derives a single-line conversation title from the first message.
func TitleFromContent(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	runes := []rune(title)
	if len(runes) <= TitleMaxLength {
		return title
	}
	return strings.TrimRightFunc(string(runes[:TitleMaxLength]), unicode.IsSpace) + "…"
}
