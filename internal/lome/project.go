package lome

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ProjectNameMaxLength is the longest project name accepted, in runes.
const ProjectNameMaxLength = 100

// Project groups work of one user under a name.
type Project struct {
	ID          string    `json:"id"` // UUID v4
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ShortID returns the first 8 characters of the project ID.
func (p *Project) ShortID() string {
	if len(p.ID) >= 8 {
		return p.ID[:8]
	}
	return p.ID
}

// Validate checks that the name is present and not too long.
func (p *Project) Validate() error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if n := utf8.RuneCountInString(name); n > ProjectNameMaxLength {
		return fmt.Errorf("project name is too long (%d > %d characters)", n, ProjectNameMaxLength)
	}
	return nil
}
