// Package render formats conversations for the terminal.
package render

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/longkey1/lome/internal/lome"
	"github.com/longkey1/lome/internal/lome/chat"
)

// Markers shown next to entries that are not persisted yet.
const (
	PendingMarker   = "sending…"
	StreamingCursor = "▍"
)

const defaultWidth = 80

var (
	colorPrimary = lipgloss.Color("#7C71F9")
	colorSuccess = lipgloss.Color("#34D399")
	colorError   = lipgloss.Color("#F87171")
	colorWarning = lipgloss.Color("#FBBF24")
	colorDim     = lipgloss.Color("#6B7280")
	colorAccent  = lipgloss.Color("#60A5FA")
)

var (
	styleDim       = lipgloss.NewStyle().Foreground(colorDim)
	styleError     = lipgloss.NewStyle().Foreground(colorError)
	styleUser      = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleAssistant = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	styleSystem    = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
	stylePending   = lipgloss.NewStyle().Faint(true).Italic(true)
	styleCursor    = lipgloss.NewStyle().Foreground(colorPrimary)
	styleHeader    = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
)

// Options configures a Renderer.
type Options struct {
	// Styled enables colors.
	Styled bool
	// Markdown renders persisted assistant messages with glamour.
	Markdown bool
	Width    int
	// Now is the reference time for relative timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Renderer formats chat entries and conversation lists.
type Renderer struct {
	opts     Options
	markdown *glamour.TermRenderer
}

// New creates a Renderer. Markdown is disabled if the glamour renderer cannot
// be created.
func New(opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Renderer{opts: opts}
	if opts.Markdown {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(opts.Width),
		)
		if err == nil {
			r.markdown = md
		}
	}
	return r
}

// ForTerminal creates a Renderer that styles output only when f is a terminal.
func ForTerminal(f *os.File) *Renderer {
	isTTY := term.IsTerminal(int(f.Fd()))
	width := defaultWidth
	if isTTY {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	return New(Options{Styled: isTTY, Markdown: isTTY, Width: width})
}

// Styled reports whether output carries colors.
func (r *Renderer) Styled() bool {
	return r.opts.Styled
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.opts.Styled {
		return text
	}
	return s.Render(text)
}

// When formats t relative to now, e.g. "3 minutes ago".
func (r *Renderer) When(t time.Time) string {
	return humanize.RelTime(t, r.opts.Now(), "ago", "from now")
}

// Header returns the label line of an entry.
func (r *Renderer) Header(e chat.Entry) string {
	var label string
	switch e.Role {
	case lome.RoleUser:
		label = r.style(styleUser, "You")
	case lome.RoleSystem:
		label = r.style(styleSystem, "System")
	default:
		name := "Assistant"
		if e.Model != "" {
			name += " (" + e.Model + ")"
		}
		label = r.style(styleAssistant, name)
	}

	switch e.Kind {
	case chat.KindPending:
		return label + " " + r.style(stylePending, PendingMarker)
	case chat.KindStreaming:
		return label + " " + r.style(styleCursor, StreamingCursor)
	default:
		return label + " " + r.style(styleDim, r.When(e.CreatedAt))
	}
}

// Body returns the content of an entry.
func (r *Renderer) Body(e chat.Entry) string {
	switch e.Kind {
	case chat.KindPending:
		return r.style(stylePending, e.Content)
	case chat.KindStreaming:
		return e.Content + r.style(styleCursor, StreamingCursor)
	}

	if r.markdown != nil && e.Role == lome.RoleAssistant {
		if out, err := r.markdown.Render(e.Content); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	return e.Content
}

// Entry renders one entry as a header line followed by its body.
func (r *Renderer) Entry(e chat.Entry) string {
	return r.Header(e) + "\n" + r.Body(e) + "\n"
}

// Entries renders a reconciled sequence, separating entries with a blank line.
func (r *Renderer) Entries(entries []chat.Entry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, r.Entry(e))
	}
	return strings.Join(parts, "\n")
}

// Conversations renders a conversation list, newest first as given.
func (r *Renderer) Conversations(conversations []lome.Conversation) string {
	if len(conversations) == 0 {
		return r.style(styleDim, "No conversations found.") + "\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.style(styleHeader, fmt.Sprintf("%-8s  %-40s  %-14s  %s", "ID", "TITLE", "UPDATED", "MODEL")))
	for _, conv := range conversations {
		title := conv.Title
		if title == "" {
			title = "(untitled)"
		}
		title = truncate(title, 40)
		fmt.Fprintf(&b, "%-8s  %-40s  %-14s  %s\n",
			conv.ShortID(),
			title,
			r.When(conv.UpdatedAt),
			conv.Model)
	}
	return b.String()
}

// Conversation renders a conversation heading with its metadata.
func (r *Renderer) Conversation(conv *lome.Conversation, messageCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.style(styleHeader, conv.DisplayName()))
	fmt.Fprintf(&b, "%s\n", r.style(styleDim, fmt.Sprintf("ID: %s", conv.ID)))
	if conv.Model != "" {
		fmt.Fprintf(&b, "%s\n", r.style(styleDim, fmt.Sprintf("Model: %s", conv.Model)))
	}
	fmt.Fprintf(&b, "%s\n", r.style(styleDim, fmt.Sprintf("Created: %s (%s)",
		conv.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.When(conv.CreatedAt))))
	fmt.Fprintf(&b, "%s\n", r.style(styleDim, fmt.Sprintf("Messages: %s", humanize.Comma(int64(messageCount)))))
	return b.String()
}

// Projects renders a project table.
func (r *Renderer) Projects(projects []lome.Project) string {
	if len(projects) == 0 {
		return r.style(styleDim, "No projects found.") + "\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.style(styleHeader, fmt.Sprintf("%-8s  %-30s  %-14s  %s", "ID", "NAME", "UPDATED", "DESCRIPTION")))
	for _, project := range projects {
		fmt.Fprintf(&b, "%-8s  %-30s  %-14s  %s\n",
			project.ShortID(),
			truncate(project.Name, 30),
			r.When(project.UpdatedAt),
			truncate(project.Description, 40))
	}
	return b.String()
}

// Project renders a project heading with its metadata.
func (r *Renderer) Project(project *lome.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.style(styleHeader, project.Name))
	fmt.Fprintf(&b, "%s\n", r.style(styleDim, fmt.Sprintf("ID: %s", project.ID)))
	if project.Description != "" {
		fmt.Fprintf(&b, "%s\n", project.Description)
	}
	fmt.Fprintf(&b, "%s\n", r.style(styleDim, fmt.Sprintf("Created: %s (%s)",
		project.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.When(project.CreatedAt))))
	return b.String()
}

// Error formats an error with optional hints on the following lines.
func (r *Renderer) Error(msg string, hints ...string) string {
	out := r.style(styleError, msg)
	for _, h := range hints {
		out += "\n  " + r.style(styleDim, h)
	}
	return out
}

// Dim formats secondary text.
func (r *Renderer) Dim(text string) string {
	return r.style(styleDim, text)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
