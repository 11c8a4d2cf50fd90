// Package api is the HTTP client for a remote lome server. Client satisfies
// chat.Backend and chat.Identity so the chat controller can drive a remote
// conversation the same way it drives an in-process one.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/longkey1/lome/internal/lome"
	"github.com/longkey1/lome/internal/lome/chat"
	"github.com/longkey1/lome/internal/lome/service"
	"github.com/longkey1/lome/internal/lome/store"
	"github.com/longkey1/lome/internal/server"
	"github.com/longkey1/lome/internal/sse"
)

// ErrUnauthorized is returned when the server rejects the session token.
var ErrUnauthorized = errors.New("not signed in (run 'lome token' and set session_token)")

// Error is a non-2xx response from the server. It unwraps to store.ErrNotFound
// for 404, service.ErrInvalid for 400 and ErrUnauthorized for 401.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server error (status %d): %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return store.ErrNotFound
	case http.StatusBadRequest:
		return service.ErrInvalid
	case http.StatusUnauthorized:
		return ErrUnauthorized
	}
	return nil
}

// Client talks to a lome server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var (
	_ chat.Backend  = (*Client)(nil)
	_ chat.Identity = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Streams rely on context cancellation,
// so the client should not set a total timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a client for the server at baseURL authenticating with token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, sse.MaxEventSize))
	var envelope struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		message = envelope.Error
	}
	if message == "" {
		message = resp.Status
	}
	return &Error{StatusCode: resp.StatusCode, Message: message}
}

// do sends a JSON request and decodes the JSON response into out when out is not nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}

func conversationPath(id string, rest ...string) string {
	return "/api/conversations/" + url.PathEscape(id) + strings.Join(rest, "")
}

// CurrentUser returns the session's user, or nil when the server reports no session.
func (c *Client) CurrentUser(ctx context.Context) (*lome.User, error) {
	if c.token == "" {
		return nil, nil
	}
	var session server.SessionResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &session); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, nil
		}
		return nil, err
	}
	return session.User, nil
}

// DevSession asks a server running with dev personas for a session token.
func (c *Client) DevSession(ctx context.Context, email string) (*server.SessionResponse, error) {
	var session server.SessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/dev/session", map[string]string{"email": email}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) CreateConversation(ctx context.Context, title, model string) (*lome.Conversation, error) {
	var conv lome.Conversation
	req := server.CreateConversationRequest{Title: title, Model: model}
	if err := c.do(ctx, http.MethodPost, "/api/conversations", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) ListConversations(ctx context.Context) ([]lome.Conversation, error) {
	var conversations []lome.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

func (c *Client) GetConversation(ctx context.Context, id string) (*lome.Conversation, error) {
	var conv lome.Conversation
	if err := c.do(ctx, http.MethodGet, conversationPath(id), nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindConversation resolves an id, id prefix or "latest" among the user's conversations.
func (c *Client) FindConversation(ctx context.Context, prefix string) (*lome.Conversation, error) {
	conversations, err := c.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	return store.MatchConversation(conversations, prefix)
}

func (c *Client) UpdateConversation(ctx context.Context, id string, update service.ConversationUpdate) (*lome.Conversation, error) {
	var conv lome.Conversation
	if err := c.do(ctx, http.MethodPatch, conversationPath(id), update, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, conversationPath(id), nil, nil)
}

func (c *Client) Messages(ctx context.Context, conversationID string) ([]lome.Message, error) {
	var messages []lome.Message
	if err := c.do(ctx, http.MethodGet, conversationPath(conversationID, "/messages"), nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID string, msg lome.NewMessage) (*lome.Message, error) {
	var stored lome.Message
	if err := c.do(ctx, http.MethodPost, conversationPath(conversationID, "/messages"), msg, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func projectPath(id string) string {
	return "/api/projects/" + url.PathEscape(id)
}

func (c *Client) CreateProject(ctx context.Context, name, description string) (*lome.Project, error) {
	var project lome.Project
	req := server.CreateProjectRequest{Name: name, Description: description}
	if err := c.do(ctx, http.MethodPost, "/api/projects", req, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]lome.Project, error) {
	var projects []lome.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*lome.Project, error) {
	var project lome.Project
	if err := c.do(ctx, http.MethodGet, projectPath(id), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// FindProject resolves an id or id prefix among the user's projects.
func (c *Client) FindProject(ctx context.Context, prefix string) (*lome.Project, error) {
	projects, err := c.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	return store.MatchProject(projects, prefix)
}

func (c *Client) UpdateProject(ctx context.Context, id string, update service.ProjectUpdate) (*lome.Project, error) {
	var project lome.Project
	if err := c.do(ctx, http.MethodPatch, projectPath(id), update, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, projectPath(id), nil, nil)
}

// StreamReply requests a reply and delivers each chunk event to fn in arrival
// order. It returns the persisted reply carried by the done event.
func (c *Client) StreamReply(ctx context.Context, conversationID, model string, fn chat.ChunkFunc) (*lome.Message, error) {
	req, err := c.newRequest(ctx, http.MethodPost, conversationPath(conversationID, "/stream"), server.StreamRequest{Model: model})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	reader := sse.NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("stream ended without a reply: %w", io.ErrUnexpectedEOF)
			}
			return nil, fmt.Errorf("error reading stream: %w", err)
		}

		switch ev.Name {
		case server.EventChunk:
			var chunk server.ChunkEvent
			if err := json.Unmarshal(ev.Data, &chunk); err != nil {
				return nil, fmt.Errorf("error parsing chunk: %w", err)
			}
			if fn != nil && chunk.Content != "" {
				fn(chunk.Content)
			}
		case server.EventDone:
			var reply lome.Message
			if err := json.Unmarshal(ev.Data, &reply); err != nil {
				return nil, fmt.Errorf("error parsing reply: %w", err)
			}
			return &reply, nil
		case server.EventError:
			var envelope struct {
				Error string `json:"error"`
			}
			_ = json.Unmarshal(ev.Data, &envelope)
			return nil, fmt.Errorf("stream failed: %s", envelope.Error)
		}
	}
}
