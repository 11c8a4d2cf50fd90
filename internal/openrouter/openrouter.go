// Package openrouter streams chat completions from an OpenAI-compatible
// router such as OpenRouter.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/longkey1/lome/internal/sse"
)

const (
	ProviderName   = "openrouter"
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// Sent as HTTP-Referer and X-Title for attribution
	DefaultReferer = "https://github.com/longkey1/lome"
	DefaultTitle   = "lome"
)

// ErrNotConfigured is returned when no API token is set.
var ErrNotConfigured = errors.New("openrouter token is not configured (set openrouter_token or LOME_OPENROUTER_TOKEN)")

// Config defines the configuration the client reads on each request.
type Config interface {
	GetBaseURL() string
	GetToken() string
}

// Message is a chat message in request order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of a chat completion request.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// StreamChunk is one streamed completion delta.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *errorBody `json:"error,omitempty"`
}

// Content returns the text of the first choice's delta.
func (c *StreamChunk) Content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// Finished reports whether the first choice carries a finish reason.
func (c *StreamChunk) Finished() bool {
	return len(c.Choices) > 0 && c.Choices[0].FinishReason != nil && *c.Choices[0].FinishReason != ""
}

type errorBody struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// APIError is an error reported by the router, either as a non-200 response
// or in-band inside the stream.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("API error: %s", e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed when repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ChunkFunc receives each non-empty content delta.
type ChunkFunc func(chunk string)

// Client talks to the router's HTTP API.
type Client struct {
	config     Config
	httpClient *http.Client
	referer    string
	title      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Streaming relies on context
// cancellation, so the client should not set a total timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAttribution overrides the HTTP-Referer and X-Title headers.
func WithAttribution(referer, title string) Option {
	return func(c *Client) {
		c.referer = referer
		c.title = title
	}
}

// NewClient creates a new client.
func NewClient(config Config, opts ...Option) *Client {
	c := &Client{
		config:     config,
		httpClient: &http.Client{},
		referer:    DefaultReferer,
		title:      DefaultTitle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) baseURL() string {
	base := c.config.GetBaseURL()
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/")
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.config.GetToken())
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}
}

// ChatStream requests a streamed completion and calls fn for every content
// delta in arrival order. It returns the concatenated text once the router
// sends [DONE] or a finish reason; a body that ends before either is reported
// as io.ErrUnexpectedEOF. On error the text received so far is returned
// alongside it.
func (c *Client) ChatStream(ctx context.Context, model string, messages []Message, fn ChunkFunc) (string, error) {
	if c.config.GetToken() == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(ChatRequest{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", parseError(resp)
	}

	var text strings.Builder
	reader := sse.NewReader(resp.Body)
	for {
		if err := ctx.Err(); err != nil {
			return text.String(), err
		}

		ev, err := reader.Next()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return text.String(), ctxErr
			}
			// Without [DONE] or a finish reason the reply is incomplete
			if errors.Is(err, io.EOF) {
				return text.String(), fmt.Errorf("stream ended early: %w", io.ErrUnexpectedEOF)
			}
			return text.String(), fmt.Errorf("error reading stream: %w", err)
		}

		if bytes.Equal(ev.Data, []byte("[DONE]")) {
			return text.String(), nil
		}

		var chunk StreamChunk
		if err := json.Unmarshal(ev.Data, &chunk); err != nil {
			// Skip malformed chunks
			continue
		}
		if chunk.Error != nil {
			return text.String(), &APIError{Message: chunk.Error.Message}
		}

		if content := chunk.Content(); content != "" {
			text.WriteString(content)
			if fn != nil {
				fn(content)
			}
		}
		if chunk.Finished() {
			return text.String(), nil
		}
	}
}

// Model is an entry of the router's model list.
type Model struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	ContextLength int    `json:"context_length"`
	Pricing       struct {
		Prompt     string `json:"prompt"`
		Completion string `json:"completion"`
	} `json:"pricing"`
}

// ListModels returns the models offered by the router, sorted by id.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if c.config.GetToken() != "" {
		c.setHeaders(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var result struct {
		Data []Model `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}

	sort.Slice(result.Data, func(i, j int) bool {
		return result.Data[i].ID < result.Data[j].ID
	})
	return result.Data, nil
}

func parseError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, sse.MaxEventSize))
	if err != nil || len(body) == 0 {
		return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: parsed.Error.Message}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
