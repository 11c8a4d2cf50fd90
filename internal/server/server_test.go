package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longkey1/lome/internal/lome"
	"github.com/longkey1/lome/internal/lome/auth"
	"github.com/longkey1/lome/internal/lome/service"
	"github.com/longkey1/lome/internal/lome/store"
	"github.com/longkey1/lome/internal/openrouter"
	"github.com/longkey1/lome/internal/sse"
)

type fakeTransport struct {
	chunks []string
	err    error
}

func (f *fakeTransport) ChatStream(ctx context.Context, model string, messages []openrouter.Message, fn openrouter.ChunkFunc) (string, error) {
	var text string
	for _, chunk := range f.chunks {
		text += chunk
		fn(chunk)
	}
	return text, f.err
}

type testEnv struct {
	server    *httptest.Server
	transport *fakeTransport
	issuer    *auth.TokenIssuer
	alice     string
	bob       string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	metrics := NewMetrics()
	transport := &fakeTransport{chunks: []string{"Hel", "lo"}}
	svc := service.New(st, transport, service.WithHooks(metrics.Hooks()))

	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	srv := New(svc, issuer, Options{Metrics: metrics, DevPersonas: true})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	alice, err := issuer.Issue(lome.User{ID: "alice", Email: "alice@dev.lome-chat.com", Name: "Alice"})
	require.NoError(t, err)
	bob, err := issuer.Issue(lome.User{ID: "bob", Email: "bob@dev.lome-chat.com", Name: "Bob"})
	require.NoError(t, err)

	return &testEnv{server: ts, transport: transport, issuer: issuer, alice: alice, bob: bob}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) createConversation(t *testing.T, token string) lome.Conversation {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/conversations", token, CreateConversationRequest{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[lome.Conversation](t, resp)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/auth/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/auth/session", "invalid", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/auth/session", env.alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[SessionResponse](t, resp)
	assert.Equal(t, "alice", session.User.ID)
	assert.Empty(t, session.Token)
}

func TestDevSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/dev/session", "", map[string]string{"email": "carol@dev.lome-chat.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[SessionResponse](t, resp)
	require.NotEmpty(t, session.Token)

	user, err := env.issuer.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "carol@dev.lome-chat.com", user.Email)

	resp = env.do(t, http.MethodPost, "/api/dev/session", "", map[string]string{"email": "carol@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConversationsRequireSession(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", decode[errorResponse](t, resp).Error)
}

func TestConversationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, env.alice)
	assert.Equal(t, "alice", conv.UserID)

	resp := env.do(t, http.MethodGet, "/api/conversations", env.alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]lome.Conversation](t, resp), 1)

	resp = env.do(t, http.MethodGet, "/api/conversations", env.bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]lome.Conversation](t, resp))

	resp = env.do(t, http.MethodPatch, "/api/conversations/"+conv.ID, env.alice, map[string]string{"title": "Renamed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Renamed", decode[lome.Conversation](t, resp).Title)

	resp = env.do(t, http.MethodGet, "/api/conversations/"+conv.ID, env.bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/conversations/"+conv.ID, env.bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/conversations/"+conv.ID, env.alice, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/conversations/"+conv.ID, env.alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMessages(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, env.alice)
	path := "/api/conversations/" + conv.ID + "/messages"

	resp := env.do(t, http.MethodPost, path, env.alice, lome.NewMessage{Content: "Hello there"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	msg := decode[lome.Message](t, resp)
	assert.Equal(t, lome.RoleUser, msg.Role)
	assert.NotEmpty(t, msg.ID)

	resp = env.do(t, http.MethodPost, path, env.alice, lome.NewMessage{Content: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, path, env.alice, map[string]string{"content": "x", "bogus": "y"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, path, env.alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	messages := decode[[]lome.Message](t, resp)
	require.Len(t, messages, 1)
	assert.Equal(t, msg.ID, messages[0].ID)

	resp = env.do(t, http.MethodGet, path, env.bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func readEvents(t *testing.T, resp *http.Response) []sse.Event {
	t.Helper()
	var events []sse.Event
	reader := sse.NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestStream(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, env.alice)
	env.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", env.alice, lome.NewMessage{Content: "Hi"})

	resp := env.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/stream", env.alice, StreamRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readEvents(t, resp)
	require.Len(t, events, 3)
	assert.Equal(t, EventChunk, events[0].Name)
	assert.JSONEq(t, `{"content":"Hel"}`, string(events[0].Data))
	assert.JSONEq(t, `{"content":"lo"}`, string(events[1].Data))
	assert.Equal(t, EventDone, events[2].Name)

	var reply lome.Message
	require.NoError(t, json.Unmarshal(events[2].Data, &reply))
	assert.Equal(t, "Hello", reply.Content)
	assert.Equal(t, service.DefaultModel, reply.Model)

	resp = env.do(t, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", env.alice, nil)
	assert.Len(t, decode[[]lome.Message](t, resp), 2)
}

func TestStreamError(t *testing.T) {
	env := newTestEnv(t)
	env.transport.err = &openrouter.APIError{StatusCode: 502, Message: "upstream down"}
	conv := env.createConversation(t, env.alice)

	resp := env.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/stream", env.alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := readEvents(t, resp)
	require.Len(t, events, 3)
	assert.Equal(t, EventError, events[2].Name)
	assert.Contains(t, string(events[2].Data), "upstream down")

	resp = env.do(t, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", env.alice, nil)
	assert.Empty(t, decode[[]lome.Message](t, resp))
}

func TestStreamUnknownConversation(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/conversations/missing/stream", env.alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, env.alice)
	env.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", env.alice, lome.NewMessage{Content: "Hi"})
	readEvents(t, env.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/stream", env.alice, nil))

	resp := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, "lome_messages_sent_total 1"), text)
	assert.True(t, strings.Contains(text, "lome_streams_started_total 1"), text)
	assert.True(t, strings.Contains(text, "lome_streams_completed_total 1"), text)
	assert.Contains(t, text, `lome_http_requests_total{code="201",method="POST"}`)
}

func TestNotFoundEnvelope(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", decode[errorResponse](t, resp).Error)
}
