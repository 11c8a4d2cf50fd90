package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longkey1/lome/internal/lome"
	"github.com/longkey1/lome/internal/lome/auth"
	"github.com/longkey1/lome/internal/lome/chat"
	"github.com/longkey1/lome/internal/lome/service"
	"github.com/longkey1/lome/internal/lome/store"
	"github.com/longkey1/lome/internal/openrouter"
	"github.com/longkey1/lome/internal/server"
)

type fakeTransport struct {
	chunks []string
	err    error
	// block, when set, makes the stream wait for cancellation after the chunks
	block bool
}

func (f *fakeTransport) ChatStream(ctx context.Context, model string, messages []openrouter.Message, fn openrouter.ChunkFunc) (string, error) {
	var text string
	for _, chunk := range f.chunks {
		text += chunk
		fn(chunk)
	}
	if f.block {
		<-ctx.Done()
		return text, ctx.Err()
	}
	return text, f.err
}

func newTestClient(t *testing.T, transport *fakeTransport) (*Client, *httptest.Server, *auth.TokenIssuer) {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	svc := service.New(st, transport)
	ts := httptest.NewServer(server.New(svc, issuer, server.Options{DevPersonas: true}))
	t.Cleanup(ts.Close)

	user, err := auth.Persona("alice@dev.lome-chat.com")
	require.NoError(t, err)
	token, err := issuer.Issue(*user)
	require.NoError(t, err)

	return NewClient(ts.URL+"/", token), ts, issuer
}

func TestCurrentUser(t *testing.T) {
	client, ts, _ := newTestClient(t, &fakeTransport{})
	ctx := context.Background()

	user, err := client.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice@dev.lome-chat.com", user.Email)

	user, err = NewClient(ts.URL, "").CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = NewClient(ts.URL, "bogus").CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestDevSession(t *testing.T) {
	_, ts, issuer := newTestClient(t, &fakeTransport{})

	session, err := NewClient(ts.URL, "").DevSession(context.Background(), "bob@dev.lome-chat.com")
	require.NoError(t, err)
	user, err := issuer.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, user.ID)
}

func TestConversationManagement(t *testing.T) {
	client, _, _ := newTestClient(t, &fakeTransport{})
	ctx := context.Background()

	conv, err := client.CreateConversation(ctx, "First", "")
	require.NoError(t, err)

	got, err := client.FindConversation(ctx, conv.ID[:6])
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	title := "Renamed"
	updated, err := client.UpdateConversation(ctx, conv.ID, service.ConversationUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)

	list, err := client.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, client.DeleteConversation(ctx, conv.ID))
	_, err = client.GetConversation(ctx, conv.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestProjectManagement(t *testing.T) {
	client, _, _ := newTestClient(t, &fakeTransport{})
	ctx := context.Background()

	_, err := client.CreateProject(ctx, " ", "")
	assert.ErrorIs(t, err, service.ErrInvalid)

	project, err := client.CreateProject(ctx, "Research", "papers")
	require.NoError(t, err)
	assert.Equal(t, "Research", project.Name)

	found, err := client.FindProject(ctx, project.ID[:6])
	require.NoError(t, err)
	assert.Equal(t, project.ID, found.ID)

	name := "Reading list"
	updated, err := client.UpdateProject(ctx, project.ID, service.ProjectUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Reading list", updated.Name)

	got, err := client.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "papers", got.Description)

	projects, err := client.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)

	require.NoError(t, client.DeleteProject(ctx, project.ID))
	_, err = client.GetProject(ctx, project.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestErrorsUnwrap(t *testing.T) {
	client, ts, _ := newTestClient(t, &fakeTransport{})
	ctx := context.Background()

	conv, err := client.CreateConversation(ctx, "", "")
	require.NoError(t, err)

	_, err = client.SendMessage(ctx, conv.ID, lome.NewMessage{Role: lome.RoleUser, Content: " "})
	assert.True(t, errors.Is(err, service.ErrInvalid))

	_, err = NewClient(ts.URL, "").ListConversations(ctx)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestControllerOverHTTP(t *testing.T) {
	client, _, _ := newTestClient(t, &fakeTransport{chunks: []string{"Hi", " there"}})
	ctx := context.Background()

	conv, err := client.CreateConversation(ctx, "", "")
	require.NoError(t, err)

	var seen []string
	var controller *chat.Controller
	controller = chat.NewController(client, chat.WithIdentity(client), chat.WithOnChange(func() {
		if content, ok := controller.StreamingContent(); ok {
			seen = append(seen, content)
		}
	}))

	_, err = controller.Send(ctx, conv.ID, "Hello")
	require.NoError(t, err)
	reply, err := controller.Respond(ctx, conv.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply.Content)
	assert.Equal(t, []string{"", "Hi", "Hi there"}, seen)
	assert.False(t, controller.Streaming())

	entries, err := controller.Messages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Hello", entries[0].Content)
	assert.Equal(t, "Hi there", entries[1].Content)

	list, err := client.ListConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hello", list[0].Title)
}

func TestStreamStopPersistsNothing(t *testing.T) {
	client, _, _ := newTestClient(t, &fakeTransport{chunks: []string{"Partial"}, block: true})
	ctx := context.Background()

	conv, err := client.CreateConversation(ctx, "", "")
	require.NoError(t, err)

	got := make(chan struct{}, 1)
	var controller *chat.Controller
	controller = chat.NewController(client, chat.WithOnChange(func() {
		if content, ok := controller.StreamingContent(); ok && content != "" {
			select {
			case got <- struct{}{}:
			default:
			}
		}
	}))

	done := make(chan error, 1)
	go func() {
		_, err := controller.Respond(ctx, conv.ID, "")
		done <- err
	}()

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no chunk received")
	}
	controller.Stop()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, chat.ErrStopped), "unexpected error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}

	_, active := controller.StreamingContent()
	assert.False(t, active)

	messages, err := client.Messages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestStreamErrorEvent(t *testing.T) {
	client, _, _ := newTestClient(t, &fakeTransport{err: errors.New("upstream down")})
	ctx := context.Background()

	conv, err := client.CreateConversation(ctx, "", "")
	require.NoError(t, err)

	_, err = client.StreamReply(ctx, conv.ID, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}
