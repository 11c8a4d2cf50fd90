package sse

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderEvents(t *testing.T) {
	input := ": keep-alive\n\n" +
		"data: {\"a\":1}\n\n" +
		"event: chunk\r\n" +
		"data: first\r\n" +
		"data: second\r\n\r\n" +
		"id: 7\n" +
		"data:tight\n\n" +
		"data: [DONE]"

	r := NewReader(strings.NewReader(input))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "", ev.Name)
	assert.Equal(t, `{"a":1}`, string(ev.Data))

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "chunk", ev.Name)
	assert.Equal(t, "first\nsecond", string(ev.Data))

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "", ev.Name)
	assert.Equal(t, "tight", string(ev.Data))

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "[DONE]", string(ev.Data))

	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReaderRejectsOversizedEvent(t *testing.T) {
	input := "data: " + strings.Repeat("x", MaxEventSize+1) + "\n\n"
	_, err := NewReader(strings.NewReader(input)).Next()
	assert.True(t, errors.Is(err, ErrEventTooLarge))
}

// endlessLine yields 'x' forever and never a newline.
type endlessLine struct{ read int }

func (e *endlessLine) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	e.read += len(p)
	return len(p), nil
}

func TestReaderBoundsLineWithoutNewline(t *testing.T) {
	src := &endlessLine{}
	_, err := NewReader(src).Next()
	assert.True(t, errors.Is(err, ErrEventTooLarge))
	assert.Less(t, src.read, 2*maxLineSize)
}

func TestWriterRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.Send("chunk", map[string]string{"content": "Hel"}))
	require.NoError(t, w.Send("done", map[string]string{"id": "m1"}))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "event: chunk\ndata: {\"content\":\"Hel\"}\n\nevent: done\ndata: {\"id\":\"m1\"}\n\n", rec.Body.String())

	r := NewReader(strings.NewReader(rec.Body.String()))
	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "chunk", ev.Name)
	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "done", ev.Name)
}
