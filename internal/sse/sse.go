// Package sse reads and writes Server-Sent Events.
package sse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxEventSize is the largest event payload accepted by Reader (64KB).
const MaxEventSize = 64 * 1024

// ErrEventTooLarge is returned when an event exceeds MaxEventSize.
var ErrEventTooLarge = errors.New("sse: event exceeds maximum size")

// Event is a single dispatched event. Name is empty for unnamed events.
type Event struct {
	Name string
	Data []byte
}

// maxLineSize bounds a single line: a data field of MaxEventSize plus its
// "data: " prefix and line terminator.
const maxLineSize = MaxEventSize + len("data: ") + 2

// Reader parses Server-Sent Events from a stream.
type Reader struct {
	reader *bufio.Reader
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{reader: bufio.NewReader(r)}
}

// Next reads the next event. Comments and id/retry fields are ignored.
// Returns io.EOF when the stream ends.
func (r *Reader) Next() (Event, error) {
	var ev Event
	var data [][]byte
	size := 0

	for {
		line, err := r.readLine()
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			if errors.Is(err, io.EOF) && len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			return Event{}, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Blank line dispatches the event
		if len(line) == 0 {
			if len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			ev.Name = ""
			continue
		}

		switch {
		case line[0] == ':':
		case bytes.HasPrefix(line, []byte("event:")):
			ev.Name = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			value := line[len("data:"):]
			if len(value) > 0 && value[0] == ' ' {
				value = value[1:]
			}
			size += len(value)
			if size > MaxEventSize {
				return Event{}, ErrEventTooLarge
			}
			data = append(data, append([]byte(nil), value...))
		}
	}
}

// readLine reads up to and including the next newline, failing with
// ErrEventTooLarge as soon as the line outgrows maxLineSize.
func (r *Reader) readLine() ([]byte, error) {
	var line []byte
	for {
		frag, err := r.reader.ReadSlice('\n')
		if len(line)+len(frag) > maxLineSize {
			return nil, ErrEventTooLarge
		}
		line = append(line, frag...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, err
	}
}

// Writer writes events to an HTTP response, flushing after each one.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter sets the event-stream headers on w and returns a Writer.
// It fails when w cannot flush.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// Send writes one named event whose data is the JSON encoding of v.
func (w *Writer) Send(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	var buf bytes.Buffer
	if name != "" {
		fmt.Fprintf(&buf, "event: %s\n", name)
	}
	fmt.Fprintf(&buf, "data: %s\n\n", data)

	if _, err := w.w.Write(buf.Bytes()); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}
