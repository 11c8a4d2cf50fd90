package render

import (
	"io"
	"strings"
	"sync"
)

// StreamPrinter writes the growth of a streamed reply to w. Update is called
// with the full accumulated text each time it changes; only the new suffix is
// written.
type StreamPrinter struct {
	w io.Writer

	mu      sync.Mutex
	printed string
}

// NewStreamPrinter creates a StreamPrinter writing to w.
func NewStreamPrinter(w io.Writer) *StreamPrinter {
	return &StreamPrinter{w: w}
}

// Update writes the part of content not yet printed. Content that does not
// extend what was printed starts a new reply.
func (p *StreamPrinter) Update(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !strings.HasPrefix(content, p.printed) {
		p.printed = ""
	}
	if len(content) == len(p.printed) {
		return
	}
	io.WriteString(p.w, content[len(p.printed):])
	p.printed = content
}

// Printed returns the text written since the last Reset.
func (p *StreamPrinter) Printed() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed
}

// Reset forgets the printed text.
func (p *StreamPrinter) Reset() {
	p.mu.Lock()
	p.printed = ""
	p.mu.Unlock()
}
