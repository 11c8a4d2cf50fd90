package chat

import "strings"

// Accumulator buffers the text of the assistant response currently streaming.
// It has two states: inactive (no stream) and active with the content received
// so far, which may be empty. The zero value is inactive.
type Accumulator struct {
	buf    strings.Builder
	active bool
}

// Set replaces the content and marks the stream active.
func (a *Accumulator) Set(content string) {
	a.buf.Reset()
	a.buf.WriteString(content)
	a.active = true
}

// Clear discards any content and marks the stream inactive.
func (a *Accumulator) Clear() {
	a.buf.Reset()
	a.active = false
}

// Append adds chunk to the end of the content. The first chunk of a stream
// activates an inactive accumulator.
func (a *Accumulator) Append(chunk string) {
	a.active = true
	a.buf.WriteString(chunk)
}

// Content returns the buffered text and whether a stream is active.
func (a *Accumulator) Content() (string, bool) {
	if !a.active {
		return "", false
	}
	return a.buf.String(), true
}

// Active reports whether a stream is in progress.
func (a *Accumulator) Active() bool {
	return a.active
}
