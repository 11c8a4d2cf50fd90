package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewStreamPrinter(&buf)

	p.Update("")
	p.Update("Hel")
	p.Update("Hello")
	p.Update("Hello")
	p.Update("Hello, world")
	assert.Equal(t, "Hello, world", buf.String())
	assert.Equal(t, "Hello, world", p.Printed())

	p.Reset()
	buf.Reset()
	p.Update("Next")
	assert.Equal(t, "Next", buf.String())
}

func TestStreamPrinter_NewReply(t *testing.T) {
	var buf bytes.Buffer
	p := NewStreamPrinter(&buf)

	p.Update("first reply")
	p.Update("second")
	assert.Equal(t, "first replysecond", buf.String())
	assert.Equal(t, "second", p.Printed())
}
