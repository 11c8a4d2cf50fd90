package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccumulator_AppendFromInactive(t *testing.T) {
	var a Accumulator
	_, ok := a.Content()
	assert.False(t, ok)

	a.Append("Hello")
	a.Append(" World")

	content, ok := a.Content()
	assert.True(t, ok)
	assert.Equal(t, "Hello World", content)
}

func TestAccumulator_SetEmptyIsActive(t *testing.T) {
	var a Accumulator
	a.Set("")

	content, ok := a.Content()
	assert.True(t, ok)
	assert.Equal(t, "", content)
	assert.True(t, a.Active())
}

func TestAccumulator_SetReplaces(t *testing.T) {
	var a Accumulator
	a.Append("old text")
	a.Set("new")
	a.Append("er")

	content, _ := a.Content()
	assert.Equal(t, "newer", content)
}

func TestAccumulator_Clear(t *testing.T) {
	var a Accumulator
	a.Set("partial")
	a.Clear()

	content, ok := a.Content()
	assert.False(t, ok)
	assert.Equal(t, "", content)
	assert.False(t, a.Active())

	a.Append("next")
	content, ok = a.Content()
	assert.True(t, ok)
	assert.Equal(t, "next", content)
}

func TestAccumulator_PreservesOrderAndBytes(t *testing.T) {
	chunks := []string{"こん", "にちは", "", " 🌍", "\n", "done"}
	var a Accumulator
	want := ""
	for _, c := range chunks {
		a.Append(c)
		want += c
	}

	content, _ := a.Content()
	assert.Equal(t, want, content)
}
