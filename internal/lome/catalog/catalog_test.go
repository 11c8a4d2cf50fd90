package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c := Default()
	require.Len(t, c.Models, 4)
	for _, m := range c.Models {
		assert.NoError(t, m.Validate(), m.ID)
	}

	strongest, ok := c.Strongest()
	require.True(t, ok)
	assert.Equal(t, "Claude 3.5 Sonnet", strongest.Name)

	value, ok := c.Value()
	require.True(t, ok)
	assert.Equal(t, "Llama 3.1 70B", value.Name)
	assert.True(t, value.Has(CapabilityStreaming))
	assert.False(t, value.Has(CapabilityVision))
}

func TestValidate(t *testing.T) {
	valid := Default().Models[0]

	tests := []struct {
		name   string
		modify func(m *Model)
		want   string
	}{
		{name: "bad id", modify: func(m *Model) { m.ID = "gpt" }, want: "invalid model format"},
		{name: "no name", modify: func(m *Model) { m.Name = "" }, want: "name cannot be empty"},
		{name: "zero context", modify: func(m *Model) { m.ContextLength = 0 }, want: "context_length must be positive"},
		{name: "negative price", modify: func(m *Model) { m.PricePerOutputToken = -1 }, want: "prices cannot be negative"},
		{name: "unknown capability", modify: func(m *Model) { m.Capabilities = []Capability{"telepathy"} }, want: `unknown capability: "telepathy"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			m.Capabilities = append([]Capability(nil), valid.Capabilities...)
			tt.modify(&m)
			err := m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Len(t, c.Models, 4)

	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[models]]
id = "openai/gpt-4-turbo"
name = "GPT-4 Turbo (custom)"
provider = "OpenAI"
context_length = 128000
price_per_input_token = 0.00001
price_per_output_token = 0.00003
capabilities = ["streaming"]
description = "Overridden."

[[models]]
id = "mistralai/mistral-large"
name = "Mistral Large"
provider = "Mistral"
context_length = 32000
price_per_input_token = 0.000008
price_per_output_token = 0.000024
capabilities = ["functions", "streaming"]
description = "Mistral's flagship model."
`), 0o644))

	c, err = Load(path)
	require.NoError(t, err)
	require.Len(t, c.Models, 5)
	assert.Equal(t, "GPT-4 Turbo (custom)", c.Models[0].Name)

	m, ok := c.Find("mistralai/mistral-large")
	require.True(t, ok)
	assert.Equal(t, 32000, m.ContextLength)

	infos := c.Infos("mistralai/mistral-large")
	assert.True(t, infos[4].IsDefault)
	assert.False(t, infos[0].IsDefault)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[models]]\nid = \"nope\"\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	id, err := Resolve("strongest")
	require.NoError(t, err)
	assert.Equal(t, StrongestModelID, id)

	id, err = Resolve("value")
	require.NoError(t, err)
	assert.Equal(t, ValueModelID, id)

	id, err = Resolve("openai/gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", id)

	_, err = Resolve("gpt-4o")
	assert.Error(t, err)
}

func TestFormatContextLength(t *testing.T) {
	tests := map[int]string{
		128000:  "128k",
		131072:  "131k",
		200000:  "200k",
		1000000: "1M",
		2000000: "2M",
		8192:    "8k",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatContextLength(in), "%d", in)
	}
}

func TestFormatPricePer1k(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.00001, "$0.01"},
		{0.00003, "$0.03"},
		{0.000003, "$0.003"},
		{0.000015, "$0.015"},
		{0.0000005, "$0.0005"},
		{0.00000059, "$0.00059"},
		{0.002, "$2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPricePer1k(tt.in), "%g", tt.in)
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 1, EstimateTokens("日本語"))
}

func TestFormatTokenCount(t *testing.T) {
	assert.Equal(t, "999", FormatTokenCount(999))
	assert.Equal(t, "9,999", FormatTokenCount(9999))
	assert.Equal(t, "12k", FormatTokenCount(12345))
	assert.Equal(t, "1M", FormatTokenCount(1000000))
	assert.Equal(t, "1.5M", FormatTokenCount(1500000))
}
