// Package catalog describes the models offered to users: identifiers,
// context windows, per-token prices and capabilities, plus the quick picks
// for the strongest and the best-value model.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/longkey1/lome/internal/lome"
)

// Quick picks.
const (
	StrongestModelID = "anthropic/claude-3.5-sonnet"
	ValueModelID     = "meta-llama/llama-3.1-70b-instruct"
)

// Capability is a feature a model supports.
type Capability string

const (
	CapabilityVision    Capability = "vision"
	CapabilityFunctions Capability = "functions"
	CapabilityJSONMode  Capability = "json-mode"
	CapabilityStreaming Capability = "streaming"
)

func (c Capability) valid() bool {
	switch c {
	case CapabilityVision, CapabilityFunctions, CapabilityJSONMode, CapabilityStreaming:
		return true
	}
	return false
}

// Model describes a model available through the router.
type Model struct {
	ID                  string       `toml:"id" json:"id"` // "vendor/model"
	Name                string       `toml:"name" json:"name"`
	Provider            string       `toml:"provider" json:"provider"`
	ContextLength       int          `toml:"context_length" json:"context_length"`
	PricePerInputToken  float64      `toml:"price_per_input_token" json:"price_per_input_token"`   // USD
	PricePerOutputToken float64      `toml:"price_per_output_token" json:"price_per_output_token"` // USD
	Capabilities        []Capability `toml:"capabilities" json:"capabilities"`
	Description         string       `toml:"description" json:"description"`
}

// Validate checks that all fields are present and within range.
func (m Model) Validate() error {
	var errs []error
	if _, _, err := lome.ParseModelString(m.ID); err != nil {
		errs = append(errs, fmt.Errorf("id: %w", err))
	}
	if m.Name == "" {
		errs = append(errs, errors.New("name cannot be empty"))
	}
	if m.Provider == "" {
		errs = append(errs, errors.New("provider cannot be empty"))
	}
	if m.ContextLength <= 0 {
		errs = append(errs, fmt.Errorf("context_length must be positive (got %d)", m.ContextLength))
	}
	if m.PricePerInputToken < 0 || m.PricePerOutputToken < 0 {
		errs = append(errs, errors.New("prices cannot be negative"))
	}
	for _, c := range m.Capabilities {
		if !c.valid() {
			errs = append(errs, fmt.Errorf("unknown capability: %q", c))
		}
	}
	if m.Description == "" {
		errs = append(errs, errors.New("description cannot be empty"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid model %q: %w", m.ID, errors.Join(errs...))
	}
	return nil
}

// Has reports whether the model supports c.
func (m Model) Has(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Catalog is an ordered list of models.
type Catalog struct {
	Models []Model `toml:"models"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{Models: []Model{
		{
			ID:                  "openai/gpt-4-turbo",
			Name:                "GPT-4 Turbo",
			Provider:            "OpenAI",
			ContextLength:       128000,
			PricePerInputToken:  0.00001,
			PricePerOutputToken: 0.00003,
			Capabilities:        []Capability{CapabilityVision, CapabilityFunctions, CapabilityJSONMode, CapabilityStreaming},
			Description:         "OpenAI's most capable model. Excels at complex reasoning, creative writing, and following nuanced instructions with high accuracy.",
		},
		{
			ID:                  "anthropic/claude-3.5-sonnet",
			Name:                "Claude 3.5 Sonnet",
			Provider:            "Anthropic",
			ContextLength:       200000,
			PricePerInputToken:  0.000003,
			PricePerOutputToken: 0.000015,
			Capabilities:        []Capability{CapabilityVision, CapabilityFunctions, CapabilityStreaming},
			Description:         "Anthropic's most intelligent model. Excels at complex reasoning, coding, and nuanced content creation with strong safety guardrails.",
		},
		{
			ID:                  "google/gemini-pro-1.5",
			Name:                "Gemini Pro 1.5",
			Provider:            "Google",
			ContextLength:       1000000,
			PricePerInputToken:  0.0000005,
			PricePerOutputToken: 0.0000015,
			Capabilities:        []Capability{CapabilityVision, CapabilityFunctions, CapabilityJSONMode, CapabilityStreaming},
			Description:         "Google's flagship model with the largest context window. Ideal for processing long documents, codebases, and multi-turn conversations.",
		},
		{
			ID:                  "meta-llama/llama-3.1-70b-instruct",
			Name:                "Llama 3.1 70B",
			Provider:            "Meta",
			ContextLength:       131072,
			PricePerInputToken:  0.00000059,
			PricePerOutputToken: 0.00000079,
			Capabilities:        []Capability{CapabilityFunctions, CapabilityStreaming},
			Description:         "Meta's open-weight model offering excellent performance at low cost. Great for general tasks where budget efficiency matters.",
		},
	}}
}

// Load returns the built-in catalog merged with the models in the TOML file at
// path. Models of the file replace built-in models with the same id; others are
// appended. An empty path returns the built-in catalog.
//
// The file lists models as:
//
//	[[models]]
//	id = "mistralai/mistral-large"
//	name = "Mistral Large"
//	...
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("catalog file not found: %s", path)
	}

	var file Catalog
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("error decoding catalog file: %w", err)
	}
	for _, m := range file.Models {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		c.put(m)
	}
	return c, nil
}

func (c *Catalog) put(m Model) {
	for i := range c.Models {
		if c.Models[i].ID == m.ID {
			c.Models[i] = m
			return
		}
	}
	c.Models = append(c.Models, m)
}

// Find returns the model with id.
func (c *Catalog) Find(id string) (Model, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// Strongest returns the strongest quick pick.
func (c *Catalog) Strongest() (Model, bool) {
	return c.Find(StrongestModelID)
}

// Value returns the best-value quick pick.
func (c *Catalog) Value() (Model, bool) {
	return c.Find(ValueModelID)
}

// Resolve maps the aliases "strongest" and "value" to their model ids and
// checks the id format of anything else.
func Resolve(name string) (string, error) {
	switch name {
	case "strongest":
		return StrongestModelID, nil
	case "value":
		return ValueModelID, nil
	}
	if _, _, err := lome.ParseModelString(name); err != nil {
		return "", err
	}
	return name, nil
}

// Infos lists the catalog as lome.ModelInfo, marking defaultID.
func (c *Catalog) Infos(defaultID string) []lome.ModelInfo {
	infos := make([]lome.ModelInfo, 0, len(c.Models))
	for _, m := range c.Models {
		infos = append(infos, lome.ModelInfo{
			ID:          m.ID,
			Description: m.Description,
			IsDefault:   m.ID == defaultID,
		})
	}
	return infos
}
