// Package lome provides the core types shared by the lome client and server.
// This package defines conversations, messages and users as the backend stores
// them, and the model identifier format used across providers.
package lome

import (
	"fmt"
	"strings"
)

// ModelInfo represents information about an available model from a provider.
type ModelInfo struct {
	ID          string // Model identifier (e.g., "openai/gpt-4-turbo")
	Description string // Human-readable description of the model
	IsDefault   bool   // Whether this is the configured default model
}

// ParseModelString parses a model string in "vendor/model" format.
// Returns (vendor, model, error).
//
// Example:
//
//	vendor, model, err := ParseModelString("anthropic/claude-3.5-sonnet")
//	// vendor = "anthropic", model = "claude-3.5-sonnet"
func ParseModelString(modelStr string) (string, string, error) {
	parts := strings.SplitN(modelStr, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid model format: %s (expected format: vendor/model, e.g., openai/gpt-4-turbo)", modelStr)
	}

	vendor := strings.TrimSpace(parts[0])
	model := strings.TrimSpace(parts[1])

	if vendor == "" || model == "" {
		return "", "", fmt.Errorf("vendor and model cannot be empty")
	}

	return vendor, model, nil
}

// FormatModelString formats vendor and model into "vendor/model" format.
func FormatModelString(vendor, model string) string {
	return fmt.Sprintf("%s/%s", vendor, model)
}
