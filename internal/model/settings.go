package model

import (
	"strings"
	"time"
)

// ContextDocument is text extracted from an uploaded document, kept for
// injection into prompts.
type ContextDocument struct {
	ID            string    `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	ExtractedText string    `json:"extracted_text" yaml:"-"`
	SizeBytes     int64     `json:"size_bytes" yaml:"size_bytes"`
	UploadedAt    time.Time `json:"uploaded_at" yaml:"uploaded_at"`
}

// Settings is the user's saved configuration. Writes are last-writer-wins.
type Settings struct {
	APIKeys              map[Provider]string `json:"-" yaml:"-"`
	SelectedModel        string              `json:"selected_model" yaml:"selected_model"`
	DefaultModel         string              `json:"default_model" yaml:"default_model"`
	CustomContext        string              `json:"custom_context" yaml:"custom_context"`
	CustomContextEnabled bool                `json:"custom_context_enabled" yaml:"custom_context_enabled"`
	Documents            []ContextDocument   `json:"documents,omitempty" yaml:"documents,omitempty"`
}

// APIKey returns the trimmed key saved for a provider.
func (s Settings) APIKey(p Provider) string {
	if s.APIKeys == nil {
		return ""
	}
	return strings.TrimSpace(s.APIKeys[p])
}

// ContextBlob joins the free-text context and every document's text.
// Returns "" when nothing is configured.
func (s Settings) ContextBlob() string {
	var parts []string
	if t := strings.TrimSpace(s.CustomContext); t != "" {
		parts = append(parts, t)
	}
	for _, d := range s.Documents {
		if t := strings.TrimSpace(d.ExtractedText); t != "" {
			parts = append(parts, "--- "+d.Name+" ---\n"+t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ContextActive reports whether custom context should be injected.
func (s Settings) ContextActive() bool {
	return s.CustomContextEnabled && s.ContextBlob() != ""
}
