package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Text bounds for imported samples. Oversized text is rejected on direct
// construction; the importer truncates to these limits before constructing.
const (
	MaxPromptChars   = 10000
	MaxResponseChars = 50000
)

// DefaultAnnotatorID is the single-user identity. The column exists so the
// schema survives a future multi-annotator extension.
const DefaultAnnotatorID = "default"

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Sample is an imported prompt/response pair. Samples are immutable once
// imported; ImportedAt is assigned by the store, not the caller.
type Sample struct {
	ID         string    `json:"id" db:"id"`
	Prompt     string    `json:"prompt" db:"prompt"`
	Response   string    `json:"response" db:"response"`
	Metadata   Metadata  `json:"metadata,omitempty" db:"-"`
	ImportedAt time.Time `json:"imported_at" db:"imported_at"`
}

// NewSample validates and builds a Sample. Prompt and response are trimmed;
// metadata may be nil.
func NewSample(id, prompt, response string, metadata Metadata) (*Sample, error) {
	id = strings.TrimSpace(id)
	prompt = strings.TrimSpace(prompt)
	response = strings.TrimSpace(response)

	if id == "" {
		return nil, &ValidationError{Field: "id", Reason: "cannot be empty"}
	}
	if !idPattern.MatchString(id) {
		return nil, &ValidationError{Field: "id", Reason: "only letters, digits, underscores and hyphens allowed"}
	}
	if prompt == "" {
		return nil, &ValidationError{Field: "prompt", Reason: "cannot be empty"}
	}
	if utf8.RuneCountInString(prompt) > MaxPromptChars {
		return nil, &ValidationError{Field: "prompt", Reason: fmt.Sprintf("exceeds %d characters", MaxPromptChars)}
	}
	if response == "" {
		return nil, &ValidationError{Field: "response", Reason: "cannot be empty"}
	}
	if utf8.RuneCountInString(response) > MaxResponseChars {
		return nil, &ValidationError{Field: "response", Reason: fmt.Sprintf("exceeds %d characters", MaxResponseChars)}
	}

	if metadata == nil {
		metadata = Metadata{}
	}
	return &Sample{
		ID:       id,
		Prompt:   prompt,
		Response: response,
		Metadata: metadata,
	}, nil
}

// TruncateRunes caps s at limit runes. Used by the importer, which truncates
// oversized text instead of rejecting the row.
func TruncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
