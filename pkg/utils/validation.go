package utils

import (
	"strings"
	"unicode/utf8"
)

const (
	// MinPromptContentLength is the trimmed length below which no prompt is generated
	MinPromptContentLength = 50
	// MaxEntryContentLength bounds a single entry
	MaxEntryContentLength = 100000
)

var oauthProviders = map[string]bool{
	"google": true,
	"github": true,
	"apple":  true,
	"azure":  true,
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ContentLength counts characters, not bytes
func ContentLength(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

// ValidateEntryContent rejects oversized entries. Empty content is allowed; callers decide.
func ValidateEntryContent(content string) error {
	if utf8.RuneCountInString(content) > MaxEntryContentLength {
		return &ValidationError{Field: "content", Message: "Entry is too long"}
	}
	return nil
}

// ValidatePromptContent requires enough text to reflect on
func ValidatePromptContent(content string) error {
	if ContentLength(content) < MinPromptContentLength {
		return &ValidationError{Field: "content", Message: "Content must be at least 50 characters"}
	}
	return nil
}

// NormalizeProvider lowercases provider and reports whether it is supported
func NormalizeProvider(provider string) (string, bool) {
	p := strings.ToLower(strings.TrimSpace(provider))
	if p == "" {
		p = "google"
	}
	return p, oauthProviders[p]
}
