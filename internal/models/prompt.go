package models

import (
	"time"

	"github.com/google/uuid"
)

// AIPrompt is a reflective question generated for an entry. Never mutated.
type AIPrompt struct {
	ID         uuid.UUID  `json:"id"`
	EntryID    *uuid.UUID `json:"entry_id,omitempty"`
	UserID     uuid.UUID  `json:"-"`
	PromptText string     `json:"prompt_text"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Usage is the monthly prompt allowance of a user
type Usage struct {
	PromptsUsed  int       `json:"prompts_used"`
	PromptsLimit int       `json:"prompts_limit"`
	Remaining    int       `json:"remaining"`
	IsPremium    bool      `json:"is_premium"`
	PeriodStart  time.Time `json:"period_start"`
}

// Exhausted reports whether another prompt would exceed the allowance
func (u Usage) Exhausted() bool {
	return !u.IsPremium && u.PromptsUsed >= u.PromptsLimit
}

// StartOfMonth returns midnight UTC on the first day of t's month
func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
