package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PreviewLength is how many characters of content an entry summary carries
const PreviewLength = 150

// JournalEntry is a single journal text record owned by a user
type JournalEntry struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntrySummary is the list view of an entry
type EntrySummary struct {
	JournalEntry
	Preview   string `json:"preview"`
	WordCount int    `json:"word_count"`
}

func (e JournalEntry) Summary() EntrySummary {
	preview := e.Content
	if r := []rune(preview); len(r) > PreviewLength {
		preview = string(r[:PreviewLength])
	}
	return EntrySummary{
		JournalEntry: e,
		Preview:      preview,
		WordCount:    len(strings.Fields(e.Content)),
	}
}
