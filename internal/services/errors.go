package services

import "errors"

var (
	ErrEntryNotFound     = errors.New("entry not found")
	ErrInvalidEntryID    = errors.New("invalid entry id")
	ErrContentRequired   = errors.New("content or entry_id is required")
	ErrContentTooShort   = errors.New("content must be at least 50 characters")
	ErrQuotaExceeded     = errors.New("monthly prompt limit reached")
	ErrRateLimited       = errors.New("prompts are limited to one every 10 seconds")
	ErrPromptInFlight    = errors.New("a prompt for this content is already being generated")
	ErrEmptyPrompt       = errors.New("no prompt generated")
	ErrProfileNotFound   = errors.New("user profile not found")
	ErrNoSession         = errors.New("no session returned after code exchange")
	ErrAuthNotConfigured = errors.New("authentication provider is not configured")
)
