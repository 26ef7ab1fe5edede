package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ValidColumns are the board columns. Every card lives in exactly one.
var ValidColumns = []string{"todo", "in-progress", "done"}

// IsValidColumn reports whether col is one of the board columns.
func IsValidColumn(col string) bool {
	for _, c := range ValidColumns {
		if c == col {
			return true
		}
	}
	return false
}

type Card struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Column      string    `json:"column"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CardUpdate is a partial update; nil fields are left unchanged.
type CardUpdate struct {
	Title       *string
	Description *string
	Column      *string
}

// TranscriptEntry is one archived chat line: a user message forwarded to the
// assistant or an assistant reply received through the webhook. The archive is
// audit history only; the live reply buffer never reads from it.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	TopicID   int64     `json:"topic_id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
