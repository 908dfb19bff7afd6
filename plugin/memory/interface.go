// Package memory integrates the external semantic memory side-store.
// The relational store stays authoritative; everything in here is
// best-effort personalization context that may lag behind.
package memory

import (
	"context"
)

// Memory entry categories. Every entry carries exactly one.
const (
	CategoryReminderActive   = "reminder_active"
	CategoryReminderArchived = "reminder_archived"
	CategoryUserPrefs        = "user_prefs"
	CategoryConversation     = "conversation"
	CategoryUserBehavior     = "user_behavior"
)

// Categories lists all known categories in display order.
var Categories = []string{
	CategoryReminderActive,
	CategoryReminderArchived,
	CategoryUserPrefs,
	CategoryConversation,
	CategoryUserBehavior,
}

// Entry is a single semantic memory record.
type Entry struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Text      string         `json:"text"`
	Category  string         `json:"category"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	UpdatedTs int64          `json:"updated_ts"`
}

// Service is the low-level semantic memory API.
type Service interface {
	// Add stores a new entry and returns its id.
	Add(ctx context.Context, userID, text, category string, metadata map[string]any) (string, error)
	// Search returns entries relevant to the query, optionally restricted
	// to a category. An empty query matches everything in scope.
	Search(ctx context.Context, userID, query, category string, limit int) ([]*Entry, error)
	// Update replaces an entry's text and merges metadata in place.
	Update(ctx context.Context, id, text string, metadata map[string]any) error
	// Delete removes an entry. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	// GetAll returns every entry for a user.
	GetAll(ctx context.Context, userID string) ([]*Entry, error)
}

// MetaInt reads an integer metadata value regardless of the decoded
// numeric type. JSON round-trips land as float64.
func MetaInt(metadata map[string]any, key string) (int64, bool) {
	v, ok := metadata[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// MetaString reads a string metadata value.
func MetaString(metadata map[string]any, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}
