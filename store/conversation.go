package store

import (
	"context"
)

// ConversationMessage is one turn of a user conversation.
type ConversationMessage struct {
	ID        int64
	UserID    string
	Role      string
	Content   string
	CreatedTs int64
}

// FindConversationMessage is the find condition for conversation messages.
type FindConversationMessage struct {
	UserID *string
	// Limit bounds the window to the most recent N messages. The result is
	// still returned oldest first.
	Limit *int
}

// CreateConversationMessage appends a conversation turn.
func (s *Store) CreateConversationMessage(ctx context.Context, create *ConversationMessage) (*ConversationMessage, error) {
	return s.driver.CreateConversationMessage(ctx, create)
}

// ListConversationMessages returns the recent window, oldest first.
func (s *Store) ListConversationMessages(ctx context.Context, find *FindConversationMessage) ([]*ConversationMessage, error) {
	return s.driver.ListConversationMessages(ctx, find)
}
