package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error

	// Reminder model related methods.
	CreateReminder(ctx context.Context, create *Reminder) (*Reminder, error)
	ListReminders(ctx context.Context, find *FindReminder) ([]*Reminder, error)
	UpdateReminder(ctx context.Context, update *UpdateReminder) (*Reminder, error)
	DeleteReminder(ctx context.Context, delete *DeleteReminder) error
	ListDueSoonReminders(ctx context.Context, userID string, nowEpoch, leadSeconds int64) ([]*Reminder, error)
	ArchiveOverdueReminders(ctx context.Context, cutoffEpoch int64) ([]*Reminder, error)

	// Preference model related methods.
	UpsertPreference(ctx context.Context, upsert *UpsertPreference) (*Preference, error)
	ListPreferences(ctx context.Context, find *FindPreference) ([]*Preference, error)

	// BehaviorStats model related methods.
	RecordBehaviorEvent(ctx context.Context, event *BehaviorEvent) (*BehaviorStats, error)
	GetBehaviorStats(ctx context.Context, userID string) (*BehaviorStats, error)

	// ConversationMessage model related methods.
	CreateConversationMessage(ctx context.Context, create *ConversationMessage) (*ConversationMessage, error)
	ListConversationMessages(ctx context.Context, find *FindConversationMessage) ([]*ConversationMessage, error)

	// AuditLog model related methods.
	CreateAuditLog(ctx context.Context, create *AuditLog) (*AuditLog, error)
	ListAuditLogs(ctx context.Context, find *FindAuditLog) ([]*AuditLog, error)
}
