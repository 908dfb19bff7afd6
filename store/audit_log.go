package store

import (
	"context"
)

// AuditLog is an append-only record of a mutating action.
type AuditLog struct {
	ID        int64
	UserID    string
	Action    string
	Details   string
	CreatedTs int64
}

// FindAuditLog is the find condition for audit logs.
type FindAuditLog struct {
	UserID *string
	Action *string
	Limit  *int
}

// CreateAuditLog appends an audit record. Failures here never block the
// action being audited; callers log and continue.
func (s *Store) CreateAuditLog(ctx context.Context, create *AuditLog) (*AuditLog, error) {
	return s.driver.CreateAuditLog(ctx, create)
}

// ListAuditLogs lists audit records, newest first.
func (s *Store) ListAuditLogs(ctx context.Context, find *FindAuditLog) ([]*AuditLog, error) {
	return s.driver.ListAuditLogs(ctx, find)
}
