package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nudgebot/nudge/store"
)

func (d *DB) CreateAuditLog(ctx context.Context, create *store.AuditLog) (*store.AuditLog, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}

	stmt := `INSERT INTO audit_log (user_id, action, details, created_ts)
		VALUES (` + placeholders(4) + `)
		RETURNING id`

	if err := d.db.QueryRowContext(ctx, stmt, create.UserID, create.Action, create.Details, create.CreatedTs).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create audit log: %w", err)
	}

	return create, nil
}

func (d *DB) ListAuditLogs(ctx context.Context, find *store.FindAuditLog) ([]*store.AuditLog, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Action; v != nil {
		where, args = append(where, "action = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT id, user_id, action, details, created_ts
		FROM audit_log
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id DESC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	list := make([]*store.AuditLog, 0)
	for rows.Next() {
		var log store.AuditLog
		if err := rows.Scan(&log.ID, &log.UserID, &log.Action, &log.Details, &log.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		list = append(list, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}

	return list, nil
}
