package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nudgebot/nudge/store"
)

func (d *DB) UpsertPreference(ctx context.Context, upsert *store.UpsertPreference) (*store.Preference, error) {
	now := time.Now().Unix()
	stmt := `INSERT INTO preference (user_id, key, value, memory_ref, updated_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT(user_id, key) DO UPDATE SET
			value = excluded.value,
			memory_ref = COALESCE(excluded.memory_ref, preference.memory_ref),
			updated_ts = excluded.updated_ts`

	if _, err := d.db.ExecContext(ctx, stmt, upsert.UserID, upsert.Key, upsert.Value, upsert.MemoryRef, now); err != nil {
		return nil, fmt.Errorf("failed to upsert preference: %w", err)
	}

	userID, key := upsert.UserID, upsert.Key
	list, err := d.ListPreferences(ctx, &store.FindPreference{UserID: &userID, Key: &key})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("preference not found after upsert")
	}
	return list[0], nil
}

func (d *DB) ListPreferences(ctx context.Context, find *store.FindPreference) ([]*store.Preference, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Key; v != nil {
		where, args = append(where, "key = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT user_id, key, value, memory_ref, updated_ts
		FROM preference
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY key ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Preference, 0)
	for rows.Next() {
		var pref store.Preference
		var memoryRef sql.NullString
		if err := rows.Scan(&pref.UserID, &pref.Key, &pref.Value, &memoryRef, &pref.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		if memoryRef.Valid {
			pref.MemoryRef = &memoryRef.String
		}
		list = append(list, &pref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate preferences: %w", err)
	}

	return list, nil
}
