package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/nudgebot/nudge/internal/profile"
)

// DB is the SQLite implementation of store.Driver.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database described by the profile DSN.
func NewDB(profile *profile.Profile) (*DB, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.DSN == "" {
		return nil, errors.New("database DSN is empty")
	}

	db, err := sql.Open("sqlite", profile.DSN+"?_pragma=busy_timeout(3000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %q", profile.DSN)
	}

	// A single writer connection sidesteps SQLITE_BUSY under concurrent
	// handlers; reads still interleave through WAL.
	db.SetMaxOpenConns(1)

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS reminder (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	due_at_epoch INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	category TEXT NOT NULL DEFAULT 'personal',
	created_ts INTEGER NOT NULL,
	updated_ts INTEGER NOT NULL,
	memory_ref TEXT,
	last_notified_at INTEGER,
	reschedule_count INTEGER NOT NULL DEFAULT 0,
	last_rescheduled_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_reminder_user_id ON reminder (user_id);
CREATE INDEX IF NOT EXISTS idx_reminder_status ON reminder (status);
CREATE INDEX IF NOT EXISTS idx_reminder_due_at ON reminder (due_at_epoch);

CREATE TABLE IF NOT EXISTS preference (
	user_id TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	memory_ref TEXT,
	updated_ts INTEGER NOT NULL,
	PRIMARY KEY (user_id, key)
);

CREATE TABLE IF NOT EXISTS behavior_stats (
	user_id TEXT PRIMARY KEY,
	create_count INTEGER NOT NULL DEFAULT 0,
	update_count INTEGER NOT NULL DEFAULT 0,
	snooze_count INTEGER NOT NULL DEFAULT 0,
	snooze_minutes_total INTEGER NOT NULL DEFAULT 0,
	done_count INTEGER NOT NULL DEFAULT 0,
	complete_minutes_total INTEGER NOT NULL DEFAULT 0,
	last_event_ts INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS conversation_message (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_user_id ON conversation_message (user_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	action TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	created_ts INTEGER NOT NULL
);
`

// Migrate creates the schema when missing. Statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to migrate schema")
	}
	return nil
}
