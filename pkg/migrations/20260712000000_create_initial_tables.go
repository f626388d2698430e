package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE families (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				family_id INTEGER REFERENCES families (id) ON DELETE CASCADE NOT NULL,
				name TEXT NOT NULL,
				email TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'child' CHECK (role IN ('parent', 'child')),
				is_active BOOLEAN NOT NULL DEFAULT TRUE
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE UNIQUE INDEX ux_users_email ON users (email COLLATE NOCASE)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE devices (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				family_id INTEGER REFERENCES families (id) ON DELETE CASCADE NOT NULL,
				user_id INTEGER REFERENCES users (id) ON DELETE CASCADE NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				platform TEXT NOT NULL DEFAULT '',
				last_seen_at TIMESTAMPTZ,
				last_sync_at TIMESTAMPTZ
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX ix_devices_family_id ON devices (family_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE tasks (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				family_id INTEGER REFERENCES families (id) ON DELETE CASCADE NOT NULL,
				title TEXT NOT NULL,
				notes TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'done')),
				assigned_to INTEGER REFERENCES users (id) ON DELETE SET NULL,
				due_date TIMESTAMPTZ,
				points INTEGER NOT NULL DEFAULT 0,
				version INTEGER NOT NULL DEFAULT 1,
				deleted_at TIMESTAMPTZ
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX ix_tasks_family_updated ON tasks (family_id, updated_at)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE events (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				family_id INTEGER REFERENCES families (id) ON DELETE CASCADE NOT NULL,
				title TEXT NOT NULL,
				location TEXT NOT NULL DEFAULT '',
				starts_at TIMESTAMPTZ NOT NULL,
				ends_at TIMESTAMPTZ,
				all_day BOOLEAN NOT NULL DEFAULT FALSE,
				deleted_at TIMESTAMPTZ
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX ix_events_family_updated ON events (family_id, updated_at)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE points_ledger (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				family_id INTEGER REFERENCES families (id) ON DELETE CASCADE NOT NULL,
				user_id INTEGER REFERENCES users (id) ON DELETE CASCADE NOT NULL,
				task_id TEXT REFERENCES tasks (id) ON DELETE SET NULL,
				points INTEGER NOT NULL,
				reason TEXT NOT NULL DEFAULT ''
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX ix_points_ledger_family_created ON points_ledger (family_id, created_at)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE user_streaks (
				id TEXT PRIMARY KEY,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				family_id INTEGER REFERENCES families (id) ON DELETE CASCADE NOT NULL,
				user_id INTEGER REFERENCES users (id) ON DELETE CASCADE NOT NULL,
				current_streak INTEGER NOT NULL DEFAULT 0,
				longest_streak INTEGER NOT NULL DEFAULT 0,
				last_completed_date TIMESTAMPTZ
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE UNIQUE INDEX ux_user_streaks_user ON user_streaks (user_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE badges (
				id TEXT PRIMARY KEY,
				family_id INTEGER REFERENCES families (id) ON DELETE CASCADE NOT NULL,
				user_id INTEGER REFERENCES users (id) ON DELETE CASCADE NOT NULL,
				kind TEXT NOT NULL,
				awarded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE sync_audit_log (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				family_id INTEGER REFERENCES families (id) ON DELETE CASCADE NOT NULL,
				device_id TEXT NOT NULL,
				entity_type TEXT NOT NULL,
				entity_id TEXT NOT NULL,
				action TEXT NOT NULL,
				resolution TEXT NOT NULL,
				client_version INTEGER NOT NULL DEFAULT 0,
				server_version INTEGER NOT NULL DEFAULT 0
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX ix_sync_audit_log_family_created ON sync_audit_log (family_id, created_at)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		tables := []string{
			"sync_audit_log",
			"badges",
			"user_streaks",
			"points_ledger",
			"events",
			"tasks",
			"devices",
			"users",
			"families",
		}
		for _, table := range tables {
			_, err := db.Exec("DROP TABLE IF EXISTS " + table)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
