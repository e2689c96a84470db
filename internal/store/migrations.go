package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const usersTable = `CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			fullname TEXT NOT NULL,
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			roles TEXT NOT NULL DEFAULT '["user"]',
			deleted INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`

const usersCreatedAtIndex = `CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at)`

// Only active accounts hold an email; a soft-deleted user's address can be registered again.
const usersEmailIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active ON users(email) WHERE deleted = 0`

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Users table - accounts; roles is a JSON array of lowercase role names
		usersTable,

		// Feedbacks table - star ratings left by users
		`CREATE TABLE IF NOT EXISTS feedbacks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			stars INTEGER NOT NULL CHECK(stars BETWEEN 1 AND 5),
			feedback TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,

		// Sessions table - server-side login sessions
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,

		// Reset codes table - one pending password reset per email
		`CREATE TABLE IF NOT EXISTS reset_codes (
			email TEXT PRIMARY KEY,
			code_hash TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			expires_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		// Samples table - labeled landmark vectors for the classifier, listed in rowid order
		`CREATE TABLE IF NOT EXISTS samples (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			vector TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		usersCreatedAtIndex,
		usersEmailIndex,
		`CREATE INDEX IF NOT EXISTS idx_feedbacks_user_id ON feedbacks(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
	}

	if err := s.dropUserEmailConstraint(); err != nil {
		return fmt.Errorf("rebuild users table: %w", err)
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	// Columns added after a table was first released.
	return s.addColumn("reset_codes", "attempts", "INTEGER NOT NULL DEFAULT 0")
}

// addColumn adds column to table unless it already exists.
func (s *Store) addColumn(table, column, definition string) error {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err = s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}

// dropUserEmailConstraint rebuilds a users table created with a column-level
// UNIQUE on email, which also covered soft-deleted rows. Foreign keys are
// switched off on a dedicated connection so dropping the old table does not
// cascade into sessions and feedbacks.
func (s *Store) dropUserEmailConstraint() error {
	var ddl string
	err := s.db.QueryRow(`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'users'`).Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if !strings.Contains(ddl, "email TEXT NOT NULL UNIQUE") {
		return nil
	}

	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
		return err
	}
	defer conn.ExecContext(ctx, `PRAGMA foreign_keys = ON`)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	steps := []string{
		strings.Replace(usersTable, "IF NOT EXISTS users", "users_new", 1),
		`INSERT INTO users_new (` + userColumns + `) SELECT ` + userColumns + ` FROM users`,
		`DROP TABLE users`,
		`ALTER TABLE users_new RENAME TO users`,
		usersCreatedAtIndex,
		usersEmailIndex,
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step); err != nil {
			return err
		}
	}
	return tx.Commit()
}
