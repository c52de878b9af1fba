package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const schemaVersion = 1

// MiscellaneousSlug is the reserved section that owns books whose section
// was deleted. It always exists and cannot be deleted.
const MiscellaneousSlug = "miscellaneous"

func Migrate(db *sqlx.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return fmt.Errorf("create meta: %w", err)
	}

	var current int
	err := db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current >= schemaVersion {
		return ensureMiscellaneous(db)
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'librarian')),
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sections (
			slug TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			date_created TIMESTAMP NOT NULL,
			date_modified TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS books (
			slug TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			description TEXT NOT NULL,
			section_slug TEXT NOT NULL REFERENCES sections(slug) ON UPDATE CASCADE,
			date_created TIMESTAMP NOT NULL,
			date_modified TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS requests (
			slug TEXT PRIMARY KEY,
			username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE ON UPDATE CASCADE,
			book_slug TEXT NOT NULL REFERENCES books(slug) ON DELETE CASCADE ON UPDATE CASCADE,
			days INTEGER NOT NULL CHECK (days BETWEEN 1 AND 7),
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected')),
			date_created TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS issued_books (
			slug TEXT PRIMARY KEY,
			username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE ON UPDATE CASCADE,
			issued_by_username TEXT REFERENCES users(username) ON DELETE SET NULL ON UPDATE CASCADE,
			book_slug TEXT NOT NULL REFERENCES books(slug) ON DELETE CASCADE ON UPDATE CASCADE,
			status TEXT NOT NULL DEFAULT 'current' CHECK (status IN ('current', 'returned')),
			to_date TIMESTAMP NOT NULL,
			date_created TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS feedbacks (
			slug TEXT PRIMARY KEY,
			username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE ON UPDATE CASCADE,
			book_slug TEXT NOT NULL REFERENCES books(slug) ON DELETE CASCADE ON UPDATE CASCADE,
			rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			content TEXT NOT NULL,
			date_created TIMESTAMP NOT NULL,
			date_modified TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_user_status ON requests(username, status);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_status_created ON requests(status, date_created);`,
		`CREATE INDEX IF NOT EXISTS idx_issued_user_status ON issued_books(username, status);`,
		`CREATE INDEX IF NOT EXISTS idx_issued_status_to_date ON issued_books(status, to_date);`,
		`CREATE INDEX IF NOT EXISTS idx_books_section ON books(section_slug);`,
	}

	for i, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return fmt.Errorf("migrate stmt %d: %w", i, err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key, value) VALUES('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return ensureMiscellaneous(db)
}

func ensureMiscellaneous(db *sqlx.DB) error {
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT OR IGNORE INTO sections (slug, title, description, date_created, date_modified)
		VALUES (?, ?, ?, ?, ?)`,
		MiscellaneousSlug, "Miscellaneous",
		"This section contains books which don't belong to any section.", now, now)
	if err != nil {
		return fmt.Errorf("create miscellaneous section: %w", err)
	}
	return nil
}
