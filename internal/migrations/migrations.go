package migrations

import (
	"database/sql"
	"fmt"
)

// Schema migrations are applied in order and recorded in schema_migrations.
// Each entry must be safe to apply exactly once; Apply skips versions that
// have already been recorded.

const schemaV1 = `
CREATE TABLE IF NOT EXISTS queued_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id TEXT NOT NULL,
    payload BLOB NOT NULL,
    queued_at INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    retry_count INTEGER NOT NULL DEFAULT 0,
    max_retries INTEGER NOT NULL DEFAULT 3,
    last_error TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_queued_chat_id ON queued_messages(chat_id);
CREATE INDEX IF NOT EXISTS idx_queued_at ON queued_messages(queued_at);
CREATE INDEX IF NOT EXISTS idx_queued_status ON queued_messages(status);
CREATE INDEX IF NOT EXISTS idx_queued_status_time ON queued_messages(status, queued_at);

CREATE TRIGGER IF NOT EXISTS queued_messages_updated_at
AFTER UPDATE ON queued_messages
BEGIN
    UPDATE queued_messages SET updated_at = CURRENT_TIMESTAMP
    WHERE id = NEW.id;
END;
`

const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_queued_chat_status ON queued_messages(chat_id, status, queued_at);
`

var migrations = []struct {
	version int
	schema  string
}{
	{1, schemaV1},
	{2, schemaV2},
}

// LatestVersion is the schema version Apply brings a database to.
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}

// Apply brings the database schema up to the latest version. It is idempotent:
// already-applied versions are skipped. Any failure leaves the current
// migration rolled back and is fatal for the open.
func Apply(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := isApplied(db, m.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.schema); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("migration %d failed: %w (rollback error: %v)", m.version, err, rbErr)
			}
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("failed to record migration %d: %w (rollback error: %v)", m.version, err, rbErr)
			}
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}

// CurrentVersion returns the highest applied schema version, or 0 for a fresh
// database.
func CurrentVersion(db *sql.DB) (int, error) {
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'").Scan(&name)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}

	var version sql.NullInt64
	err = db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

func isApplied(db *sql.DB, version int) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check migration %d: %w", version, err)
	}
	return count > 0, nil
}
