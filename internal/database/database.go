package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"sendqueue/internal/errors"
	"sendqueue/internal/migrations"
	"sendqueue/internal/models"
	"sendqueue/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the persistent queue store. Every mutation is a single atomic
// statement; an entry that was saved successfully survives process restart
// until it is explicitly deleted.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	// Validate database path to prevent directory traversal
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageConnection, "failed to open database")
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageConnection, "failed to ping database")
	}

	if err := migrations.Apply(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to migrate database: %w (close error: %v)", err, closeErr)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageMigration, "failed to migrate database")
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// SaveQueuedMessage durably records a new queue entry and returns its
// store-assigned id.
func (d *Database) SaveQueuedMessage(ctx context.Context, msg *models.QueuedMessage) (int64, error) {
	encryptedChatID, err := d.encryptor.EncryptForLookupIfEnabled(msg.ChatID)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt chat ID: %w", err)
	}

	encryptedPayload, err := d.encryptor.EncryptIfEnabled(string(msg.Payload))
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt payload: %w", err)
	}

	var id int64
	err = retryableDBOperation(ctx, func() error {
		result, execErr := d.db.ExecContext(ctx, InsertQueuedMessageQuery,
			encryptedChatID,
			[]byte(encryptedPayload),
			msg.QueuedAt,
			msg.Status,
			msg.RetryCount,
			msg.MaxRetries,
			nullableString(msg.LastError),
		)
		if execErr != nil {
			return execErr
		}
		id, execErr = result.LastInsertId()
		return execErr
	}, "save queued message")

	if err != nil {
		return 0, errors.NewStorageError("save", err)
	}
	return id, nil
}

// GetQueuedMessage returns the entry with the given id, or nil if it does not
// exist.
func (d *Database) GetQueuedMessage(ctx context.Context, id int64) (*models.QueuedMessage, error) {
	row := d.db.QueryRowContext(ctx, SelectQueuedMessageByIDQuery, id)

	msg, err := d.scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStorageError("get", err)
	}
	return msg, nil
}

// GetMessagesByStatus returns entries with the given status, oldest first.
// An empty chatID matches all chats.
func (d *Database) GetMessagesByStatus(ctx context.Context, chatID string, status models.MessageStatus) ([]models.QueuedMessage, error) {
	var rows *sql.Rows
	var err error

	if chatID == "" {
		rows, err = d.db.QueryContext(ctx, SelectMessagesByStatusQuery, status)
	} else {
		encryptedChatID, encErr := d.encryptor.EncryptForLookupIfEnabled(chatID)
		if encErr != nil {
			return nil, fmt.Errorf("failed to encrypt chat ID: %w", encErr)
		}
		rows, err = d.db.QueryContext(ctx, SelectMessagesByChatAndStatusQuery, encryptedChatID, status)
	}
	if err != nil {
		return nil, errors.NewStorageError("query", err)
	}
	defer rows.Close()

	return d.collectMessages(rows)
}

// GetAllMessages returns every entry regardless of status, oldest first.
// An empty chatID matches all chats.
func (d *Database) GetAllMessages(ctx context.Context, chatID string) ([]models.QueuedMessage, error) {
	var rows *sql.Rows
	var err error

	if chatID == "" {
		rows, err = d.db.QueryContext(ctx, SelectAllMessagesQuery)
	} else {
		encryptedChatID, encErr := d.encryptor.EncryptForLookupIfEnabled(chatID)
		if encErr != nil {
			return nil, fmt.Errorf("failed to encrypt chat ID: %w", encErr)
		}
		rows, err = d.db.QueryContext(ctx, SelectMessagesByChatQuery, encryptedChatID)
	}
	if err != nil {
		return nil, errors.NewStorageError("query", err)
	}
	defer rows.Close()

	return d.collectMessages(rows)
}

// UpdateRetryState persists the retry counter, status and last delivery error
// for one entry. Returns a NOT_FOUND error if the entry no longer exists,
// e.g. it was cleared concurrently.
func (d *Database) UpdateRetryState(ctx context.Context, id int64, retryCount int, status models.MessageStatus, lastError string) error {
	err := retryableDBOperation(ctx, func() error {
		result, execErr := d.db.ExecContext(ctx, UpdateRetryStateQuery,
			retryCount, status, nullableString(lastError), id)
		if execErr != nil {
			return execErr
		}
		rows, execErr := result.RowsAffected()
		if execErr != nil {
			return execErr
		}
		if rows == 0 {
			return errors.NewNotFoundError("queued message", id)
		}
		return nil
	}, "update retry state")

	if err != nil {
		if errors.IsNotFound(err) {
			return err
		}
		return errors.NewStorageError("update", err)
	}
	return nil
}

// DeleteQueuedMessage removes one entry. Returns a NOT_FOUND error if the
// entry no longer exists.
func (d *Database) DeleteQueuedMessage(ctx context.Context, id int64) error {
	err := retryableDBOperation(ctx, func() error {
		result, execErr := d.db.ExecContext(ctx, DeleteQueuedMessageQuery, id)
		if execErr != nil {
			return execErr
		}
		rows, execErr := result.RowsAffected()
		if execErr != nil {
			return execErr
		}
		if rows == 0 {
			return errors.NewNotFoundError("queued message", id)
		}
		return nil
	}, "delete queued message")

	if err != nil {
		if errors.IsNotFound(err) {
			return err
		}
		return errors.NewStorageError("delete", err)
	}
	return nil
}

// ClearChat removes every entry for one chat and returns the number removed.
func (d *Database) ClearChat(ctx context.Context, chatID string) (int64, error) {
	encryptedChatID, err := d.encryptor.EncryptForLookupIfEnabled(chatID)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt chat ID: %w", err)
	}

	var cleared int64
	err = retryableDBOperation(ctx, func() error {
		result, execErr := d.db.ExecContext(ctx, DeleteMessagesByChatQuery, encryptedChatID)
		if execErr != nil {
			return execErr
		}
		cleared, execErr = result.RowsAffected()
		return execErr
	}, "clear chat queue")

	if err != nil {
		return 0, errors.NewStorageError("clear", err)
	}
	return cleared, nil
}

// ClearAll removes every entry and returns the number removed.
func (d *Database) ClearAll(ctx context.Context) (int64, error) {
	var cleared int64
	err := retryableDBOperation(ctx, func() error {
		result, execErr := d.db.ExecContext(ctx, DeleteAllMessagesQuery)
		if execErr != nil {
			return execErr
		}
		cleared, execErr = result.RowsAffected()
		return execErr
	}, "clear all queues")

	if err != nil {
		return 0, errors.NewStorageError("clear", err)
	}
	return cleared, nil
}

// CountByStatus returns the number of entries with the given status. An empty
// chatID matches all chats.
func (d *Database) CountByStatus(ctx context.Context, chatID string, status models.MessageStatus) (int, error) {
	var count int
	var err error

	if chatID == "" {
		err = d.db.QueryRowContext(ctx, CountMessagesByStatusQuery, status).Scan(&count)
	} else {
		encryptedChatID, encErr := d.encryptor.EncryptForLookupIfEnabled(chatID)
		if encErr != nil {
			return 0, fmt.Errorf("failed to encrypt chat ID: %w", encErr)
		}
		err = d.db.QueryRowContext(ctx, CountMessagesByChatAndStatusQuery, encryptedChatID, status).Scan(&count)
	}
	if err != nil {
		return 0, errors.NewStorageError("count", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (d *Database) scanMessage(row rowScanner) (*models.QueuedMessage, error) {
	var encryptedChatID string
	var encryptedPayload []byte
	var lastError sql.NullString
	msg := &models.QueuedMessage{}

	err := row.Scan(
		&msg.ID,
		&encryptedChatID,
		&encryptedPayload,
		&msg.QueuedAt,
		&msg.Status,
		&msg.RetryCount,
		&msg.MaxRetries,
		&lastError,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.ChatID, err = d.encryptor.DecryptIfEnabled(encryptedChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt chat ID: %w", err)
	}

	payload, err := d.encryptor.DecryptIfEnabled(string(encryptedPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payload: %w", err)
	}
	msg.Payload = []byte(payload)

	if lastError.Valid {
		msg.LastError = lastError.String
	}

	return msg, nil
}

func (d *Database) collectMessages(rows *sql.Rows) ([]models.QueuedMessage, error) {
	var messages []models.QueuedMessage
	for rows.Next() {
		msg, err := d.scanMessage(rows)
		if err != nil {
			return nil, errors.NewStorageError("scan", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("scan", err)
	}
	return messages, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
