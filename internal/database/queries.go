package database

// Queued message queries
const (
	InsertQueuedMessageQuery = `
		INSERT INTO queued_messages (
			chat_id, payload, queued_at, status, retry_count, max_retries, last_error
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	queuedMessageColumns = `
		id, chat_id, payload, queued_at, status, retry_count, max_retries,
		last_error, created_at, updated_at
	`

	SelectQueuedMessageByIDQuery = `
		SELECT ` + queuedMessageColumns + `
		FROM queued_messages
		WHERE id = ?
	`

	SelectMessagesByStatusQuery = `
		SELECT ` + queuedMessageColumns + `
		FROM queued_messages
		WHERE status = ?
		ORDER BY queued_at ASC, id ASC
	`

	SelectMessagesByChatAndStatusQuery = `
		SELECT ` + queuedMessageColumns + `
		FROM queued_messages
		WHERE chat_id = ? AND status = ?
		ORDER BY queued_at ASC, id ASC
	`

	SelectAllMessagesQuery = `
		SELECT ` + queuedMessageColumns + `
		FROM queued_messages
		ORDER BY queued_at ASC, id ASC
	`

	SelectMessagesByChatQuery = `
		SELECT ` + queuedMessageColumns + `
		FROM queued_messages
		WHERE chat_id = ?
		ORDER BY queued_at ASC, id ASC
	`

	UpdateRetryStateQuery = `
		UPDATE queued_messages
		SET retry_count = ?, status = ?, last_error = ?
		WHERE id = ?
	`

	DeleteQueuedMessageQuery = `
		DELETE FROM queued_messages
		WHERE id = ?
	`

	DeleteMessagesByChatQuery = `
		DELETE FROM queued_messages
		WHERE chat_id = ?
	`

	DeleteAllMessagesQuery = `
		DELETE FROM queued_messages
	`

	CountMessagesByStatusQuery = `
		SELECT COUNT(*)
		FROM queued_messages
		WHERE status = ?
	`

	CountMessagesByChatAndStatusQuery = `
		SELECT COUNT(*)
		FROM queued_messages
		WHERE chat_id = ? AND status = ?
	`
)
