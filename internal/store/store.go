// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"time"

	apperrors "cityreport-notifications/internal/common/errors"
	"cityreport-notifications/internal/common/logger"
	"cityreport-notifications/internal/models"
	"cityreport-notifications/internal/stream"

	"github.com/google/uuid"
)

// DefaultListLimit caps ListForRecipient when the caller passes no limit.
const DefaultListLimit = 50

// NotificationStore is the durable collection of notification records.
// Implementations are the single source of truth that client sessions
// eventually converge on.
type NotificationStore interface {
	ListForRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
	CreateBatch(ctx context.Context, batch []models.Notification) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// PostgresStore persists notifications and emits one row event per
// insert/update through the stream publisher, standing in for the original
// database-level realtime channel. Deletes emit nothing: subscribers only
// consume insert and update events.
type PostgresStore struct {
	db        *sql.DB
	publisher stream.Publisher
	logger    logger.Logger
}

func NewPostgresStore(db *sql.DB, publisher stream.Publisher, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:        db,
		publisher: publisher,
		logger:    log.WithFields(map[string]interface{}{"component": "notification-store"}),
	}
}

const notificationColumns = `id, recipient_id, title, body, severity, is_read, created_at, COALESCE(link, '')`

// ListForRecipient returns the recipient's notifications newest first,
// bounded by limit (DefaultListLimit when limit < 1).
func (s *PostgresStore) ListForRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	if limit < 1 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE recipient_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		recipientID, limit,
	)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, apperrors.NewStoreUnavailableError(err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	return out, nil
}

// CreateBatch inserts the batch in one transaction, all-or-nothing. Missing
// ids and creation timestamps are assigned here. One insert row event is
// published per record after commit.
func (s *PostgresStore) CreateBatch(ctx context.Context, batch []models.Notification) ([]models.Notification, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}

	now := time.Now().UTC()
	created := make([]models.Notification, 0, len(batch))
	for _, n := range batch {
		if n.ID == "" {
			n.ID = uuid.New().String()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		if n.Severity == "" {
			n.Severity = models.SeverityInfo
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO notifications (id, recipient_id, title, body, severity, is_read, created_at, link)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))`,
			n.ID, n.RecipientID, n.Title, n.Body, string(n.Severity), n.Read, n.CreatedAt, n.Link,
		)
		if err != nil {
			_ = tx.Rollback()
			return nil, apperrors.NewStoreWriteFailedError(err)
		}
		created = append(created, n)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewStoreWriteFailedError(err)
	}

	for _, n := range created {
		s.publish(n.RecipientID, stream.RowEvent{Kind: stream.EventInsert, Notification: n})
	}
	return created, nil
}

// MarkRead sets the read flag and returns the record. Marking an already-read
// notification succeeds and returns it unchanged.
func (s *PostgresStore) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE notifications SET is_read = TRUE
		 WHERE id = $1
		 RETURNING `+notificationColumns,
		id,
	)

	var n models.Notification
	if err := scanNotification(row, &n); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError(id)
		}
		return nil, apperrors.NewStoreUnavailableError(err)
	}

	s.publish(n.RecipientID, stream.RowEvent{Kind: stream.EventUpdate, Notification: n})
	return &n, nil
}

// MarkAllRead flips every unread notification of the recipient and returns
// the number of records transitioned. Idempotent: a second call returns 0.
func (s *PostgresStore) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE notifications SET is_read = TRUE
		 WHERE recipient_id = $1 AND is_read = FALSE
		 RETURNING `+notificationColumns,
		recipientID,
	)
	if err != nil {
		return 0, apperrors.NewStoreUnavailableError(err)
	}
	defer rows.Close()

	var updated []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := scanNotification(rows, &n); err != nil {
			return 0, apperrors.NewStoreUnavailableError(err)
		}
		updated = append(updated, n)
	}
	if err := rows.Err(); err != nil {
		return 0, apperrors.NewStoreUnavailableError(err)
	}

	for _, n := range updated {
		s.publish(n.RecipientID, stream.RowEvent{Kind: stream.EventUpdate, Notification: n})
	}
	return len(updated), nil
}

// Delete removes the record. A missing id is not an error at this layer, to
// tolerate races with concurrent deletion from another session of the same
// user.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	return nil
}

func (s *PostgresStore) publish(recipientID string, ev stream.RowEvent) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(recipientID, ev)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(sc scanner, n *models.Notification) error {
	var severity string
	if err := sc.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Body, &severity, &n.Read, &n.CreatedAt, &n.Link); err != nil {
		return err
	}
	n.Severity = models.Severity(severity)
	return nil
}
