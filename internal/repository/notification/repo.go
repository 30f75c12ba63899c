package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wb-go/wbf/dbpg"

	"github.com/akarpovich/notification-service/internal/model"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrInvalidStatusTransition is returned when a terminal write finds the
	// record no longer PENDING. The status machine only allows
	// PENDING -> SENT and PENDING -> FAILED.
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// ListFilter narrows a notification listing. Empty Channels or Statuses mean
// "all values of that dimension".
type ListFilter struct {
	RecipientID string
	Channels    []model.Channel
	Statuses    []model.Status
	Page        int
	Size        int
}

// Repository provides methods to interact with the notifications table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new notification repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new notification and returns its assigned ID.
func (r *Repository) Create(ctx context.Context, n model.Notification) (uuid.UUID, error) {
	query := `
		INSERT INTO notifications (
		    recipient_id, channel, payload, status, created_at, is_read, archived
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id;
    `

	var id uuid.UUID
	err := r.db.Master.QueryRowContext(
		ctx, query, n.RecipientID, string(n.Channel), n.Payload, string(n.Status), n.CreatedAt, n.IsRead, n.Archived,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create notification: %w", err)
	}

	return id, nil
}

// GetByID retrieves a single notification by its ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	query := `
		SELECT id, recipient_id, channel, payload, status, created_at, sent_at, error_description, is_read, archived
		FROM notifications
		WHERE id = $1;
    `

	n, err := scanNotification(r.db.Master.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Notification{}, ErrNotificationNotFound
		}

		return model.Notification{}, fmt.Errorf("failed to get notification: %w", err)
	}

	return n, nil
}

// GetStatusByID retrieves only the delivery status of a notification.
func (r *Repository) GetStatusByID(ctx context.Context, id uuid.UUID) (model.Status, error) {
	query := `
		SELECT status
		FROM notifications
		WHERE id = $1;
    `

	var status string
	err := r.db.Master.QueryRowContext(ctx, query, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotificationNotFound
		}

		return "", fmt.Errorf("failed to get notification status: %w", err)
	}

	return model.Status(status), nil
}

// List retrieves one page of notifications for a recipient, newest first,
// along with the total number of matching records.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]model.Notification, int, error) {
	channels := make([]string, 0, len(f.Channels))
	for _, c := range f.Channels {
		channels = append(channels, string(c))
	}

	statuses := make([]string, 0, len(f.Statuses))
	for _, s := range f.Statuses {
		statuses = append(statuses, string(s))
	}

	countQuery := `
		SELECT count(*)
		FROM notifications
		WHERE recipient_id = $1 AND channel = ANY($2) AND status = ANY($3);
    `

	var total int
	err := r.db.Master.QueryRowContext(ctx, countQuery, f.RecipientID, pq.Array(channels), pq.Array(statuses)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query := `
		SELECT id, recipient_id, channel, payload, status, created_at, sent_at, error_description, is_read, archived
		FROM notifications
		WHERE recipient_id = $1 AND channel = ANY($2) AND status = ANY($3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5;
    `

	rows, err := r.db.QueryContext(
		ctx, query, f.RecipientID, pq.Array(channels), pq.Array(statuses), f.Size, f.Page*f.Size,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}

		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return notifications, total, nil
}

// MarkSent transitions a PENDING notification to SENT and records the send time.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE notifications
		SET status = $1, sent_at = $2, error_description = NULL
		WHERE id = $3 AND status = $4;
    `

	res, err := r.db.ExecContext(ctx, query, string(model.StatusSent), sentAt, id, string(model.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrInvalidStatusTransition
	}

	return nil
}

// MarkFailed transitions a PENDING notification to FAILED and records the
// final failure description.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, description string) error {
	query := `
		UPDATE notifications
		SET status = $1, error_description = $2, sent_at = NULL
		WHERE id = $3 AND status = $4;
    `

	res, err := r.db.ExecContext(ctx, query, string(model.StatusFailed), description, id, string(model.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrInvalidStatusTransition
	}

	return nil
}

// SetRead updates the read flag of a notification.
func (r *Repository) SetRead(ctx context.Context, id uuid.UUID, read bool) error {
	query := `
		UPDATE notifications
		SET is_read = $1
		WHERE id = $2;
    `

	res, err := r.db.ExecContext(ctx, query, read, id)
	if err != nil {
		return fmt.Errorf("failed to update read flag: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// ArchiveOlderThan marks all unarchived notifications created before the
// cutoff as archived and returns how many rows changed.
func (r *Repository) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE notifications
		SET archived = TRUE
		WHERE created_at < $1 AND NOT archived;
    `

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to archive notifications: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count archived notifications: %w", err)
	}

	return rows, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (model.Notification, error) {
	var (
		n       model.Notification
		channel string
		status  string
		sentAt  sql.NullTime
		errDesc sql.NullString
	)

	err := row.Scan(
		&n.ID, &n.RecipientID, &channel, &n.Payload, &status,
		&n.CreatedAt, &sentAt, &errDesc, &n.IsRead, &n.Archived,
	)
	if err != nil {
		return model.Notification{}, err
	}

	n.Channel = model.Channel(channel)
	n.Status = model.Status(status)
	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}
	if errDesc.Valid {
		n.ErrorDescription = errDesc.String
	}

	return n, nil
}
