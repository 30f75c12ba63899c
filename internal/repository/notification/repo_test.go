package notification

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/dbpg"

	"github.com/akarpovich/notification-service/internal/model"
)

func setupMockDB(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}

	wrappedDB := &dbpg.DB{Master: db}
	repo := NewRepository(wrappedDB)

	return repo, mock
}

func notificationColumns() []string {
	return []string{
		"id", "recipient_id", "channel", "payload", "status",
		"created_at", "sent_at", "error_description", "is_read", "archived",
	}
}

func TestCreate(t *testing.T) {
	repo, mock := setupMockDB(t)

	notificationID := uuid.New()
	n := model.Notification{
		RecipientID: "u1",
		Channel:     model.ChannelEmail,
		Payload:     "hi",
		Status:      model.StatusPending,
		CreatedAt:   time.Now(),
	}

	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO notifications (
		    recipient_id, channel, payload, status, created_at, is_read, archived
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id;
    `)).
		WithArgs(n.RecipientID, "EMAIL", n.Payload, "PENDING", n.CreatedAt, false, false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(notificationID))

	id, err := repo.Create(context.Background(), n)
	assert.NoError(t, err)
	assert.Equal(t, notificationID, id)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	createdAt := time.Now()
	sentAt := createdAt.Add(time.Second)

	query := regexp.QuoteMeta(`
		SELECT id, recipient_id, channel, payload, status, created_at, sent_at, error_description, is_read, archived
		FROM notifications
		WHERE id = $1;
    `)

	mock.ExpectQuery(query).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(notificationColumns()).
			AddRow(id, "u1", "EMAIL", "hi", "SENT", createdAt, sentAt, nil, false, false))

	n, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, id, n.ID)
	assert.Equal(t, model.ChannelEmail, n.Channel)
	assert.Equal(t, model.StatusSent, n.Status)
	if assert.NotNil(t, n.SentAt) {
		assert.WithinDuration(t, sentAt, *n.SentAt, time.Second)
	}
	assert.Empty(t, n.ErrorDescription)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(query).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatusByID(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()

	query := regexp.QuoteMeta(`
		SELECT status
		FROM notifications
		WHERE id = $1;
    `)

	mock.ExpectQuery(query).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING"))

	status, err := repo.GetStatusByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusPending, status)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(query).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetStatusByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	repo, mock := setupMockDB(t)

	id1 := uuid.New()
	id2 := uuid.New()
	now := time.Now()

	channels := []string{"EMAIL", "SMS"}
	statuses := []string{"FAILED"}

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT count(*)
		FROM notifications
		WHERE recipient_id = $1 AND channel = ANY($2) AND status = ANY($3);
    `)).
		WithArgs("u1", pq.Array(channels), pq.Array(statuses)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, recipient_id, channel, payload, status, created_at, sent_at, error_description, is_read, archived
		FROM notifications
		WHERE recipient_id = $1 AND channel = ANY($2) AND status = ANY($3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5;
    `)).
		WithArgs("u1", pq.Array(channels), pq.Array(statuses), 20, 0).
		WillReturnRows(sqlmock.NewRows(notificationColumns()).
			AddRow(id1, "u1", "EMAIL", "a", "FAILED", now, nil, "smtp timeout", false, false).
			AddRow(id2, "u1", "SMS", "b", "FAILED", now.Add(-time.Minute), nil, "gateway down", true, false))

	list, total, err := repo.List(context.Background(), ListFilter{
		RecipientID: "u1",
		Channels:    []model.Channel{model.ChannelEmail, model.ChannelSMS},
		Statuses:    []model.Status{model.StatusFailed},
		Page:        0,
		Size:        20,
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, list, 2)
	assert.Equal(t, "smtp timeout", list[0].ErrorDescription)
	assert.Nil(t, list[0].SentAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSent(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	sentAt := time.Now()

	query := regexp.QuoteMeta(`
		UPDATE notifications
		SET status = $1, sent_at = $2, error_description = NULL
		WHERE id = $3 AND status = $4;
    `)

	mock.ExpectExec(query).
		WithArgs("SENT", sentAt, id, "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkSent(context.Background(), id, sentAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Record already terminal: the guarded update touches nothing.
	mock.ExpectExec(query).
		WithArgs("SENT", sentAt, id, "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.MarkSent(context.Background(), id, sentAt)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()

	query := regexp.QuoteMeta(`
		UPDATE notifications
		SET status = $1, error_description = $2, sent_at = NULL
		WHERE id = $3 AND status = $4;
    `)

	mock.ExpectExec(query).
		WithArgs("FAILED", "smtp timeout", id, "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkFailed(context.Background(), id, "smtp timeout")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec(query).
		WithArgs("FAILED", "smtp timeout", id, "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.MarkFailed(context.Background(), id, "smtp timeout")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRead(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()

	query := regexp.QuoteMeta(`
		UPDATE notifications
		SET is_read = $1
		WHERE id = $2;
    `)

	mock.ExpectExec(query).
		WithArgs(true, id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetRead(context.Background(), id, true)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec(query).
		WithArgs(false, id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.SetRead(context.Background(), id, false)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveOlderThan(t *testing.T) {
	repo, mock := setupMockDB(t)

	cutoff := time.Now().Add(-30 * 24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE notifications
		SET archived = TRUE
		WHERE created_at < $1 AND NOT archived;
    `)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	archived, err := repo.ArchiveOlderThan(context.Background(), cutoff)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), archived)
	assert.NoError(t, mock.ExpectationsWereMet())
}
