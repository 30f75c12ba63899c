package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/akarpovich/notification-service/internal/metrics"
	"github.com/akarpovich/notification-service/internal/model"
	"github.com/akarpovich/notification-service/internal/rabbitmq/queue"
	notifrepo "github.com/akarpovich/notification-service/internal/repository/notification"
)

//go:generate mockgen -source=service.go -destination=../../mocks/service/notification/mock.go -package=mocks

type notificationPublisher interface {
	Publish(msg queue.Message, strategy retry.Strategy) error
}

type notificationRepository interface {
	Create(context.Context, model.Notification) (uuid.UUID, error)
	GetByID(context.Context, uuid.UUID) (model.Notification, error)
	GetStatusByID(context.Context, uuid.UUID) (model.Status, error)
	List(context.Context, notifrepo.ListFilter) ([]model.Notification, int, error)
	MarkSent(context.Context, uuid.UUID, time.Time) error
	MarkFailed(context.Context, uuid.UUID, string) error
	SetRead(context.Context, uuid.UUID, bool) error
}

// Notifier performs the external side-effecting send for one channel.
type Notifier interface {
	Send(to string, payload string) error
}

type cache interface {
	SetWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}) error
	GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error)
}

// Service implements the dispatch fan-out, the status queries and the
// terminal-status writes used by the delivery workers.
type Service struct {
	repo      notificationRepository
	queue     notificationPublisher
	notifiers map[model.Channel]Notifier
	cache     cache
	metrics   *metrics.Metrics
}

func NewService(
	repo notificationRepository,
	queue notificationPublisher,
	notifiers map[model.Channel]Notifier,
	cache cache,
	m *metrics.Metrics,
) *Service {
	return &Service{repo: repo, queue: queue, notifiers: notifiers, cache: cache, metrics: m}
}

// Submit fans one request out into one PENDING record per requested channel,
// in the order the channels were given. Each record is persisted before its
// message is published; a record whose publish fails stays durably PENDING
// and is still returned as created.
//
// Fan-out is best-effort per channel: a persistence failure on one channel
// does not roll back siblings. Submit returns every record it did create
// together with the joined errors of the channels that failed.
func (s *Service) Submit(
	ctx context.Context,
	strategy retry.Strategy,
	recipientID string,
	payload string,
	channels []model.Channel,
) ([]model.Notification, error) {
	created := make([]model.Notification, 0, len(channels))
	var errs []error

	for _, channel := range channels {
		n := model.Notification{
			RecipientID: recipientID,
			Channel:     channel,
			Payload:     payload,
			Status:      model.StatusPending,
			CreatedAt:   time.Now().UTC(),
		}

		id, err := s.repo.Create(ctx, n)
		if err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", channel, err))
			continue
		}
		n.ID = id

		s.metrics.Created(channel)

		if err := s.cache.SetWithRetry(ctx, strategy, id.String(), string(n.Status)); err != nil {
			zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
		}

		msg := queue.Message{
			ID:          id,
			RecipientID: recipientID,
			Payload:     payload,
			Channel:     channel,
		}

		if err := s.queue.Publish(msg, strategy); err != nil {
			// The record stays PENDING with no automatic re-publish; the
			// counter is the operator's signal to reconcile out of band.
			s.metrics.PublishFailed(channel)
			zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to publish notification")
		}

		created = append(created, n)
	}

	return created, errors.Join(errs...)
}

// GetByID returns the full record for one notification.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return model.Notification{}, fmt.Errorf("get notification: %w", err)
	}

	return n, nil
}

// GetStatusByID returns the delivery status of a notification, serving from
// the cache when possible and backfilling it on a miss.
func (s *Service) GetStatusByID(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (model.Status, error) {
	cached, err := s.cache.GetWithRetry(ctx, strategy, id.String())
	if err == nil {
		return model.Status(cached), nil
	}
	if !errors.Is(err, redis.Nil) {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get notification status from cache")
	}

	status, err := s.repo.GetStatusByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get notification status: %w", err)
	}

	if err := s.cache.SetWithRetry(ctx, strategy, id.String(), string(status)); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
	}

	return status, nil
}

// List returns one page of a recipient's notifications plus the total count.
// Empty channel or status filters widen to all values of that dimension.
func (s *Service) List(ctx context.Context, f notifrepo.ListFilter) ([]model.Notification, int, error) {
	if len(f.Channels) == 0 {
		f.Channels = model.Channels()
	}
	if len(f.Statuses) == 0 {
		f.Statuses = model.Statuses()
	}
	if f.Page < 0 {
		f.Page = 0
	}
	if f.Size <= 0 {
		f.Size = 20
	}

	notifications, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	return notifications, total, nil
}

// SetRead updates the read flag. A missing id is ignored on purpose: the
// mutation endpoints report success regardless of whether the record exists.
func (s *Service) SetRead(ctx context.Context, id uuid.UUID, read bool) error {
	err := s.repo.SetRead(ctx, id, read)
	if err != nil {
		if errors.Is(err, notifrepo.ErrNotificationNotFound) {
			zlog.Logger.Warn().Str("id", id.String()).Msg("read toggle on unknown notification ignored")
			return nil
		}

		return fmt.Errorf("update read flag: %w", err)
	}

	return nil
}

// Send performs the external send for one channel.
func (s *Service) Send(to, payload string, channel model.Channel) error {
	notifier, ok := s.notifiers[channel]
	if !ok {
		return fmt.Errorf("unknown channel %s", channel)
	}

	s.metrics.DeliveryAttempt(channel)

	err := notifier.Send(to, payload)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	return nil
}

// MarkSent records a successful delivery.
func (s *Service) MarkSent(ctx context.Context, strategy retry.Strategy, id uuid.UUID, sentAt time.Time) error {
	err := s.repo.MarkSent(ctx, id, sentAt)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}

	if err := s.cache.SetWithRetry(ctx, strategy, id.String(), string(model.StatusSent)); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
	}

	return nil
}

// MarkFailed records an exhausted delivery with its final error description.
func (s *Service) MarkFailed(ctx context.Context, strategy retry.Strategy, id uuid.UUID, description string) error {
	err := s.repo.MarkFailed(ctx, id, description)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}

	if err := s.cache.SetWithRetry(ctx, strategy, id.String(), string(model.StatusFailed)); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
	}

	return nil
}
