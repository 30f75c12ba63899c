package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/akarpovich/notification-service/internal/metrics"
	"github.com/akarpovich/notification-service/internal/model"
	"github.com/akarpovich/notification-service/internal/rabbitmq/queue"
	notifrepo "github.com/akarpovich/notification-service/internal/repository/notification"
)

//go:generate mockgen -source=handler.go -destination=../../../mocks/rabbitmq/handlers/delivery/mock.go -package=mocks
type deliveryService interface {
	Send(to, payload string, channel model.Channel) error
	MarkSent(ctx context.Context, strategy retry.Strategy, id uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, strategy retry.Strategy, id uuid.UUID, description string) error
}

// Handler processes one broker message: it attempts the channel's external
// send under the retry strategy and writes the terminal status. The retry
// loop is local to the invocation; the message is never re-published.
type Handler struct {
	service deliveryService
	metrics *metrics.Metrics
}

func NewHandler(svc deliveryService, m *metrics.Metrics) *Handler {
	return &Handler{service: svc, metrics: m}
}

// HandleMessage blocks until the send succeeds or the attempt budget is
// exhausted, then transitions the record to SENT or FAILED. Worst case it
// holds its worker for attempts x delay, which bounds per-message latency.
func (h *Handler) HandleMessage(ctx context.Context, msg queue.Message, strategy retry.Strategy) {
	zlog.Logger.Info().
		Str("id", msg.ID.String()).
		Str("channel", string(msg.Channel)).
		Msg("delivering notification")

	err := retry.Do(func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return h.service.Send(msg.RecipientID, msg.Payload, msg.Channel)
		}
	}, strategy)

	if err != nil {
		h.metrics.Delivered(msg.Channel, model.StatusFailed)
		zlog.Logger.Warn().Err(err).Str("id", msg.ID.String()).Msgf("delivery failed after %d attempts", strategy.Attempts)

		if setErr := h.service.MarkFailed(ctx, strategy, msg.ID, err.Error()); setErr != nil {
			logTerminalWriteError(setErr, msg.ID, model.StatusFailed)
		}
		return
	}

	h.metrics.Delivered(msg.Channel, model.StatusSent)
	zlog.Logger.Info().Str("id", msg.ID.String()).Msg("notification sent")

	if setErr := h.service.MarkSent(ctx, strategy, msg.ID, time.Now().UTC()); setErr != nil {
		logTerminalWriteError(setErr, msg.ID, model.StatusSent)
	}
}

func logTerminalWriteError(err error, id uuid.UUID, status model.Status) {
	// A terminal record on a redelivered message is the expected
	// at-least-once case, not a fault.
	if errors.Is(err, notifrepo.ErrInvalidStatusTransition) {
		zlog.Logger.Warn().Str("id", id.String()).Msg("record already terminal, keeping existing status")
		return
	}
	if errors.Is(err, notifrepo.ErrNotificationNotFound) {
		zlog.Logger.Warn().Str("id", id.String()).Msg("notification not found")
		return
	}

	zlog.Logger.Error().Err(err).Str("id", id.String()).Msgf("failed to set status=%s", status)
}
