package worker

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/akarpovich/notification-service/internal/model"
	"github.com/akarpovich/notification-service/internal/rabbitmq/queue"
	notifrepo "github.com/akarpovich/notification-service/internal/repository/notification"
)

//go:generate mockgen -source=delivery.go -destination=../mocks/worker/mock.go -package=mocks

type notificationConsumer interface {
	Consume(channel model.Channel, out chan<- queue.Message, strategy retry.Strategy) error
}

type messageHandler interface {
	HandleMessage(ctx context.Context, msg queue.Message, strategy retry.Strategy)
}

type notificationService interface {
	GetStatusByID(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (model.Status, error)
}

// Delivery pumps one channel's queue into the delivery handler. Every channel
// runs its own independent Delivery; ordering is only per record id, never
// across records.
type Delivery struct {
	channel model.Channel
	queue   notificationConsumer
	handler messageHandler
	service notificationService
}

func NewDelivery(channel model.Channel, q notificationConsumer, h messageHandler, s notificationService) *Delivery {
	return &Delivery{
		channel: channel,
		queue:   q,
		handler: h,
		service: s,
	}
}

// Run starts the consume loop and workerCount processing goroutines, then
// blocks until the context is cancelled. A message whose record is already
// terminal is dropped without a send: broker redelivery after a crash must
// not produce a second delivery attempt on a finished record.
func (d *Delivery) Run(ctx context.Context, strategy retry.Strategy, workerCount int) {
	msgChan := make(chan queue.Message)

	go func() {
		if err := d.queue.Consume(d.channel, msgChan, strategy); err != nil {
			zlog.Logger.Fatal().Err(err).Str("channel", string(d.channel)).Msg("failed to consume messages")
		}
	}()

	for i := 0; i < workerCount; i++ {
		go func(id int) {
			zlog.Logger.Printf("%s worker-%d started", d.channel, id)

			for {
				select {
				case <-ctx.Done():
					zlog.Logger.Printf("%s worker-%d shutting down", d.channel, id)
					return
				case msg := <-msgChan:
					status, err := d.service.GetStatusByID(ctx, strategy, msg.ID)
					if err != nil {
						if errors.Is(err, notifrepo.ErrNotificationNotFound) {
							zlog.Logger.Warn().Str("id", msg.ID.String()).Msg("message for unknown notification, discarding")
							continue
						}

						zlog.Logger.Error().Err(err).Str("id", msg.ID.String()).Msg("failed to get notification status")
						continue
					}

					if status.Terminal() {
						zlog.Logger.Printf("notification %s already %s, skipping", msg.ID, status)
						continue
					}

					d.handler.HandleMessage(ctx, msg, strategy)
				}
			}
		}(i)
	}

	<-ctx.Done()
	zlog.Logger.Printf("%s delivery worker stopped", d.channel)
}
