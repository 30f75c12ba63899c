package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/akarpovich/notification-service/internal/model"
)

const (
	ExchangeName = "notifications-exchange"

	QueueEmail = "notifications.email"
	QueueSMS   = "notifications.sms"
	QueuePush  = "notifications.push"
)

// QueueName maps a delivery channel to its queue. The queue name doubles as
// the routing key on the direct exchange.
func QueueName(channel model.Channel) string {
	switch channel {
	case model.ChannelEmail:
		return QueueEmail
	case model.ChannelSMS:
		return QueueSMS
	case model.ChannelPush:
		return QueuePush
	default:
		return ""
	}
}

func dlqName(queue string) string {
	return queue + ".dlq"
}

// Message is the broker payload for one notification record. The record id is
// the message key: redeliveries of the same record always carry the same id.
type Message struct {
	ID          uuid.UUID     `json:"id"`
	RecipientID string        `json:"recipient_id"`
	Payload     string        `json:"payload"`
	Channel     model.Channel `json:"channel"`
}

// Queue owns one publisher on the notifications exchange and one consumer per
// delivery channel.
type Queue struct {
	publisher *rabbitmq.Publisher
	consumers map[model.Channel]*rabbitmq.Consumer
}

// New declares the exchange and, for every delivery channel, a durable queue
// with its own dead-letter queue, then wires up a publisher and the
// per-channel consumers.
func New(ch *rabbitmq.Channel) (*Queue, error) {
	exchange := rabbitmq.NewExchange(ExchangeName, "direct")
	if err := exchange.BindToChannel(ch); err != nil {
		return nil, fmt.Errorf("failed to bind to exchange: %w", err)
	}

	qm := rabbitmq.NewQueueManager(ch)
	consumers := make(map[model.Channel]*rabbitmq.Consumer, len(model.Channels()))

	for _, channel := range model.Channels() {
		name := QueueName(channel)

		_, err := qm.DeclareQueue(dlqName(name), rabbitmq.QueueConfig{Durable: true})
		if err != nil {
			return nil, fmt.Errorf("failed to declare DLQ for %s: %w", name, err)
		}

		args := map[string]interface{}{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlqName(name),
		}

		q, err := qm.DeclareQueue(name, rabbitmq.QueueConfig{
			Durable: true,
			Args:    args,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		if err := ch.QueueBind(q.Name, name, exchange.Name(), false, nil); err != nil {
			return nil, fmt.Errorf("failed to bind queue %s: %w", name, err)
		}

		consumers[channel] = rabbitmq.NewConsumer(ch, rabbitmq.NewConsumerConfig(q.Name))
	}

	return &Queue{
		publisher: rabbitmq.NewPublisher(ch, exchange.Name()),
		consumers: consumers,
	}, nil
}

// Publish routes one message to the queue of its channel.
func (q *Queue) Publish(msg Message, strategy retry.Strategy) error {
	routingKey := QueueName(msg.Channel)
	if routingKey == "" {
		return fmt.Errorf("unknown channel %q", msg.Channel)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.publisher.PublishWithRetry(body, routingKey, "application/json", strategy)
}

// Consume feeds messages from one channel's queue into out until the consumer
// stops. Malformed messages are logged and dropped.
func (q *Queue) Consume(channel model.Channel, out chan<- Message, strategy retry.Strategy) error {
	consumer, ok := q.consumers[channel]
	if !ok {
		return fmt.Errorf("no consumer for channel %q", channel)
	}

	msgChan := make(chan []byte)

	go func() {
		for m := range msgChan {
			var msg Message
			if err := json.Unmarshal(m, &msg); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to unmarshal message")
				continue
			}

			out <- msg
		}
	}()

	return consumer.ConsumeWithRetry(msgChan, strategy)
}
