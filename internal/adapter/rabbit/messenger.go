package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/metrics"
	"github.com/Temutjin2k/driver-match-system/pkg/rabbit"
)

const (
	serviceName   = "matching-service"
	outboundQueue = "outbound_messages"
)

// Messenger publishes customer and driver texts to the outbound_messages
// queue. A downstream gateway turns them into SMS or push notifications.
type Messenger struct {
	client *rabbit.RabbitMQ
}

func NewMessenger(client *rabbit.RabbitMQ) (*Messenger, error) {
	if _, err := client.Channel.QueueDeclare(
		outboundQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("messenger: declare queue: %w", err)
	}
	return &Messenger{client: client}, nil
}

func (m *Messenger) Send(ctx context.Context, msg models.OutboundMessage) error {
	const op = "Messenger.Send"

	body, err := json.Marshal(msg)
	if err != nil {
		ctx = wrap.WithAction(ctx, "marshal_message")
		return wrap.Error(ctx, fmt.Errorf("%s: failed to marshal message: %w", op, err))
	}

	err = m.client.Channel.PublishWithContext(
		ctx,
		"",            // default exchange
		outboundQueue, // routing key
		false,         // mandatory
		false,         // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	metrics.RecordRabbitMQPublish(serviceName, outboundQueue, err)
	if err != nil {
		ctx = wrap.WithAction(ctx, "publish_message")
		return wrap.Error(ctx, fmt.Errorf("%s: failed to publish: %w", op, err))
	}
	return nil
}
