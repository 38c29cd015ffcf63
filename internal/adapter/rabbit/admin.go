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

const adminQueue = "admin_alerts"

// AdminNotifier publishes operator alerts, e.g. a booking that timed out
// with no driver found.
type AdminNotifier struct {
	client *rabbit.RabbitMQ
}

func NewAdminNotifier(client *rabbit.RabbitMQ) (*AdminNotifier, error) {
	if _, err := client.Channel.QueueDeclare(
		adminQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("admin notifier: declare queue: %w", err)
	}
	return &AdminNotifier{client: client}, nil
}

func (n *AdminNotifier) Alert(ctx context.Context, alert models.AdminAlert) error {
	const op = "AdminNotifier.Alert"

	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(alert)
	if err != nil {
		ctx = wrap.WithAction(ctx, "marshal_alert")
		return wrap.Error(ctx, fmt.Errorf("%s: failed to marshal alert: %w", op, err))
	}

	err = n.client.Channel.PublishWithContext(
		ctx,
		"",         // default exchange
		adminQueue, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	metrics.RecordRabbitMQPublish(serviceName, adminQueue, err)
	if err != nil {
		ctx = wrap.WithAction(ctx, "publish_alert")
		return wrap.Error(ctx, fmt.Errorf("%s: failed to publish: %w", op, err))
	}
	return nil
}
