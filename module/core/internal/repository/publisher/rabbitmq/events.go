package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/repository/publisher"
)

var _ publisher.EventPublisher = (*EventPublisher)(nil)

const (
	exchangeName = "alertmate.events"
	queueName    = "alert_audit"
)

// EventPublisher mirrors every transition and SOS fan-out onto a durable
// audit queue for downstream consumers (dashboards, archival).
type EventPublisher struct {
	ch *amqp.Channel
}

func NewEventPublisher(conn *amqp.Connection) (*EventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(queueName, "", exchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &EventPublisher{ch: ch}, nil
}

type envelope struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

func (p *EventPublisher) PublishTransition(ctx context.Context, t *domain.GeofenceTransition) error {
	return p.publish(ctx, envelope{Kind: "geofence_transition", Payload: t})
}

func (p *EventPublisher) PublishSOS(ctx context.Context, a *domain.SOSAudit) error {
	return p.publish(ctx, envelope{Kind: "sos_alert", Payload: a})
}

func (p *EventPublisher) publish(ctx context.Context, env envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", env.Kind, err)
	}

	return p.ch.PublishWithContext(ctx, exchangeName, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}
