package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EnrollmentPayload is what a capture surface (landing page, import job)
// publishes to get a lead into the drip.
type EnrollmentPayload struct {
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	PreferredLocation string `json:"preferred_location,omitempty"`
	CampaignType      string `json:"campaign_type"`
	Origin            string `json:"origin,omitempty"` // e.g. "LANDING_PAGE"
}

type ProducerInterface interface {
	PublishEnrollment(ctx context.Context, payload EnrollmentPayload) error
}

type RabbitMQProducer struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

func NewProducer(conn *amqp.Connection, ch *amqp.Channel) *RabbitMQProducer {
	return &RabbitMQProducer{
		Conn: conn,
		Ch:   ch,
	}
}

func (p *RabbitMQProducer) PublishEnrollment(ctx context.Context, payload EnrollmentPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not encode payload: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false, // Mandatory
		false, // Immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent, // survives a broker restart
		},
	)
	if err != nil {
		return fmt.Errorf("could not publish enrollment: %w", err)
	}

	return nil
}
