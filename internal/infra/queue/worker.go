package queue

import (
	"context"
	"encoding/json"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LeadEnroller is implemented by the enroll usecase; declared here so this
// package never imports it.
type LeadEnroller interface {
	Enroll(ctx context.Context, payload EnrollmentPayload) error
}

type Worker struct {
	Channel  *amqp.Channel
	Enroller LeadEnroller
}

func NewWorker(ch *amqp.Channel, enroller LeadEnroller) *Worker {
	return &Worker{
		Channel:  ch,
		Enroller: enroller,
	}
}

func (w *Worker) Start(queueName string) {
	msgs, err := w.Channel.Consume(
		queueName,
		"",    // consumer
		false, // auto-ack (manual is safer)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		log.Fatalf("❌ could not register RabbitMQ consumer: %s", err)
	}

	forever := make(chan bool)

	go func() {
		for d := range msgs {
			w.handleDelivery(d)
		}
	}()

	log.Printf(" [*] Worker running, waiting on queue '%s'", queueName)
	<-forever
}

// handleDelivery acks one enrollment message or dead-letters it.
func (w *Worker) handleDelivery(d amqp.Delivery) {
	var payload EnrollmentPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		log.Printf("❌ [WORKER] invalid enrollment JSON: %s", err)
		// Poison message. Reject without requeue so the queue keeps moving.
		d.Nack(false, false)
		return
	}

	log.Printf("📥 [WORKER] enrollment received for %s (%s)", payload.Name, payload.Origin)

	// Infrastructure failures go to the DLQ; a failed stage-1 send does not
	// count, the enrollment itself stands (the drip just stalls, same as
	// the in-process path).
	if err := w.Enroller.Enroll(context.Background(), payload); err != nil {
		log.Printf("❌ [WORKER] enrollment failed for %s: %s", payload.Phone, err)
		d.Nack(false, false)
		return
	}
	d.Ack(false)
}
