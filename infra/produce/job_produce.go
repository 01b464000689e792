package produce

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tnqbao/gau-compute-dispatcher/entity"
)

const (
	JobExchange = "job.exchange"

	// JobProvisionQueue receives every job change; the consumer acts on created only.
	JobProvisionQueue      = "job.provision"
	JobProvisionBindingKey = "job.#"

	JobDeadLetterExchange = "job.dlx"
	JobDeadLetterQueue    = "job.provision.dead"
)

// RoutingKey returns the routing key for a change kind, e.g. "job.created".
func RoutingKey(kind entity.ChangeKind) string {
	return "job." + string(kind)
}

type JobEventService struct {
	channel *amqp.Channel
}

func InitJobEventService(channel *amqp.Channel) *JobEventService {
	service := &JobEventService{
		channel: channel,
	}

	// Dead letters: rejected deliveries are kept for operator replay
	if err := channel.ExchangeDeclare(JobDeadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		panic("Failed to declare Job dead-letter exchange: " + err.Error())
	}
	if _, err := channel.QueueDeclare(JobDeadLetterQueue, true, false, false, false, nil); err != nil {
		panic("Failed to declare Job dead-letter queue: " + err.Error())
	}
	if err := channel.QueueBind(JobDeadLetterQueue, "", JobDeadLetterExchange, false, nil); err != nil {
		panic("Failed to bind Job dead-letter queue: " + err.Error())
	}

	err := channel.ExchangeDeclare(
		JobExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare Job exchange: " + err.Error())
	}

	_, err = channel.QueueDeclare(
		JobProvisionQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-dead-letter-exchange": JobDeadLetterExchange},
	)
	if err != nil {
		panic("Failed to declare Job provision queue: " + err.Error())
	}

	err = channel.QueueBind(
		JobProvisionQueue,
		JobProvisionBindingKey,
		JobExchange,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to bind Job provision queue: " + err.Error())
	}

	return service
}

// PublishChangeEvent publishes event as JSON under its kind's routing key.
func (s *JobEventService) PublishChangeEvent(ctx context.Context, event entity.ChangeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	return s.PublishRaw(ctx, event.Kind, event.EventID, body)
}

// PublishRaw publishes an already encoded change event. messageID lets the
// consumer correlate redeliveries of the same outbox row.
func (s *JobEventService) PublishRaw(ctx context.Context, kind entity.ChangeKind, messageID string, body []byte) error {
	return s.channel.PublishWithContext(
		ctx,
		JobExchange,
		RoutingKey(kind),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    messageID,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}
