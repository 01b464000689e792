package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tnqbao/gau-compute-dispatcher/entity"
	"github.com/tnqbao/gau-compute-dispatcher/infra"
	"github.com/tnqbao/gau-compute-dispatcher/infra/produce"
)

// CreatedHandler is invoked once per delivered created record.
type CreatedHandler func(ctx context.Context, record entity.JobRecord) error

type disposition int

const (
	dispositionAck disposition = iota
	dispositionReject
	dispositionRequeue
)

// JobConsumer reads the job change feed and hands created records to the
// registered handler. Deliveries are handled concurrently; a failing job never
// holds up the others.
type JobConsumer struct {
	channel     *amqp.Channel
	logger      *infra.LoggerClient
	concurrency int

	handler CreatedHandler
	wg      sync.WaitGroup
}

func NewJobConsumer(channel *amqp.Channel, logger *infra.LoggerClient, concurrency int) *JobConsumer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &JobConsumer{
		channel:     channel,
		logger:      logger,
		concurrency: concurrency,
	}
}

// OnCreated registers the handler for created records. It must be called before Start.
func (c *JobConsumer) OnCreated(handler CreatedHandler) {
	c.handler = handler
}

func (c *JobConsumer) Start(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("no created handler registered")
	}

	msgs, err := c.channel.Consume(
		produce.JobProvisionQueue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register job consumer: %w", err)
	}

	c.logger.InfoWithContextf(ctx, "[Job Consumer] Started listening on queue: %s (concurrency %d)", produce.JobProvisionQueue, c.concurrency)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx, msgs)
	}()

	return nil
}

// Wait blocks until the delivery loop and all in-flight handlers return.
func (c *JobConsumer) Wait() {
	c.wg.Wait()
}

func (c *JobConsumer) run(ctx context.Context, msgs <-chan amqp.Delivery) {
	sem := make(chan struct{}, c.concurrency)
	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoWithContextf(ctx, "[Job Consumer] Shutting down...")
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.WarningWithContextf(ctx, "[Job Consumer] Channel closed")
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				_ = msg.Nack(false, true)
				return
			}
			inflight.Add(1)
			go func(msg amqp.Delivery) {
				defer inflight.Done()
				defer func() { <-sem }()
				c.handle(ctx, msg)
			}(msg)
		}
	}
}

func (c *JobConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	var err error
	switch c.process(ctx, msg.Body) {
	case dispositionAck:
		err = msg.Ack(false)
	case dispositionReject:
		err = msg.Nack(false, false)
	case dispositionRequeue:
		err = msg.Nack(false, true)
	}
	if err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Job Consumer] Failed to settle delivery %s: %v", msg.MessageId, err)
	}
}

// process decodes one delivery and decides how it is settled. Rejected
// deliveries go to the dead-letter queue; nothing is retried in-process.
func (c *JobConsumer) process(ctx context.Context, body []byte) disposition {
	var event entity.ChangeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		err = fmt.Errorf("%w: %v", entity.ErrMalformedEvent, err)
		c.logger.ErrorWithContextf(ctx, err, "[Job Consumer] Failed to unmarshal change event")
		return dispositionReject
	}
	if err := event.Validate(); err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Job Consumer] Dropping malformed event %s: %v", event.EventID, err)
		return dispositionReject
	}
	if event.Kind != entity.ChangeCreated {
		c.logger.DebugWithContextf(ctx, "[Job Consumer] Ignoring %s event %s", event.Kind, event.EventID)
		return dispositionAck
	}

	err := c.handler(ctx, *event.Record)
	switch {
	case err == nil:
		return dispositionAck
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// Shutdown interrupted the job; let another consumer pick it up.
		c.logger.WarningWithContextf(ctx, "[Job Consumer] Job %s interrupted by shutdown, requeueing", event.Record.ID)
		return dispositionRequeue
	default:
		c.logger.WarningWithContextf(ctx, "[Job Consumer] Job %s dead-lettered: %v", event.Record.ID, err)
		return dispositionReject
	}
}
