package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tnqbao/gau-compute-dispatcher/entity"
	"github.com/tnqbao/gau-compute-dispatcher/infra"
)

type OutboxStore interface {
	FetchPending(limit int) ([]entity.OutboxEvent, error)
	MarkPublished(ids []uuid.UUID, at time.Time) error
}

type EventPublisher interface {
	PublishRaw(ctx context.Context, kind entity.ChangeKind, messageID string, body []byte) error
}

// OutboxRelay moves committed outbox rows onto the broker. A row is marked
// only after it was published, so a crash between the two republishes it.
type OutboxRelay struct {
	store     OutboxStore
	publisher EventPublisher
	logger    *infra.LoggerClient
	schedule  string
	batch     int

	cron      *cron.Cron
	published metric.Int64Counter
}

func NewOutboxRelay(store OutboxStore, publisher EventPublisher, logger *infra.LoggerClient, schedule string, batch int) *OutboxRelay {
	if batch < 1 {
		batch = 50
	}
	counter, err := otel.Meter("github.com/tnqbao/gau-compute-dispatcher/consumer/worker").
		Int64Counter("dispatch.outbox.published", metric.WithDescription("Outbox events published to the broker"))
	if err != nil {
		logger.WarningWithContextf(context.Background(), "[Outbox Relay] Failed to create counter: %v", err)
	}
	return &OutboxRelay{
		store:     store,
		publisher: publisher,
		logger:    logger,
		schedule:  schedule,
		batch:     batch,
		published: counter,
	}
}

func (r *OutboxRelay) Start(ctx context.Context) error {
	r.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := r.cron.AddFunc(r.schedule, func() {
		if _, err := r.RelayOnce(ctx); err != nil {
			r.logger.ErrorWithContextf(ctx, err, "[Outbox Relay] Relay pass failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid outbox relay schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	r.logger.InfoWithContextf(ctx, "[Outbox Relay] Started with schedule %s, batch %d", r.schedule, r.batch)

	go func() {
		<-ctx.Done()
		<-r.cron.Stop().Done()
		r.logger.InfoWithContextf(context.Background(), "[Outbox Relay] Stopped")
	}()
	return nil
}

// RelayOnce publishes one batch in commit order and stops at the first
// publish failure so later rows never overtake earlier ones.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.store.FetchPending(r.batch)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending outbox events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := make([]uuid.UUID, 0, len(events))
	var publishErr error
	for _, e := range events {
		if err := r.publisher.PublishRaw(ctx, e.Kind, e.ID.String(), e.Payload); err != nil {
			publishErr = fmt.Errorf("failed to publish outbox event %s: %w", e.ID, err)
			break
		}
		published = append(published, e.ID)
		if r.published != nil {
			r.published.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(e.Kind))))
		}
	}

	if err := r.store.MarkPublished(published, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("failed to mark outbox events published: %w", err)
	}
	if len(published) > 0 {
		r.logger.DebugWithContextf(ctx, "[Outbox Relay] Published %d event(s)", len(published))
	}
	return len(published), publishErr
}
