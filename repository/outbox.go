package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-compute-dispatcher/entity"
	"gorm.io/gorm"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// FetchPending returns up to limit unpublished events, oldest first.
func (r *OutboxRepository) FetchPending(limit int) ([]entity.OutboxEvent, error) {
	var events []entity.OutboxEvent
	err := r.db.Where("published_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *OutboxRepository) MarkPublished(ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&entity.OutboxEvent{}).
		Where("id IN ?", idStrings(ids)).
		Update("published_at", at).Error
}

// CountPending is the relay backlog size.
func (r *OutboxRepository) CountPending() (int64, error) {
	var n int64
	err := r.db.Model(&entity.OutboxEvent{}).Where("published_at IS NULL").Count(&n).Error
	return n, err
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
