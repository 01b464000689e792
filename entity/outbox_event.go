package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OutboxEvent is a change notification written in the same transaction as the
// record change it describes. The relay publishes rows with PublishedAt == nil.
type OutboxEvent struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	AggregateID string         `json:"aggregate_id" gorm:"type:varchar(64);not null;index"`
	Kind        ChangeKind     `json:"kind" gorm:"type:varchar(16);not null"`
	Payload     datatypes.JSON `json:"payload" gorm:"not null"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null;autoCreateTime;index"`
	PublishedAt *time.Time     `json:"published_at" gorm:"index"`
}
