package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-compute-dispatcher/entity"
	"gorm.io/gorm"
)

type JobRecordRepository struct {
	db *gorm.DB
}

func NewJobRecordRepository(db *gorm.DB) *JobRecordRepository {
	return &JobRecordRepository{db: db}
}

// CreateWithEvent inserts record and its created change event atomically.
// New records always start as submitted.
func (r *JobRecordRepository) CreateWithEvent(record *entity.JobRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Status = entity.JobStatusSubmitted
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to create job record: %w", err)
		}
		return enqueue(tx, entity.ChangeCreated, record.ID, record)
	})
}

// FindByID returns entity.ErrJobNotFound when no record has id.
func (r *JobRecordRepository) FindByID(id string) (*entity.JobRecord, error) {
	var record entity.JobRecord
	err := r.db.Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrJobNotFound
		}
		return nil, err
	}
	return &record, nil
}

// UpdateStatus changes a record's status and emits a modified event.
func (r *JobRecordRepository) UpdateStatus(id string, status entity.JobStatus) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.JobRecord{}).Where("id = ?", id).Update("status", status)
		if res.Error != nil {
			return fmt.Errorf("failed to update job status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return entity.ErrJobNotFound
		}

		var record entity.JobRecord
		if err := tx.Where("id = ?", id).First(&record).Error; err != nil {
			return err
		}
		return enqueue(tx, entity.ChangeModified, id, &record)
	})
}

// Delete removes a record and emits a removed event carrying its last state.
func (r *JobRecordRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var record entity.JobRecord
		if err := tx.Where("id = ?", id).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return entity.ErrJobNotFound
			}
			return err
		}
		if err := tx.Delete(&record).Error; err != nil {
			return fmt.Errorf("failed to delete job record: %w", err)
		}
		return enqueue(tx, entity.ChangeRemoved, id, &record)
	})
}

// Replay enqueues a fresh created event for an existing record so it is
// dispatched again. Used to recover dead-lettered jobs.
func (r *JobRecordRepository) Replay(id string) (*entity.OutboxEvent, error) {
	record, err := r.FindByID(id)
	if err != nil {
		return nil, err
	}
	event, err := newOutboxEvent(entity.ChangeCreated, id, record)
	if err != nil {
		return nil, err
	}
	if err := r.db.Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue replay: %w", err)
	}
	return event, nil
}

func enqueue(tx *gorm.DB, kind entity.ChangeKind, aggregateID string, record *entity.JobRecord) error {
	event, err := newOutboxEvent(kind, aggregateID, record)
	if err != nil {
		return err
	}
	if err := tx.Create(event).Error; err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", kind, err)
	}
	return nil
}

func newOutboxEvent(kind entity.ChangeKind, aggregateID string, record *entity.JobRecord) (*entity.OutboxEvent, error) {
	id := uuid.New()
	now := time.Now().UTC()
	payload, err := json.Marshal(entity.ChangeEvent{
		EventID:    id.String(),
		Kind:       kind,
		Record:     record,
		OccurredAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode change event: %w", err)
	}
	return &entity.OutboxEvent{
		ID:          id,
		AggregateID: aggregateID,
		Kind:        kind,
		Payload:     payload,
		CreatedAt:   now,
	}, nil
}
