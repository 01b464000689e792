package repository

import (
	"github.com/tnqbao/gau-compute-dispatcher/infra"
	"gorm.io/gorm"
)

type Repository struct {
	JobRecordRepo *JobRecordRepository
	OutboxRepo    *OutboxRepository
}

var repository *Repository

func InitRepository(infra *infra.Infra) *Repository {
	repository = NewRepository(infra.Postgres.DB)
	return repository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		JobRecordRepo: NewJobRecordRepository(db),
		OutboxRepo:    NewOutboxRepository(db),
	}
}

func GetRepository() *Repository {
	if repository == nil {
		panic("repository not initialized")
	}
	return repository
}
