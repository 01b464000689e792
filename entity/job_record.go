package entity

import (
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a job record
type JobStatus string

const (
	// JobStatusSubmitted is the only state a record is created in. The worker
	// moves it further out-of-band.
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// PendingArtifactSuffix marks an uploaded object that is still awaiting processing.
// Clients upload "<name>.Input"; the worker addresses "<name>".
const PendingArtifactSuffix = ".Input"

// JobRecord is a submitted unit of work: free text plus a reference to the uploaded artifact.
type JobRecord struct {
	ID                string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	TextInput         string    `json:"text_input" gorm:"type:text;not null"`
	ArtifactReference string    `json:"input_file_path" gorm:"column:input_file_path;type:varchar(1024);not null;<-:create"`
	Status            JobStatus `json:"status" gorm:"type:varchar(32);not null;default:'submitted';index"`
	CreatedAt         time.Time `json:"created_at" gorm:"not null;autoCreateTime"`
}

func (JobRecord) TableName() string {
	return "input_entries"
}

// Validate reports the first required field that is missing.
func (r *JobRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return WrapMalformed("record id is missing")
	case r.TextInput == "":
		return WrapMalformed("text_input is missing")
	case strings.TrimSpace(r.ArtifactReference) == "":
		return WrapMalformed("input_file_path is missing")
	}
	return nil
}
