package entity

import (
	"fmt"
	"time"
)

// ChangeKind is the kind of change reported by the job record change feed
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeCreated, ChangeModified, ChangeRemoved:
		return true
	}
	return false
}

// ChangeEvent is one notification on the change feed. For ChangeCreated the
// record carries the full new state.
type ChangeEvent struct {
	EventID    string     `json:"event_id"`
	Kind       ChangeKind `json:"kind"`
	Record     *JobRecord `json:"record"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Validate checks the envelope and, for created events, the record snapshot.
func (e *ChangeEvent) Validate() error {
	if !e.Kind.Valid() {
		return WrapMalformed(fmt.Sprintf("unknown event kind %q", e.Kind))
	}
	if e.Kind != ChangeCreated {
		return nil
	}
	if e.Record == nil {
		return WrapMalformed("created event has no record")
	}
	return e.Record.Validate()
}
