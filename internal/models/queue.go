package models

import (
	"time"

	"github.com/google/uuid"
)

// QueueStatus is the lifecycle state of an enrichment queue entry.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

// QueueEntry tracks enrichment work for one church. Exactly one entry
// exists per church; re-enqueueing resets it to pending.
type QueueEntry struct {
	ChurchID  uuid.UUID   `json:"church_id"`
	Status    QueueStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// QueueStats holds per-status counts for operational visibility.
type QueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
