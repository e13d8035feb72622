// Package adapter defines the completion-notification boundary.
//
// Adapters publish job completion notifications to downstream systems.
// The orchestrator owns adapter lifecycle; users provide configuration only.
package adapter

import "context"

// EventTypeJobCompleted is the only event type currently published.
const EventTypeJobCompleted = "job_completed"

// ContractVersion is the version of the event payload shape.
const ContractVersion = "1.0.0"

// JobCompletedEvent is the payload published when a job reaches a terminal state.
type JobCompletedEvent struct {
	ContractVersion string   `json:"contract_version"`
	EventType       string   `json:"event_type"` // always "job_completed"
	JobID           string   `json:"job_id"`
	State           string   `json:"state"` // completed, failed, cancelled
	ErrorKind       string   `json:"error_kind,omitempty"`
	Error           string   `json:"error,omitempty"`
	Faces           int      `json:"faces"`
	Vertices        int      `json:"vertices"`
	QualityScore    float64  `json:"quality_score"`
	LODCount        int      `json:"lod_count"`
	Warnings        []string `json:"warnings,omitempty"`
	StoragePath     string   `json:"storage_path,omitempty"`
	Timestamp       string   `json:"timestamp"` // RFC 3339
	DurationMs      int64    `json:"duration_ms"`
}

// Adapter publishes job completion events to a downstream system.
type Adapter interface {
	// Publish sends a job completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *JobCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
