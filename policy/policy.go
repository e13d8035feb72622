// Package policy controls how finished-job artifacts reach storage.
//
// A Policy sits between the orchestrator and a lode.Sink:
//   - Strict writes every mesh and record through immediately
//   - Buffered writes meshes through and batches job records
//
// Meshes are never buffered because the job record carries their paths.
// Records of cancelled jobs are the only droppable records.
package policy

import (
	"context"
	"sync"

	"github.com/justapithecus/meshforge/lode"
)

// Policy is a lode.Sink with flush semantics.
type Policy interface {
	lode.Sink

	// Flush writes any buffered records. Called at orchestrator shutdown.
	Flush(ctx context.Context) error

	// Stats returns a consistent snapshot of policy counters.
	Stats() Stats
}

// Stats are policy observability counters.
type Stats struct {
	// RecordsReceived counts PutRecord calls.
	RecordsReceived int64
	// RecordsPersisted counts records written to the sink.
	RecordsPersisted int64
	// RecordsDropped counts droppable records discarded on overflow.
	RecordsDropped int64
	// MeshesPersisted counts meshes written to the sink.
	MeshesPersisted int64
	// Buffered is the number of records waiting for a flush.
	Buffered int
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors counts sink failures.
	Errors int64
}

// IsDroppable reports whether rec may be discarded when a buffer overflows.
// Cancelled jobs carry no mesh or quality data.
func IsDroppable(rec lode.JobRecord) bool {
	return rec.State == "cancelled"
}

// statsRecorder guards Stats. Buffered calls the Locked variants while
// holding its own mutex so buffer state and counters move together.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func (r *statsRecorder) incReceived() {
	r.mu.Lock()
	r.stats.RecordsReceived++
	r.mu.Unlock()
}

func (r *statsRecorder) incPersisted(n int64) {
	r.mu.Lock()
	r.stats.RecordsPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incMeshes() {
	r.mu.Lock()
	r.stats.MeshesPersisted++
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// --- Locked methods, caller holds Buffered.mu ---

func (r *statsRecorder) incReceivedLocked() { r.stats.RecordsReceived++ }
func (r *statsRecorder) incPersistedLocked(n int64) { r.stats.RecordsPersisted += n }
func (r *statsRecorder) incDroppedLocked() { r.stats.RecordsDropped++ }
func (r *statsRecorder) incErrorsLocked() { r.stats.Errors++ }
func (r *statsRecorder) incFlushLocked() { r.stats.FlushCount++ }

func (r *statsRecorder) snapshotLocked(buffered int) Stats {
	s := r.stats
	s.Buffered = buffered
	return s
}
