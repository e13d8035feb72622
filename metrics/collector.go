// Package metrics collects orchestrator counters.
//
// The Collector accumulates counters for the lifetime of an orchestrator. It
// is a leaf package with no internal dependencies; failure kinds and stage
// names are plain strings. Exporter publishes a Collector to Prometheus.
package metrics

import (
	"sync"
	"time"
)

// Snapshot is an immutable point-in-time view of all metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Job lifecycle
	JobsSubmitted int64
	JobsCompleted int64
	JobsFailed    int64
	JobsCancelled int64
	FailedByKind  map[string]int64

	// Pipeline
	DecimationWarnings  int64
	DecimationFallbacks int64
	LODWarnings         int64
	StageCount          map[string]int64
	StageSeconds        map[string]float64

	// Downstream
	PublishSuccess       int64
	PublishFailure       int64
	ArtifactWriteSuccess int64
	ArtifactWriteFailure int64

	// Dimensions (informational, set at construction)
	Generator      string
	QueueBackend   string
	StorageBackend string
}

// Collector accumulates metrics for one orchestrator.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	jobsSubmitted int64
	jobsCompleted int64
	jobsFailed    int64
	jobsCancelled int64
	failedByKind  map[string]int64

	decimationWarnings  int64
	decimationFallbacks int64
	lodWarnings         int64
	stageCount          map[string]int64
	stageSeconds        map[string]float64

	publishSuccess       int64
	publishFailure       int64
	artifactWriteSuccess int64
	artifactWriteFailure int64

	generator      string
	queueBackend   string
	storageBackend string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(generator, queueBackend, storageBackend string) *Collector {
	return &Collector{
		failedByKind:   make(map[string]int64),
		stageCount:     make(map[string]int64),
		stageSeconds:   make(map[string]float64),
		generator:      generator,
		queueBackend:   queueBackend,
		storageBackend: storageBackend,
	}
}

func (c *Collector) inc(field *int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// --- Job lifecycle ---

// IncJobSubmitted records an accepted submission.
func (c *Collector) IncJobSubmitted() {
	if c == nil {
		return
	}
	c.inc(&c.jobsSubmitted)
}

// IncJobCompleted records a job reaching completed.
func (c *Collector) IncJobCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.jobsCompleted)
}

// IncJobFailed records a job reaching failed with the given error kind.
func (c *Collector) IncJobFailed(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.jobsFailed++
	c.failedByKind[kind]++
	c.mu.Unlock()
}

// IncJobCancelled records a job reaching cancelled.
func (c *Collector) IncJobCancelled() {
	if c == nil {
		return
	}
	c.inc(&c.jobsCancelled)
}

// --- Pipeline ---

// IncDecimationWarning records a non-fatal decimation failure.
func (c *Collector) IncDecimationWarning() {
	if c == nil {
		return
	}
	c.inc(&c.decimationWarnings)
}

// IncDecimationFallback records a decimation that used vertex clustering.
func (c *Collector) IncDecimationFallback() {
	if c == nil {
		return
	}
	c.inc(&c.decimationFallbacks)
}

// IncLODWarning records a non-fatal LOD generation failure.
func (c *Collector) IncLODWarning() {
	if c == nil {
		return
	}
	c.inc(&c.lodWarnings)
}

// ObserveStage records how long one pipeline stage took.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stageCount[stage]++
	c.stageSeconds[stage] += d.Seconds()
	c.mu.Unlock()
}

// --- Downstream ---

// IncPublishSuccess records a delivered completion notification.
func (c *Collector) IncPublishSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.publishSuccess)
}

// IncPublishFailure records a failed completion notification.
func (c *Collector) IncPublishFailure() {
	if c == nil {
		return
	}
	c.inc(&c.publishFailure)
}

// IncArtifactWriteSuccess records a persisted artifact set (per job).
func (c *Collector) IncArtifactWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.artifactWriteSuccess)
}

// IncArtifactWriteFailure records a failed artifact write (per job).
func (c *Collector) IncArtifactWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.artifactWriteFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		JobsSubmitted: c.jobsSubmitted,
		JobsCompleted: c.jobsCompleted,
		JobsFailed:    c.jobsFailed,
		JobsCancelled: c.jobsCancelled,
		FailedByKind:  copyMap(c.failedByKind),

		DecimationWarnings:  c.decimationWarnings,
		DecimationFallbacks: c.decimationFallbacks,
		LODWarnings:         c.lodWarnings,
		StageCount:          copyMap(c.stageCount),
		StageSeconds:        copyMap(c.stageSeconds),

		PublishSuccess:       c.publishSuccess,
		PublishFailure:       c.publishFailure,
		ArtifactWriteSuccess: c.artifactWriteSuccess,
		ArtifactWriteFailure: c.artifactWriteFailure,

		Generator:      c.generator,
		QueueBackend:   c.queueBackend,
		StorageBackend: c.storageBackend,
	}
}

func copyMap[V int64 | float64](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
