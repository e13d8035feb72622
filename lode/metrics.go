package lode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/meshforge/metrics"
)

// MetricsPartition is the job_id partition value used for metrics records.
const MetricsPartition = "_metrics"

// ErrNoMetricsFound is returned when no metrics record has been written.
var ErrNoMetricsFound = errors.New("no metrics record found")

// MetricsRecord is a persisted metrics.Snapshot.
type MetricsRecord struct {
	Timestamp string `json:"ts"`
	Day       string `json:"day"`

	JobsSubmitted int64            `json:"jobs_submitted_total"`
	JobsCompleted int64            `json:"jobs_completed_total"`
	JobsFailed    int64            `json:"jobs_failed_total"`
	JobsCancelled int64            `json:"jobs_cancelled_total"`
	FailedByKind  map[string]int64 `json:"jobs_failed_by_kind,omitempty"`

	DecimationWarnings  int64 `json:"decimation_warnings_total"`
	DecimationFallbacks int64 `json:"decimation_fallbacks_total"`
	LODWarnings         int64 `json:"lod_warnings_total"`

	PublishSuccess       int64 `json:"publish_success_total"`
	PublishFailure       int64 `json:"publish_failure_total"`
	ArtifactWriteSuccess int64 `json:"artifact_write_success_total"`
	ArtifactWriteFailure int64 `json:"artifact_write_failure_total"`

	Generator      string `json:"generator"`
	QueueBackend   string `json:"queue_backend"`
	StorageBackend string `json:"storage_backend"`
}

func metricsToMap(s metrics.Snapshot, ts time.Time) map[string]any {
	kinds := make(map[string]any, len(s.FailedByKind))
	for k, v := range s.FailedByKind {
		kinds[k] = v
	}
	return map[string]any{
		"record_kind": RecordKindMetrics,
		"job_id":      MetricsPartition,
		"day":         DeriveDay(ts),
		"ts":          ts.UTC().Format(time.RFC3339),

		"jobs_submitted_total": s.JobsSubmitted,
		"jobs_completed_total": s.JobsCompleted,
		"jobs_failed_total":    s.JobsFailed,
		"jobs_cancelled_total": s.JobsCancelled,
		"jobs_failed_by_kind":  kinds,

		"decimation_warnings_total":  s.DecimationWarnings,
		"decimation_fallbacks_total": s.DecimationFallbacks,
		"lod_warnings_total":         s.LODWarnings,

		"publish_success_total":        s.PublishSuccess,
		"publish_failure_total":        s.PublishFailure,
		"artifact_write_success_total": s.ArtifactWriteSuccess,
		"artifact_write_failure_total": s.ArtifactWriteFailure,

		"generator":       s.Generator,
		"queue_backend":   s.QueueBackend,
		"storage_backend": s.StorageBackend,
	}
}

// ParseMetricsRecord converts a decoded record map. Numbers may arrive as
// int64 (direct writes) or float64 (JSON round trips).
func ParseMetricsRecord(m map[string]any) (MetricsRecord, error) {
	if m == nil {
		return MetricsRecord{}, errors.New("nil record")
	}
	if kind := toString(m["record_kind"]); kind != RecordKindMetrics {
		return MetricsRecord{}, fmt.Errorf("not a metrics record: %q", kind)
	}
	n := func(key string) int64 { return int64(toFloat(m[key])) }

	rec := MetricsRecord{
		Timestamp: toString(m["ts"]),
		Day:       toString(m["day"]),

		JobsSubmitted: n("jobs_submitted_total"),
		JobsCompleted: n("jobs_completed_total"),
		JobsFailed:    n("jobs_failed_total"),
		JobsCancelled: n("jobs_cancelled_total"),

		DecimationWarnings:  n("decimation_warnings_total"),
		DecimationFallbacks: n("decimation_fallbacks_total"),
		LODWarnings:         n("lod_warnings_total"),

		PublishSuccess:       n("publish_success_total"),
		PublishFailure:       n("publish_failure_total"),
		ArtifactWriteSuccess: n("artifact_write_success_total"),
		ArtifactWriteFailure: n("artifact_write_failure_total"),

		Generator:      toString(m["generator"]),
		QueueBackend:   toString(m["queue_backend"]),
		StorageBackend: toString(m["storage_backend"]),
	}
	if kinds, ok := m["jobs_failed_by_kind"].(map[string]any); ok && len(kinds) > 0 {
		rec.FailedByKind = make(map[string]int64, len(kinds))
		for k, v := range kinds {
			rec.FailedByKind[k] = int64(toFloat(v))
		}
	}
	return rec, nil
}

// PutMetrics writes a metrics snapshot to the dataset.
func (s *ArtifactStore) PutMetrics(ctx context.Context, snap metrics.Snapshot) error {
	if _, err := s.dataset.Write(ctx, []any{metricsToMap(snap, s.now())}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, s.datasetID+"/job_id="+MetricsPartition)
	}
	return nil
}

// LatestMetrics returns the most recently written metrics record.
func (s *ArtifactStore) LatestMetrics(ctx context.Context) (MetricsRecord, error) {
	snapshots, err := s.dataset.Snapshots(ctx)
	if err != nil {
		return MetricsRecord{}, WrapReadError(err, s.datasetID+"/snapshots")
	}
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatchesFilter(snap, "job_id", MetricsPartition) {
			continue
		}
		data, err := s.dataset.Read(ctx, snap.ID)
		if err != nil {
			return MetricsRecord{}, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", s.datasetID, snap.ID))
		}
		for _, item := range data {
			if m, ok := item.(map[string]any); ok && m["record_kind"] == RecordKindMetrics {
				return ParseMetricsRecord(m)
			}
		}
	}
	return MetricsRecord{}, ErrNoMetricsFound
}
