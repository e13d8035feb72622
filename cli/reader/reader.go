package reader

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/justapithecus/meshforge/lode"
	"github.com/justapithecus/meshforge/runtime"
)

// ErrJobNotFound is returned when no record exists for a job ID.
var ErrJobNotFound = errors.New("job not found")

// Reader reads persisted job and metrics records.
type Reader struct {
	store *lode.ArtifactStore
}

// New creates a Reader over store.
func New(store *lode.ArtifactStore) *Reader {
	return &Reader{store: store}
}

// latest collapses the record stream to the newest record per job.
func (r *Reader) latest(ctx context.Context) ([]lode.JobRecord, error) {
	records, err := r.store.Records(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]lode.JobRecord, len(records))
	for _, rec := range records {
		byID[rec.JobID] = rec
	}
	out := make([]lode.JobRecord, 0, len(byID))
	for _, rec := range byID {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b lode.JobRecord) int {
		if c := cmp.Compare(b.CompletedAt, a.CompletedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.JobID, b.JobID)
	})
	return out, nil
}

// ListJobs returns jobs newest first, optionally filtered by state.
// A limit of zero or less returns every match.
func (r *Reader) ListJobs(ctx context.Context, state string, limit int) ([]JobRow, error) {
	records, err := r.latest(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]JobRow, 0, len(records))
	for _, rec := range records {
		if state != "" && rec.State != state {
			continue
		}
		rows = append(rows, JobRow{
			JobID:        rec.JobID,
			State:        rec.State,
			ErrorKind:    rec.ErrorKind,
			Faces:        rec.Faces,
			QualityScore: rec.QualityScore,
			Grade:        rec.Grade,
			Warnings:     len(rec.Warnings),
			CompletedAt:  rec.CompletedAt,
		})
		if limit > 0 && len(rows) == limit {
			break
		}
	}
	return rows, nil
}

// InspectJob returns the newest record for jobID.
func (r *Reader) InspectJob(ctx context.Context, jobID string) (lode.JobRecord, error) {
	rec, err := r.store.LatestRecord(ctx, jobID)
	if errors.Is(err, lode.ErrNoRecordFound) {
		return lode.JobRecord{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return rec, err
}

// Stats aggregates the newest record of every job.
func (r *Reader) Stats(ctx context.Context) (*JobStats, error) {
	records, err := r.latest(ctx)
	if err != nil {
		return nil, err
	}
	s := &JobStats{ByErrorKind: map[string]int{}}
	var qualitySum float64
	for _, rec := range records {
		s.Total++
		if len(rec.Warnings) > 0 {
			s.WithWarning++
		}
		switch rec.State {
		case string(runtime.StateCompleted):
			s.Completed++
			qualitySum += rec.QualityScore
		case string(runtime.StateFailed):
			s.Failed++
			s.ByErrorKind[rec.ErrorKind]++
		case string(runtime.StateCancelled):
			s.Cancelled++
		}
	}
	if s.Completed > 0 {
		s.MeanQuality = qualitySum / float64(s.Completed)
	}
	return s, nil
}

// Metrics returns the newest persisted metrics snapshot.
func (r *Reader) Metrics(ctx context.Context) (lode.MetricsRecord, error) {
	return r.store.LatestMetrics(ctx)
}
