package runtime

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/justapithecus/meshforge/adapter"
	"github.com/justapithecus/meshforge/generator"
	"github.com/justapithecus/meshforge/lod"
	"github.com/justapithecus/meshforge/lode"
	"github.com/justapithecus/meshforge/log"
	"github.com/justapithecus/meshforge/mesh"
	"github.com/justapithecus/meshforge/queue"
	"github.com/justapithecus/meshforge/types"
	"github.com/justapithecus/meshforge/validate"
)

// errCancelled is returned by advance when a cancel request was observed.
var errCancelled = errors.New("job cancelled")

// outcome is the terminal result of one pipeline execution.
type outcome struct {
	state   State
	kind    ErrorKind
	err     error
	mesh    *mesh.Mesh
	lods    *lod.LODSet
	summary *Summary
}

func failed(kind ErrorKind, err error) outcome {
	return outcome{state: StateFailed, kind: kind, err: err}
}

func jobMeta(id string, worker int) types.JobMeta {
	return types.JobMeta{JobID: id, Worker: worker}
}

// work is one worker loop. It exits when the dequeue context is cancelled
// or the queue is closed.
func (o *Orchestrator) work(worker int) {
	for {
		id, err := o.queue.Dequeue(o.dequeueCtx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || o.dequeueCtx.Err() != nil {
				return
			}
			o.logger.Warn("dequeue failed", map[string]any{"worker": worker, "error": err.Error()})
			select {
			case <-o.dequeueCtx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		o.process(worker, id)
	}
}

// process drives one job to a terminal state. Ids that are already claimed
// or no longer queued are skipped, so a duplicated queue entry never runs a
// job twice. Unknown ids belong to another process's registry and are
// dropped with a warning.
func (o *Orchestrator) process(worker int, id string) {
	rec, ok := o.registry.get(id)
	if !ok {
		o.logger.Warn("unknown job id dropped", map[string]any{"worker": worker, "job_id": id})
		return
	}
	ctx, params, ok := o.claim(rec)
	if !ok {
		return
	}
	logger := o.logger.WithJob(jobMeta(id, worker))
	logger.Info("job started", nil)

	var out outcome
	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("pipeline panic", map[string]any{
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				})
				out = failed(ErrorKindInternal, fmt.Errorf("internal error: %v", r))
			}
		}()
		out = o.execute(ctx, rec, params, logger)
	}()

	rec.mu.Lock()
	if rec.cancel != nil {
		rec.cancel()
		rec.cancel = nil
	}
	o.commitLocked(rec, out)
	rec.mu.Unlock()

	o.notify(rec, logger)
}

// claim moves a queued job to generating and installs its cancel func.
func (o *Orchestrator) claim(rec *record) (context.Context, Params, bool) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.job.State != StateQueued {
		return nil, Params{}, false
	}
	ctx, cancel := context.WithCancel(o.jobsCtx)
	rec.cancel = cancel
	rec.job.StartedAt = o.now()
	o.setStateLocked(rec, StateGenerating)
	return ctx, rec.job.Params.clone(), true
}

func (o *Orchestrator) setStateLocked(rec *record, s State) {
	rec.job.State = s
	if p, ok := s.Checkpoint(); ok && p > rec.job.Progress {
		rec.job.Progress = p
	}
	rec.job.Message = s.message()
}

// advance is the stage-boundary transition. It fails with errCancelled
// instead of transitioning when a cancel request is pending.
func (o *Orchestrator) advance(rec *record, next State) error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.cancelRequested.Load() {
		return errCancelled
	}
	o.setStateLocked(rec, next)
	return nil
}

func (o *Orchestrator) warn(rec *record, logger *log.Logger, msg string) {
	rec.mu.Lock()
	rec.job.Warnings = append(rec.job.Warnings, msg)
	rec.mu.Unlock()
	logger.Warn(msg, nil)
}

// commitLocked applies a terminal outcome. A pending cancel request wins
// over completion. Progress is forced to 1.0 only on completion; failure
// and cancellation freeze it.
func (o *Orchestrator) commitLocked(rec *record, out outcome) {
	if rec.job.State.Terminal() {
		return
	}
	if out.state == StateCompleted && rec.cancelRequested.Load() {
		out = outcome{state: StateCancelled}
	}

	rec.job.State = out.state
	rec.job.CompletedAt = o.now()
	switch out.state {
	case StateCompleted:
		rec.job.Progress = 1.0
		rec.job.Message = StateCompleted.message()
		rec.mesh = out.mesh
		rec.lods = out.lods
		rec.job.Summary = out.summary
		o.collector.IncJobCompleted()
	case StateFailed:
		rec.job.ErrorKind = out.kind
		if out.err != nil {
			rec.job.Error = out.err.Error()
		}
		rec.job.Message = rec.job.Error
		o.collector.IncJobFailed(string(out.kind))
	case StateCancelled:
		rec.job.Message = StateCancelled.message()
		o.collector.IncJobCancelled()
	}
}

// execute runs the stages after claim. The job is already generating.
func (o *Orchestrator) execute(ctx context.Context, rec *record, p Params, logger *log.Logger) outcome {
	cancelled := outcome{state: StateCancelled}

	// generating
	start := o.now()
	raw, err := o.generate(ctx, p)
	o.collector.ObserveStage(string(StateGenerating), o.now().Sub(start))
	if rec.cancelRequested.Load() {
		return cancelled
	}
	if err != nil {
		if errors.Is(err, generator.ErrGenerationTimeout) {
			return failed(ErrorKindGenerationTimeout, err)
		}
		return failed(ErrorKindGeneration, err)
	}
	if raw == nil {
		return failed(ErrorKindEmptyMesh, errors.New("generator returned no mesh"))
	}

	// validating
	if o.advance(rec, StateValidating) != nil {
		return cancelled
	}
	start = o.now()
	rawReport, err := o.validator.Validate(raw)
	o.collector.ObserveStage(string(StateValidating), o.now().Sub(start))
	if err != nil {
		return failed(ErrorKindValidation, err)
	}
	if rawReport.FaceCount == 0 {
		return failed(ErrorKindEmptyMesh, errors.New("generated mesh has no faces"))
	}
	logger.Debug("raw mesh validated", map[string]any{
		"faces":         rawReport.FaceCount,
		"watertight":    rawReport.IsWatertight,
		"quality_score": rawReport.QualityScore,
	})

	final := raw
	summary := &Summary{RawReport: rawReport}

	// optimizing
	if p.PostProcess {
		if o.advance(rec, StateOptimizing) != nil {
			return cancelled
		}
		if raw.FaceCount() > p.TargetFaces {
			start = o.now()
			res, err := o.decimator.Run(raw, p.TargetFaces)
			o.collector.ObserveStage(string(StateOptimizing), o.now().Sub(start))
			if err != nil {
				o.collector.IncDecimationWarning()
				o.warn(rec, logger, fmt.Sprintf("decimation failed, keeping unoptimized mesh: %v", err))
			} else {
				final = res.Mesh
				summary.Decimated = true
				summary.Clustered = res.UsedClustering
				if res.UsedClustering {
					o.collector.IncDecimationFallback()
				}
			}
		}
	}

	// lod_generating
	var lods *lod.LODSet
	if p.GenerateLODs {
		if o.advance(rec, StateLODGenerating) != nil {
			return cancelled
		}
		start = o.now()
		set, err := o.lods.GenerateContext(ctx, final, p.LODRatios)
		o.collector.ObserveStage(string(StateLODGenerating), o.now().Sub(start))
		switch {
		case rec.cancelRequested.Load():
			return cancelled
		case err != nil:
			o.collector.IncLODWarning()
			o.warn(rec, logger, fmt.Sprintf("LOD generation failed: %v", err))
		default:
			lods = set
			for _, l := range set.Levels {
				l.Mesh = nil
				summary.LODs = append(summary.LODs, l)
			}
		}
	}

	report, err := o.validator.Validate(final)
	if err != nil {
		return failed(ErrorKindInternal, fmt.Errorf("final mesh invalid: %w", err))
	}
	summary.Report = report
	summary.Compatibility = validate.Compatibility(report, o.cfg.EngineLimits...)

	if rec.cancelRequested.Load() {
		return cancelled
	}
	summary.ArtifactPaths = o.persistMeshes(ctx, rec, logger, final, lods)

	return outcome{state: StateCompleted, mesh: final, lods: lods, summary: summary}
}

// generate calls the generator under the generation timeout. The call runs
// in its own goroutine so a backend that ignores ctx is still abandoned; its
// late result lands in a buffered channel and is dropped.
func (o *Orchestrator) generate(ctx context.Context, p Params) (*mesh.Mesh, error) {
	genCtx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	type result struct {
		mesh *mesh.Mesh
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("%w: generator panic: %v", generator.ErrGeneration, r)}
			}
		}()
		m, err := o.cfg.Generator.Generate(genCtx, p.Prompt, p.Generation)
		ch <- result{mesh: m, err: err}
	}()

	timedOut := func() error {
		return fmt.Errorf("%w after %s", generator.ErrGenerationTimeout, o.cfg.GenerationTimeout)
	}
	select {
	case r := <-ch:
		if r.err != nil && ctx.Err() == nil && errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return nil, timedOut()
		}
		return r.mesh, r.err
	case <-genCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, timedOut()
	}
}

// persistMeshes writes the final mesh and every LOD level through the
// artifact sink. Failures become warnings.
func (o *Orchestrator) persistMeshes(ctx context.Context, rec *record, logger *log.Logger, final *mesh.Mesh, lods *lod.LODSet) []string {
	if o.cfg.Artifacts == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	id := rec.job.ID
	var paths []string
	put := func(name string, m *mesh.Mesh) bool {
		p, err := o.cfg.Artifacts.PutMesh(ctx, id, name, m)
		if err != nil {
			o.collector.IncArtifactWriteFailure()
			o.warn(rec, logger, fmt.Sprintf("artifact %s not persisted: %v", name, err))
			return false
		}
		paths = append(paths, p)
		return true
	}

	if !put("final", final) {
		return paths
	}
	if lods != nil {
		for i, l := range lods.Levels {
			if !put(fmt.Sprintf("lod%d", i), l.Mesh) {
				return paths
			}
		}
	}
	o.collector.IncArtifactWriteSuccess()
	return paths
}

// notify records and publishes a terminal job. Both are best effort.
func (o *Orchestrator) notify(rec *record, logger *log.Logger) {
	job := rec.snapshot()
	fields := map[string]any{
		"state":       string(job.State),
		"progress":    job.Progress,
		"duration_ms": job.Duration().Milliseconds(),
	}
	if job.ErrorKind != "" {
		fields["error_kind"] = string(job.ErrorKind)
		fields["error"] = job.Error
	}
	if job.State == StateFailed {
		logger.Error("job finished", fields)
	} else {
		logger.Info("job finished", fields)
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if o.cfg.Artifacts != nil {
		if err := o.cfg.Artifacts.PutRecord(ctx, jobRecord(job)); err != nil {
			o.collector.IncArtifactWriteFailure()
			logger.Warn("job record not persisted", map[string]any{"error": err.Error()})
		}
	}

	if o.cfg.Adapter != nil {
		if err := o.cfg.Adapter.Publish(ctx, completedEvent(job)); err != nil {
			o.collector.IncPublishFailure()
			logger.Warn("publish failed", map[string]any{"error": err.Error()})
		} else {
			o.collector.IncPublishSuccess()
		}
	}
}

func completedEvent(job Job) *adapter.JobCompletedEvent {
	ev := &adapter.JobCompletedEvent{
		ContractVersion: adapter.ContractVersion,
		EventType:       adapter.EventTypeJobCompleted,
		JobID:           job.ID,
		State:           string(job.State),
		ErrorKind:       string(job.ErrorKind),
		Error:           job.Error,
		Warnings:        job.Warnings,
		Timestamp:       job.CompletedAt.UTC().Format(time.RFC3339),
		DurationMs:      job.Duration().Milliseconds(),
	}
	if s := job.Summary; s != nil {
		ev.Faces = s.Report.FaceCount
		ev.Vertices = s.Report.VertexCount
		ev.QualityScore = s.Report.QualityScore
		ev.LODCount = len(s.LODs)
		if len(s.ArtifactPaths) > 0 {
			ev.StoragePath = s.ArtifactPaths[0]
		}
	}
	return ev
}

func jobRecord(job Job) lode.JobRecord {
	rec := lode.JobRecord{
		JobID:       job.ID,
		Day:         lode.DeriveDay(job.CreatedAt),
		Prompt:      job.Params.Prompt,
		State:       string(job.State),
		ErrorKind:   string(job.ErrorKind),
		Error:       job.Error,
		Warnings:    job.Warnings,
		CompletedAt: job.CompletedAt.UTC().Format(time.RFC3339),
	}
	if s := job.Summary; s != nil {
		rec.Vertices = s.Report.VertexCount
		rec.Faces = s.Report.FaceCount
		rec.QualityScore = s.Report.QualityScore
		rec.Grade = string(s.Compatibility.Grade)
		rec.Watertight = s.Report.IsWatertight
		rec.MeshPaths = s.ArtifactPaths
		for _, l := range s.LODs {
			rec.LODFaces = append(rec.LODFaces, l.Faces)
		}
	}
	return rec
}
