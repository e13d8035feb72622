package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/meshforge/adapter"
	"github.com/justapithecus/meshforge/decimate"
	"github.com/justapithecus/meshforge/generator"
	"github.com/justapithecus/meshforge/lod"
	"github.com/justapithecus/meshforge/lode"
	"github.com/justapithecus/meshforge/log"
	"github.com/justapithecus/meshforge/mesh"
	"github.com/justapithecus/meshforge/metrics"
	"github.com/justapithecus/meshforge/queue"
	"github.com/justapithecus/meshforge/validate"
)

// Orchestrator defaults.
const (
	DefaultWorkers           = 2
	DefaultGenerationTimeout = 5 * time.Minute
	// notifyTimeout bounds artifact persistence and publishing per job.
	notifyTimeout = 30 * time.Second
)

// Config configures an Orchestrator.
type Config struct {
	// Generator produces raw meshes (required).
	Generator generator.Generator
	// Workers is the number of jobs processed concurrently (default 2).
	Workers int
	// GenerationTimeout bounds each generator call (default 5m).
	GenerationTimeout time.Duration
	// Queue carries job ids to workers. If nil, an in-memory queue is used
	// and closed on Shutdown.
	Queue queue.Queue
	// Registry holds job state. If nil, a new one is created.
	Registry *Registry
	// Decimation configures the optimizing stage.
	Decimation decimate.Options
	// LOD configures the lod_generating stage.
	LOD lod.Options
	// TargetFaces is the default decimation target (default 2000).
	TargetFaces int
	// LODRatios is the default LOD chain (default 1.0, 0.5, 0.25).
	LODRatios []float64
	// EngineLimits are checked in addition to the Unity and Unreal presets.
	EngineLimits []validate.Limits
	// Adapter receives a job_completed event for every terminal job.
	// Optional; closed on Shutdown.
	Adapter adapter.Adapter
	// Artifacts persists meshes and job records. Optional.
	Artifacts lode.Sink
	// Collector records metrics. Optional; all methods are nil-safe.
	Collector *metrics.Collector
	// Logger defaults to a stderr logger named "orchestrator".
	Logger *log.Logger
}

// Orchestrator schedules jobs onto a fixed pool of workers.
type Orchestrator struct {
	cfg       Config
	registry  *Registry
	queue     queue.Queue
	ownsQueue bool

	validator *validate.Validator
	decimator *decimate.Decimator
	lods      *lod.Generator
	logger    *log.Logger
	collector *metrics.Collector

	now   func() time.Time
	newID func() string

	started     atomic.Bool
	stopOnce    sync.Once
	dequeueCtx  context.Context
	stopDequeue context.CancelFunc
	jobsCtx     context.Context
	abortJobs   context.CancelFunc
	workers     sync.WaitGroup
	notifiers   sync.WaitGroup
}

// New validates cfg and creates an Orchestrator. Call Start to begin processing.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Generator == nil {
		return nil, errors.New("orchestrator requires a generator")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must be >= 0, got %d", cfg.Workers)
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = DefaultGenerationTimeout
	}
	if cfg.TargetFaces == 0 {
		cfg.TargetFaces = DefaultTargetFaces
	}
	if cfg.TargetFaces < MinTargetFaces || cfg.TargetFaces > MaxTargetFaces {
		return nil, fmt.Errorf("target faces %d outside [%d, %d]", cfg.TargetFaces, MinTargetFaces, MaxTargetFaces)
	}
	if cfg.LODRatios == nil {
		cfg.LODRatios = lod.DefaultRatios
	}
	if err := lod.ValidateRatios(cfg.LODRatios); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger("orchestrator")
	}

	o := &Orchestrator{
		cfg:       cfg,
		registry:  cfg.Registry,
		queue:     cfg.Queue,
		validator: validate.New(),
		decimator: decimate.New(cfg.Decimation),
		lods:      lod.New(cfg.LOD),
		logger:    cfg.Logger,
		collector: cfg.Collector,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if o.queue == nil {
		o.queue = queue.NewMemory()
		o.ownsQueue = true
	}
	return o, nil
}

// Registry returns the registry the orchestrator writes to.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Start launches the worker pool. Workers stop when ctx is done or on Shutdown.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.started.CompareAndSwap(false, true) {
		return errors.New("orchestrator already started")
	}
	o.dequeueCtx, o.stopDequeue = context.WithCancel(ctx)
	o.jobsCtx, o.abortJobs = context.WithCancel(context.WithoutCancel(ctx))

	for i := range o.cfg.Workers {
		o.workers.Go(func() { o.work(i) })
	}
	o.logger.Info("orchestrator started", map[string]any{
		"workers":            o.cfg.Workers,
		"generation_timeout": o.cfg.GenerationTimeout.String(),
	})
	return nil
}

// Shutdown stops accepting work from the queue and waits for in-flight jobs.
// If ctx expires first, in-flight jobs are cancelled and ctx's error returned.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if !o.started.Load() {
		return ErrNotStarted
	}
	var err error
	o.stopOnce.Do(func() {
		o.stopDequeue()

		done := make(chan struct{})
		go func() {
			o.workers.Wait()
			o.notifiers.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
			o.abortRunning()
			<-done
		}
		o.abortJobs()

		if o.ownsQueue {
			err = errors.Join(err, o.queue.Close())
		}
		if o.cfg.Adapter != nil {
			err = errors.Join(err, o.cfg.Adapter.Close())
		}
		o.logger.Info("orchestrator stopped", nil)
	})
	return err
}

// abortRunning cancels every claimed, non-terminal job. Queued jobs are left
// as they are; their state is lost with the process.
func (o *Orchestrator) abortRunning() {
	for _, rec := range o.registry.records() {
		rec.mu.Lock()
		if !rec.job.State.Terminal() && rec.job.State != StateQueued {
			rec.cancelRequested.Store(true)
			if rec.cancel != nil {
				rec.cancel()
			}
		}
		rec.mu.Unlock()
	}
	o.abortJobs()
}

// Submit validates p, fills defaults, registers a queued job and enqueues it.
// Zero generation params and target take their defaults; LOD ratios default
// to the orchestrator's chain when LODs are requested.
func (o *Orchestrator) Submit(ctx context.Context, p Params) (string, error) {
	p = p.clone()
	p.Generation = p.Generation.WithDefaults()
	if p.TargetFaces == 0 {
		p.TargetFaces = o.cfg.TargetFaces
	}
	if p.GenerateLODs && p.LODRatios == nil {
		p.LODRatios = append([]float64(nil), o.cfg.LODRatios...)
	}
	if err := p.validate(); err != nil {
		return "", err
	}

	id := o.newID()
	rec := &record{job: Job{
		Status: Status{
			ID:      id,
			State:   StateQueued,
			Message: StateQueued.message(),
		},
		Params:    p,
		CreatedAt: o.now(),
	}}
	o.registry.add(rec)

	if err := o.queue.Enqueue(ctx, id); err != nil {
		o.registry.remove(id)
		return "", fmt.Errorf("enqueue job %s: %w", id, err)
	}

	o.collector.IncJobSubmitted()
	o.logger.WithJob(jobMeta(id, -1)).Info("job submitted", map[string]any{
		"prompt":        p.Prompt,
		"postprocess":   p.PostProcess,
		"generate_lods": p.GenerateLODs,
		"target_faces":  p.TargetFaces,
	})
	return id, nil
}

func (o *Orchestrator) lookup(id string) (*record, error) {
	rec, ok := o.registry.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// Status returns the current status of a job.
func (o *Orchestrator) Status(id string) (Status, error) {
	rec, err := o.lookup(id)
	if err != nil {
		return Status{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.job.Status, nil
}

// Job returns a full snapshot of a job.
func (o *Orchestrator) Job(id string) (Job, error) {
	rec, err := o.lookup(id)
	if err != nil {
		return Job{}, err
	}
	return rec.snapshot(), nil
}

// Result returns a copy of a completed job's mesh. With lodIndex set, it
// returns that LOD level instead.
func (o *Orchestrator) Result(id string, lodIndex *int) (*mesh.Mesh, error) {
	rec, err := o.lookup(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.job.State != StateCompleted {
		return nil, fmt.Errorf("%w: job %s is %s", ErrNotReady, id, rec.job.State)
	}
	if lodIndex == nil {
		return rec.mesh.Clone(), nil
	}
	level, ok := rec.lods.Level(*lodIndex)
	if !ok {
		return nil, fmt.Errorf("%w: %d (job %s has %d levels)", ErrInvalidLOD, *lodIndex, id, lodLen(rec.lods))
	}
	return level.Mesh.Clone(), nil
}

func lodLen(s *lod.LODSet) int {
	if s == nil {
		return 0
	}
	return s.Len()
}

// Cancel requests cancellation. A queued job is cancelled immediately; a
// running job is cancelled at its next stage boundary and any in-flight
// generator call is abandoned. Cancelling a terminal job is a no-op.
func (o *Orchestrator) Cancel(id string) error {
	rec, err := o.lookup(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	if rec.job.State.Terminal() {
		rec.mu.Unlock()
		return nil
	}
	rec.cancelRequested.Store(true)
	if rec.job.State == StateQueued {
		o.commitLocked(rec, outcome{state: StateCancelled})
		rec.mu.Unlock()
		o.notifiers.Go(func() { o.notify(rec, o.logger.WithJob(jobMeta(id, -1))) })
		return nil
	}
	if rec.cancel != nil {
		rec.cancel()
	}
	rec.mu.Unlock()
	return nil
}

// QueueStats counts jobs by state. Pending falls back to the queued count
// when the queue backend cannot be reached.
func (o *Orchestrator) QueueStats(ctx context.Context) QueueStats {
	byState := o.registry.CountByState()
	stats := QueueStats{Total: o.registry.Len(), ByState: byState, Pending: byState[StateQueued]}
	if n, err := o.queue.Len(ctx); err == nil {
		stats.Pending = n
	} else {
		o.logger.Warn("queue length unavailable", map[string]any{"error": err.Error()})
	}
	return stats
}

// JobsByState adapts CountByState for the metrics exporter.
func (o *Orchestrator) JobsByState() map[string]int {
	out := make(map[string]int, len(States))
	for s, n := range o.registry.CountByState() {
		out[string(s)] = n
	}
	return out
}

// List returns the status of every job, oldest first.
func (o *Orchestrator) List() []Status {
	recs := o.registry.records()
	out := make([]Status, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.job.Status)
		rec.mu.Unlock()
	}
	return out
}

// Delete removes a terminal job and the meshes persisted for it. The job
// is forgotten even when a mesh delete fails; those failures are returned.
// Job records stay in storage as history.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	rec, err := o.lookup(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	state := rec.job.State
	var paths []string
	if rec.job.Summary != nil {
		paths = append(paths, rec.job.Summary.ArtifactPaths...)
	}
	rec.mu.Unlock()
	if !state.Terminal() {
		return fmt.Errorf("%w: job %s is %s", ErrJobActive, id, state)
	}
	o.registry.remove(id)

	if o.cfg.Artifacts == nil || len(paths) == 0 {
		return nil
	}
	var errs []error
	for _, p := range paths {
		if err := o.cfg.Artifacts.DeleteMesh(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("delete mesh %s: %w", p, err))
		}
	}
	o.logger.WithJob(jobMeta(id, -1)).Info("job deleted", map[string]any{
		"meshes": len(paths),
		"failed": len(errs),
	})
	return errors.Join(errs...)
}

// Cleanup removes terminal jobs created more than maxAge ago and returns
// how many were removed. Active jobs are never removed.
func (o *Orchestrator) Cleanup(maxAge time.Duration) int {
	cutoff := o.now().Add(-maxAge)
	removed := 0
	for _, rec := range o.registry.records() {
		rec.mu.Lock()
		expired := rec.job.State.Terminal() && rec.job.CreatedAt.Before(cutoff)
		id := rec.job.ID
		rec.mu.Unlock()
		if expired {
			o.registry.remove(id)
			removed++
		}
	}
	if removed > 0 {
		o.logger.Info("cleaned up jobs", map[string]any{"removed": removed, "max_age": maxAge.String()})
	}
	return removed
}
