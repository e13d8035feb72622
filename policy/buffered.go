package policy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/justapithecus/meshforge/lode"
	"github.com/justapithecus/meshforge/log"
	"github.com/justapithecus/meshforge/mesh"
)

// DefaultMaxRecords is the buffer size used when none is configured.
const DefaultMaxRecords = 64

// ErrBufferFull is returned when a non-droppable record cannot be buffered
// and the inline flush failed.
var ErrBufferFull = errors.New("record buffer full")

// BufferedConfig configures a Buffered policy.
type BufferedConfig struct {
	// MaxRecords bounds the record buffer. Zero uses DefaultMaxRecords.
	MaxRecords int
	// Logger is optional.
	Logger *log.Logger
}

// Buffered batches job records and writes meshes through.
//
// A full buffer is flushed inline. When that flush fails, droppable records
// make room before a non-droppable record is rejected. Flushes are at least
// once: records stay buffered until the sink accepts them, and records
// written before a failure are not written again.
type Buffered struct {
	sink   lode.Sink
	max    int
	logger *log.Logger

	// mu serialises flushes and guards buf.
	mu    sync.Mutex
	buf   []lode.JobRecord
	stats statsRecorder
}

// NewBuffered creates a buffered policy writing to sink.
func NewBuffered(sink lode.Sink, cfg BufferedConfig) (*Buffered, error) {
	if cfg.MaxRecords < 0 {
		return nil, fmt.Errorf("max records must be >= 0, got %d", cfg.MaxRecords)
	}
	if cfg.MaxRecords == 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}
	return &Buffered{
		sink:   sink,
		max:    cfg.MaxRecords,
		logger: cfg.Logger,
		buf:    make([]lode.JobRecord, 0, cfg.MaxRecords),
	}, nil
}

// PutMesh writes m immediately; its path must be known to the record.
func (p *Buffered) PutMesh(ctx context.Context, jobID, name string, m *mesh.Mesh) (string, error) {
	path, err := p.sink.PutMesh(ctx, jobID, name, m)
	if err != nil {
		p.stats.incErrors()
		return "", err
	}
	p.stats.incMeshes()
	return path, nil
}

// DeleteMesh removes a mesh immediately. Buffered records are kept; they
// describe the job as it finished.
func (p *Buffered) DeleteMesh(ctx context.Context, path string) error {
	if err := p.sink.DeleteMesh(ctx, path); err != nil {
		p.stats.incErrors()
		return err
	}
	return nil
}

// PutRecord buffers rec, flushing inline when the buffer is full.
func (p *Buffered) PutRecord(ctx context.Context, rec lode.JobRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incReceivedLocked()
	if len(p.buf) < p.max {
		p.buf = append(p.buf, rec)
		return nil
	}

	flushErr := p.flushLocked(ctx)
	if flushErr == nil {
		p.buf = append(p.buf, rec)
		return nil
	}
	if IsDroppable(rec) {
		p.stats.incDroppedLocked()
		p.logDrop(rec.JobID, "buffer_full")
		return nil
	}
	if p.dropOldestDroppable() {
		p.buf = append(p.buf, rec)
		return nil
	}
	p.logOverflow(rec.JobID)
	return fmt.Errorf("%w: %w", ErrBufferFull, flushErr)
}

// dropOldestDroppable evicts the oldest droppable record. Caller holds mu.
func (p *Buffered) dropOldestDroppable() bool {
	i := slices.IndexFunc(p.buf, IsDroppable)
	if i < 0 {
		return false
	}
	p.logDrop(p.buf[i].JobID, "evicted")
	p.buf = slices.Delete(p.buf, i, i+1)
	p.stats.incDroppedLocked()
	return true
}

// Flush writes buffered records in order.
func (p *Buffered) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(ctx)
}

func (p *Buffered) flushLocked(ctx context.Context) error {
	p.stats.incFlushLocked()
	for i, rec := range p.buf {
		if err := p.sink.PutRecord(ctx, rec); err != nil {
			p.stats.incErrorsLocked()
			p.stats.incPersistedLocked(int64(i))
			p.buf = slices.Delete(p.buf, 0, i)
			p.logFlushFailure(len(p.buf), err)
			return err
		}
	}
	p.stats.incPersistedLocked(int64(len(p.buf)))
	p.buf = p.buf[:0]
	return nil
}

// Stats returns policy statistics including the current buffer length.
func (p *Buffered) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.snapshotLocked(len(p.buf))
}

func (p *Buffered) logDrop(jobID, reason string) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("record dropped", map[string]any{
		"job_id": jobID,
		"reason": reason,
		"policy": "buffered",
	})
}

func (p *Buffered) logOverflow(jobID string) {
	if p.logger == nil {
		return
	}
	p.logger.Error("buffer overflow", map[string]any{
		"job_id": jobID,
		"policy": "buffered",
	})
}

func (p *Buffered) logFlushFailure(remaining int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("flush failed", map[string]any{
		"remaining": remaining,
		"error":     err.Error(),
		"policy":    "buffered",
	})
}
