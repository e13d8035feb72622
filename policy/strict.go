package policy

import (
	"context"

	"github.com/justapithecus/meshforge/lode"
	"github.com/justapithecus/meshforge/mesh"
)

// Strict writes every mesh and record through to the sink immediately.
// Sink errors are returned to the caller unchanged.
type Strict struct {
	sink  lode.Sink
	stats statsRecorder
}

// NewStrict creates a strict policy writing to sink.
func NewStrict(sink lode.Sink) *Strict {
	return &Strict{sink: sink}
}

// PutMesh writes m immediately.
func (p *Strict) PutMesh(ctx context.Context, jobID, name string, m *mesh.Mesh) (string, error) {
	path, err := p.sink.PutMesh(ctx, jobID, name, m)
	if err != nil {
		p.stats.incErrors()
		return "", err
	}
	p.stats.incMeshes()
	return path, nil
}

// PutRecord writes rec immediately.
func (p *Strict) PutRecord(ctx context.Context, rec lode.JobRecord) error {
	p.stats.incReceived()
	if err := p.sink.PutRecord(ctx, rec); err != nil {
		p.stats.incErrors()
		return err
	}
	p.stats.incPersisted(1)
	return nil
}

// DeleteMesh removes a mesh immediately.
func (p *Strict) DeleteMesh(ctx context.Context, path string) error {
	if err := p.sink.DeleteMesh(ctx, path); err != nil {
		p.stats.incErrors()
		return err
	}
	return nil
}

// Flush is a no-op; nothing is buffered.
func (p *Strict) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Stats returns policy statistics.
func (p *Strict) Stats() Stats {
	return p.stats.snapshot()
}
