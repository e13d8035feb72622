package runtime

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/justapithecus/meshforge/lod"
	"github.com/justapithecus/meshforge/mesh"
)

// record is the registry entry for one job. job, mesh, lods and cancel are
// guarded by mu; cancelRequested may be read without it.
type record struct {
	mu     sync.Mutex
	job    Job
	mesh   *mesh.Mesh
	lods   *lod.LODSet
	cancel context.CancelFunc

	cancelRequested atomic.Bool
}

func (r *record) snapshot() Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job.clone()
}

// Registry maps job ids to jobs. It is constructed explicitly and handed to
// an Orchestrator; there is no process-wide registry.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*record
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*record)}
}

func (r *Registry) add(rec *record) {
	r.mu.Lock()
	r.jobs[rec.job.ID] = rec
	r.mu.Unlock()
}

func (r *Registry) get(id string) (*record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.jobs[id]
	return rec, ok
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
}

// records returns all entries ordered by creation time, then id.
func (r *Registry) records() []*record {
	r.mu.RLock()
	out := make([]*record, 0, len(r.jobs))
	for _, rec := range r.jobs {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	type key struct {
		created time.Time
		id      string
	}
	keys := make(map[*record]key, len(out))
	for _, rec := range out {
		rec.mu.Lock()
		keys[rec] = key{rec.job.CreatedAt, rec.job.ID}
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := keys[out[i]], keys[out[j]]
		if !a.created.Equal(b.created) {
			return a.created.Before(b.created)
		}
		return a.id < b.id
	})
	return out
}

// Len returns the number of jobs tracked.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// CountByState returns the number of jobs in each state. Every state is
// present in the result, including those with zero jobs.
func (r *Registry) CountByState() map[State]int {
	counts := make(map[State]int, len(States))
	for _, s := range States {
		counts[s] = 0
	}
	r.mu.RLock()
	recs := make([]*record, 0, len(r.jobs))
	for _, rec := range r.jobs {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	for _, rec := range recs {
		rec.mu.Lock()
		counts[rec.job.State]++
		rec.mu.Unlock()
	}
	return counts
}
