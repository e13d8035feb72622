package policy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/justapithecus/meshforge/lode"
	"github.com/justapithecus/meshforge/mesh"
)

var errSink = errors.New("sink unavailable")

// fakeSink records writes and fails on demand.
type fakeSink struct {
	mu      sync.Mutex
	records []lode.JobRecord
	meshes  []string
	// failAfter fails every PutRecord once this many records are stored.
	// Negative never fails.
	failAfter int
	failMesh  bool
}

func newFakeSink() *fakeSink { return &fakeSink{failAfter: -1} }

func (s *fakeSink) PutMesh(_ context.Context, jobID, name string, _ *mesh.Mesh) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMesh {
		return "", errSink
	}
	p := fmt.Sprintf("%s/%s", jobID, name)
	s.meshes = append(s.meshes, p)
	return p, nil
}

func (s *fakeSink) PutRecord(_ context.Context, rec lode.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter >= 0 && len(s.records) >= s.failAfter {
		return errSink
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeSink) DeleteMesh(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMesh {
		return errSink
	}
	s.meshes = slices.DeleteFunc(s.meshes, func(m string) bool { return m == p })
	return nil
}

func (s *fakeSink) setFailAfter(n int) {
	s.mu.Lock()
	s.failAfter = n
	s.mu.Unlock()
}

func (s *fakeSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.JobID
	}
	return out
}

func rec(id, state string) lode.JobRecord {
	return lode.JobRecord{JobID: id, State: state}
}

var (
	_ Policy = (*Strict)(nil)
	_ Policy = (*Buffered)(nil)
)
