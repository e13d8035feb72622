package lode

import (
	"context"
	"fmt"
	"sync"

	"github.com/justapithecus/meshforge/mesh"
)

// StubSink records artifacts in memory for testing.
type StubSink struct {
	mu      sync.Mutex
	Meshes  map[string]*mesh.Mesh
	Records []JobRecord
	// Err, when set, fails every call.
	Err error
}

// NewStubSink creates an empty StubSink.
func NewStubSink() *StubSink {
	return &StubSink{Meshes: make(map[string]*mesh.Mesh)}
}

// PutMesh implements Sink by keeping a clone of m.
func (s *StubSink) PutMesh(_ context.Context, jobID, name string, m *mesh.Mesh) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	p := fmt.Sprintf("stub/%s/%s", jobID, name)
	s.Meshes[p] = m.Clone()
	return p, nil
}

// PutRecord implements Sink.
func (s *StubSink) PutRecord(_ context.Context, rec JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Records = append(s.Records, rec)
	return nil
}

// DeleteMesh implements Sink.
func (s *StubSink) DeleteMesh(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	delete(s.Meshes, p)
	return nil
}

// Snapshot returns copies of the recorded mesh paths and records.
func (s *StubSink) Snapshot() (paths []string, records []JobRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.Meshes {
		paths = append(paths, p)
	}
	return paths, append([]JobRecord(nil), s.Records...)
}

var _ Sink = (*StubSink)(nil)
