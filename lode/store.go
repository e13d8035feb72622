// Package lode persists job artifacts on top of the Lode storage library.
//
// Meshes are written as msgpack files under a Hive-partitioned files/
// prefix, bypassing the Dataset segment machinery. Job records are written
// to a JSONL Dataset so they can be listed and queried by job id.
package lode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/meshforge/ipc"
	"github.com/justapithecus/meshforge/iox"
	"github.com/justapithecus/meshforge/mesh"
)

// DefaultDataset is the dataset id used when none is configured.
const DefaultDataset = "meshforge"

// ErrNoRecordFound is returned when no job record matches a query.
var ErrNoRecordFound = errors.New("no job record found")

// ErrInvalidName is returned for artifact names containing path separators.
var ErrInvalidName = errors.New("invalid artifact name")

// Sink persists the artifacts of a finished job.
type Sink interface {
	// PutMesh stores m and returns its storage path.
	PutMesh(ctx context.Context, jobID, name string, m *mesh.Mesh) (string, error)
	// PutRecord appends a job record.
	PutRecord(ctx context.Context, rec JobRecord) error
	// DeleteMesh removes a mesh returned by PutMesh. A missing mesh is not
	// an error.
	DeleteMesh(ctx context.Context, path string) error
}

// ArtifactStore is the Lode-backed Sink.
type ArtifactStore struct {
	dataset      lode.Dataset
	datasetID    string
	storeFactory lode.StoreFactory
	now          func() time.Time

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

var _ Sink = (*ArtifactStore)(nil)

func newDataset(datasetID string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(datasetID),
		factory,
		lode.WithHiveLayout("day", "job_id"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// NewArtifactStore creates a store over a custom factory.
func NewArtifactStore(datasetID string, factory lode.StoreFactory) (*ArtifactStore, error) {
	if datasetID == "" {
		datasetID = DefaultDataset
	}
	ds, err := newDataset(datasetID, factory)
	if err != nil {
		return nil, WrapInitError(err, datasetID)
	}
	return &ArtifactStore{
		dataset:      ds,
		datasetID:    datasetID,
		storeFactory: factory,
		now:          time.Now,
	}, nil
}

// NewMemoryArtifactStore creates a process-local store. Meshes and records
// share one in-memory backend.
func NewMemoryArtifactStore(datasetID string) (*ArtifactStore, error) {
	mem := lode.NewMemory()
	return NewArtifactStore(datasetID, func() (lode.Store, error) { return mem, nil })
}

// NewFSArtifactStore creates a store rooted at a local directory.
func NewFSArtifactStore(datasetID, root string) (*ArtifactStore, error) {
	return NewArtifactStore(datasetID, lode.NewFSFactory(root))
}

func (s *ArtifactStore) getOrCreateStore() (lode.Store, error) {
	s.storeOnce.Do(func() {
		s.store, s.storeErr = s.storeFactory()
	})
	return s.store, s.storeErr
}

// MeshPath computes the storage path for a mesh artifact.
// Format: datasets/<dataset>/partitions/day=<d>/job_id=<id>/files/<name>.msgpack
func (s *ArtifactStore) MeshPath(day, jobID, name string) string {
	return fmt.Sprintf("datasets/%s/partitions/day=%s/job_id=%s/files/%s.msgpack",
		s.datasetID, day, jobID, name)
}

// PutMesh encodes m with the ipc mesh container and writes it.
func (s *ArtifactStore) PutMesh(ctx context.Context, jobID, name string, m *mesh.Mesh) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	data, err := ipc.EncodeMesh(m)
	if err != nil {
		return "", fmt.Errorf("encode mesh %s: %w", name, err)
	}

	store, err := s.getOrCreateStore()
	if err != nil {
		return "", WrapInitError(err, s.datasetID)
	}
	p := s.MeshPath(DeriveDay(s.now()), jobID, name)
	if err := store.Put(ctx, p, bytes.NewReader(data)); err != nil {
		return "", WrapWriteError(err, p)
	}
	return p, nil
}

// GetMesh reads and decodes a mesh previously written by PutMesh.
func (s *ArtifactStore) GetMesh(ctx context.Context, p string) (*mesh.Mesh, error) {
	store, err := s.getOrCreateStore()
	if err != nil {
		return nil, WrapInitError(err, s.datasetID)
	}
	rc, err := store.Get(ctx, p)
	if err != nil {
		return nil, WrapReadError(err, p)
	}
	defer iox.DiscardClose(rc)

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, WrapReadError(err, p)
	}
	return ipc.DecodeMesh(data)
}

// DeleteMesh removes a mesh file. Only paths under this dataset's files/
// prefixes are accepted; records and manifests are immutable.
func (s *ArtifactStore) DeleteMesh(ctx context.Context, p string) error {
	prefix := "datasets/" + s.datasetID + "/partitions/"
	if !strings.HasPrefix(p, prefix) || !strings.Contains(p, "/files/") || strings.Contains(p, "..") {
		return fmt.Errorf("%w: %q is not a mesh path", ErrInvalidName, p)
	}
	store, err := s.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, s.datasetID)
	}
	if err := store.Delete(ctx, p); err != nil {
		return WrapDeleteError(err, p)
	}
	return nil
}

// PutRecord writes rec to the dataset. Day defaults to the current UTC day.
func (s *ArtifactStore) PutRecord(ctx context.Context, rec JobRecord) error {
	if rec.Day == "" {
		rec.Day = DeriveDay(s.now())
	}
	if rec.CompletedAt == "" {
		rec.CompletedAt = s.now().UTC().Format(time.RFC3339)
	}
	if _, err := s.dataset.Write(ctx, []any{rec.toMap()}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, s.datasetID+"/job_id="+rec.JobID)
	}
	return nil
}

// LatestRecord returns the most recent record for jobID, or the most recent
// record of any job when jobID is empty.
func (s *ArtifactStore) LatestRecord(ctx context.Context, jobID string) (JobRecord, error) {
	snapshots, err := s.dataset.Snapshots(ctx)
	if err != nil {
		return JobRecord{}, WrapReadError(err, s.datasetID+"/snapshots")
	}

	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatchesFilter(snap, "job_id", jobID) {
			continue
		}
		data, err := s.dataset.Read(ctx, snap.ID)
		if err != nil {
			return JobRecord{}, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", s.datasetID, snap.ID))
		}
		// Manifest paths are a coarse filter; record fields are authoritative.
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok || m["record_kind"] != RecordKindJob {
				continue
			}
			if jobID != "" && toString(m["job_id"]) != jobID {
				continue
			}
			return jobRecordFromMap(m), nil
		}
	}
	return JobRecord{}, ErrNoRecordFound
}

// Records returns every job record, oldest first.
func (s *ArtifactStore) Records(ctx context.Context) ([]JobRecord, error) {
	snapshots, err := s.dataset.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, s.datasetID+"/snapshots")
	}
	var out []JobRecord
	for _, snap := range snapshots {
		data, err := s.dataset.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", s.datasetID, snap.ID))
		}
		for _, item := range data {
			if m, ok := item.(map[string]any); ok && m["record_kind"] == RecordKindJob {
				out = append(out, jobRecordFromMap(m))
			}
		}
	}
	return out, nil
}

// snapshotMatchesFilter reports whether any manifest path carries an exact
// key=value segment. An empty value matches everything.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	segment := key + "=" + value
	for _, f := range snap.Manifest.Files {
		for _, part := range strings.Split(f.Path, "/") {
			if part == segment {
				return true
			}
		}
	}
	return false
}
