package lode

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/meshforge/mesh"
)

func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

func newTestStore(t *testing.T) *ArtifactStore {
	t.Helper()
	s, err := NewArtifactStore("", sharedFactory(lode.NewMemory()))
	if err != nil {
		t.Fatalf("NewArtifactStore failed: %v", err)
	}
	s.now = func() time.Time { return time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC) }
	return s
}

// FailingStore is a lode.Store whose Put and Get return configurable errors.
type FailingStore struct {
	PutErr error
	GetErr error
}

func (s *FailingStore) Put(context.Context, string, io.Reader) error { return s.PutErr }

func (s *FailingStore) Get(context.Context, string) (io.ReadCloser, error) { return nil, s.GetErr }

func (s *FailingStore) Exists(context.Context, string) (bool, error) { return false, nil }

func (s *FailingStore) List(context.Context, string) ([]string, error) { return nil, nil }

func (s *FailingStore) Delete(context.Context, string) error { return nil }

func (s *FailingStore) ReadRange(context.Context, string, int64, int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *FailingStore) ReaderAt(context.Context, string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*FailingStore)(nil)

func TestArtifactStore_MeshRoundTrip(t *testing.T) {
	s := newTestStore(t)
	cube := mesh.NewCube(2)

	p, err := s.PutMesh(t.Context(), "job-1", "final", cube)
	if err != nil {
		t.Fatalf("PutMesh failed: %v", err)
	}
	want := "datasets/meshforge/partitions/day=2026-10-17/job_id=job-1/files/final.msgpack"
	if p != want {
		t.Errorf("path = %q, want %q", p, want)
	}

	got, err := s.GetMesh(t.Context(), p)
	if err != nil {
		t.Fatalf("GetMesh failed: %v", err)
	}
	if got.VertexCount() != 8 || got.FaceCount() != 12 || !got.HasUVs() {
		t.Errorf("round trip lost data: %d verts, %d faces, uvs=%v", got.VertexCount(), got.FaceCount(), got.HasUVs())
	}
	for i := range cube.Vertices {
		if got.Vertices[i] != cube.Vertices[i] {
			t.Fatalf("vertex %d = %v, want %v", i, got.Vertices[i], cube.Vertices[i])
		}
	}
}

func TestArtifactStore_RejectsBadNames(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"", "a/b", `a\b`, ".."} {
		if _, err := s.PutMesh(t.Context(), "job-1", name, mesh.NewCube(1)); !errors.Is(err, ErrInvalidName) {
			t.Errorf("PutMesh(%q) err = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestArtifactStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetMesh(t.Context(), s.MeshPath("2026-10-17", "nope", "final"))
	if err == nil {
		t.Fatal("expected error for missing mesh")
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "read" {
		t.Errorf("expected read StorageError, got %v", err)
	}
}

func TestArtifactStore_RecordsAndLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	recs := []JobRecord{
		{JobID: "job-a", State: "completed", Faces: 1980, Vertices: 992, QualityScore: 90, Grade: "excellent",
			Watertight: true, LODFaces: []int{1980, 990, 495}, MeshPaths: []string{"p0", "p1"}},
		{JobID: "job-b", State: "failed", ErrorKind: "generation_error", Error: "model crashed"},
		{JobID: "job-a", State: "completed", Faces: 1000, Warnings: []string{"decimation used vertex clustering"}},
	}
	for _, r := range recs {
		if err := s.PutRecord(ctx, r); err != nil {
			t.Fatalf("PutRecord failed: %v", err)
		}
	}

	all, err := s.Records(ctx)
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Records returned %d, want 3", len(all))
	}
	if all[0].Day != "2026-10-17" || all[0].CompletedAt != "2026-10-17T09:30:00Z" {
		t.Errorf("defaults not applied: %+v", all[0])
	}
	if len(all[0].LODFaces) != 3 || all[0].LODFaces[2] != 495 || all[0].MeshPaths[1] != "p1" {
		t.Errorf("list fields lost: %+v", all[0])
	}

	latestA, err := s.LatestRecord(ctx, "job-a")
	if err != nil {
		t.Fatalf("LatestRecord failed: %v", err)
	}
	if latestA.Faces != 1000 || len(latestA.Warnings) != 1 {
		t.Errorf("latest job-a = %+v, want the second write", latestA)
	}

	latestB, err := s.LatestRecord(ctx, "job-b")
	if err != nil {
		t.Fatalf("LatestRecord failed: %v", err)
	}
	if latestB.ErrorKind != "generation_error" || latestB.State != "failed" {
		t.Errorf("latest job-b = %+v", latestB)
	}

	if _, err := s.LatestRecord(ctx, "job-c"); !errors.Is(err, ErrNoRecordFound) {
		t.Errorf("LatestRecord(job-c) err = %v, want ErrNoRecordFound", err)
	}
}

func TestArtifactStore_PartialIDDoesNotMatch(t *testing.T) {
	s := newTestStore(t)
	if err := s.PutRecord(t.Context(), JobRecord{JobID: "job-10", State: "completed"}); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}
	if _, err := s.LatestRecord(t.Context(), "job-1"); !errors.Is(err, ErrNoRecordFound) {
		t.Errorf("job-1 matched job-10: %v", err)
	}
}

func TestArtifactStore_StoreFailures(t *testing.T) {
	t.Run("put disk full", func(t *testing.T) {
		s, err := NewArtifactStore("", sharedFactory(&FailingStore{PutErr: errors.New("write: no space left on device")}))
		if err != nil {
			t.Fatal(err)
		}
		_, err = s.PutMesh(t.Context(), "job-1", "final", mesh.NewCube(1))
		if !errors.Is(err, ErrDiskFull) {
			t.Errorf("err = %v, want ErrDiskFull", err)
		}
	})

	t.Run("factory failure", func(t *testing.T) {
		s, err := NewArtifactStore("", func() (lode.Store, error) { return nil, errors.New("NoCredentialProviders") })
		if err != nil {
			t.Skipf("dataset construction resolves the store eagerly: %v", err)
		}
		_, err = s.PutMesh(t.Context(), "job-1", "final", mesh.NewCube(1))
		var se *StorageError
		if !errors.As(err, &se) || se.Op != "init" || !errors.Is(err, ErrAuth) {
			t.Errorf("err = %v, want init/auth StorageError", err)
		}
	})
}

func TestNewFSArtifactStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSArtifactStore("assets", dir)
	if err != nil {
		t.Fatalf("NewFSArtifactStore failed: %v", err)
	}
	p, err := s.PutMesh(t.Context(), "job-fs", "lod1", mesh.NewUVSphere(8, 12, 1))
	if err != nil {
		t.Fatalf("PutMesh failed: %v", err)
	}
	if !strings.HasPrefix(p, "datasets/assets/") {
		t.Errorf("path = %q", p)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		t.Errorf("nothing written under %s: %v", dir, err)
	}
}

func TestNewMemoryArtifactStore(t *testing.T) {
	s, err := NewMemoryArtifactStore("scratch")
	if err != nil {
		t.Fatalf("NewMemoryArtifactStore failed: %v", err)
	}
	ctx := t.Context()

	p, err := s.PutMesh(ctx, "job-mem", "final", mesh.NewCube(1))
	if err != nil {
		t.Fatalf("PutMesh failed: %v", err)
	}
	if err := s.PutRecord(ctx, JobRecord{JobID: "job-mem", State: "completed", MeshPaths: []string{p}}); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}

	// Meshes and records share one backing store.
	rec, err := s.LatestRecord(ctx, "job-mem")
	if err != nil {
		t.Fatalf("LatestRecord failed: %v", err)
	}
	got, err := s.GetMesh(ctx, rec.MeshPaths[0])
	if err != nil {
		t.Fatalf("GetMesh failed: %v", err)
	}
	if got.FaceCount() != 12 {
		t.Errorf("faces = %d, want 12", got.FaceCount())
	}
}

func TestArtifactStore_DeleteMesh(t *testing.T) {
	s, err := NewMemoryArtifactStore("scratch")
	if err != nil {
		t.Fatalf("NewMemoryArtifactStore failed: %v", err)
	}
	ctx := t.Context()

	p, err := s.PutMesh(ctx, "job-del", "final", mesh.NewCube(1))
	if err != nil {
		t.Fatalf("PutMesh failed: %v", err)
	}
	if err := s.DeleteMesh(ctx, p); err != nil {
		t.Fatalf("DeleteMesh failed: %v", err)
	}
	if _, err := s.GetMesh(ctx, p); err == nil {
		t.Error("GetMesh after DeleteMesh succeeded, want error")
	}
	if err := s.DeleteMesh(ctx, p); err != nil {
		t.Errorf("second DeleteMesh = %v, want nil", err)
	}

	for _, bad := range []string{
		"datasets/other/partitions/day=2026-10-17/job_id=x/files/final.msgpack",
		"datasets/scratch/partitions/day=2026-10-17/job_id=x/manifest.json",
		"datasets/scratch/partitions/../files/final.msgpack",
	} {
		if err := s.DeleteMesh(ctx, bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("DeleteMesh(%q) = %v, want ErrInvalidName", bad, err)
		}
	}
}

func TestStubSink(t *testing.T) {
	s := NewStubSink()
	p, err := s.PutMesh(t.Context(), "job-1", "final", mesh.NewCube(1))
	if err != nil {
		t.Fatal(err)
	}
	_ = s.PutRecord(t.Context(), JobRecord{JobID: "job-1"})
	paths, recs := s.Snapshot()
	if len(paths) != 1 || paths[0] != p || len(recs) != 1 {
		t.Errorf("snapshot = %v / %v", paths, recs)
	}

	s.Err = errors.New("down")
	if _, err := s.PutMesh(t.Context(), "job-2", "final", mesh.NewCube(1)); err == nil {
		t.Error("expected configured error")
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct{ in, bucket, prefix string }{
		{"bucket", "bucket", ""},
		{"bucket/a/b", "bucket", "a/b"},
	}
	for _, tt := range tests {
		b, p := ParseS3Path(tt.in)
		if b != tt.bucket || p != tt.prefix {
			t.Errorf("ParseS3Path(%q) = %q, %q", tt.in, b, p)
		}
	}
	cfg := S3Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing bucket")
	}
}
