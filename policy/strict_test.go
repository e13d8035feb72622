package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/justapithecus/meshforge/mesh"
)

func TestStrict_WritesThrough(t *testing.T) {
	sink := newFakeSink()
	p := NewStrict(sink)
	ctx := context.Background()

	path, err := p.PutMesh(ctx, "job-1", "final", mesh.NewCube(1))
	if err != nil || path != "job-1/final" {
		t.Fatalf("PutMesh = %q, %v", path, err)
	}
	if err := p.PutRecord(ctx, rec("job-1", "completed")); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}
	if got := sink.ids(); len(got) != 1 {
		t.Fatalf("records written before flush = %v, want 1", got)
	}
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	s := p.Stats()
	if s.RecordsReceived != 1 || s.RecordsPersisted != 1 || s.MeshesPersisted != 1 || s.FlushCount != 1 || s.Errors != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestStrict_SinkErrors(t *testing.T) {
	sink := newFakeSink()
	sink.failAfter = 0
	sink.failMesh = true
	p := NewStrict(sink)
	ctx := context.Background()

	if _, err := p.PutMesh(ctx, "job-1", "final", mesh.NewCube(1)); !errors.Is(err, errSink) {
		t.Errorf("PutMesh err = %v, want errSink", err)
	}
	if err := p.PutRecord(ctx, rec("job-1", "completed")); !errors.Is(err, errSink) {
		t.Errorf("PutRecord err = %v, want errSink", err)
	}
	s := p.Stats()
	if s.Errors != 2 || s.RecordsPersisted != 0 || s.RecordsReceived != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestPolicies_DeleteMeshWritesThrough(t *testing.T) {
	for _, name := range []string{"strict", "buffered"} {
		t.Run(name, func(t *testing.T) {
			sink := newFakeSink()
			var p Policy = NewStrict(sink)
			if name == "buffered" {
				b, err := NewBuffered(sink, BufferedConfig{})
				if err != nil {
					t.Fatal(err)
				}
				p = b
			}
			ctx := context.Background()
			path, err := p.PutMesh(ctx, "job-1", "final", mesh.NewCube(1))
			if err != nil {
				t.Fatal(err)
			}
			if err := p.DeleteMesh(ctx, path); err != nil {
				t.Fatalf("DeleteMesh failed: %v", err)
			}
			if len(sink.meshes) != 0 {
				t.Errorf("meshes after delete = %v", sink.meshes)
			}

			sink.failMesh = true
			if err := p.DeleteMesh(ctx, path); !errors.Is(err, errSink) {
				t.Errorf("DeleteMesh error = %v, want errSink", err)
			}
			if p.Stats().Errors != 1 {
				t.Errorf("Errors = %d, want 1", p.Stats().Errors)
			}
		})
	}
}
