package lod

import (
	"errors"
	"testing"

	"github.com/justapithecus/meshforge/mesh"
)

func TestGenerate_IdentityAndOrdering(t *testing.T) {
	src := mesh.NewUVSphere(16, 24, 1)
	before := src.Clone()

	set, err := New(Options{}).Generate(src, []float64{1.0, 0.5, 0.25})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if set.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", set.Len())
	}
	if set.Levels[0].Mesh != src {
		t.Error("level 0 is not the source mesh pointer")
	}
	for i := 1; i < set.Len(); i++ {
		prev, cur := set.Levels[i-1], set.Levels[i]
		if cur.Mesh == src {
			t.Errorf("level %d aliases the source mesh", i)
		}
		if cur.SwitchDistance <= prev.SwitchDistance {
			t.Errorf("SwitchDistance[%d] = %v not above %v", i, cur.SwitchDistance, prev.SwitchDistance)
		}
		if cur.Faces > prev.Faces {
			t.Errorf("level %d has %d faces, more than level %d (%d)", i, cur.Faces, i-1, prev.Faces)
		}
		if !cur.Reduced {
			t.Errorf("level %d Reduced = false", i)
		}
	}

	if set.Levels[1].TargetFaces != src.FaceCount()/2 {
		t.Errorf("TargetFaces[1] = %d, want %d", set.Levels[1].TargetFaces, src.FaceCount()/2)
	}
	for i := range src.Vertices {
		if src.Vertices[i] != before.Vertices[i] {
			t.Fatalf("source vertex %d mutated", i)
		}
	}
}

func TestGenerate_SwitchDistance(t *testing.T) {
	src := mesh.NewCube(2)
	set, err := New(Options{DistanceK: 12}).Generate(src, []float64{1.0})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	diag := src.Diagonal()
	if got, want := set.Levels[0].SwitchDistance, 12/diag; got != want {
		t.Errorf("SwitchDistance = %v, want %v", got, want)
	}
}

func TestGenerate_SmallMeshLevelsNotReduced(t *testing.T) {
	// 12 × 0.99 rounds back up to the full face count.
	src := mesh.NewCube(1)
	set, err := New(Options{}).Generate(src, []float64{1.0, 0.99})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	lvl := set.Levels[1]
	if lvl.TargetFaces != 12 {
		t.Fatalf("TargetFaces = %d, want 12", lvl.TargetFaces)
	}
	if lvl.Reduced {
		t.Error("Reduced = true for a target equal to the source face count")
	}
	if lvl.Mesh == src {
		t.Error("unreduced level aliases the source mesh")
	}
}

func TestGenerate_InvalidConfig(t *testing.T) {
	src := mesh.NewCube(1)
	tests := []struct {
		name   string
		ratios []float64
	}{
		{"empty", nil},
		{"not starting at one", []float64{0.5, 0.25}},
		{"increasing", []float64{1.0, 0.5, 0.75}},
		{"repeated", []float64{1.0, 0.5, 0.5}},
		{"zero", []float64{1.0, 0}},
		{"negative", []float64{1.0, -0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{}).Generate(src, tt.ratios)
			if !errors.Is(err, ErrInvalidLODConfig) {
				t.Errorf("Generate(%v) error = %v, want ErrInvalidLODConfig", tt.ratios, err)
			}
		})
	}
}

func TestGenerate_DegenerateBounds(t *testing.T) {
	src := &mesh.Mesh{
		Vertices: []mesh.Vec3{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}},
		Faces:    []mesh.Face{{0, 1, 2}},
	}
	if _, err := New(Options{}).Generate(src, DefaultRatios); !errors.Is(err, ErrDegenerateBounds) {
		t.Errorf("Generate() error = %v, want ErrDegenerateBounds", err)
	}
}

func TestGenerate_BoundedConcurrency(t *testing.T) {
	src := mesh.NewUVSphere(12, 16, 1)
	set, err := New(Options{Concurrency: 1}).Generate(src, []float64{1.0, 0.75, 0.5, 0.25, 0.1})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if set.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", set.Len())
	}
	for i, lvl := range set.Levels {
		if lvl.Mesh == nil {
			t.Errorf("level %d has no mesh", i)
		}
	}
}

func TestLODSet_Level(t *testing.T) {
	set := &LODSet{Levels: []Level{{Ratio: 1}}}
	if _, ok := set.Level(1); ok {
		t.Error("Level(1) ok = true for one-level set")
	}
	if _, ok := set.Level(-1); ok {
		t.Error("Level(-1) ok = true")
	}
	var nilSet *LODSet
	if _, ok := nilSet.Level(0); ok {
		t.Error("nil set Level(0) ok = true")
	}
}
