package validate

import (
	"errors"
	"testing"

	"github.com/justapithecus/meshforge/mesh"
	"github.com/justapithecus/meshforge/stats"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  Grade
	}{
		{100, GradeExcellent},
		{85, GradeExcellent},
		{84.9, GradeGood},
		{70, GradeGood},
		{69.9, GradeAcceptable},
		{50, GradeAcceptable},
		{49.9, GradePoor},
		{0, GradePoor},
	}
	for _, tt := range tests {
		if got := Classify(stats.QualityReport{QualityScore: tt.score}); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestValidator_Validate(t *testing.T) {
	v := New()

	r, err := v.Validate(mesh.NewCube(1))
	if err != nil {
		t.Fatalf("Validate(cube) error = %v", err)
	}
	if Classify(r) != GradeExcellent {
		t.Errorf("cube grade = %q, want excellent", Classify(r))
	}

	bad := &mesh.Mesh{Vertices: []mesh.Vec3{{}}, Faces: []mesh.Face{{0, 0, 5}}}
	var ve *mesh.ValidationError
	if _, err := v.Validate(bad); !errors.As(err, &ve) {
		t.Errorf("Validate(bad) error = %v, want *mesh.ValidationError", err)
	}
	if _, err := v.Validate(nil); !errors.As(err, &ve) {
		t.Errorf("Validate(nil) error = %v, want *mesh.ValidationError", err)
	}
}

func TestCheckEngineLimits(t *testing.T) {
	r := stats.QualityReport{VertexCount: 70000, FaceCount: 60000}

	if got := CheckEngineLimits(r, Limits{}); len(got) != 0 {
		t.Errorf("zero limits produced %v", got)
	}
	got := CheckEngineLimits(r, Limits{MaxTriangles: 50000, MaxVertices: 65535})
	if len(got) != 2 {
		t.Fatalf("violations = %v, want 2", got)
	}
	if got[0].Limit != "max_triangles" || got[0].Actual != 60000 || got[0].Max != 50000 {
		t.Errorf("violation[0] = %+v", got[0])
	}
	if got := CheckEngineLimits(stats.QualityReport{FaceCount: 100, VertexCount: 52}, UnrealLimits); len(got) != 0 {
		t.Errorf("small mesh violates Unreal preset: %v", got)
	}
}

func TestRatePolycount(t *testing.T) {
	tests := []struct {
		faces int
		want  PolycountRating
	}{
		{0, PolycountLow},
		{499, PolycountLow},
		{500, PolycountMedium},
		{1999, PolycountMedium},
		{2000, PolycountHigh},
		{9999, PolycountHigh},
		{10000, PolycountVeryHigh},
	}
	for _, tt := range tests {
		if got := RatePolycount(tt.faces); got != tt.want {
			t.Errorf("RatePolycount(%d) = %q, want %q", tt.faces, got, tt.want)
		}
	}
}

func TestCompatibility(t *testing.T) {
	r := stats.Analyze(mesh.NewCube(1))
	c := Compatibility(r)
	if !c.GameReady {
		t.Errorf("cube GameReady = false, issues = %v", c.Issues)
	}
	if len(c.Engines) != 2 {
		t.Fatalf("Engines = %d, want 2", len(c.Engines))
	}
	for _, e := range c.Engines {
		if !e.WithinLimits {
			t.Errorf("engine %s WithinLimits = false", e.Engine)
		}
	}

	open := mesh.NewCube(1)
	open.Faces = open.Faces[2:]
	open.UVs = nil
	c = Compatibility(stats.Analyze(open), Limits{Name: "mobile", MaxTriangles: 5})
	if c.GameReady {
		t.Error("open mesh without UVs reported game ready")
	}
	if len(c.Issues) != 2 {
		t.Errorf("Issues = %v, want watertight and UV issues", c.Issues)
	}
	if last := c.Engines[len(c.Engines)-1]; last.Engine != "mobile" || last.WithinLimits {
		t.Errorf("extra engine verdict = %+v", last)
	}
}
