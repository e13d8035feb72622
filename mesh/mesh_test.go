package mesh

import (
	"errors"
	"math"
	"testing"
)

func signedVolume(m *Mesh) float64 {
	var v float64
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		v += a.Dot(b.Cross(c)) / 6
	}
	return v
}

func TestNewCube(t *testing.T) {
	m := NewCube(2)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if m.VertexCount() != 8 || m.FaceCount() != 12 {
		t.Fatalf("counts = %d/%d, want 8/12", m.VertexCount(), m.FaceCount())
	}
	if got := signedVolume(m); math.Abs(got-8) > 1e-9 {
		t.Errorf("signed volume = %v, want 8 (outward winding)", got)
	}
	if got := m.SurfaceArea(); math.Abs(got-24) > 1e-9 {
		t.Errorf("SurfaceArea() = %v, want 24", got)
	}
}

func TestNewUVSphere(t *testing.T) {
	m := NewUVSphere(8, 12, 1)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if want := 12*7 + 2; m.VertexCount() != want {
		t.Errorf("VertexCount() = %d, want %d", m.VertexCount(), want)
	}
	if want := 2 * 12 * 7; m.FaceCount() != want {
		t.Errorf("FaceCount() = %d, want %d", m.FaceCount(), want)
	}
	if got := signedVolume(m); got <= 0 {
		t.Errorf("signed volume = %v, want positive", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		mesh  *Mesh
		field string
	}{
		{
			name:  "index out of range",
			mesh:  &Mesh{Vertices: []Vec3{{}, {1, 0, 0}, {0, 1, 0}}, Faces: []Face{{0, 1, 3}}},
			field: "faces",
		},
		{
			name:  "nan vertex",
			mesh:  &Mesh{Vertices: []Vec3{{math.NaN(), 0, 0}}},
			field: "vertices",
		},
		{
			name:  "color length",
			mesh:  &Mesh{Vertices: []Vec3{{}, {}}, Colors: []Color{{}}},
			field: "colors",
		},
		{
			name:  "uv length",
			mesh:  &Mesh{Vertices: []Vec3{{}}, UVs: []Vec2{{}, {}}},
			field: "uvs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mesh.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestClone_Independent(t *testing.T) {
	m := NewCube(1)
	c := m.Clone()
	c.Vertices[0].X = 100
	c.Faces[0][0] = 7
	c.UVs[0].U = 9
	if m.Vertices[0].X == 100 || m.Faces[0][0] == 7 || m.UVs[0].U == 9 {
		t.Error("Clone shares backing arrays with original")
	}
}

func TestCompact(t *testing.T) {
	m := &Mesh{
		Vertices: []Vec3{{9, 9, 9}, {0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:    []Face{{1, 2, 3}},
		Colors:   []Color{{R: 1}, {G: 1}, {B: 1}, {A: 1}},
	}
	out := m.Compact()
	if out.VertexCount() != 3 {
		t.Fatalf("VertexCount() = %d, want 3", out.VertexCount())
	}
	if out.Faces[0] != (Face{0, 1, 2}) {
		t.Errorf("Faces[0] = %v, want [0 1 2]", out.Faces[0])
	}
	if out.Colors[0] != (Color{G: 1}) {
		t.Errorf("Colors[0] = %v, want colour of old vertex 1", out.Colors[0])
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 3); got != 3 {
		t.Errorf("Clamp(5,0,3) = %d", got)
	}
	if got := Clamp(-1.5, 0.0, 1.0); got != 0 {
		t.Errorf("Clamp(-1.5,0,1) = %v", got)
	}
}
