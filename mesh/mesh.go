// Package mesh defines the indexed triangle mesh shared by every pipeline stage.
//
// A Mesh is a plain value container: positions, triangle indices and optional
// per-vertex colours and texture coordinates. Stages never mutate a mesh they
// receive; they return a new one.
package mesh

import (
	"fmt"
	"math"
)

// Face is a triangle as three vertex indices in counter-clockwise order.
type Face [3]uint32

// Mesh is an indexed triangle mesh.
type Mesh struct {
	// Vertices are vertex positions.
	Vertices []Vec3
	// Faces index into Vertices.
	Faces []Face
	// Colors is optional. When present it has one entry per vertex.
	Colors []Color
	// UVs is optional. When present it has one entry per vertex.
	UVs []Vec2
}

// ValidationError reports a structurally invalid mesh.
type ValidationError struct {
	// Field is the offending attribute ("faces", "vertices", "colors", "uvs").
	Field string
	// Index is the offending element, or -1 when the whole attribute is wrong.
	Index int
	// Reason describes the defect.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid mesh: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid mesh: %s[%d]: %s", e.Field, e.Index, e.Reason)
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Vertices) }

// FaceCount returns the number of faces.
func (m *Mesh) FaceCount() int { return len(m.Faces) }

// HasColors reports whether per-vertex colours are present.
func (m *Mesh) HasColors() bool { return len(m.Colors) > 0 }

// HasUVs reports whether texture coordinates are present.
func (m *Mesh) HasUVs() bool { return len(m.UVs) > 0 }

// Validate checks structural invariants: index range, finite coordinates,
// and attribute lengths. It returns a *ValidationError on the first defect.
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	if len(m.Colors) != 0 && len(m.Colors) != n {
		return &ValidationError{Field: "colors", Index: -1,
			Reason: fmt.Sprintf("length %d does not match vertex count %d", len(m.Colors), n)}
	}
	if len(m.UVs) != 0 && len(m.UVs) != n {
		return &ValidationError{Field: "uvs", Index: -1,
			Reason: fmt.Sprintf("length %d does not match vertex count %d", len(m.UVs), n)}
	}
	for i, v := range m.Vertices {
		if !v.IsFinite() {
			return &ValidationError{Field: "vertices", Index: i, Reason: "non-finite coordinate"}
		}
	}
	for i, uv := range m.UVs {
		if !isFinite(uv.U) || !isFinite(uv.V) {
			return &ValidationError{Field: "uvs", Index: i, Reason: "non-finite coordinate"}
		}
	}
	for i, f := range m.Faces {
		for _, idx := range f {
			if int(idx) >= n {
				return &ValidationError{Field: "faces", Index: i,
					Reason: fmt.Sprintf("index %d out of range [0, %d)", idx, n)}
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	if m == nil {
		return nil
	}
	out := &Mesh{
		Vertices: append([]Vec3(nil), m.Vertices...),
		Faces:    append([]Face(nil), m.Faces...),
	}
	if len(m.Colors) > 0 {
		out.Colors = append([]Color(nil), m.Colors...)
	}
	if len(m.UVs) > 0 {
		out.UVs = append([]Vec2(nil), m.UVs...)
	}
	return out
}

// Bounds returns the axis-aligned bounding box of all vertices.
// An empty mesh yields a zero box.
func (m *Mesh) Bounds() Extents3D {
	if len(m.Vertices) == 0 {
		return Extents3D{}
	}
	inf := math.Inf(1)
	e := Extents3D{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
	for _, v := range m.Vertices {
		e.Min.X = math.Min(e.Min.X, v.X)
		e.Min.Y = math.Min(e.Min.Y, v.Y)
		e.Min.Z = math.Min(e.Min.Z, v.Z)
		e.Max.X = math.Max(e.Max.X, v.X)
		e.Max.Y = math.Max(e.Max.Y, v.Y)
		e.Max.Z = math.Max(e.Max.Z, v.Z)
	}
	return e
}

// Diagonal returns the bounding-box diagonal length.
func (m *Mesh) Diagonal() float64 { return m.Bounds().Diagonal() }

// FaceArea returns the area of face i.
func (m *Mesh) FaceArea(i int) float64 {
	f := m.Faces[i]
	return TriangleArea(m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]])
}

// SurfaceArea returns the summed face area.
func (m *Mesh) SurfaceArea() float64 {
	var a float64
	for i := range m.Faces {
		a += m.FaceArea(i)
	}
	return a
}

// Tolerance returns the distance below which two points are considered
// coincident for a mesh with the given bounding-box diagonal.
func Tolerance(diagonal float64) float64 {
	return 1e-6 * diagonal
}

// AreaTolerance returns the face area below which a face is degenerate.
func AreaTolerance(diagonal float64) float64 {
	t := Tolerance(diagonal)
	return t * t
}

// Compact drops vertices that no face references and renumbers faces.
// Attributes follow their vertices.
func (m *Mesh) Compact() *Mesh {
	remap := make([]int64, len(m.Vertices))
	for i := range remap {
		remap[i] = -1
	}
	out := &Mesh{Faces: make([]Face, 0, len(m.Faces))}
	hasC, hasUV := m.HasColors(), m.HasUVs()
	for _, f := range m.Faces {
		var nf Face
		for k, idx := range f {
			if remap[idx] < 0 {
				remap[idx] = int64(len(out.Vertices))
				out.Vertices = append(out.Vertices, m.Vertices[idx])
				if hasC {
					out.Colors = append(out.Colors, m.Colors[idx])
				}
				if hasUV {
					out.UVs = append(out.UVs, m.UVs[idx])
				}
			}
			nf[k] = uint32(remap[idx])
		}
		out.Faces = append(out.Faces, nf)
	}
	return out
}
