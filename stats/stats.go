// Package stats computes topology and quality metrics for a triangle mesh.
//
// Analyze is pure: it reads the mesh, never mutates it, and returns a
// QualityReport value that callers may share freely.
package stats

import (
	"math"

	"github.com/justapithecus/meshforge/mesh"
)

// Scoring constants.
const (
	// PoorAspectRatio is the max/min edge ratio above which a face is poor quality.
	PoorAspectRatio = 10.0
	// MinIdealFaces and MaxIdealFaces bound the face count that avoids a score penalty.
	MinIdealFaces = 500
	MaxIdealFaces = 20000

	penaltyNotWatertight = 20.0
	penaltyDegenerate    = 15.0
	penaltyNoUVs         = 10.0
	penaltyFaceCount     = 10.0
	penaltyPoorMax       = 20.0

	degenerateFractionLimit = 0.01
)

// QualityReport is an immutable summary of a mesh's topology and quality.
type QualityReport struct {
	VertexCount int `json:"vertex_count" yaml:"vertex_count"`
	FaceCount   int `json:"face_count" yaml:"face_count"`
	EdgeCount   int `json:"edge_count" yaml:"edge_count"`
	// EulerCharacteristic is V - E + F. A closed genus-0 surface has 2.
	EulerCharacteristic int `json:"euler_characteristic" yaml:"euler_characteristic"`

	IsWatertight       bool `json:"is_watertight" yaml:"is_watertight"`
	HasUVs             bool `json:"has_uvs" yaml:"has_uvs"`
	HasVertexColors    bool `json:"has_vertex_colors" yaml:"has_vertex_colors"`
	HasDegenerateFaces bool `json:"has_degenerate_faces" yaml:"has_degenerate_faces"`

	DegenerateFaces      int `json:"degenerate_faces" yaml:"degenerate_faces"`
	DuplicateVertices    int `json:"duplicate_vertices" yaml:"duplicate_vertices"`
	UnreferencedVertices int `json:"unreferenced_vertices" yaml:"unreferenced_vertices"`
	BoundaryEdges        int `json:"boundary_edges" yaml:"boundary_edges"`
	NonManifoldEdges     int `json:"non_manifold_edges" yaml:"non_manifold_edges"`

	SurfaceArea float64 `json:"surface_area" yaml:"surface_area"`
	// Volume is only meaningful when IsWatertight; zero otherwise.
	Volume float64 `json:"volume" yaml:"volume"`

	MeanAspectRatio  float64   `json:"mean_aspect_ratio" yaml:"mean_aspect_ratio"`
	MaxAspectRatio   float64   `json:"max_aspect_ratio" yaml:"max_aspect_ratio"`
	PoorQualityFaces int       `json:"poor_quality_faces" yaml:"poor_quality_faces"`
	UVCoverage       float64   `json:"uv_coverage" yaml:"uv_coverage"`
	QualityScore     float64   `json:"quality_score" yaml:"quality_score"`
	BoundsMin        mesh.Vec3 `json:"bounds_min" yaml:"bounds_min"`
	BoundsMax        mesh.Vec3 `json:"bounds_max" yaml:"bounds_max"`
	BoundingDiagonal float64   `json:"bounding_diagonal" yaml:"bounding_diagonal"`
}

// DegenerateFraction returns DegenerateFaces / FaceCount, or 0 for an empty mesh.
func (r QualityReport) DegenerateFraction() float64 {
	if r.FaceCount == 0 {
		return 0
	}
	return float64(r.DegenerateFaces) / float64(r.FaceCount)
}

// PoorFraction returns PoorQualityFaces / FaceCount, or 0 for an empty mesh.
func (r QualityReport) PoorFraction() float64 {
	if r.FaceCount == 0 {
		return 0
	}
	return float64(r.PoorQualityFaces) / float64(r.FaceCount)
}

// Analyze computes the full QualityReport for m. m must satisfy m.Validate().
func Analyze(m *mesh.Mesh) QualityReport {
	bounds := m.Bounds()
	diag := bounds.Diagonal()
	r := QualityReport{
		VertexCount:      m.VertexCount(),
		FaceCount:        m.FaceCount(),
		HasUVs:           m.HasUVs(),
		HasVertexColors:  m.HasColors(),
		BoundsMin:        bounds.Min,
		BoundsMax:        bounds.Max,
		BoundingDiagonal: diag,
	}

	topo := analyzeEdges(m)
	r.EdgeCount = topo.edges
	r.BoundaryEdges = topo.boundary
	r.NonManifoldEdges = topo.nonManifold
	r.IsWatertight = topo.watertight
	r.EulerCharacteristic = r.VertexCount - r.EdgeCount + r.FaceCount

	r.UnreferencedVertices = countUnreferenced(m)
	r.DuplicateVertices = countDuplicates(m.Vertices, mesh.Tolerance(diag))

	areaTol := mesh.AreaTolerance(diag)
	var ratioSum float64
	var ratioN int
	for i, f := range m.Faces {
		area := m.FaceArea(i)
		r.SurfaceArea += area
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] || area < areaTol {
			r.DegenerateFaces++
		}
		ratio, ok := aspectRatio(m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]])
		if !ok || ratio > PoorAspectRatio {
			r.PoorQualityFaces++
		}
		if ok {
			ratioSum += ratio
			ratioN++
			r.MaxAspectRatio = math.Max(r.MaxAspectRatio, ratio)
		}
	}
	if ratioN > 0 {
		r.MeanAspectRatio = ratioSum / float64(ratioN)
	}
	r.HasDegenerateFaces = r.DegenerateFaces > 0

	if r.IsWatertight {
		r.Volume = math.Abs(signedVolume(m))
	}
	if r.HasUVs {
		r.UVCoverage = uvCoverage(m.UVs)
	}
	r.QualityScore = score(r)
	return r
}

func score(r QualityReport) float64 {
	s := 100.0
	if !r.IsWatertight {
		s -= penaltyNotWatertight
	}
	if r.DegenerateFraction() > degenerateFractionLimit {
		s -= penaltyDegenerate
	}
	if !r.HasUVs {
		s -= penaltyNoUVs
	}
	if r.FaceCount < MinIdealFaces || r.FaceCount > MaxIdealFaces {
		s -= penaltyFaceCount
	}
	s -= penaltyPoorMax * r.PoorFraction()
	return math.Max(s, 0)
}

// aspectRatio returns max/min edge length. ok is false when an edge has zero length.
func aspectRatio(a, b, c mesh.Vec3) (float64, bool) {
	e0, e1, e2 := a.Distance(b), b.Distance(c), c.Distance(a)
	lo := math.Min(e0, math.Min(e1, e2))
	if lo == 0 {
		return 0, false
	}
	return math.Max(e0, math.Max(e1, e2)) / lo, true
}

func signedVolume(m *mesh.Mesh) float64 {
	var v float64
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		v += a.Dot(b.Cross(c))
	}
	return v / 6
}

// uvCoverage is the area of the UV bounding box clipped to the unit square.
func uvCoverage(uvs []mesh.Vec2) float64 {
	minU, minV := math.Inf(1), math.Inf(1)
	maxU, maxV := math.Inf(-1), math.Inf(-1)
	for _, uv := range uvs {
		minU, maxU = math.Min(minU, uv.U), math.Max(maxU, uv.U)
		minV, maxV = math.Min(minV, uv.V), math.Max(maxV, uv.V)
	}
	w := mesh.Clamp(maxU, 0, 1) - mesh.Clamp(minU, 0, 1)
	h := mesh.Clamp(maxV, 0, 1) - mesh.Clamp(minV, 0, 1)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func countUnreferenced(m *mesh.Mesh) int {
	used := make([]bool, len(m.Vertices))
	for _, f := range m.Faces {
		for _, idx := range f {
			used[idx] = true
		}
	}
	n := 0
	for _, u := range used {
		if !u {
			n++
		}
	}
	return n
}
