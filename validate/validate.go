// Package validate grades meshes and checks them against game-engine budgets.
package validate

import (
	"fmt"

	"github.com/justapithecus/meshforge/mesh"
	"github.com/justapithecus/meshforge/stats"
)

// Grade is a coarse quality classification derived from the quality score.
type Grade string

const (
	GradeExcellent  Grade = "excellent"
	GradeGood       Grade = "good"
	GradeAcceptable Grade = "acceptable"
	GradePoor       Grade = "poor"
)

// Classify maps a report's quality score to a Grade.
func Classify(r stats.QualityReport) Grade {
	switch s := r.QualityScore; {
	case s >= 85:
		return GradeExcellent
	case s >= 70:
		return GradeGood
	case s >= 50:
		return GradeAcceptable
	default:
		return GradePoor
	}
}

// Validator runs structural validation followed by full analysis.
type Validator struct{}

// New creates a Validator.
func New() *Validator { return &Validator{} }

// Validate returns the QualityReport for m, or a *mesh.ValidationError when m
// is structurally invalid.
func (v *Validator) Validate(m *mesh.Mesh) (stats.QualityReport, error) {
	if m == nil {
		return stats.QualityReport{}, &mesh.ValidationError{Field: "mesh", Index: -1, Reason: "nil mesh"}
	}
	if err := m.Validate(); err != nil {
		return stats.QualityReport{}, err
	}
	return stats.Analyze(m), nil
}

// Limits is a per-engine geometry budget. Zero fields are unchecked.
type Limits struct {
	Name         string `json:"name" yaml:"name"`
	MaxTriangles int    `json:"max_triangles" yaml:"max_triangles"`
	MaxVertices  int    `json:"max_vertices" yaml:"max_vertices"`
}

// Engine presets.
var (
	// UnityLimits is the 16-bit index buffer vertex limit.
	UnityLimits = Limits{Name: "unity", MaxVertices: 65535}
	// UnrealLimits is the recommended real-time triangle budget.
	UnrealLimits = Limits{Name: "unreal", MaxTriangles: 50000}
)

// Violation describes one exceeded limit.
type Violation struct {
	Limit  string `json:"limit" yaml:"limit"`
	Actual int    `json:"actual" yaml:"actual"`
	Max    int    `json:"max" yaml:"max"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %d exceeds %d", v.Limit, v.Actual, v.Max)
}

// CheckEngineLimits returns every limit r exceeds. An empty result means compliant.
func CheckEngineLimits(r stats.QualityReport, l Limits) []Violation {
	var out []Violation
	if l.MaxTriangles > 0 && r.FaceCount > l.MaxTriangles {
		out = append(out, Violation{Limit: "max_triangles", Actual: r.FaceCount, Max: l.MaxTriangles})
	}
	if l.MaxVertices > 0 && r.VertexCount > l.MaxVertices {
		out = append(out, Violation{Limit: "max_vertices", Actual: r.VertexCount, Max: l.MaxVertices})
	}
	return out
}
