package validate

import (
	"fmt"

	"github.com/justapithecus/meshforge/stats"
)

// PolycountRating buckets a face count by target platform.
type PolycountRating string

const (
	PolycountLow      PolycountRating = "low"
	PolycountMedium   PolycountRating = "medium"
	PolycountHigh     PolycountRating = "high"
	PolycountVeryHigh PolycountRating = "very_high"
)

// Describe returns a human-readable description of the rating.
func (p PolycountRating) Describe() string {
	switch p {
	case PolycountLow:
		return "Low (good for mobile)"
	case PolycountMedium:
		return "Medium (good for most games)"
	case PolycountHigh:
		return "High (desktop/console)"
	default:
		return "Very High (may need optimization)"
	}
}

// RatePolycount classifies a face count.
func RatePolycount(faces int) PolycountRating {
	switch {
	case faces < 500:
		return PolycountLow
	case faces < 2000:
		return PolycountMedium
	case faces < 10000:
		return PolycountHigh
	default:
		return PolycountVeryHigh
	}
}

// EngineVerdict is the result of checking one engine preset.
type EngineVerdict struct {
	Engine       string      `json:"engine" yaml:"engine"`
	WithinLimits bool        `json:"within_limits" yaml:"within_limits"`
	Violations   []Violation `json:"violations,omitempty" yaml:"violations,omitempty"`
}

// CompatibilityReport summarises game-engine readiness.
type CompatibilityReport struct {
	Grade           Grade           `json:"grade" yaml:"grade"`
	PolycountRating PolycountRating `json:"polycount_rating" yaml:"polycount_rating"`
	Issues          []string        `json:"issues" yaml:"issues"`
	GameReady       bool            `json:"game_ready" yaml:"game_ready"`
	Engines         []EngineVerdict `json:"engines" yaml:"engines"`
}

// Compatibility derives a CompatibilityReport from r, checking the Unity and
// Unreal presets plus any extra limits.
func Compatibility(r stats.QualityReport, extra ...Limits) CompatibilityReport {
	c := CompatibilityReport{
		Grade:           Classify(r),
		PolycountRating: RatePolycount(r.FaceCount),
		Issues:          []string{},
	}

	if !r.IsWatertight {
		c.Issues = append(c.Issues, "mesh is not watertight")
	}
	if !r.HasUVs {
		c.Issues = append(c.Issues, "no UV mapping")
	}
	if r.DegenerateFaces > 0 {
		c.Issues = append(c.Issues, fmt.Sprintf("%d degenerate faces", r.DegenerateFaces))
	}
	if r.NonManifoldEdges > 0 {
		c.Issues = append(c.Issues, fmt.Sprintf("%d non-manifold edges", r.NonManifoldEdges))
	}
	if r.PoorFraction() > 0.1 {
		c.Issues = append(c.Issues, "more than 10% of faces have poor aspect ratio")
	}
	c.GameReady = len(c.Issues) == 0

	for _, l := range append([]Limits{UnityLimits, UnrealLimits}, extra...) {
		v := CheckEngineLimits(r, l)
		c.Engines = append(c.Engines, EngineVerdict{Engine: l.Name, WithinLimits: len(v) == 0, Violations: v})
	}
	return c
}
