// Package reader provides the read-side data access layer for the meshforge CLI.
//
// It loads meshes from files or built-in primitives and reads job and
// metrics records back from artifact storage. Commands render the response
// types defined here; TUI views consume the same payloads.
package reader

import (
	"github.com/justapithecus/meshforge/lod"
	"github.com/justapithecus/meshforge/stats"
	"github.com/justapithecus/meshforge/validate"
)

// MeshInspection is the inspect payload for one mesh.
type MeshInspection struct {
	Source        string                       `json:"source" yaml:"source"`
	Report        stats.QualityReport          `json:"report" yaml:"report"`
	Compatibility validate.CompatibilityReport `json:"compatibility" yaml:"compatibility"`
}

// DecimationResult is the decimate payload.
type DecimationResult struct {
	Source         string  `json:"source" yaml:"source"`
	Output         string  `json:"output,omitempty" yaml:"output,omitempty"`
	InputFaces     int     `json:"input_faces" yaml:"input_faces"`
	OutputFaces    int     `json:"output_faces" yaml:"output_faces"`
	Target         int     `json:"target" yaml:"target"`
	ReachedTarget  bool    `json:"reached_target" yaml:"reached_target"`
	Collapses      int     `json:"collapses" yaml:"collapses"`
	Rejections     int     `json:"rejections" yaml:"rejections"`
	UsedClustering bool    `json:"used_clustering" yaml:"used_clustering"`
	PassThrough    bool    `json:"pass_through" yaml:"pass_through"`
	QualityScore   float64 `json:"quality_score" yaml:"quality_score"`
	DurationMs     int64   `json:"duration_ms" yaml:"duration_ms"`
}

// LODResult is the lod payload.
type LODResult struct {
	Source string      `json:"source" yaml:"source"`
	Levels []LODRow    `json:"levels" yaml:"levels"`
	Paths  []string    `json:"paths,omitempty" yaml:"paths,omitempty"`
	Raw    []lod.Level `json:"-" yaml:"-"`
}

// LODRow is one level in table form.
type LODRow struct {
	Level          int     `json:"level" yaml:"level"`
	Ratio          float64 `json:"ratio" yaml:"ratio"`
	TargetFaces    int     `json:"target_faces" yaml:"target_faces"`
	Faces          int     `json:"faces" yaml:"faces"`
	SwitchDistance float64 `json:"switch_distance" yaml:"switch_distance"`
	UsedClustering bool    `json:"used_clustering" yaml:"used_clustering"`
}

// JobRow is the thin list view of a persisted job record.
type JobRow struct {
	JobID        string  `json:"job_id" yaml:"job_id"`
	State        string  `json:"state" yaml:"state"`
	ErrorKind    string  `json:"error_kind" yaml:"error_kind"`
	Faces        int     `json:"faces" yaml:"faces"`
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`
	Grade        string  `json:"grade" yaml:"grade"`
	Warnings     int     `json:"warnings" yaml:"warnings"`
	CompletedAt  string  `json:"completed_at" yaml:"completed_at"`
}

// JobStats aggregates persisted job records.
type JobStats struct {
	Total       int            `json:"total" yaml:"total"`
	Completed   int            `json:"completed" yaml:"completed"`
	Failed      int            `json:"failed" yaml:"failed"`
	Cancelled   int            `json:"cancelled" yaml:"cancelled"`
	ByErrorKind map[string]int `json:"by_error_kind" yaml:"by_error_kind"`
	// MeanQuality is averaged over completed jobs.
	MeanQuality float64 `json:"mean_quality" yaml:"mean_quality"`
	WithWarning int     `json:"with_warnings" yaml:"with_warnings"`
}
