// Package runtime drives mesh generation jobs through the pipeline.
//
// A job moves through a fixed sequence of states:
//
//	queued → generating → validating → optimizing → lod_generating → completed
//
// failed is reachable from any non-terminal state, and cancelled is honoured
// at the next stage boundary (immediately for a job that is still queued).
// The Orchestrator is the only writer of job state; readers get copies.
package runtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/meshforge/generator"
	"github.com/justapithecus/meshforge/lod"
	"github.com/justapithecus/meshforge/stats"
	"github.com/justapithecus/meshforge/validate"
)

// State is the lifecycle state of a job.
type State string

const (
	StateQueued        State = "queued"
	StateGenerating    State = "generating"
	StateValidating    State = "validating"
	StateOptimizing    State = "optimizing"
	StateLODGenerating State = "lod_generating"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
	StateCancelled     State = "cancelled"
)

// States lists every state in pipeline order.
var States = []State{
	StateQueued, StateGenerating, StateValidating, StateOptimizing,
	StateLODGenerating, StateCompleted, StateFailed, StateCancelled,
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Checkpoint is the progress recorded on entry to s.
// Failed and cancelled freeze progress, so they have no checkpoint.
func (s State) Checkpoint() (float64, bool) {
	switch s {
	case StateQueued:
		return 0.0, true
	case StateGenerating:
		return 0.1, true
	case StateValidating:
		return 0.5, true
	case StateOptimizing:
		return 0.6, true
	case StateLODGenerating:
		return 0.8, true
	case StateCompleted:
		return 1.0, true
	}
	return 0, false
}

func (s State) message() string {
	switch s {
	case StateQueued:
		return "Job queued for processing"
	case StateGenerating:
		return "Generating mesh"
	case StateValidating:
		return "Validating mesh"
	case StateOptimizing:
		return "Optimizing mesh"
	case StateLODGenerating:
		return "Generating LODs"
	case StateCompleted:
		return "Generation complete"
	case StateCancelled:
		return "Job cancelled"
	}
	return ""
}

// ErrorKind classifies why a job failed.
type ErrorKind string

const (
	ErrorKindGeneration        ErrorKind = "generation_error"
	ErrorKindGenerationTimeout ErrorKind = "generation_timeout"
	ErrorKindValidation        ErrorKind = "validation_error"
	ErrorKindEmptyMesh         ErrorKind = "empty_mesh"
	ErrorKindInternal          ErrorKind = "internal"
)

// Client-facing errors.
var (
	ErrNotFound      = errors.New("job not found")
	ErrNotReady      = errors.New("job result not ready")
	ErrInvalidLOD    = errors.New("invalid LOD index")
	ErrInvalidParams = errors.New("invalid job params")
	ErrJobActive     = errors.New("job is still active")
	ErrNotStarted    = errors.New("orchestrator not started")
)

// Target face bounds for the optimizing stage.
const (
	DefaultTargetFaces = 2000
	MinTargetFaces     = 100
	MaxTargetFaces     = 50000
)

// Params are the immutable inputs of a job.
type Params struct {
	Prompt     string           `json:"prompt" yaml:"prompt"`
	Generation generator.Params `json:"generation" yaml:"generation"`
	// PostProcess enables the optimizing stage.
	PostProcess bool `json:"postprocess" yaml:"postprocess"`
	// TargetFaces is the decimation target; zero uses the orchestrator default.
	TargetFaces int `json:"target_faces" yaml:"target_faces"`
	// GenerateLODs enables the lod_generating stage.
	GenerateLODs bool `json:"generate_lods" yaml:"generate_lods"`
	// LODRatios overrides the orchestrator's ratios when set.
	LODRatios []float64 `json:"lod_ratios,omitempty" yaml:"lod_ratios,omitempty"`
}

// DefaultParams returns params for prompt with post-processing on and LODs off.
func DefaultParams(prompt string) Params {
	return Params{
		Prompt:      prompt,
		Generation:  generator.Params{}.WithDefaults(),
		PostProcess: true,
	}
}

func (p Params) validate() error {
	if err := generator.ValidatePrompt(p.Prompt); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if err := p.Generation.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if p.TargetFaces < MinTargetFaces || p.TargetFaces > MaxTargetFaces {
		return fmt.Errorf("%w: target faces %d outside [%d, %d]",
			ErrInvalidParams, p.TargetFaces, MinTargetFaces, MaxTargetFaces)
	}
	if p.GenerateLODs {
		if err := lod.ValidateRatios(p.LODRatios); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
	}
	return nil
}

func (p Params) clone() Params {
	if p.Generation.Seed != nil {
		seed := *p.Generation.Seed
		p.Generation.Seed = &seed
	}
	p.LODRatios = append([]float64(nil), p.LODRatios...)
	return p
}

// Status is the lightweight view returned by status queries.
type Status struct {
	ID        string    `json:"job_id" yaml:"job_id"`
	State     State     `json:"state" yaml:"state"`
	Progress  float64   `json:"progress" yaml:"progress"`
	Message   string    `json:"message" yaml:"message"`
	ErrorKind ErrorKind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary describes a completed job's artifacts without the meshes.
type Summary struct {
	Report        stats.QualityReport          `json:"report" yaml:"report"`
	RawReport     stats.QualityReport          `json:"raw_report" yaml:"raw_report"`
	Compatibility validate.CompatibilityReport `json:"compatibility" yaml:"compatibility"`
	Decimated     bool                         `json:"decimated" yaml:"decimated"`
	Clustered     bool                         `json:"clustered" yaml:"clustered"`
	// LODs lists the generated levels with their meshes stripped.
	LODs          []lod.Level `json:"lods,omitempty" yaml:"lods,omitempty"`
	ArtifactPaths []string    `json:"artifact_paths,omitempty" yaml:"artifact_paths,omitempty"`
}

// Job is an immutable snapshot of a job.
type Job struct {
	Status
	Params      Params    `json:"params" yaml:"params"`
	Warnings    []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	StartedAt   time.Time `json:"started_at,omitzero" yaml:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitzero" yaml:"completed_at,omitempty"`
	Summary     *Summary  `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Duration is the wall time from start to completion, or zero.
func (j Job) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.CompletedAt.IsZero() {
		return 0
	}
	return j.CompletedAt.Sub(j.StartedAt)
}

func (j Job) clone() Job {
	j.Params = j.Params.clone()
	j.Warnings = append([]string(nil), j.Warnings...)
	if j.Summary != nil {
		s := *j.Summary
		s.LODs = append([]lod.Level(nil), s.LODs...)
		s.ArtifactPaths = append([]string(nil), s.ArtifactPaths...)
		s.Compatibility.Issues = append([]string(nil), s.Compatibility.Issues...)
		s.Compatibility.Engines = append([]validate.EngineVerdict(nil), s.Compatibility.Engines...)
		j.Summary = &s
	}
	return j
}

// QueueStats summarises the registry.
type QueueStats struct {
	Total   int           `json:"total" yaml:"total"`
	ByState map[State]int `json:"by_state" yaml:"by_state"`
	// Pending is the number of ids waiting in the queue backend.
	Pending int `json:"pending" yaml:"pending"`
}
