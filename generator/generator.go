// Package generator defines the boundary to the text-to-mesh model.
//
// The pipeline only depends on the Generator interface. Two backends ship
// with the module: Procedural, a deterministic stand-in that builds
// primitives from the prompt, and Process, which runs an external model
// binary and reads the mesh back as an ipc frame.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/justapithecus/meshforge/mesh"
)

// Parameter bounds.
const (
	MinSteps     = 16
	MaxSteps     = 128
	DefaultSteps = 64

	MinGuidance     = 3.0
	MaxGuidance     = 20.0
	DefaultGuidance = 15.0
)

// Sentinel errors. Backend errors wrap one of these.
var (
	// ErrGeneration is a generic model failure.
	ErrGeneration = errors.New("generation failed")
	// ErrGenerationTimeout is returned when the model exceeds its deadline.
	ErrGenerationTimeout = errors.New("generation timed out")
	// ErrInvalidParams is returned for an empty prompt or out-of-range parameter.
	ErrInvalidParams = errors.New("invalid generation params")
)

// Params are the model inputs besides the prompt.
type Params struct {
	// Steps is the diffusion step count in [MinSteps, MaxSteps].
	Steps int `json:"steps" yaml:"steps"`
	// GuidanceScale is the classifier-free guidance in [MinGuidance, MaxGuidance].
	GuidanceScale float64 `json:"guidance_scale" yaml:"guidance_scale"`
	// Seed makes generation reproducible when set.
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// WithDefaults fills zero values with defaults.
func (p Params) WithDefaults() Params {
	if p.Steps == 0 {
		p.Steps = DefaultSteps
	}
	if p.GuidanceScale == 0 {
		p.GuidanceScale = DefaultGuidance
	}
	return p
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.Steps < MinSteps || p.Steps > MaxSteps {
		return fmt.Errorf("%w: steps %d outside [%d, %d]", ErrInvalidParams, p.Steps, MinSteps, MaxSteps)
	}
	if p.GuidanceScale < MinGuidance || p.GuidanceScale > MaxGuidance {
		return fmt.Errorf("%w: guidance_scale %v outside [%v, %v]", ErrInvalidParams, p.GuidanceScale, MinGuidance, MaxGuidance)
	}
	return nil
}

// ValidatePrompt rejects blank prompts.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: empty prompt", ErrInvalidParams)
	}
	return nil
}

// Generator turns a prompt into a raw mesh. Implementations must honour ctx
// cancellation and wrap failures with ErrGeneration or ErrGenerationTimeout.
type Generator interface {
	Generate(ctx context.Context, prompt string, params Params) (*mesh.Mesh, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, prompt string, params Params) (*mesh.Mesh, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt string, params Params) (*mesh.Mesh, error) {
	return f(ctx, prompt, params)
}

// classifyContextErr maps a context error to the matching sentinel.
func classifyContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrGeneration, err)
}
