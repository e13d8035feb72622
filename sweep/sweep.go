// Package sweep plans generation experiments that vary one parameter at a
// time and aggregates their outcomes per parameter.
//
// A Plan expands into Trials. Each trial is submitted as an ordinary job
// with post-processing off, so its report describes the raw generator
// output. Collect turns a finished job into a TrialResult and Summarize
// reduces the results to one AxisSummary per axis.
package sweep

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/justapithecus/meshforge/generator"
	"github.com/justapithecus/meshforge/runtime"
)

// Axis names.
const (
	AxisSteps    = "steps"
	AxisGuidance = "guidance"
	AxisSeed     = "seed"
	AxisPrompt   = "prompt"
)

// Axes lists every axis in run order.
var Axes = []string{AxisSteps, AxisGuidance, AxisSeed, AxisPrompt}

// Default axis values.
var (
	DefaultSteps    = []int{16, 32, 64, 128}
	DefaultGuidance = []float64{3, 7.5, 15, 20}
	DefaultSeeds    = []int64{42, 123, 456, 789, 1024}
)

// DefaultBaseSeed is the seed held fixed while another axis varies.
const DefaultBaseSeed int64 = 42

// ErrInvalidPlan is wrapped by every Plan validation error.
var ErrInvalidPlan = errors.New("invalid sweep plan")

// PromptStyle is one variant of the prompt axis. Template holds a single
// %s for the base object.
type PromptStyle struct {
	Name     string
	Template string
}

// PromptStyles go from least to most detailed.
var PromptStyles = []PromptStyle{
	{Name: "minimal", Template: "a %s"},
	{Name: "basic", Template: "a wooden %s"},
	{Name: "detailed", Template: "a medieval wooden %s with ornate carvings"},
	{Name: "very_detailed", Template: "a detailed medieval wooden %s with intricate ornate carvings and metal accents, game asset"},
}

// Plan describes a sweep.
type Plan struct {
	// Prompt is used by the steps, guidance and seed axes.
	Prompt string
	// Object is the base object of the prompt axis. Empty uses the last
	// word of Prompt.
	Object string
	// Axes selects axes to run. Empty runs all of them.
	Axes     []string
	Steps    []int
	Guidance []float64
	Seeds    []int64
	// Base holds the values fixed while another axis varies. Zero fields
	// take generator defaults and DefaultBaseSeed.
	Base generator.Params
}

// Trial is one generation run of a sweep.
type Trial struct {
	ID     string           `json:"trial_id" yaml:"trial_id"`
	Axis   string           `json:"axis" yaml:"axis"`
	Value  string           `json:"value" yaml:"value"`
	Prompt string           `json:"prompt" yaml:"prompt"`
	Params generator.Params `json:"params" yaml:"params"`
}

// JobParams returns the job to submit for t: raw generation and
// validation, no decimation or LODs.
func (t Trial) JobParams() runtime.Params {
	p := runtime.DefaultParams(t.Prompt)
	p.Generation = t.Params
	p.PostProcess = false
	return p
}

func (p Plan) base() generator.Params {
	b := p.Base.WithDefaults()
	if b.Seed == nil {
		seed := DefaultBaseSeed
		b.Seed = &seed
	}
	return b
}

func (p Plan) object() string {
	if p.Object != "" {
		return p.Object
	}
	words := strings.Fields(p.Prompt)
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}

// Trials expands p in axis order. Values are validated before anything is
// returned, so a bad plan never submits a partial sweep.
func (p Plan) Trials() ([]Trial, error) {
	axes := p.Axes
	if len(axes) == 0 {
		axes = Axes
	}
	base := p.base()
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("%w: base params: %w", ErrInvalidPlan, err)
	}

	var out []Trial
	add := func(axis, value, prompt string, params generator.Params) error {
		if err := params.Validate(); err != nil {
			return fmt.Errorf("%w: %s=%s: %w", ErrInvalidPlan, axis, value, err)
		}
		if err := generator.ValidatePrompt(prompt); err != nil {
			return fmt.Errorf("%w: %s=%s: %w", ErrInvalidPlan, axis, value, err)
		}
		out = append(out, Trial{
			ID:     axis + "_" + value,
			Axis:   axis,
			Value:  value,
			Prompt: prompt,
			Params: cloneParams(params),
		})
		return nil
	}

	seen := make(map[string]bool, len(axes))
	for _, axis := range axes {
		if seen[axis] {
			return nil, fmt.Errorf("%w: axis %q repeated", ErrInvalidPlan, axis)
		}
		seen[axis] = true

		var err error
		switch axis {
		case AxisSteps:
			for _, v := range valuesOr(p.Steps, DefaultSteps) {
				params := base
				params.Steps = v
				if err = add(axis, strconv.Itoa(v), p.Prompt, params); err != nil {
					break
				}
			}
		case AxisGuidance:
			for _, v := range valuesOr(p.Guidance, DefaultGuidance) {
				params := base
				params.GuidanceScale = v
				if err = add(axis, strconv.FormatFloat(v, 'f', -1, 64), p.Prompt, params); err != nil {
					break
				}
			}
		case AxisSeed:
			for _, v := range valuesOr(p.Seeds, DefaultSeeds) {
				params := base
				params.Seed = &v
				if err = add(axis, strconv.FormatInt(v, 10), p.Prompt, params); err != nil {
					break
				}
			}
		case AxisPrompt:
			obj := p.object()
			if obj == "" {
				return nil, fmt.Errorf("%w: prompt axis needs an object or prompt", ErrInvalidPlan)
			}
			for _, s := range PromptStyles {
				if err = add(axis, s.Name, fmt.Sprintf(s.Template, obj), base); err != nil {
					break
				}
			}
		default:
			return nil, fmt.Errorf("%w: unknown axis %q (must be one of %s)", ErrInvalidPlan, axis, strings.Join(Axes, ", "))
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func valuesOr[T any](vals, def []T) []T {
	if len(vals) > 0 {
		return vals
	}
	return def
}

func cloneParams(p generator.Params) generator.Params {
	if p.Seed != nil {
		seed := *p.Seed
		p.Seed = &seed
	}
	return p
}

// TrialResult is the outcome of one trial.
type TrialResult struct {
	TrialID      string  `json:"trial_id" yaml:"trial_id"`
	Axis         string  `json:"axis" yaml:"axis"`
	Value        string  `json:"value" yaml:"value"`
	JobID        string  `json:"job_id" yaml:"job_id"`
	State        string  `json:"state" yaml:"state"`
	ErrorKind    string  `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error        string  `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs   int64   `json:"duration_ms" yaml:"duration_ms"`
	Vertices     int     `json:"vertices" yaml:"vertices"`
	Faces        int     `json:"faces" yaml:"faces"`
	Watertight   bool    `json:"watertight" yaml:"watertight"`
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`
	Grade        string  `json:"grade,omitempty" yaml:"grade,omitempty"`
}

// Succeeded reports whether the trial's job completed.
func (r TrialResult) Succeeded() bool {
	return r.State == string(runtime.StateCompleted)
}

// Collect summarises the job that ran t.
func Collect(t Trial, job runtime.Job) TrialResult {
	r := TrialResult{
		TrialID:    t.ID,
		Axis:       t.Axis,
		Value:      t.Value,
		JobID:      job.ID,
		State:      string(job.State),
		ErrorKind:  string(job.ErrorKind),
		Error:      job.Error,
		DurationMs: job.Duration().Milliseconds(),
	}
	if s := job.Summary; s != nil {
		r.Vertices = s.Report.VertexCount
		r.Faces = s.Report.FaceCount
		r.Watertight = s.Report.IsWatertight
		r.QualityScore = s.Report.QualityScore
		r.Grade = string(s.Compatibility.Grade)
	}
	return r
}

// Report is the sweep payload.
type Report struct {
	Axes   []AxisSummary `json:"axes" yaml:"axes"`
	Trials []TrialResult `json:"trials" yaml:"trials"`
}

// NewReport summarises results.
func NewReport(results []TrialResult) Report {
	return Report{Axes: Summarize(results), Trials: results}
}

// Failed counts trials whose job did not complete.
func (r Report) Failed() int {
	n := 0
	for _, t := range r.Trials {
		if !t.Succeeded() {
			n++
		}
	}
	return n
}

// axisOrder returns the axes of results in first-seen order.
func axisOrder(results []TrialResult) []string {
	var order []string
	for _, r := range results {
		if !slices.Contains(order, r.Axis) {
			order = append(order, r.Axis)
		}
	}
	return order
}
