package sweep

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justapithecus/meshforge/generator"
	"github.com/justapithecus/meshforge/runtime"
	"github.com/justapithecus/meshforge/stats"
	"github.com/justapithecus/meshforge/validate"
)

func TestPlan_DefaultTrials(t *testing.T) {
	trials, err := Plan{Prompt: "medieval wooden chair"}.Trials()
	require.NoError(t, err)
	require.Len(t, trials, len(DefaultSteps)+len(DefaultGuidance)+len(DefaultSeeds)+len(PromptStyles))

	byAxis := map[string][]Trial{}
	for _, tr := range trials {
		byAxis[tr.Axis] = append(byAxis[tr.Axis], tr)
	}

	for i, tr := range byAxis[AxisSteps] {
		assert.Equal(t, DefaultSteps[i], tr.Params.Steps)
		assert.Equal(t, generator.DefaultGuidance, tr.Params.GuidanceScale)
		require.NotNil(t, tr.Params.Seed)
		assert.Equal(t, DefaultBaseSeed, *tr.Params.Seed)
		assert.Equal(t, "medieval wooden chair", tr.Prompt)
	}
	assert.Equal(t, "steps_16", byAxis[AxisSteps][0].ID)

	for i, tr := range byAxis[AxisGuidance] {
		assert.Equal(t, DefaultGuidance[i], tr.Params.GuidanceScale)
		assert.Equal(t, generator.DefaultSteps, tr.Params.Steps)
	}
	assert.Equal(t, "guidance_7.5", byAxis[AxisGuidance][1].ID)

	for i, tr := range byAxis[AxisSeed] {
		assert.Equal(t, DefaultSeeds[i], *tr.Params.Seed)
	}

	prompts := byAxis[AxisPrompt]
	require.Len(t, prompts, len(PromptStyles))
	assert.Equal(t, "a chair", prompts[0].Prompt)
	assert.Equal(t, "prompt_very_detailed", prompts[3].ID)
	assert.Contains(t, prompts[3].Prompt, "game asset")
}

func TestPlan_TrialsDoNotShareSeeds(t *testing.T) {
	trials, err := Plan{Prompt: "shield", Axes: []string{AxisSteps}, Steps: []int{16, 32}}.Trials()
	require.NoError(t, err)
	*trials[0].Params.Seed = 7
	assert.Equal(t, DefaultBaseSeed, *trials[1].Params.Seed)
}

func TestPlan_Errors(t *testing.T) {
	tests := []struct {
		name string
		plan Plan
	}{
		{"unknown axis", Plan{Prompt: "sword", Axes: []string{"temperature"}}},
		{"repeated axis", Plan{Prompt: "sword", Axes: []string{AxisSeed, AxisSeed}}},
		{"steps out of range", Plan{Prompt: "sword", Axes: []string{AxisSteps}, Steps: []int{16, 4}}},
		{"guidance out of range", Plan{Prompt: "sword", Axes: []string{AxisGuidance}, Guidance: []float64{25}}},
		{"blank prompt", Plan{Prompt: "  ", Axes: []string{AxisSteps}}},
		{"prompt axis without object", Plan{Axes: []string{AxisPrompt}}},
		{"bad base", Plan{Prompt: "sword", Base: generator.Params{Steps: 500}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trials, err := tt.plan.Trials()
			assert.ErrorIs(t, err, ErrInvalidPlan)
			assert.Nil(t, trials)
		})
	}
}

func TestPlan_ExplicitObject(t *testing.T) {
	trials, err := Plan{Object: "crate", Axes: []string{AxisPrompt}}.Trials()
	require.NoError(t, err)
	for _, tr := range trials {
		assert.Contains(t, tr.Prompt, "crate")
	}
}

func TestTrial_JobParams(t *testing.T) {
	seed := int64(9)
	tr := Trial{Prompt: "fantasy shield", Params: generator.Params{Steps: 32, GuidanceScale: 7.5, Seed: &seed}}
	p := tr.JobParams()
	assert.Equal(t, "fantasy shield", p.Prompt)
	assert.False(t, p.PostProcess)
	assert.False(t, p.GenerateLODs)
	assert.Equal(t, 32, p.Generation.Steps)
	assert.Equal(t, int64(9), *p.Generation.Seed)
}

func TestCollect(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	job := runtime.Job{
		Status:      runtime.Status{ID: "job-1", State: runtime.StateCompleted},
		StartedAt:   start,
		CompletedAt: start.Add(1500 * time.Millisecond),
		Summary: &runtime.Summary{
			Report:        stats.QualityReport{VertexCount: 8, FaceCount: 12, IsWatertight: true, QualityScore: 90},
			Compatibility: validate.CompatibilityReport{Grade: validate.GradeExcellent},
		},
	}
	r := Collect(Trial{ID: "seed_42", Axis: AxisSeed, Value: "42"}, job)
	assert.Equal(t, "seed_42", r.TrialID)
	assert.Equal(t, "job-1", r.JobID)
	assert.True(t, r.Succeeded())
	assert.Equal(t, int64(1500), r.DurationMs)
	assert.Equal(t, 12, r.Faces)
	assert.True(t, r.Watertight)
	assert.Equal(t, string(validate.GradeExcellent), r.Grade)

	failed := Collect(Trial{ID: "steps_16", Axis: AxisSteps, Value: "16"}, runtime.Job{
		Status: runtime.Status{ID: "job-2", State: runtime.StateFailed, ErrorKind: runtime.ErrorKindGeneration, Error: "model crashed"},
	})
	assert.False(t, failed.Succeeded())
	assert.Equal(t, "generation_error", failed.ErrorKind)
	assert.Zero(t, failed.Faces)
}

func result(axis, value string, ms int64, faces int, quality float64) TrialResult {
	return TrialResult{
		TrialID:      axis + "_" + value,
		Axis:         axis,
		Value:        value,
		State:        string(runtime.StateCompleted),
		DurationMs:   ms,
		Faces:        faces,
		QualityScore: quality,
	}
}

func TestSummarize(t *testing.T) {
	failedSeed := result(AxisSeed, "3", 0, 0, 0)
	failedSeed.State = string(runtime.StateFailed)

	results := []TrialResult{
		result(AxisSteps, "16", 100, 200, 70),
		result(AxisSteps, "64", 300, 800, 80),
		result(AxisGuidance, "3", 100, 500, 60),
		result(AxisGuidance, "15", 100, 500, 85),
		result(AxisGuidance, "20", 100, 500, 75),
		result(AxisSeed, "1", 100, 100, 80),
		result(AxisSeed, "2", 100, 300, 80),
		failedSeed,
		result(AxisPrompt, "minimal", 100, 12, 50),
		result(AxisPrompt, "detailed", 100, 12, 65),
	}
	report := NewReport(results)
	assert.Equal(t, 1, report.Failed())

	axes := report.Axes
	require.Len(t, axes, 4)
	assert.Equal(t, []string{AxisSteps, AxisGuidance, AxisSeed, AxisPrompt},
		[]string{axes[0].Axis, axes[1].Axis, axes[2].Axis, axes[3].Axis})

	steps := axes[0]
	assert.Equal(t, 200.0, steps.MeanDurationMs)
	assert.Equal(t, "steps 16 to 64: time changes by +200%, quality changes by +10.0 points", steps.Finding)

	guidance := axes[1]
	assert.Equal(t, "15", guidance.BestValue)
	assert.Equal(t, 85.0, guidance.BestQuality)
	assert.Equal(t, "best quality (85.0) at guidance=15", guidance.Finding)
	assert.Equal(t, 0.0, guidance.FacesStdDev)

	seeds := axes[2]
	assert.Equal(t, 3, seeds.Trials)
	assert.Equal(t, 2, seeds.Succeeded)
	assert.Equal(t, []string{"1", "2", "3"}, seeds.Values)
	assert.Equal(t, 100, seeds.MinFaces)
	assert.Equal(t, 300, seeds.MaxFaces)
	assert.InDelta(t, 100.0, seeds.FacesStdDev, 1e-9, "population std dev of {100, 300}")
	assert.Equal(t, "face count std dev 100 across 2 seeds (range 100 to 300)", seeds.Finding)

	prompts := axes[3]
	assert.Equal(t, "detailed", prompts.BestValue)
	assert.Equal(t, `"detailed" prompt style scored best (65.0)`, prompts.Finding)
}

func TestSummarize_EdgeCases(t *testing.T) {
	failed := result(AxisSteps, "16", 0, 0, 0)
	failed.State = string(runtime.StateFailed)
	axes := Summarize([]TrialResult{failed})
	require.Len(t, axes, 1)
	assert.Equal(t, 0, axes[0].Succeeded)
	assert.Equal(t, "no successful trials", axes[0].Finding)
	assert.False(t, math.IsNaN(axes[0].MeanQuality))

	single := Summarize([]TrialResult{result(AxisSteps, "32", 0, 100, 70)})
	assert.Equal(t, "only steps=32 succeeded (quality 70.0)", single[0].Finding)

	instant := Summarize([]TrialResult{result(AxisSteps, "16", 0, 100, 70), result(AxisSteps, "32", 0, 200, 72)})
	assert.Equal(t, "steps 16 to 32: time unchanged, quality changes by +2.0 points", instant[0].Finding)

	assert.Empty(t, Summarize(nil))
}
