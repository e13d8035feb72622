package cmd

import (
	"strings"
	"testing"

	"github.com/justapithecus/meshforge/sweep"
)

func TestSweep_StepsAxis(t *testing.T) {
	t.Chdir(t.TempDir())

	var report sweep.Report
	runJSON(t, &report, "sweep", "--axes", "steps", "--steps", "16,32", "a smooth pebble")

	if len(report.Trials) != 2 {
		t.Fatalf("trials = %d, want 2", len(report.Trials))
	}
	for _, tr := range report.Trials {
		if !tr.Succeeded() {
			t.Fatalf("trial %s = %s (%s)", tr.TrialID, tr.State, tr.Error)
		}
	}
	if report.Trials[0].TrialID != "steps_16" || report.Trials[1].TrialID != "steps_32" {
		t.Errorf("trial ids = %s, %s", report.Trials[0].TrialID, report.Trials[1].TrialID)
	}
	// Trials are not decimated, so faces grow with the sphere resolution.
	if report.Trials[0].Faces != 224 || report.Trials[1].Faces <= report.Trials[0].Faces {
		t.Errorf("faces = %d, %d, want 224 then more", report.Trials[0].Faces, report.Trials[1].Faces)
	}

	if len(report.Axes) != 1 {
		t.Fatalf("axes = %d, want 1", len(report.Axes))
	}
	a := report.Axes[0]
	if a.Axis != sweep.AxisSteps || a.Trials != 2 || a.Succeeded != 2 {
		t.Errorf("axis summary = %+v", a)
	}
	if a.MinFaces != 224 || a.MaxFaces != report.Trials[1].Faces {
		t.Errorf("face range = %d..%d", a.MinFaces, a.MaxFaces)
	}
	if !strings.HasPrefix(a.Finding, "steps 16 to 32") {
		t.Errorf("finding = %q", a.Finding)
	}
}

func TestSweep_SeedAndPromptAxes(t *testing.T) {
	t.Chdir(t.TempDir())

	var report sweep.Report
	runJSON(t, &report, "sweep", "--axes", "seed,prompt", "--seeds", "1,2,3", "--object", "crate", "a wooden crate")

	if len(report.Axes) != 2 {
		t.Fatalf("axes = %+v", report.Axes)
	}
	seeds, prompts := report.Axes[0], report.Axes[1]
	// The procedural generator ignores the seed.
	if seeds.Axis != sweep.AxisSeed || seeds.Succeeded != 3 || seeds.FacesStdDev != 0 {
		t.Errorf("seed summary = %+v", seeds)
	}
	if prompts.Axis != sweep.AxisPrompt || prompts.Succeeded != len(sweep.PromptStyles) {
		t.Errorf("prompt summary = %+v", prompts)
	}
	for _, tr := range report.Trials {
		if tr.Axis == sweep.AxisPrompt && tr.Faces != 12 {
			t.Errorf("trial %s faces = %d, want a 12-face crate", tr.TrialID, tr.Faces)
		}
	}
}

func TestSweep_TableOutput(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := runApp(t, "sweep", "--format", "table", "--no-color", "--axes", "guidance", "--guidance", "5,10", "a smooth pebble")
	if err != nil {
		t.Fatalf("sweep failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "finding") || !strings.Contains(out, "guidance") || strings.Contains(out, "trial_id") {
		t.Errorf("summary table:\n%s", out)
	}

	out, err = runApp(t, "sweep", "--format", "table", "--no-color", "--trials", "--axes", "guidance", "--guidance", "5,10", "a smooth pebble")
	if err != nil {
		t.Fatalf("sweep --trials failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "trial_id") || !strings.Contains(out, "guidance_10") {
		t.Errorf("trials table:\n%s", out)
	}
}

func TestSweep_ArgumentErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no prompt", []string{"sweep"}, exitFailure},
		{"unknown axis", []string{"sweep", "--axes", "temperature", "a cube"}, exitFailure},
		{"steps out of range", []string{"sweep", "--steps", "4", "a cube"}, exitFailure},
		{"unparsable seeds", []string{"sweep", "--seeds", "one", "a cube"}, exitFailure},
		{"bad workers", []string{"sweep", "--axes", "steps", "--workers", "-1", "a cube"}, exitConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, tt.args...)
			if got := exitCode(t, err); got != tt.code {
				t.Errorf("exit code = %d, want %d (err %v)", got, tt.code, err)
			}
		})
	}
}
