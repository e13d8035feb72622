package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/justapithecus/meshforge/cli/reader"
)

func TestInspect_Primitive(t *testing.T) {
	var ins reader.MeshInspection
	runJSON(t, &ins, "inspect", "primitive:cube")

	if ins.Report.FaceCount != 12 || !ins.Report.IsWatertight {
		t.Errorf("report = %+v", ins.Report)
	}
	if len(ins.Compatibility.Engines) != 2 {
		t.Errorf("engines = %+v, want unity and unreal", ins.Compatibility.Engines)
	}
}

func TestInspect_ConfigLimits(t *testing.T) {
	cfg := writeConfig(t, "limits:\n  - name: handheld\n    max_triangles: 10\n")

	var ins reader.MeshInspection
	runJSON(t, &ins, "inspect", "--config", cfg, "primitive:cube")

	engines := ins.Compatibility.Engines
	if len(engines) != 3 || engines[2].Engine != "handheld" || engines[2].WithinLimits {
		t.Errorf("engines = %+v, want handheld over budget", engines)
	}
}

func TestInspect_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no source", []string{"inspect"}, exitFailure},
		{"missing file", []string{"inspect", filepath.Join(t.TempDir(), "none.mesh")}, exitFailure},
		{"bad primitive", []string{"inspect", "primitive:torus"}, exitFailure},
		{"bad config", []string{"inspect", "--config", writeConfig(t, "workers: -1\n"), "primitive:cube"}, exitConfig},
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

func TestInspect_Table(t *testing.T) {
	out, err := runApp(t, "inspect", "--format", "table", "--no-color", "primitive:cube")
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !strings.Contains(out, "report.face_count:") || !strings.Contains(out, "compatibility.grade:") {
		t.Errorf("table output missing flattened fields:\n%s", out)
	}
}

func TestDecimate_WritesOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mesh")

	var res reader.DecimationResult
	runJSON(t, &res, "decimate", "--target", "200", "--output", path, "primitive:sphere:16:32")

	if res.InputFaces != 2*32*15 {
		t.Errorf("InputFaces = %d, want %d", res.InputFaces, 2*32*15)
	}
	if !res.ReachedTarget || res.OutputFaces > 200 {
		t.Errorf("result = %+v, want at most 200 faces", res)
	}
	m, err := reader.LoadMesh(path)
	if err != nil {
		t.Fatalf("LoadMesh(output) failed: %v", err)
	}
	if m.FaceCount() != res.OutputFaces {
		t.Errorf("written faces = %d, want %d", m.FaceCount(), res.OutputFaces)
	}
}

func TestDecimate_TargetPolicy(t *testing.T) {
	_, err := runApp(t, "decimate", "--target", "50", "primitive:cube")
	if exitCode(t, err) != exitFailure {
		t.Errorf("strict target above face count should fail")
	}

	var res reader.DecimationResult
	runJSON(t, &res, "decimate", "--target", "50", "--pass-through", "primitive:cube")
	if !res.PassThrough || res.OutputFaces != 12 {
		t.Errorf("result = %+v, want pass-through", res)
	}

	cfg := writeConfig(t, "pipeline:\n  target_policy: pass_through\n")
	runJSON(t, &res, "decimate", "--config", cfg, "--target", "50", "primitive:cube")
	if !res.PassThrough {
		t.Errorf("config target_policy should apply: %+v", res)
	}
}

func TestDecimate_RequiresTarget(t *testing.T) {
	if _, err := runApp(t, "decimate", "primitive:cube"); err == nil {
		t.Error("missing --target should fail")
	}
}

func TestLOD_WritesLevels(t *testing.T) {
	dir := t.TempDir()

	var res reader.LODResult
	runJSON(t, &res, "lod", "--ratios", "1,0.5,0.25", "--output-dir", dir, "primitive:sphere:16:32")

	if len(res.Levels) != 3 || len(res.Paths) != 3 {
		t.Fatalf("result = %+v, want 3 levels and paths", res)
	}
	for i := 1; i < len(res.Levels); i++ {
		if res.Levels[i].Faces > res.Levels[i-1].Faces {
			t.Errorf("level %d has more faces than level %d", i, i-1)
		}
		if res.Levels[i].SwitchDistance <= res.Levels[i-1].SwitchDistance {
			t.Errorf("switch distances not increasing: %+v", res.Levels)
		}
	}
	for _, p := range res.Paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing level file %s: %v", p, err)
		}
	}
}

func TestLOD_InvalidRatios(t *testing.T) {
	for _, ratios := range []string{"0.5,0.25", "1,1", "1,abc", "1,0"} {
		_, err := runApp(t, "lod", "--ratios", ratios, "primitive:cube")
		if exitCode(t, err) != exitFailure {
			t.Errorf("ratios %q should be rejected", ratios)
		}
	}
}

func TestLOD_ConfigRatios(t *testing.T) {
	cfg := writeConfig(t, "pipeline:\n  lod_ratios: [1.0, 0.5]\n  distance_k: 4\n")

	var res reader.LODResult
	runJSON(t, &res, "lod", "--config", cfg, "primitive:sphere:8:16")
	if len(res.Levels) != 2 {
		t.Errorf("levels = %+v, want 2 from config", res.Levels)
	}
}

func TestDebugIPC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.mesh")
	var res reader.DecimationResult
	runJSON(t, &res, "decimate", "--pass-through", "--target", "100", "--output", path, "primitive:cube")

	var dump reader.FrameDump
	runJSON(t, &dump, "debug", "ipc", path)
	if len(dump.Frames) != 1 || dump.Frames[0].Type != "mesh" {
		t.Errorf("dump = %+v, want one mesh frame", dump)
	}

	bad := filepath.Join(t.TempDir(), "bad.bin")
	if err := os.WriteFile(bad, []byte{0, 0, 1}, 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runApp(t, "debug", "ipc", "--format", "json", bad)
	if exitCode(t, err) != exitFailure || !strings.Contains(out, "error") {
		t.Errorf("truncated stream should fail with an error field: %v\n%s", err, out)
	}
}
