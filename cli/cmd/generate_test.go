package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/justapithecus/meshforge/cli/config"
	"github.com/justapithecus/meshforge/cli/reader"
	"github.com/justapithecus/meshforge/lode"
	"github.com/justapithecus/meshforge/log"
	"github.com/justapithecus/meshforge/policy"
	"github.com/justapithecus/meshforge/queue"
)

func fsConfig(t *testing.T, storeDir string) string {
	t.Helper()
	return writeConfig(t, fmt.Sprintf(`workers: 2
storage:
  backend: fs
  path: %s
  dataset: meshforge-test
  policy: buffered
pipeline:
  target_faces: 100
`, storeDir))
}

func TestGenerate_EndToEnd(t *testing.T) {
	storeDir := t.TempDir()
	outDir := t.TempDir()
	cfg := fsConfig(t, storeDir)

	var results []GenerateResult
	runJSON(t, &results, "generate", "--config", cfg, "--steps", "16", "--lods",
		"--output-dir", outDir, "a wooden crate", "a smooth pebble")

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.State != "completed" {
			t.Errorf("job %s state = %s (%s: %s)", r.JobID, r.State, r.ErrorKind, r.Error)
		}
		if want := max(r.LODs, 1); len(r.Outputs) != want {
			t.Errorf("job %s outputs = %v, want %d files", r.JobID, r.Outputs, want)
		}
		for _, p := range r.Outputs {
			if _, err := os.Stat(p); err != nil {
				t.Errorf("missing output %s: %v", p, err)
			}
		}
	}
	if results[0].Prompt != "a wooden crate" || results[0].Faces != 12 {
		t.Errorf("crate result = %+v, want the 12-face cube", results[0])
	}
	// 16 steps gives an 8x16 sphere of 224 faces.
	pebble := results[1]
	if pebble.Faces >= 224 {
		t.Errorf("pebble faces = %d, want decimated below 224", pebble.Faces)
	}
	if pebble.LODs != 3 {
		t.Errorf("pebble LODs = %d, want 3", pebble.LODs)
	}

	// The persisted records and metrics are readable through jobs.
	var rows []reader.JobRow
	runJSON(t, &rows, "jobs", "list", "--config", cfg)
	if len(rows) != 2 {
		t.Fatalf("jobs list = %+v, want 2 rows", rows)
	}

	var rec lode.JobRecord
	runJSON(t, &rec, "jobs", "inspect", "--path", storeDir, "--config", cfg, results[1].JobID)
	if rec.State != "completed" || rec.Prompt != "a smooth pebble" || len(rec.LODFaces) != 3 {
		t.Errorf("record = %+v", rec)
	}

	var stats reader.JobStats
	runJSON(t, &stats, "jobs", "stats", "--config", cfg)
	if stats.Total != 2 || stats.Completed != 2 {
		t.Errorf("stats = %+v", stats)
	}

	var m lode.MetricsRecord
	runJSON(t, &m, "jobs", "metrics", "--config", cfg)
	if m.JobsSubmitted != 2 || m.JobsCompleted != 2 || m.StorageBackend != "fs" || m.Generator != "procedural" {
		t.Errorf("metrics = %+v", m)
	}
}

func TestGenerate_FailedJobExitCode(t *testing.T) {
	cfg := writeConfig(t, "generator:\n  backend: process\n  command: /nonexistent/meshforge-model\n")

	out, err := runApp(t, "generate", "--config", cfg, "--format", "json", "a cube")
	if exitCode(t, err) != exitFailure {
		t.Fatalf("failed job should exit %d, got %v", exitFailure, err)
	}
	if !strings.Contains(out, `"state": "failed"`) || !strings.Contains(out, "generation_error") {
		t.Errorf("output should report the failure:\n%s", out)
	}
}

func TestGenerate_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no prompt", []string{"generate"}, exitFailure},
		{"bad steps", []string{"generate", "--steps", "4", "a cube"}, exitFailure},
		{"bad lod ratios", []string{"generate", "--lod-ratios", "0.5", "a cube"}, exitFailure},
		{"bad workers", []string{"generate", "--workers", "-1", "a cube"}, exitConfig},
		{"unknown storage", []string{"generate", "--config", writeConfig(t, "storage:\n  backend: tape\n"), "a cube"}, exitConfig},
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

func TestJobs_RequiresPersistentStorage(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := runApp(t, "jobs", "list")
	if exitCode(t, err) != exitConfig {
		t.Errorf("jobs without storage should be a config error, got %v", err)
	}
}

func TestJobs_InspectUnknown(t *testing.T) {
	_, err := runApp(t, "jobs", "inspect", "--path", t.TempDir(), "missing-job")
	if exitCode(t, err) != exitFailure {
		t.Errorf("unknown job should exit %d, got %v", exitFailure, err)
	}
}

func TestBuildStack_MetricsEndpoint(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: "memory"}}
	s, err := buildStack(context.Background(), cfg, log.NewNop())
	if err != nil {
		t.Fatalf("buildStack failed: %v", err)
	}
	if err := s.orch.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	srv, addr, err := s.serveMetrics("127.0.0.1:0", "", log.NewNop())
	if err != nil {
		t.Fatalf("serveMetrics failed: %v", err)
	}
	defer func() { _ = srv.Close() }()

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "meshforge_jobs_submitted_total") {
		t.Errorf("metrics body missing counters:\n%s", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if _, err := s.store.LatestMetrics(ctx); err != nil {
		t.Errorf("shutdown should persist metrics: %v", err)
	}
}

func TestBuildPolicy(t *testing.T) {
	store, err := lode.NewMemoryArtifactStore("p")
	if err != nil {
		t.Fatal(err)
	}
	p, err := buildPolicy(config.StorageConfig{}, store, log.NewNop())
	if _, ok := p.(*policy.Strict); !ok || err != nil {
		t.Errorf("default policy = %T, %v, want *policy.Strict", p, err)
	}
	p, err = buildPolicy(config.StorageConfig{Policy: "buffered", BufferRecords: 4}, store, log.NewNop())
	if _, ok := p.(*policy.Buffered); !ok || err != nil {
		t.Errorf("buffered policy = %T, %v, want *policy.Buffered", p, err)
	}
}

func TestBuildAdapter(t *testing.T) {
	zero := 0
	tests := []struct {
		name    string
		cfg     config.AdapterConfig
		wantNil bool
		wantErr bool
	}{
		{"none", config.AdapterConfig{}, true, false},
		{"webhook", config.AdapterConfig{Type: "webhook", URL: "http://127.0.0.1:1/hook", Retries: &zero}, false, false},
		{"redis", config.AdapterConfig{Type: "redis", URL: "redis://127.0.0.1:1"}, false, false},
		{"bad redis url", config.AdapterConfig{Type: "redis", URL: "::"}, true, true},
		{"webhook without url", config.AdapterConfig{Type: "webhook"}, true, true},
		{"bad redis mode", config.AdapterConfig{Type: "redis", URL: "redis://127.0.0.1:1", Mode: "carrier"}, true, true},
		{"unknown", config.AdapterConfig{Type: "carrier-pigeon", URL: "x"}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := buildAdapter(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if (a == nil) != tt.wantNil {
				t.Fatalf("adapter = %v, wantNil %v", a, tt.wantNil)
			}
			if a != nil {
				_ = a.Close()
			}
		})
	}
}

func TestBuildQueue(t *testing.T) {
	q, name, err := buildQueue(config.QueueConfig{})
	if err != nil || q != nil || name != "memory" {
		t.Fatalf("memory queue = %v, %q, %v", q, name, err)
	}

	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr()
	keys := map[string]bool{}
	for range 2 {
		q, name, err := buildQueue(config.QueueConfig{Backend: "redis", URL: url})
		if err != nil || name != "redis" {
			t.Fatalf("redis queue = %q, %v", name, err)
		}
		rq, ok := q.(*queue.Redis)
		if !ok {
			t.Fatalf("queue = %T, want *queue.Redis", q)
		}
		if !strings.HasPrefix(rq.Key(), queue.DefaultRedisKey+":") {
			t.Errorf("key = %q, want an instance suffix", rq.Key())
		}
		keys[rq.Key()] = true
		_ = q.Close()
	}
	if len(keys) != 2 {
		t.Errorf("two processes share a list: %v", keys)
	}

	q, _, err = buildQueue(config.QueueConfig{Backend: "redis", URL: url, Key: "assets", Instance: "worker-a"})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = q.Close() }()
	if got := q.(*queue.Redis).Key(); got != "assets:worker-a" {
		t.Errorf("key = %q, want assets:worker-a", got)
	}
}
