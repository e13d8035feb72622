package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"
)

// runApp runs args against an app holding every command and returns stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := &cli.App{
		Name:           "meshforge",
		Writer:         &out,
		ErrWriter:      io.Discard,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			InspectCommand(),
			DecimateCommand(),
			LODCommand(),
			SweepCommand(),
			GenerateCommand(),
			JobsCommand(),
			DebugCommand(),
			VersionCommand("test"),
		},
	}
	err := app.Run(append([]string{"meshforge"}, args...))
	return out.String(), err
}

// runJSON runs args with --format json and decodes stdout into v.
func runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	// Flags go after the (sub)command names.
	n := 1
	if args[0] == "jobs" || args[0] == "debug" {
		n = 2
	}
	args = append(args[:n:n], append([]string{"--format", "json"}, args[n:]...)...)
	out, err := runApp(t, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\noutput: %s", args, err, out)
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode %v output: %v\n%s", args, err, out)
	}
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var ec cli.ExitCoder
	if !errors.As(err, &ec) {
		t.Fatalf("error %v is not a cli.ExitCoder", err)
	}
	return ec.ExitCode()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meshforge.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func hasFlag(flags []cli.Flag, name string) bool {
	for _, f := range flags {
		if f.Names()[0] == name {
			return true
		}
	}
	return false
}

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	if !hasFlag(ReadOnlyFlags(), "tui") {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestConfigFlags_IncludesConfig(t *testing.T) {
	flags := ConfigFlags()
	if !hasFlag(flags, "config") || !hasFlag(flags, "format") {
		t.Error("ConfigFlags should include --config and the read-only flags")
	}
}

func TestIsStderrTTY(_ *testing.T) {
	// Actual TTY behavior depends on runtime environment.
	_ = isStderrTTY()
}

func TestVersionCommand(t *testing.T) {
	var resp VersionResponse
	runJSON(t, &resp, "version")
	if resp.Version == "" || resp.Commit != "test" {
		t.Errorf("version = %+v", resp)
	}

	_, err := runApp(t, "version", "--tui")
	if exitCode(t, err) != exitFailure {
		t.Errorf("--tui should be rejected")
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := runApp(t, "inspect", "--format", "xml", "primitive:cube")
	if err == nil {
		t.Error("expected error for invalid format")
	}
}
