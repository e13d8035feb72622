package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/justapithecus/meshforge/ipc"
	"github.com/justapithecus/meshforge/mesh"
)

// ProgressFunc receives progress frames emitted by a model process.
type ProgressFunc func(progress float64, message string)

// Process runs an external model binary per request.
//
// The binary receives a JSON request on stdin and must write ipc frames to
// stdout: any number of progress frames, then exactly one mesh frame or one
// error frame. Stderr is captured for diagnostics.
type Process struct {
	// Command is the model binary.
	Command string
	// Args are passed before any request data.
	Args []string
	// Env is appended to the inherited environment.
	Env []string
	// OnProgress is optional.
	OnProgress ProgressFunc
}

// processInput is the JSON structure written to the model's stdin.
type processInput struct {
	Prompt        string  `json:"prompt"`
	Steps         int     `json:"steps"`
	GuidanceScale float64 `json:"guidance_scale"`
	Seed          *int64  `json:"seed,omitempty"`
}

// Generate implements Generator.
func (p *Process) Generate(ctx context.Context, prompt string, params Params) (*mesh.Mesh, error) {
	if err := ValidatePrompt(prompt); err != nil {
		return nil, err
	}
	params = params.WithDefaults()

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	if len(p.Env) > 0 {
		cmd.Env = append(cmd.Environ(), p.Env...)
	}

	input, err := json.Marshal(processInput{
		Prompt:        prompt,
		Steps:         params.Steps,
		GuidanceScale: params.GuidanceScale,
		Seed:          params.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode input: %v", ErrGeneration, err)
	}
	cmd.Stdin = bytes.NewReader(input)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create stdout pipe: %v", ErrGeneration, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start model: %v", ErrGeneration, err)
	}

	m, readErr := p.readFrames(stdout)
	// Drain so the child never blocks on a full pipe before exiting.
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, classifyContextErr(ctxErr)
	}
	if waitErr != nil {
		return nil, fmt.Errorf("%w: model exited: %v: %s", ErrGeneration, waitErr, strings.TrimSpace(stderr.String()))
	}
	if readErr != nil {
		return nil, readErr
	}
	return m, nil
}

func (p *Process) readFrames(r io.Reader) (*mesh.Mesh, error) {
	dec := ipc.NewFrameDecoder(r)
	for {
		payload, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: model produced no mesh", ErrGeneration)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
		}
		frame, err := ipc.DecodeFrame(payload)
		if err != nil {
			if ipc.IsFatalFrameError(err) {
				return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
			}
			continue
		}
		switch f := frame.(type) {
		case *ipc.ProgressFrame:
			if p.OnProgress != nil {
				p.OnProgress(f.Progress, f.Message)
			}
		case *ipc.ErrorFrame:
			return nil, fmt.Errorf("%w: %s", ErrGeneration, f.Message)
		case *ipc.MeshFrame:
			m, err := f.Mesh()
			if err != nil {
				return nil, fmt.Errorf("%w: invalid mesh frame: %v", ErrGeneration, err)
			}
			return m, nil
		}
	}
}
