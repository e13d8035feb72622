package reader

import (
	"errors"
	"fmt"
	"io"

	"github.com/justapithecus/meshforge/ipc"
)

// FrameInfo describes one frame of an ipc stream.
type FrameInfo struct {
	Index   int    `json:"index" yaml:"index"`
	Type    string `json:"type" yaml:"type"`
	Bytes   int    `json:"bytes" yaml:"bytes"`
	Summary string `json:"summary" yaml:"summary"`
}

// FrameDump is the debug ipc payload.
type FrameDump struct {
	Source string      `json:"source" yaml:"source"`
	Frames []FrameInfo `json:"frames" yaml:"frames"`
	// Error is set when the stream ended with a fatal frame error.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// DumpFrames decodes every frame in r. Undecodable frames are listed with
// type "invalid"; a truncated stream stops the dump and sets Error.
func DumpFrames(source string, r io.Reader) *FrameDump {
	dump := &FrameDump{Source: source, Frames: []FrameInfo{}}
	dec := ipc.NewFrameDecoder(r)
	for i := 0; ; i++ {
		payload, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			return dump
		}
		if err != nil {
			dump.Error = err.Error()
			return dump
		}

		info := FrameInfo{Index: i, Bytes: len(payload)}
		frame, err := ipc.DecodeFrame(payload)
		switch f := frame.(type) {
		case *ipc.MeshFrame:
			info.Type = ipc.MeshType
			info.Summary = fmt.Sprintf("%d vertices, %d faces", len(f.Positions)/3, len(f.Indices)/3)
			if f.UVs != nil {
				info.Summary += ", uvs"
			}
			if f.Colors != nil {
				info.Summary += ", colors"
			}
		case *ipc.ProgressFrame:
			info.Type = ipc.ProgressType
			info.Summary = fmt.Sprintf("%.0f%% %s", f.Progress*100, f.Message)
		case *ipc.ErrorFrame:
			info.Type = ipc.ErrorType
			info.Summary = f.Message
		default:
			info.Type = "invalid"
			if err != nil {
				info.Summary = err.Error()
			}
		}
		dump.Frames = append(dump.Frames, info)
	}
}
