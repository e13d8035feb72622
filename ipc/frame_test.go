package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/meshforge/mesh"
)

// encodeFrame encodes a payload with length prefix.
func encodeFrame(payload []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

func TestEncodeMesh_RoundTrip(t *testing.T) {
	in := mesh.NewUVSphere(6, 9, 1.25)
	in.Colors = make([]mesh.Color, in.VertexCount())
	for i := range in.Colors {
		in.Colors[i] = mesh.Color{R: float32(i) / 100, G: 0.5, B: 0.125, A: 1}
	}

	data, err := EncodeMesh(in)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	out, err := DecodeMesh(data)
	if err != nil {
		t.Fatalf("DecodeMesh failed: %v", err)
	}

	if out.VertexCount() != in.VertexCount() || out.FaceCount() != in.FaceCount() {
		t.Fatalf("counts = %d/%d, want %d/%d", out.VertexCount(), out.FaceCount(), in.VertexCount(), in.FaceCount())
	}
	for i := range in.Vertices {
		if out.Vertices[i] != in.Vertices[i] {
			t.Fatalf("Vertices[%d] = %v, want %v", i, out.Vertices[i], in.Vertices[i])
		}
		if out.Colors[i] != in.Colors[i] {
			t.Fatalf("Colors[%d] = %v, want %v", i, out.Colors[i], in.Colors[i])
		}
		if out.UVs[i] != in.UVs[i] {
			t.Fatalf("UVs[%d] = %v, want %v", i, out.UVs[i], in.UVs[i])
		}
	}
	for i := range in.Faces {
		if out.Faces[i] != in.Faces[i] {
			t.Fatalf("Faces[%d] = %v, want %v", i, out.Faces[i], in.Faces[i])
		}
	}
}

func TestEncodeMesh_NoOptionalAttributes(t *testing.T) {
	in := mesh.NewCube(1)
	in.UVs = nil
	data, err := EncodeMesh(in)
	if err != nil {
		t.Fatalf("EncodeMesh failed: %v", err)
	}
	out, err := DecodeMesh(data)
	if err != nil {
		t.Fatalf("DecodeMesh failed: %v", err)
	}
	if out.HasUVs() || out.HasColors() {
		t.Errorf("decoded mesh gained attributes: uvs=%v colors=%v", out.HasUVs(), out.HasColors())
	}
}

func TestFrameDecoder_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf)
	if err := enc.Encode(&ProgressFrame{Type: ProgressType, Progress: 0.5, Message: "half"}); err != nil {
		t.Fatalf("Encode progress failed: %v", err)
	}
	if err := enc.Encode(NewMeshFrame(mesh.NewCube(1))); err != nil {
		t.Fatalf("Encode mesh failed: %v", err)
	}

	dec := NewFrameDecoder(&buf)
	var kinds []string
	for {
		payload, err := dec.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		frame, err := DecodeFrame(payload)
		if err != nil {
			t.Fatalf("DecodeFrame failed: %v", err)
		}
		switch f := frame.(type) {
		case *ProgressFrame:
			if f.Progress != 0.5 {
				t.Errorf("Progress = %v, want 0.5", f.Progress)
			}
			kinds = append(kinds, ProgressType)
		case *MeshFrame:
			kinds = append(kinds, MeshType)
		default:
			t.Fatalf("unexpected frame %T", frame)
		}
	}
	if len(kinds) != 2 || kinds[0] != ProgressType || kinds[1] != MeshType {
		t.Errorf("frames = %v, want [progress mesh]", kinds)
	}
}

func TestFrameDecoder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		kind  FrameErrorKind
	}{
		{"partial prefix", []byte{0, 0}, FrameErrorPartial},
		{"partial payload", append([]byte{0, 0, 0, 10}, 1, 2, 3), FrameErrorPartial},
		{"too large", []byte{0xff, 0xff, 0xff, 0xff}, FrameErrorTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrameDecoder(bytes.NewReader(tt.input)).ReadFrame()
			var fe *FrameError
			if !errors.As(err, &fe) {
				t.Fatalf("ReadFrame error = %v, want *FrameError", err)
			}
			if fe.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", fe.Kind, tt.kind)
			}
			if !IsFatalFrameError(err) {
				t.Error("IsFatalFrameError = false")
			}
		})
	}
}

func TestFrameDecoder_EmptyStream(t *testing.T) {
	_, err := NewFrameDecoder(bytes.NewReader(nil)).ReadFrame()
	if err != io.EOF {
		t.Errorf("ReadFrame error = %v, want io.EOF", err)
	}
}

func TestDecodeFrame_UnknownType(t *testing.T) {
	payload, err := msgpack.Marshal(map[string]any{"type": "teapot"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = DecodeFrame(payload)
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Kind != FrameErrorUnknownType {
		t.Errorf("DecodeFrame error = %v, want FrameErrorUnknownType", err)
	}
	if IsFatalFrameError(err) {
		t.Error("unknown type should not be fatal")
	}
}

func TestDecodeMesh_RejectsBadIndices(t *testing.T) {
	payload, err := msgpack.Marshal(&MeshFrame{
		Type:      MeshType,
		Positions: []float64{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Indices:   []uint32{0, 1, 9},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = DecodeMesh(encodeFrame(payload))
	var ve *mesh.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("DecodeMesh error = %v, want *mesh.ValidationError", err)
	}
}

func TestFrameEncoder_TooLarge(t *testing.T) {
	err := NewFrameEncoder(io.Discard).WriteFrame(make([]byte, MaxPayloadSize+1))
	if !IsFatalFrameError(err) {
		t.Errorf("WriteFrame error = %v, want fatal frame error", err)
	}
}
