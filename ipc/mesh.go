package ipc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/meshforge/mesh"
)

// MeshFrame is the wire form of a mesh: flat attribute arrays, one entry per
// component. Positions and UVs keep full float64 precision so that a round
// trip is lossless.
type MeshFrame struct {
	Type      string    `msgpack:"type"`
	Positions []float64 `msgpack:"positions"`
	Indices   []uint32  `msgpack:"indices"`
	Colors    []float32 `msgpack:"colors,omitempty"`
	UVs       []float64 `msgpack:"uvs,omitempty"`
}

// NewMeshFrame flattens m.
func NewMeshFrame(m *mesh.Mesh) *MeshFrame {
	f := &MeshFrame{
		Type:      MeshType,
		Positions: make([]float64, 0, 3*len(m.Vertices)),
		Indices:   make([]uint32, 0, 3*len(m.Faces)),
	}
	for _, v := range m.Vertices {
		f.Positions = append(f.Positions, v.X, v.Y, v.Z)
	}
	for _, face := range m.Faces {
		f.Indices = append(f.Indices, face[0], face[1], face[2])
	}
	if m.HasColors() {
		f.Colors = make([]float32, 0, 4*len(m.Colors))
		for _, c := range m.Colors {
			f.Colors = append(f.Colors, c.R, c.G, c.B, c.A)
		}
	}
	if m.HasUVs() {
		f.UVs = make([]float64, 0, 2*len(m.UVs))
		for _, uv := range m.UVs {
			f.UVs = append(f.UVs, uv.U, uv.V)
		}
	}
	return f
}

// Mesh rebuilds the mesh and validates it.
func (f *MeshFrame) Mesh() (*mesh.Mesh, error) {
	if len(f.Positions)%3 != 0 {
		return nil, fmt.Errorf("positions length %d not a multiple of 3", len(f.Positions))
	}
	if len(f.Indices)%3 != 0 {
		return nil, fmt.Errorf("indices length %d not a multiple of 3", len(f.Indices))
	}
	if len(f.Colors)%4 != 0 {
		return nil, fmt.Errorf("colors length %d not a multiple of 4", len(f.Colors))
	}
	if len(f.UVs)%2 != 0 {
		return nil, fmt.Errorf("uvs length %d not a multiple of 2", len(f.UVs))
	}

	m := &mesh.Mesh{
		Vertices: make([]mesh.Vec3, len(f.Positions)/3),
		Faces:    make([]mesh.Face, len(f.Indices)/3),
	}
	for i := range m.Vertices {
		m.Vertices[i] = mesh.Vec3{X: f.Positions[3*i], Y: f.Positions[3*i+1], Z: f.Positions[3*i+2]}
	}
	for i := range m.Faces {
		m.Faces[i] = mesh.Face{f.Indices[3*i], f.Indices[3*i+1], f.Indices[3*i+2]}
	}
	if len(f.Colors) > 0 {
		m.Colors = make([]mesh.Color, len(f.Colors)/4)
		for i := range m.Colors {
			m.Colors[i] = mesh.Color{R: f.Colors[4*i], G: f.Colors[4*i+1], B: f.Colors[4*i+2], A: f.Colors[4*i+3]}
		}
	}
	if len(f.UVs) > 0 {
		m.UVs = make([]mesh.Vec2, len(f.UVs)/2)
		for i := range m.UVs {
			m.UVs[i] = mesh.Vec2{U: f.UVs[2*i], V: f.UVs[2*i+1]}
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeMeshFrame decodes a payload as a MeshFrame.
func DecodeMeshFrame(payload []byte) (*MeshFrame, error) {
	var f MeshFrame
	if err := msgpack.Unmarshal(payload, &f); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode mesh frame",
			Err:  err,
		}
	}
	return &f, nil
}

// EncodeMesh returns m as a single framed document.
func EncodeMesh(m *mesh.Mesh) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteMesh(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteMesh writes m to w as one frame.
func WriteMesh(w io.Writer, m *mesh.Mesh) error {
	return NewFrameEncoder(w).Encode(NewMeshFrame(m))
}

// DecodeMesh is the inverse of EncodeMesh.
func DecodeMesh(data []byte) (*mesh.Mesh, error) {
	return ReadMesh(bytes.NewReader(data))
}

// ReadMesh reads one mesh frame from r.
func ReadMesh(r io.Reader) (*mesh.Mesh, error) {
	payload, err := NewFrameDecoder(r).ReadFrame()
	if err != nil {
		return nil, err
	}
	f, err := DecodeMeshFrame(payload)
	if err != nil {
		return nil, err
	}
	if f.Type != MeshType {
		return nil, &FrameError{Kind: FrameErrorUnknownType, Msg: fmt.Sprintf("expected mesh frame, got %q", f.Type)}
	}
	return f.Mesh()
}
