package reader

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/justapithecus/meshforge/ipc"
	"github.com/justapithecus/meshforge/iox"
	"github.com/justapithecus/meshforge/mesh"
	"github.com/justapithecus/meshforge/validate"
)

// PrimitivePrefix marks a built-in mesh source instead of a file path.
const PrimitivePrefix = "primitive:"

// LoadMesh reads a mesh from source. Sources of the form
// primitive:cube[:size], primitive:sphere[:rings[:segments]] and
// primitive:grid[:n] build a primitive; anything else is an ipc mesh file.
func LoadMesh(source string) (*mesh.Mesh, error) {
	if spec, ok := strings.CutPrefix(source, PrimitivePrefix); ok {
		return primitive(spec)
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open mesh: %w", err)
	}
	defer iox.DiscardClose(f)

	m, err := ipc.ReadMesh(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read mesh %s: %w", source, err)
	}
	return m, nil
}

// SaveMesh writes m to path as an ipc mesh file.
func SaveMesh(path string, m *mesh.Mesh) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create mesh file: %w", err)
	}
	defer iox.CloseInto(&err, f, "mesh file")

	w := bufio.NewWriter(f)
	if err := ipc.WriteMesh(w, m); err != nil {
		return fmt.Errorf("write mesh %s: %w", path, err)
	}
	return w.Flush()
}

func primitive(spec string) (*mesh.Mesh, error) {
	parts := strings.Split(spec, ":")
	args := make([]float64, 0, len(parts)-1)
	for _, p := range parts[1:] {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid primitive argument %q in %q", p, spec)
		}
		args = append(args, v)
	}
	arg := func(i int, def float64) float64 {
		if i < len(args) {
			return args[i]
		}
		return def
	}

	switch parts[0] {
	case "cube":
		return mesh.NewCube(arg(0, 1)), nil
	case "sphere":
		rings := int(arg(0, 16))
		if rings < 2 {
			return nil, fmt.Errorf("sphere needs at least 2 rings, got %d", rings)
		}
		return mesh.NewUVSphere(rings, int(arg(1, float64(2*rings))), 1), nil
	case "grid":
		return mesh.NewGrid(int(arg(0, 16))), nil
	default:
		return nil, fmt.Errorf("unknown primitive %q (must be cube, sphere or grid)", parts[0])
	}
}

// Inspect validates m and builds its inspection payload.
func Inspect(source string, m *mesh.Mesh, extra ...validate.Limits) (*MeshInspection, error) {
	report, err := validate.New().Validate(m)
	if err != nil {
		return nil, err
	}
	return &MeshInspection{
		Source:        source,
		Report:        report,
		Compatibility: validate.Compatibility(report, extra...),
	}, nil
}

