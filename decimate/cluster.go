package decimate

import (
	"fmt"
	"math"
	"sort"

	"github.com/justapithecus/meshforge/mesh"
)

const (
	clusterAttempts = 24
	clusterGrow     = 1.5
)

type gridCell struct {
	x, y, z int64
}

// cluster simplifies m by snapping vertices to a uniform grid and merging
// each occupied cell into its centroid. The cell size starts at
// sqrt(2·area/target), grows while the result is above target, and halves
// when a trial collapses everything.
func cluster(m *mesh.Mesh, target int) (*mesh.Mesh, error) {
	bounds := m.Bounds()
	diag := bounds.Diagonal()
	if m.FaceCount() == 0 || diag == 0 {
		return nil, fmt.Errorf("%w: clustering a mesh with no extent", ErrDecimationFailed)
	}

	size := math.Sqrt(2 * m.SurfaceArea() / float64(target))
	if size <= 0 || math.IsNaN(size) {
		size = diag / math.Sqrt(float64(target))
	}

	var best *mesh.Mesh
	for range clusterAttempts {
		out := clusterOnce(m, bounds.Min, size)
		n := out.FaceCount()
		if n > 0 && (best == nil || n < best.FaceCount()) && n < m.FaceCount() {
			best = out
		}
		switch {
		case n == 0:
			size /= 2
		case n > target:
			size *= clusterGrow
		default:
			return out, nil
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: vertex clustering produced no faces", ErrDecimationFailed)
	}
	return best, nil
}

func clusterOnce(m *mesh.Mesh, origin mesh.Vec3, size float64) *mesh.Mesh {
	type acc struct {
		pos   mesh.Vec3
		color [4]float64
		uv    mesh.Vec2
		n     float64
		index uint32
	}

	cells := make(map[gridCell]*acc, m.VertexCount()/4+1)
	order := make([]gridCell, 0, m.VertexCount()/4+1)
	assign := make([]gridCell, m.VertexCount())
	for i, v := range m.Vertices {
		d := v.Sub(origin)
		c := gridCell{
			int64(math.Floor(d.X / size)),
			int64(math.Floor(d.Y / size)),
			int64(math.Floor(d.Z / size)),
		}
		assign[i] = c
		a, ok := cells[c]
		if !ok {
			a = &acc{}
			cells[c] = a
			order = append(order, c)
		}
		a.pos = a.pos.Add(v)
		if m.HasColors() {
			col := m.Colors[i]
			a.color[0] += float64(col.R)
			a.color[1] += float64(col.G)
			a.color[2] += float64(col.B)
			a.color[3] += float64(col.A)
		}
		if m.HasUVs() {
			a.uv.U += m.UVs[i].U
			a.uv.V += m.UVs[i].V
		}
		a.n++
	}

	out := &mesh.Mesh{}
	for i, c := range order {
		a := cells[c]
		a.index = uint32(i)
		out.Vertices = append(out.Vertices, a.pos.Scale(1/a.n))
		if m.HasColors() {
			out.Colors = append(out.Colors, mesh.Color{
				R: float32(a.color[0] / a.n),
				G: float32(a.color[1] / a.n),
				B: float32(a.color[2] / a.n),
				A: float32(a.color[3] / a.n),
			})
		}
		if m.HasUVs() {
			out.UVs = append(out.UVs, mesh.Vec2{U: a.uv.U / a.n, V: a.uv.V / a.n})
		}
	}

	areaTol := mesh.AreaTolerance(m.Diagonal())
	seen := make(map[[3]uint32]struct{}, m.FaceCount())
	for _, f := range m.Faces {
		nf := mesh.Face{cells[assign[f[0]]].index, cells[assign[f[1]]].index, cells[assign[f[2]]].index}
		if nf[0] == nf[1] || nf[1] == nf[2] || nf[0] == nf[2] {
			continue
		}
		key := [3]uint32(nf)
		sort.Slice(key[:], func(i, j int) bool { return key[i] < key[j] })
		if _, dup := seen[key]; dup {
			continue
		}
		if mesh.TriangleArea(out.Vertices[nf[0]], out.Vertices[nf[1]], out.Vertices[nf[2]]) < areaTol {
			continue
		}
		seen[key] = struct{}{}
		out.Faces = append(out.Faces, nf)
	}
	return out.Compact()
}
