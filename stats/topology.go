package stats

import (
	"math"

	"github.com/justapithecus/meshforge/mesh"
)

// Edge is an undirected edge with Lo < Hi.
type Edge struct {
	Lo, Hi uint32
}

// NewEdge returns the canonical undirected edge between a and b.
func NewEdge(a, b uint32) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{Lo: a, Hi: b}
}

type directedEdge struct {
	from, to uint32
}

type topology struct {
	edges       int
	boundary    int
	nonManifold int
	watertight  bool
}

// analyzeEdges counts unique undirected edges and classifies them.
// The mesh is watertight when every directed edge appears exactly once and
// its reverse appears exactly once; self-loop edges from repeated indices
// break watertightness and are not counted as edges.
func analyzeEdges(m *mesh.Mesh) topology {
	undirected := make(map[Edge]int, len(m.Faces)*3/2)
	directed := make(map[directedEdge]int, len(m.Faces)*3)
	selfLoop := false

	for _, f := range m.Faces {
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			if a == b {
				selfLoop = true
				continue
			}
			undirected[NewEdge(a, b)]++
			directed[directedEdge{a, b}]++
		}
	}

	t := topology{edges: len(undirected), watertight: len(m.Faces) > 0 && !selfLoop}
	for _, n := range undirected {
		switch {
		case n == 1:
			t.boundary++
		case n > 2:
			t.nonManifold++
		}
	}
	if t.watertight {
		for e, n := range directed {
			if n != 1 || directed[directedEdge{e.to, e.from}] != 1 {
				t.watertight = false
				break
			}
		}
	}
	return t
}

// IsWatertight reports whether m is closed and consistently oriented.
func IsWatertight(m *mesh.Mesh) bool {
	return analyzeEdges(m).watertight
}

// EdgeFaceCounts maps each undirected edge to the number of faces using it.
// Collapsed edges of degenerate faces are not counted. A count of 1 marks an
// open boundary edge.
func EdgeFaceCounts(faces []mesh.Face) map[Edge]int {
	out := make(map[Edge]int, len(faces)*3/2)
	for _, f := range faces {
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			if a != b {
				out[NewEdge(a, b)]++
			}
		}
	}
	return out
}

type cell struct {
	x, y, z int64
}

// countDuplicates counts vertices lying within tol of an earlier vertex.
// Points are bucketed into a grid of cell size tol and compared against
// the 27 surrounding cells.
func countDuplicates(verts []mesh.Vec3, tol float64) int {
	if len(verts) < 2 {
		return 0
	}
	if tol <= 0 {
		seen := make(map[mesh.Vec3]struct{}, len(verts))
		n := 0
		for _, v := range verts {
			if _, ok := seen[v]; ok {
				n++
				continue
			}
			seen[v] = struct{}{}
		}
		return n
	}

	key := func(v mesh.Vec3) cell {
		return cell{
			int64(math.Floor(v.X / tol)),
			int64(math.Floor(v.Y / tol)),
			int64(math.Floor(v.Z / tol)),
		}
	}
	grid := make(map[cell][]int, len(verts))
	tol2 := tol * tol
	n := 0
	for i, v := range verts {
		c := key(v)
		dup := false
	search:
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					for _, j := range grid[cell{c.x + dx, c.y + dy, c.z + dz}] {
						if verts[j].Sub(v).LengthSquared() <= tol2 {
							dup = true
							break search
						}
					}
				}
			}
		}
		if dup {
			n++
		}
		grid[c] = append(grid[c], i)
	}
	return n
}
