package decimate

import (
	"container/heap"
	"math"

	"github.com/justapithecus/meshforge/mesh"
	"github.com/justapithecus/meshforge/stats"
)

// state is the mutable working copy for one decimation run.
type state struct {
	opts Options

	verts  []mesh.Vec3
	colors []mesh.Color
	uvs    []mesh.Vec2

	faces     []mesh.Face
	faceAlive []bool
	liveFaces int

	// vertFaces lists faces incident to each vertex. Entries may be stale
	// (dead, or no longer containing the vertex) and are filtered on read.
	vertFaces   [][]int
	quadrics    []Quadric
	gen         []uint32
	vertAlive   []bool
	vertOnEdge  []bool
	areaTol     float64
	cosMaxFlip  float64
	heap        collapseHeap
	collapses   int
	rejections  int
	consecutive int
}

func newState(m *mesh.Mesh, opts Options) *state {
	n := m.VertexCount()
	s := &state{
		opts:       opts,
		verts:      append([]mesh.Vec3(nil), m.Vertices...),
		faces:      append([]mesh.Face(nil), m.Faces...),
		faceAlive:  make([]bool, m.FaceCount()),
		vertFaces:  make([][]int, n),
		quadrics:   make([]Quadric, n),
		gen:        make([]uint32, n),
		vertAlive:  make([]bool, n),
		vertOnEdge: make([]bool, n),
		areaTol:    mesh.AreaTolerance(m.Diagonal()),
		cosMaxFlip: math.Cos(opts.MaxFlipAngle),
	}
	if m.HasColors() {
		s.colors = append([]mesh.Color(nil), m.Colors...)
	}
	if m.HasUVs() {
		s.uvs = append([]mesh.Vec2(nil), m.UVs...)
	}

	for i, f := range s.faces {
		s.faceAlive[i] = true
		s.liveFaces++
		a, b, c := s.verts[f[0]], s.verts[f[1]], s.verts[f[2]]
		q := faceQuadric(a, b, c)
		for _, idx := range f {
			s.vertFaces[idx] = append(s.vertFaces[idx], i)
			s.quadrics[idx] = s.quadrics[idx].Add(q)
			s.vertAlive[idx] = true
		}
	}

	s.addBoundaryConstraints()
	s.seedHeap()
	return s
}

// addBoundaryConstraints adds perpendicular planes on every open edge so
// that silhouettes are preserved.
func (s *state) addBoundaryConstraints() {
	counts := stats.EdgeFaceCounts(s.faces)
	for _, f := range s.faces {
		fn := mesh.TriangleNormal(s.verts[f[0]], s.verts[f[1]], s.verts[f[2]]).Normalized()
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			if a == b || counts[stats.NewEdge(a, b)] != 1 {
				continue
			}
			q := boundaryQuadric(s.verts[a], s.verts[b], fn, s.opts.BoundaryWeight)
			s.quadrics[a] = s.quadrics[a].Add(q)
			s.quadrics[b] = s.quadrics[b].Add(q)
			s.vertOnEdge[a] = true
			s.vertOnEdge[b] = true
		}
	}
}

func (s *state) seedHeap() {
	seen := make(map[stats.Edge]struct{}, len(s.faces)*3/2)
	for _, f := range s.faces {
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			if a == b {
				continue
			}
			e := stats.NewEdge(a, b)
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			s.heap = append(s.heap, s.candidate(e.Lo, e.Hi))
		}
	}
	heap.Init(&s.heap)
}

// candidate computes the collapse cost and contraction point for (u, v).
func (s *state) candidate(u, v uint32) candidate {
	q := s.quadrics[u].Add(s.quadrics[v])
	pu, pv := s.verts[u], s.verts[v]
	mid := pu.Lerp(pv, 0.5)
	pos, ok := q.Optimal()
	if !ok || pos.Distance(mid) > 2*pu.Distance(pv) {
		pos = mid
	}
	return candidate{
		cost: math.Max(q.Error(pos), 0),
		u:    u,
		v:    v,
		gu:   s.gen[u],
		gv:   s.gen[v],
		pos:  pos,
	}
}

// collapseTo collapses edges until the live face count reaches target or
// no candidate remains. It returns true when it stopped because of
// StallLimit consecutive rejections.
func (s *state) collapseTo(target int) bool {
	for s.liveFaces > target && s.heap.Len() > 0 {
		c := heap.Pop(&s.heap).(candidate)
		if !s.vertAlive[c.u] || !s.vertAlive[c.v] || s.gen[c.u] != c.gu || s.gen[c.v] != c.gv {
			continue
		}
		if !s.tryCollapse(c) {
			s.rejections++
			s.consecutive++
			if s.consecutive >= s.opts.StallLimit {
				return true
			}
			continue
		}
		s.collapses++
		s.consecutive = 0
	}
	return false
}

// incident returns the live faces containing v.
func (s *state) incident(v uint32) []int {
	out := s.vertFaces[v][:0:0]
	for _, fi := range s.vertFaces[v] {
		if s.faceAlive[fi] && faceHas(s.faces[fi], v) {
			out = append(out, fi)
		}
	}
	return out
}

func faceHas(f mesh.Face, v uint32) bool {
	return f[0] == v || f[1] == v || f[2] == v
}

func neighbours(faces []mesh.Face, idx []int, v uint32) map[uint32]struct{} {
	out := make(map[uint32]struct{}, 8)
	for _, fi := range idx {
		for _, w := range faces[fi] {
			if w != v {
				out[w] = struct{}{}
			}
		}
	}
	return out
}

// tryCollapse merges v into u at c.pos if the collapse passes all checks.
func (s *state) tryCollapse(c candidate) bool {
	u, v := c.u, c.v
	fu, fv := s.incident(u), s.incident(v)

	var shared []int
	for _, fi := range fu {
		if faceHas(s.faces[fi], v) {
			shared = append(shared, fi)
		}
	}
	if len(shared) == 0 {
		return false
	}

	// Pinching two boundary loops through an interior edge tears the surface.
	if s.vertOnEdge[u] && s.vertOnEdge[v] && len(shared) > 1 {
		return false
	}

	// Link condition: the vertices adjacent to both endpoints must be exactly
	// the apexes of the shared faces.
	nu, nv := neighbours(s.faces, fu, u), neighbours(s.faces, fv, v)
	common := 0
	for w := range nu {
		if w == v {
			continue
		}
		if _, ok := nv[w]; ok {
			common++
		}
	}
	if common != len(shared) {
		return false
	}

	if !s.facesStayValid(fu, u, v, c.pos) || !s.facesStayValid(fv, v, u, c.pos) {
		return false
	}

	s.apply(c, fu, fv, shared)
	return true
}

// facesStayValid checks every face around moved that survives the collapse:
// its area must stay above tolerance and its normal must not rotate past
// MaxFlipAngle once moved sits at pos.
func (s *state) facesStayValid(idx []int, moved, other uint32, pos mesh.Vec3) bool {
	for _, fi := range idx {
		f := s.faces[fi]
		if faceHas(f, other) {
			continue
		}
		var p [3]mesh.Vec3
		for k, w := range f {
			if w == moved {
				p[k] = pos
			} else {
				p[k] = s.verts[w]
			}
		}
		before := mesh.TriangleNormal(s.verts[f[0]], s.verts[f[1]], s.verts[f[2]])
		after := mesh.TriangleNormal(p[0], p[1], p[2])
		la := after.Length()
		if la*0.5 < s.areaTol {
			return false
		}
		lb := before.Length()
		if lb == 0 {
			continue
		}
		if before.Dot(after) < s.cosMaxFlip*lb*la {
			return false
		}
	}
	return true
}

func (s *state) apply(c candidate, fu, fv, shared []int) {
	u, v := c.u, c.v

	t := edgeParam(s.verts[u], s.verts[v], c.pos)
	if s.colors != nil {
		s.colors[u] = s.colors[u].Lerp(s.colors[v], t)
	}
	if s.uvs != nil {
		s.uvs[u] = s.uvs[u].Lerp(s.uvs[v], t)
	}
	s.verts[u] = c.pos
	s.quadrics[u] = s.quadrics[u].Add(s.quadrics[v])
	s.vertOnEdge[u] = s.vertOnEdge[u] || s.vertOnEdge[v]

	for _, fi := range shared {
		s.faceAlive[fi] = false
		s.liveFaces--
	}
	for _, fi := range fv {
		if !s.faceAlive[fi] {
			continue
		}
		f := &s.faces[fi]
		for k := range f {
			if f[k] == v {
				f[k] = u
			}
		}
		s.vertFaces[u] = append(s.vertFaces[u], fi)
	}

	s.vertAlive[v] = false
	s.vertFaces[v] = nil
	s.gen[u]++
	s.gen[v]++
	s.vertFaces[u] = s.incident(u)

	for w := range neighbours(s.faces, s.vertFaces[u], u) {
		lo, hi := u, w
		if lo > hi {
			lo, hi = hi, lo
		}
		heap.Push(&s.heap, s.candidate(lo, hi))
	}
}

// edgeParam projects p onto segment (a, b) and returns the clamped parameter.
func edgeParam(a, b, p mesh.Vec3) float64 {
	e := b.Sub(a)
	l2 := e.LengthSquared()
	if l2 == 0 {
		return 0
	}
	return mesh.Clamp(p.Sub(a).Dot(e)/l2, 0, 1)
}

// output assembles the live faces into a compact mesh.
func (s *state) output() *mesh.Mesh {
	m := &mesh.Mesh{
		Vertices: s.verts,
		Colors:   s.colors,
		UVs:      s.uvs,
		Faces:    make([]mesh.Face, 0, s.liveFaces),
	}
	for i, f := range s.faces {
		if s.faceAlive[i] {
			m.Faces = append(m.Faces, f)
		}
	}
	return m.Compact()
}
