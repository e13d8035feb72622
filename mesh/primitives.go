package mesh

import "math"

// NewCube returns a closed, outward-wound cube centred at the origin
// with the given edge length. Vertices carry UVs from the x/y projection.
func NewCube(size float64) *Mesh {
	h := size / 2
	m := &Mesh{
		Vertices: []Vec3{
			{-h, -h, -h}, {h, -h, -h}, {h, h, -h}, {-h, h, -h},
			{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h},
		},
		Faces: []Face{
			{0, 2, 1}, {0, 3, 2}, // -z
			{4, 5, 6}, {4, 6, 7}, // +z
			{0, 1, 5}, {0, 5, 4}, // -y
			{3, 7, 6}, {3, 6, 2}, // +y
			{0, 4, 7}, {0, 7, 3}, // -x
			{1, 2, 6}, {1, 6, 5}, // +x
		},
	}
	m.UVs = make([]Vec2, len(m.Vertices))
	for i, v := range m.Vertices {
		m.UVs[i] = Vec2{U: (v.X + h) / size, V: (v.Y + h) / size}
	}
	return m
}

// NewUVSphere returns a closed, outward-wound latitude/longitude sphere.
// rings is the number of latitude bands (>= 2) and segments the number of
// longitude slices (>= 3). The result has segments*(rings-1)+2 vertices and
// 2*segments*(rings-1) faces.
func NewUVSphere(rings, segments int, radius float64) *Mesh {
	rings = max(rings, 2)
	segments = max(segments, 3)

	m := &Mesh{}
	m.Vertices = append(m.Vertices, Vec3{0, radius, 0})
	m.UVs = append(m.UVs, Vec2{U: 0.5, V: 0})
	for i := 1; i < rings; i++ {
		theta := math.Pi * float64(i) / float64(rings)
		y := radius * math.Cos(theta)
		r := radius * math.Sin(theta)
		for j := 0; j < segments; j++ {
			phi := 2 * math.Pi * float64(j) / float64(segments)
			m.Vertices = append(m.Vertices, Vec3{r * math.Cos(phi), y, r * math.Sin(phi)})
			m.UVs = append(m.UVs, Vec2{U: float64(j) / float64(segments), V: float64(i) / float64(rings)})
		}
	}
	south := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, Vec3{0, -radius, 0})
	m.UVs = append(m.UVs, Vec2{U: 0.5, V: 1})

	ring := func(i, j int) uint32 {
		return uint32(1 + (i-1)*segments + j%segments)
	}

	for j := 0; j < segments; j++ {
		m.Faces = append(m.Faces, Face{0, ring(1, j+1), ring(1, j)})
	}
	for i := 1; i < rings-1; i++ {
		for j := 0; j < segments; j++ {
			a, b := ring(i, j), ring(i, j+1)
			c, d := ring(i+1, j), ring(i+1, j+1)
			m.Faces = append(m.Faces, Face{a, b, c}, Face{b, d, c})
		}
	}
	for j := 0; j < segments; j++ {
		m.Faces = append(m.Faces, Face{ring(rings-1, j), ring(rings-1, j+1), south})
	}
	return m
}

// NewGrid returns an open, flat n×n quad grid in the XZ plane with unit
// spacing, triangulated into 2·n² faces. It has a boundary.
func NewGrid(n int) *Mesh {
	n = max(n, 1)
	m := &Mesh{}
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			m.Vertices = append(m.Vertices, Vec3{float64(j), 0, float64(i)})
			m.UVs = append(m.UVs, Vec2{U: float64(j) / float64(n), V: float64(i) / float64(n)})
		}
	}
	idx := func(i, j int) uint32 { return uint32(i*(n+1) + j) }
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a, b := idx(i, j), idx(i, j+1)
			c, d := idx(i+1, j), idx(i+1, j+1)
			m.Faces = append(m.Faces, Face{a, c, b}, Face{b, c, d})
		}
	}
	return m
}
