package decimate

import (
	"math"

	"github.com/justapithecus/meshforge/mesh"
)

// Quadric is a symmetric 4x4 error matrix stored as its upper triangle:
//
//	| a2 ab ac ad |
//	|    b2 bc bd |
//	|       c2 cd |
//	|          d2 |
type Quadric [10]float64

// PlaneQuadric returns w·ppᵀ for the plane n·x + d = 0 (n unit length).
func PlaneQuadric(n mesh.Vec3, d, w float64) Quadric {
	a, b, c := n.X, n.Y, n.Z
	return Quadric{
		w * a * a, w * a * b, w * a * c, w * a * d,
		w * b * b, w * b * c, w * b * d,
		w * c * c, w * c * d,
		w * d * d,
	}
}

// Add returns q + o.
func (q Quadric) Add(o Quadric) Quadric {
	for i := range q {
		q[i] += o[i]
	}
	return q
}

// Error evaluates vᵀQv for the homogeneous point (p, 1).
func (q Quadric) Error(p mesh.Vec3) float64 {
	x, y, z := p.X, p.Y, p.Z
	return q[0]*x*x + 2*q[1]*x*y + 2*q[2]*x*z + 2*q[3]*x +
		q[4]*y*y + 2*q[5]*y*z + 2*q[6]*y +
		q[7]*z*z + 2*q[8]*z +
		q[9]
}

// singularEpsilon is the relative determinant below which the 3x3 system
// is treated as singular.
const singularEpsilon = 1e-10

// Optimal solves ∇(vᵀQv) = 0 for the minimizing point. ok is false when
// the system is singular or ill-conditioned.
func (q Quadric) Optimal() (mesh.Vec3, bool) {
	a11, a12, a13 := q[0], q[1], q[2]
	a22, a23 := q[4], q[5]
	a33 := q[7]
	b1, b2, b3 := -q[3], -q[6], -q[8]

	c11 := a22*a33 - a23*a23
	c12 := a13*a23 - a12*a33
	c13 := a12*a23 - a13*a22
	det := a11*c11 + a12*c12 + a13*c13

	scale := 0.0
	for _, v := range []float64{a11, a12, a13, a22, a23, a33} {
		scale = math.Max(scale, math.Abs(v))
	}
	if scale == 0 || math.Abs(det) <= singularEpsilon*scale*scale*scale {
		return mesh.Vec3{}, false
	}

	c22 := a11*a33 - a13*a13
	c23 := a12*a13 - a11*a23
	c33 := a11*a22 - a12*a12
	inv := 1 / det
	p := mesh.Vec3{
		X: (c11*b1 + c12*b2 + c13*b3) * inv,
		Y: (c12*b1 + c22*b2 + c23*b3) * inv,
		Z: (c13*b1 + c23*b2 + c33*b3) * inv,
	}
	return p, p.IsFinite()
}

// faceQuadric returns the area-weighted plane quadric of triangle (a, b, c).
func faceQuadric(a, b, c mesh.Vec3) Quadric {
	n := mesh.TriangleNormal(a, b, c)
	l := n.Length()
	if l == 0 {
		return Quadric{}
	}
	n = n.Scale(1 / l)
	return PlaneQuadric(n, -n.Dot(a), l*0.5)
}

// boundaryQuadric constrains movement away from the open edge (a, b) of a
// face with normal fn using a plane through the edge perpendicular to the face.
func boundaryQuadric(a, b, fn mesh.Vec3, weight float64) Quadric {
	e := b.Sub(a)
	n := e.Cross(fn).Normalized()
	if n == (mesh.Vec3{}) {
		return Quadric{}
	}
	return PlaneQuadric(n, -n.Dot(a), weight*e.LengthSquared())
}
