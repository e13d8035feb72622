package mesh

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Vec2 is a 2D texture coordinate.
type Vec2 struct {
	U, V float64
}

// Vec3 is a 3D position or direction.
type Vec3 struct {
	X, Y, Z float64
}

// Color is an RGBA vertex colour with components in [0, 1].
type Color struct {
	R, G, B, A float32
}

// Extents3D is an axis-aligned bounding box.
type Extents3D struct {
	Min Vec3
	Max Vec3
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product.
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Cross returns the cross product v × o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// LengthSquared returns |v|².
func (v Vec3) LengthSquared() float64 { return v.Dot(v) }

// Length returns |v|.
func (v Vec3) Length() float64 { return math.Sqrt(v.LengthSquared()) }

// Distance returns |v - o|.
func (v Vec3) Distance(o Vec3) float64 { return v.Sub(o).Length() }

// Normalized returns v scaled to unit length, or the zero vector if v has no length.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Lerp interpolates between v and o by t.
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return v.Add(o.Sub(v).Scale(t))
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// Lerp interpolates between two UVs.
func (v Vec2) Lerp(o Vec2, t float64) Vec2 {
	return Vec2{v.U + (o.U-v.U)*t, v.V + (o.V-v.V)*t}
}

// Lerp interpolates between two colours.
func (c Color) Lerp(o Color, t float64) Color {
	f := float32(t)
	return Color{
		R: c.R + (o.R-c.R)*f,
		G: c.G + (o.G-c.G)*f,
		B: c.B + (o.B-c.B)*f,
		A: c.A + (o.A-c.A)*f,
	}
}

// Size returns Max - Min.
func (e Extents3D) Size() Vec3 { return e.Max.Sub(e.Min) }

// Diagonal returns the length of the box diagonal.
func (e Extents3D) Diagonal() float64 { return e.Size().Length() }

// Center returns the midpoint of the box.
func (e Extents3D) Center() Vec3 { return e.Min.Add(e.Max).Scale(0.5) }

// Clamp returns f clamped to [low, high].
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// TriangleArea returns the area of the triangle (a, b, c).
func TriangleArea(a, b, c Vec3) float64 {
	return b.Sub(a).Cross(c.Sub(a)).Length() * 0.5
}

// TriangleNormal returns the non-normalized normal of (a, b, c); its length is twice the area.
func TriangleNormal(a, b, c Vec3) Vec3 {
	return b.Sub(a).Cross(c.Sub(a))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
