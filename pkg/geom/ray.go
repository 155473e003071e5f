// pkg/geom/ray.go
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Ray is the parametric line Origin + t*Direction. Direction is not required
// to be normalized; t is measured in multiples of Direction.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

// At returns the point at parameter t.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Transform returns the ray expressed in another frame.
func (r Ray) Transform(xform Transform) Ray {
	return Ray{Origin: xform.Apply(r.Origin), Direction: xform.ApplyDir(r.Direction)}
}

// InvTransform returns the world ray expressed in the local frame of xform.
func (r Ray) InvTransform(xform Transform) Ray {
	return Ray{Origin: xform.InvApply(r.Origin), Direction: xform.InvApplyDir(r.Direction)}
}

// SegmentAABB returns the bounds of the segment t in [0, 1].
func (r Ray) SegmentAABB() AABB {
	return AABBFromPoints(r.Origin, r.Origin.Add(r.Direction))
}

// IntersectSphere returns the parameters at which the ray crosses a sphere.
// Both roots are returned (t0 <= t1) and may be negative.
func (r Ray) IntersectSphere(center mgl64.Vec3, radius float64) (t0, t1 float64, ok bool) {
	a := LengthSquared(r.Direction)
	if a < Epsilon || radius <= 0 {
		return 0, 0, false
	}
	oc := r.Origin.Sub(center)
	b := oc.Dot(r.Direction)
	c := LengthSquared(oc) - radius*radius
	disc := b*b - a*c
	if disc < 0 {
		return 0, 0, false
	}
	root := math.Sqrt(disc)
	return (-b - root) / a, (-b + root) / a, true
}

// IntersectTriangle returns the ray parameter and barycentric coordinates
// (u, v weights of b and c) where the ray crosses triangle abc.
func (r Ray) IntersectTriangle(a, b, c mgl64.Vec3) (t, u, v float64, ok bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Direction.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < Epsilon {
		return 0, 0, 0, false
	}
	inv := 1 / det
	s := r.Origin.Sub(a)
	u = s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	q := s.Cross(e1)
	v = r.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = e2.Dot(q) * inv
	return t, u, v, true
}
