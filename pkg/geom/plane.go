// pkg/geom/plane.go
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Plane is the set of points x with Normal·x == Offset. Normal is unit length.
type Plane struct {
	Normal mgl64.Vec3
	Offset float64
}

// PlaneFromPointNormal builds a plane through p; ok is false when n has no direction.
func PlaneFromPointNormal(p, n mgl64.Vec3) (Plane, bool) {
	unit, ok := Normalize(n)
	if !ok {
		return Plane{}, false
	}
	return Plane{Normal: unit, Offset: unit.Dot(p)}, true
}

// PlaneFromTriangle builds the plane of abc with counter-clockwise winding.
func PlaneFromTriangle(a, b, c mgl64.Vec3) (Plane, bool) {
	return PlaneFromPointNormal(a, b.Sub(a).Cross(c.Sub(a)))
}

// SignedDistance is positive on the side the normal points to.
func (p Plane) SignedDistance(x mgl64.Vec3) float64 {
	return p.Normal.Dot(x) - p.Offset
}

// Project returns the closest point on the plane to x.
func (p Plane) Project(x mgl64.Vec3) mgl64.Vec3 {
	return x.Sub(p.Normal.Mul(p.SignedDistance(x)))
}

// Flip returns the same plane facing the other way.
func (p Plane) Flip() Plane {
	return Plane{Normal: p.Normal.Mul(-1), Offset: -p.Offset}
}

// Transform returns the plane in the frame produced by xform.
func (p Plane) Transform(xform Transform) Plane {
	n := xform.ApplyDir(p.Normal)
	point := xform.Apply(p.Normal.Mul(p.Offset))
	return Plane{Normal: n, Offset: n.Dot(point)}
}

// IntersectRay returns the ray parameter where it crosses the plane.
func (p Plane) IntersectRay(ray Ray) (float64, bool) {
	denom := p.Normal.Dot(ray.Direction)
	if math.Abs(denom) < Epsilon {
		return 0, false
	}
	return (p.Offset - p.Normal.Dot(ray.Origin)) / denom, true
}

// ApproxEqual reports whether the planes match within the given tolerances.
func (p Plane) ApproxEqual(o Plane, normalTol, offsetTol float64) bool {
	return p.Normal.Dot(o.Normal) >= 1-normalTol && math.Abs(p.Offset-o.Offset) <= offsetTol
}
