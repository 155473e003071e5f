// pkg/geom/vector.go
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the general-purpose tolerance used by degenerate-geometry guards.
const Epsilon = 1e-9

// LengthSquared returns magnitude squared (optimization for comparisons)
func LengthSquared(v mgl64.Vec3) float64 {
	return v.Dot(v)
}

// Normalize returns a unit vector in the same direction, and false if v is
// too short to have a direction.
func Normalize(v mgl64.Vec3) (mgl64.Vec3, bool) {
	length := v.Len()
	if length < Epsilon {
		return mgl64.Vec3{}, false
	}
	return v.Mul(1 / length), true
}

// Distance returns the distance between two points
func Distance(a, b mgl64.Vec3) float64 {
	return b.Sub(a).Len()
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// Basis returns two unit vectors that, together with the unit vector n,
// form a right-handed orthonormal basis (u × v = n).
func Basis(n mgl64.Vec3) (u, v mgl64.Vec3) {
	// pick the world axis least aligned with n
	axis := mgl64.Vec3{1, 0, 0}
	if math.Abs(n[0]) > 0.6 {
		axis = mgl64.Vec3{0, 1, 0}
	}
	u = axis.Sub(n.Mul(axis.Dot(n))).Normalize()
	v = n.Cross(u)
	return u, v
}

// Finite reports whether every component of v is a finite number.
func Finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Skew returns the cross-product matrix [v]x so that Skew(v).Mul3x1(w) == v × w.
func Skew(v mgl64.Vec3) mgl64.Mat3 {
	// column-major
	return mgl64.Mat3{
		0, v[2], -v[1],
		-v[2], 0, v[0],
		v[1], -v[0], 0,
	}
}

// RotationVector returns the axis*angle representation of q.
func RotationVector(q mgl64.Quat) mgl64.Vec3 {
	q = q.Normalize()
	if q.W < 0 {
		q = mgl64.Quat{W: -q.W, V: q.V.Mul(-1)}
	}
	sinHalf := q.V.Len()
	if sinHalf < Epsilon {
		return q.V.Mul(2)
	}
	angle := 2 * math.Atan2(sinHalf, q.W)
	return q.V.Mul(angle / sinHalf)
}

// IntegrateOrientation advances q by angular velocity w over dt.
func IntegrateOrientation(q mgl64.Quat, w mgl64.Vec3, dt float64) mgl64.Quat {
	angle := w.Len() * dt
	if angle < Epsilon {
		return q
	}
	dq := mgl64.QuatRotate(angle, w.Normalize())
	return dq.Mul(q).Normalize()
}
