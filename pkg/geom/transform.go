// pkg/geom/transform.go
package geom

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a rigid transform: rotate by Rot, then translate by Pos.
type Transform struct {
	Pos mgl64.Vec3
	Rot mgl64.Mat3
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rot: mgl64.Ident3()}
}

// NewTransform builds a transform from a position and an orientation.
func NewTransform(pos mgl64.Vec3, ori mgl64.Quat) Transform {
	return Transform{Pos: pos, Rot: ori.Normalize().Mat4().Mat3()}
}

// Translation returns a pure translation.
func Translation(pos mgl64.Vec3) Transform {
	return Transform{Pos: pos, Rot: mgl64.Ident3()}
}

// Apply transforms a point from local to world space.
func (t Transform) Apply(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rot.Mul3x1(p).Add(t.Pos)
}

// ApplyDir rotates a direction from local to world space.
func (t Transform) ApplyDir(d mgl64.Vec3) mgl64.Vec3 {
	return t.Rot.Mul3x1(d)
}

// InvApply transforms a world point into local space.
func (t Transform) InvApply(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rot.Transpose().Mul3x1(p.Sub(t.Pos))
}

// InvApplyDir rotates a world direction into local space.
func (t Transform) InvApplyDir(d mgl64.Vec3) mgl64.Vec3 {
	return t.Rot.Transpose().Mul3x1(d)
}

// Mul returns the transform that applies o first, then t.
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		Pos: t.Apply(o.Pos),
		Rot: t.Rot.Mul3(o.Rot),
	}
}

// Inverse returns the inverse rigid transform.
func (t Transform) Inverse() Transform {
	rt := t.Rot.Transpose()
	return Transform{
		Pos: rt.Mul3x1(t.Pos).Mul(-1),
		Rot: rt,
	}
}
