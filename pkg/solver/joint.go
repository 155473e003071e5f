// pkg/solver/joint.go
package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/body"
	"github.com/opd-ai/go-rigid/pkg/geom"
)

// AngularLimits bounds the relative rotation of a joint, expressed as a
// rotation vector in world axes relative to the rest pose.
type AngularLimits struct {
	Enabled  bool
	Min, Max mgl64.Vec3
}

// Motor drives the relative angular velocity of B with respect to A toward
// Target, applying at most MaxTorque.
type Motor struct {
	Enabled   bool
	Target    mgl64.Vec3
	MaxTorque float64
}

// SkeletalJoint is a ball-and-socket joint between A and B, or between A and
// a fixed world point when B is nil.
type SkeletalJoint struct {
	A, B   *body.RigidBody
	localA mgl64.Vec3
	localB mgl64.Vec3
	rest   mgl64.Quat

	// DriftCoeff is the fraction of pivot separation removed per step.
	DriftCoeff float64
	Limits     AngularLimits
	Motor      Motor

	// per-step cache
	dt          float64
	rA, rB      mgl64.Vec3
	invK        mgl64.Mat3
	linearOK    bool
	bias        mgl64.Vec3
	kAng        mgl64.Mat3
	invKAng     mgl64.Mat3
	angularOK   bool
	rotation    mgl64.Vec3
	motorBudget float64
	motorSpent  mgl64.Vec3
}

// NewSkeletalJoint pins a and b together at the world point pivot. b may be
// nil to pin a to the world.
func NewSkeletalJoint(a, b *body.RigidBody, pivot mgl64.Vec3) *SkeletalJoint {
	j := &SkeletalJoint{
		A:          a,
		B:          b,
		localA:     a.Transform().InvApply(pivot),
		localB:     pivot,
		DriftCoeff: 0.2,
	}
	if b != nil {
		j.localB = b.Transform().InvApply(pivot)
	}
	j.rest = j.relative()
	return j
}

// Bodies returns the joined bodies.
func (j *SkeletalJoint) Bodies() (a, b *body.RigidBody) {
	return j.A, j.B
}

func (j *SkeletalJoint) orientationB() mgl64.Quat {
	if j.B == nil {
		return mgl64.QuatIdent()
	}
	return j.B.Orientation()
}

// relative returns the rotation taking A's frame to B's.
func (j *SkeletalJoint) relative() mgl64.Quat {
	return j.orientationB().Mul(j.A.Orientation().Inverse())
}

// Pivots returns the world positions of the pivot on A and on B.
func (j *SkeletalJoint) Pivots() (pa, pb mgl64.Vec3) {
	pa = j.A.Transform().Apply(j.localA)
	pb = j.localB
	if j.B != nil {
		pb = j.B.Transform().Apply(j.localB)
	}
	return pa, pb
}

// Rotation returns the current relative rotation vector from the rest pose.
func (j *SkeletalJoint) Rotation() mgl64.Vec3 {
	return geom.RotationVector(j.relative().Mul(j.rest.Inverse()))
}

// DoUpdateAction builds the effective-mass matrices and the drift bias.
func (j *SkeletalJoint) DoUpdateAction(dt float64) {
	j.dt = dt
	ta, tb := termsOf(j.A), termsOf(j.B)
	pa, pb := j.Pivots()
	j.rA = pa.Sub(ta.com)
	j.rB = pb.Sub(tb.com)

	// K = (ma⁻¹ + mb⁻¹)I − [rA]ₓ Ia⁻¹ [rA]ₓ − [rB]ₓ Ib⁻¹ [rB]ₓ
	sa, sb := geom.Skew(j.rA), geom.Skew(j.rB)
	k := mgl64.Ident3().Mul(ta.invMass + tb.invMass).
		Sub(sa.Mul3(ta.invInertia).Mul3(sa)).
		Sub(sb.Mul3(tb.invInertia).Mul3(sb))
	j.linearOK = math.Abs(k.Det()) > geom.Epsilon
	if j.linearOK {
		j.invK = k.Inv()
	}

	j.bias = mgl64.Vec3{}
	if dt > 0 {
		j.bias = pb.Sub(pa).Mul(j.DriftCoeff / dt)
	}

	j.kAng = ta.invInertia.Add(tb.invInertia)
	j.angularOK = math.Abs(j.kAng.Det()) > geom.Epsilon
	if j.angularOK {
		j.invKAng = j.kAng.Inv()
	}
	j.rotation = j.Rotation()
	j.motorBudget = j.Motor.MaxTorque * dt
	j.motorSpent = mgl64.Vec3{}
}

func (j *SkeletalJoint) applyLinear(p mgl64.Vec3, pa, pb mgl64.Vec3) {
	if j.A.IsDynamic() {
		j.A.ApplyImpulse(p, pa)
	}
	if j.B != nil && j.B.IsDynamic() {
		j.B.ApplyImpulse(p.Mul(-1), pb)
	}
}

func (j *SkeletalJoint) applyAngular(l mgl64.Vec3) {
	if j.A.IsDynamic() {
		j.A.ApplyAngularImpulse(l.Mul(-1))
	}
	if j.B != nil && j.B.IsDynamic() {
		j.B.ApplyAngularImpulse(l)
	}
}

// DoConstraintAction removes relative pivot velocity, then enforces the
// angular limits and the motor.
func (j *SkeletalJoint) DoConstraintAction() {
	if j.linearOK {
		ta, tb := termsOf(j.A), termsOf(j.B)
		// impulse p on A and -p on B drives vA - vB at the pivot to bias
		rel := ta.vel.Add(ta.angVel.Cross(j.rA)).Sub(tb.vel.Add(tb.angVel.Cross(j.rB)))
		p := j.invK.Mul3x1(j.bias.Sub(rel))
		j.applyLinear(p, ta.com.Add(j.rA), tb.com.Add(j.rB))
	}
	if !j.angularOK {
		return
	}
	if j.Limits.Enabled && j.dt > 0 {
		j.enforceLimits()
	}
	if j.Motor.Enabled && j.motorBudget > 0 {
		j.driveMotor()
	}
}

func (j *SkeletalJoint) relAngVel() mgl64.Vec3 {
	ta, tb := termsOf(j.A), termsOf(j.B)
	return tb.angVel.Sub(ta.angVel)
}

func (j *SkeletalJoint) enforceLimits() {
	for axis := 0; axis < 3; axis++ {
		var e mgl64.Vec3
		e[axis] = 1
		theta := j.rotation[axis]
		w := j.relAngVel().Dot(e)

		var target float64
		switch {
		case theta > j.Limits.Max[axis]:
			target = -(theta - j.Limits.Max[axis]) * j.DriftCoeff / j.dt
			if w <= target {
				continue
			}
		case theta < j.Limits.Min[axis]:
			target = (j.Limits.Min[axis] - theta) * j.DriftCoeff / j.dt
			if w >= target {
				continue
			}
		default:
			continue
		}
		k := e.Dot(j.kAng.Mul3x1(e))
		if k < geom.Epsilon {
			continue
		}
		j.applyAngular(e.Mul((target - w) / k))
	}
}

func (j *SkeletalJoint) driveMotor() {
	l := j.invKAng.Mul3x1(j.Motor.Target.Sub(j.relAngVel()))
	total := j.motorSpent.Add(l)
	if n := total.Len(); n > j.motorBudget {
		total = total.Mul(j.motorBudget / n)
		l = total.Sub(j.motorSpent)
	}
	j.motorSpent = total
	j.applyAngular(l)
}
