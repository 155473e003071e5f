// Package solver resolves contacts and joints with sequential impulses.
// Constraints are partitioned into batches that share no movable body so a
// batch can be handed to a parallel backend.
package solver

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/body"
	"github.com/opd-ai/go-rigid/pkg/geom"
	"github.com/opd-ai/go-rigid/pkg/shape"
)

// Constraint is anything the solver can drive. A is never nil; B may be nil
// for a world anchor.
type Constraint interface {
	Bodies() (a, b *body.RigidBody)

	// DoUpdateAction runs once per step before iteration.
	DoUpdateAction(dt float64)

	// DoConstraintAction computes and applies one impulse.
	DoConstraintAction()
}

// ContactParams tunes contact resolution.
type ContactParams struct {
	// UndoPenetrationCoeff is the fraction of the depth removed per step.
	UndoPenetrationCoeff float64
	// Share scales the position correction; set to 1/N for N points of one
	// manifold.
	Share float64
	// StaticFrictionScale and KineticFrictionScale multiply the friction
	// product in each regime. Both default to 1.
	StaticFrictionScale  float64
	KineticFrictionScale float64
}

// DefaultContactParams returns the stock tuning.
func DefaultContactParams() ContactParams {
	return ContactParams{
		UndoPenetrationCoeff: 0.2,
		Share:                1,
		StaticFrictionScale:  1,
		KineticFrictionScale: 1,
	}
}

// ContactPoint is a single contact between two bodies for one step. The
// normal points from A toward B.
type ContactPoint struct {
	A, B   *body.RigidBody
	Pos    mgl64.Vec3
	LocalA mgl64.Vec3
	LocalB mgl64.Vec3
	Normal mgl64.Vec3
	Depth  float64
	Params ContactParams

	// cached once per step
	cached     bool
	rA, rB     mgl64.Vec3
	normalMass float64
	bounce     float64
	friction   float64
}

var contactPool = sync.Pool{New: func() any { return new(ContactPoint) }}

// NewContactPoint takes a contact from the pool. Release returns it.
func NewContactPoint(a, b *body.RigidBody, p shape.ManifoldPoint, params ContactParams) *ContactPoint {
	c := contactPool.Get().(*ContactPoint)
	*c = ContactPoint{
		A:      a,
		B:      b,
		Pos:    p.Pos,
		Normal: p.Normal,
		Depth:  p.Depth,
		Params: params,
		LocalA: a.Transform().InvApply(p.Pos),
	}
	if b != nil {
		c.LocalB = b.Transform().InvApply(p.Pos)
	}
	return c
}

// Release returns c to the pool. c must not be used afterwards.
func (c *ContactPoint) Release() {
	*c = ContactPoint{}
	contactPool.Put(c)
}

// Bodies returns the two bodies in contact.
func (c *ContactPoint) Bodies() (a, b *body.RigidBody) {
	return c.A, c.B
}

type massTerms struct {
	invMass    float64
	invInertia mgl64.Mat3
	com        mgl64.Vec3
	vel        mgl64.Vec3
	angVel     mgl64.Vec3
}

// termsOf returns zero mass terms for anchors so they absorb impulses.
func termsOf(b *body.RigidBody) massTerms {
	if b == nil || !b.IsDynamic() {
		var t massTerms
		if b != nil {
			t.com = b.CenterOfMass()
		}
		return t
	}
	return massTerms{
		invMass:    b.InvMass(),
		invInertia: b.InvInertiaWorld(),
		com:        b.CenterOfMass(),
		vel:        b.Velocity(),
		angVel:     b.AngularVelocity(),
	}
}

// effectiveMass returns 1 / (n·K·n) for a unit direction at arms rA, rB.
func effectiveMass(ta, tb massTerms, rA, rB, n mgl64.Vec3) float64 {
	ra := rA.Cross(n)
	rb := rB.Cross(n)
	k := ta.invMass + tb.invMass +
		ra.Dot(ta.invInertia.Mul3x1(ra)) +
		rb.Dot(tb.invInertia.Mul3x1(rb))
	if k < geom.Epsilon {
		return 0
	}
	return 1 / k
}

func (c *ContactPoint) prepare() {
	ta, tb := termsOf(c.A), termsOf(c.B)
	c.rA = c.Pos.Sub(ta.com)
	c.rB = c.Pos.Sub(tb.com)
	c.normalMass = effectiveMass(ta, tb, c.rA, c.rB, c.Normal)
	c.bounce = c.A.Restitution()
	c.friction = c.A.Friction()
	if c.B != nil {
		c.bounce *= c.B.Restitution()
		c.friction *= c.B.Friction()
	} else {
		c.bounce, c.friction = 0, 0
	}
	c.cached = true
}

// DoUpdateAction caches the solver terms and pushes the bodies apart by a
// fraction of the depth, split by inverse mass.
func (c *ContactPoint) DoUpdateAction(dt float64) {
	c.prepare()
	if c.Depth <= 0 {
		return
	}
	ta, tb := termsOf(c.A), termsOf(c.B)
	total := ta.invMass + tb.invMass
	if total < geom.Epsilon {
		return
	}
	corr := c.Depth * c.Params.UndoPenetrationCoeff * c.Params.Share
	if ta.invMass > 0 {
		c.A.Translate(c.Normal.Mul(-corr * ta.invMass / total))
	}
	if tb.invMass > 0 {
		c.B.Translate(c.Normal.Mul(corr * tb.invMass / total))
	}
}

// DoConstraintAction applies one collision response.
func (c *ContactPoint) DoConstraintAction() {
	c.DoCollisionResponse()
}

func relativeVelocity(ta, tb massTerms, rA, rB mgl64.Vec3) mgl64.Vec3 {
	va := ta.vel.Add(ta.angVel.Cross(rA))
	vb := tb.vel.Add(tb.angVel.Cross(rB))
	return vb.Sub(va)
}

func (c *ContactPoint) apply(j mgl64.Vec3) {
	if c.A.IsDynamic() {
		c.A.ApplyImpulse(j.Mul(-1), c.Pos)
	}
	if c.B != nil && c.B.IsDynamic() {
		c.B.ApplyImpulse(j, c.Pos)
	}
}

// DoCollisionResponse applies the normal bounce impulse when the bodies
// approach, then friction along the remaining tangential velocity. Static
// friction stops sliding when the required impulse is within μ·|jn|;
// otherwise kinetic friction applies μ·|jn|. μ is the product of the body
// frictions in both regimes, scaled by the params.
func (c *ContactPoint) DoCollisionResponse() {
	if !c.cached {
		c.prepare()
	}
	if c.normalMass == 0 {
		return
	}
	ta, tb := termsOf(c.A), termsOf(c.B)
	vn := relativeVelocity(ta, tb, c.rA, c.rB).Dot(c.Normal)
	if vn >= 0 {
		return
	}
	jn := -(1 + c.bounce) * vn * c.normalMass
	c.apply(c.Normal.Mul(jn))

	if c.friction <= 0 {
		return
	}
	ta, tb = termsOf(c.A), termsOf(c.B)
	vr := relativeVelocity(ta, tb, c.rA, c.rB)
	vt := vr.Sub(c.Normal.Mul(vr.Dot(c.Normal)))
	speed := vt.Len()
	if speed < geom.Epsilon {
		return
	}
	tangent := vt.Mul(1 / speed)
	tangentMass := effectiveMass(ta, tb, c.rA, c.rB, tangent)
	stop := speed * tangentMass
	limit := c.friction * c.Params.StaticFrictionScale * math.Abs(jn)
	jt := stop
	if stop > limit {
		jt = c.friction * c.Params.KineticFrictionScale * math.Abs(jn)
	}
	c.apply(tangent.Mul(-jt))
}
