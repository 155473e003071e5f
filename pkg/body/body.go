// pkg/body/body.go
package body

import (
	"math"
	"sort"

	"github.com/EngoEngine/ecs"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/geom"
	"github.com/opd-ai/go-rigid/pkg/shape"
)

// RegionKey identifies a broad-phase region by grid cell.
type RegionKey [3]int32

// Rebucketer re-files a body in the broad phase after it moved.
type Rebucketer interface {
	Rebucket(b *RigidBody)
}

// Options configures a new body.
type Options struct {
	Shape          shape.Shape
	Position       mgl64.Vec3
	Orientation    mgl64.Quat
	Density        float64
	Friction       float64
	Restitution    float64
	Static         bool
	LinearDamping  float64
	AngularDamping float64
}

// RigidBody is a simulated solid. Bodies are owned by an Arena and referred to
// elsewhere by Handle.
type RigidBody struct {
	ecs.BasicEntity

	handle Handle
	shape  shape.Shape

	pos    mgl64.Vec3
	ori    mgl64.Quat
	vel    mgl64.Vec3
	angVel mgl64.Vec3
	force  mgl64.Vec3
	torque mgl64.Vec3

	invMass         float64
	invInertiaLocal mgl64.Mat3
	comLocal        mgl64.Vec3

	// derived from pose; rebuilt when dirty
	dirty           bool
	xform           geom.Transform
	com             mgl64.Vec3
	invInertiaWorld mgl64.Mat3
	instance        shape.Instance
	aabb            geom.AABB

	friction       float64
	restitution    float64
	linearDamping  float64
	angularDamping float64
	gravityEnabled bool
	active         bool
	canMove        bool

	regions     map[RegionKey]struct{}
	constraints map[uint64]struct{}
}

// New creates a body from opts. Zero Density means 1. Shapes that cannot move
// and bodies with no mass are static.
func New(opts Options) *RigidBody {
	b := &RigidBody{
		BasicEntity:    ecs.NewBasic(),
		shape:          opts.Shape,
		pos:            opts.Position,
		ori:            opts.Orientation,
		friction:       opts.Friction,
		restitution:    opts.Restitution,
		linearDamping:  opts.LinearDamping,
		angularDamping: opts.AngularDamping,
		gravityEnabled: true,
		active:         true,
		dirty:          true,
		regions:        make(map[RegionKey]struct{}),
		constraints:    make(map[uint64]struct{}),
	}
	if b.ori.Len() < geom.Epsilon {
		b.ori = mgl64.QuatIdent()
	}
	b.ori = b.ori.Normalize()

	density := opts.Density
	if density == 0 {
		density = 1
	}
	var mi shape.MassInfo
	if opts.Shape != nil {
		mi = opts.Shape.ComputeMassInfo().Scale(density)
	}
	b.comLocal = mi.COM
	b.canMove = !opts.Static && opts.Shape != nil && opts.Shape.CanMove() && mi.Mass > 0
	if b.canMove {
		b.invMass = 1 / mi.Mass
		if math.Abs(mi.Inertia.Det()) > geom.Epsilon {
			b.invInertiaLocal = mi.Inertia.Inv()
		}
	}
	return b
}

func (b *RigidBody) Handle() Handle              { return b.handle }
func (b *RigidBody) Shape() shape.Shape          { return b.shape }
func (b *RigidBody) Position() mgl64.Vec3        { return b.pos }
func (b *RigidBody) Orientation() mgl64.Quat     { return b.ori }
func (b *RigidBody) Velocity() mgl64.Vec3        { return b.vel }
func (b *RigidBody) AngularVelocity() mgl64.Vec3 { return b.angVel }
func (b *RigidBody) Force() mgl64.Vec3           { return b.force }
func (b *RigidBody) Torque() mgl64.Vec3          { return b.torque }
func (b *RigidBody) InvMass() float64            { return b.invMass }
func (b *RigidBody) Friction() float64           { return b.friction }
func (b *RigidBody) Restitution() float64        { return b.restitution }
func (b *RigidBody) CanMove() bool               { return b.canMove }
func (b *RigidBody) IsActive() bool              { return b.active }
func (b *RigidBody) GravityEnabled() bool        { return b.gravityEnabled }

// Mass returns the body mass; static bodies report zero.
func (b *RigidBody) Mass() float64 {
	if b.invMass == 0 {
		return 0
	}
	return 1 / b.invMass
}

// IsDynamic reports whether the body is integrated and reacts to impulses.
func (b *RigidBody) IsDynamic() bool {
	return b.canMove && b.active
}

// MergesSubgraphs reports whether the body acts as an immovable anchor in the
// constraint graph: anchors never block two constraints from sharing a batch.
func (b *RigidBody) MergesSubgraphs() bool {
	return !b.IsDynamic()
}

// SetActive toggles integration. Use the broad phase's SetActive so the body
// moves between region buckets.
func (b *RigidBody) SetActive(active bool) {
	b.active = active
	if !active {
		b.vel, b.angVel = mgl64.Vec3{}, mgl64.Vec3{}
	}
}

func (b *RigidBody) SetFriction(f float64)     { b.friction = f }
func (b *RigidBody) SetRestitution(r float64)  { b.restitution = r }
func (b *RigidBody) SetGravityEnabled(on bool) { b.gravityEnabled = on }
func (b *RigidBody) SetDamping(linear, angular float64) {
	b.linearDamping, b.angularDamping = linear, angular
}

// SetPosition moves the body origin.
func (b *RigidBody) SetPosition(p mgl64.Vec3) {
	b.pos = p
	b.dirty = true
}

// SetOrientation rotates the body about its origin.
func (b *RigidBody) SetOrientation(q mgl64.Quat) {
	b.ori = q.Normalize()
	b.dirty = true
}

// SetVelocity sets the linear velocity of the center of mass.
func (b *RigidBody) SetVelocity(v mgl64.Vec3) {
	if b.canMove {
		b.vel = v
	}
}

// SetAngularVelocity sets the angular velocity in world space.
func (b *RigidBody) SetAngularVelocity(w mgl64.Vec3) {
	if b.canMove {
		b.angVel = w
	}
}

func (b *RigidBody) refresh() {
	if !b.dirty {
		return
	}
	b.xform = geom.NewTransform(b.pos, b.ori)
	b.com = b.xform.Apply(b.comLocal)
	r := b.xform.Rot
	b.invInertiaWorld = r.Mul3(b.invInertiaLocal).Mul3(r.Transpose())
	b.instance = nil
	b.dirty = false
}

// Transform returns the local-to-world transform.
func (b *RigidBody) Transform() geom.Transform {
	b.refresh()
	return b.xform
}

// CenterOfMass returns the world-space center of mass.
func (b *RigidBody) CenterOfMass() mgl64.Vec3 {
	b.refresh()
	return b.com
}

// InvInertiaWorld returns R·I⁻¹·Rᵀ.
func (b *RigidBody) InvInertiaWorld() mgl64.Mat3 {
	b.refresh()
	return b.invInertiaWorld
}

// Instance returns the shape's world-space cache, rebuilding it if the pose
// changed since the last call.
func (b *RigidBody) Instance() shape.Instance {
	b.refresh()
	if b.instance == nil && b.shape != nil {
		b.instance = b.shape.Instantiate(b.xform)
		b.aabb = b.instance.AABB()
	}
	return b.instance
}

// AABB returns the world bounds of the shape instance.
func (b *RigidBody) AABB() geom.AABB {
	if b.Instance() == nil {
		return geom.EmptyAABB()
	}
	return b.aabb
}

// RefreshCache rebuilds the derived state so the body can be read from other
// goroutines. Ray bodies also record the segment they sweep over dt.
func (b *RigidBody) RefreshCache(dt float64) {
	inst := b.Instance()
	if ri, ok := inst.(*shape.RayInstance); ok {
		ri.Sweep = b.vel.Mul(dt)
		b.aabb = ri.AABB()
	}
}

// ApplyForce accumulates a force acting at a world point.
func (b *RigidBody) ApplyForce(f, point mgl64.Vec3) {
	if !b.canMove {
		return
	}
	b.force = b.force.Add(f)
	b.torque = b.torque.Add(point.Sub(b.CenterOfMass()).Cross(f))
}

// ApplyCentralForce accumulates a force through the center of mass.
func (b *RigidBody) ApplyCentralForce(f mgl64.Vec3) {
	if b.canMove {
		b.force = b.force.Add(f)
	}
}

// ApplyTorque accumulates a world-space torque.
func (b *RigidBody) ApplyTorque(t mgl64.Vec3) {
	if b.canMove {
		b.torque = b.torque.Add(t)
	}
}

// ApplyImpulse changes velocity instantly by an impulse acting at a world
// point.
func (b *RigidBody) ApplyImpulse(j, point mgl64.Vec3) {
	if !b.canMove {
		return
	}
	b.vel = b.vel.Add(j.Mul(b.invMass))
	arm := point.Sub(b.CenterOfMass())
	b.angVel = b.angVel.Add(b.invInertiaWorld.Mul3x1(arm.Cross(j)))
}

// ApplyCentralImpulse changes linear velocity only.
func (b *RigidBody) ApplyCentralImpulse(j mgl64.Vec3) {
	if b.canMove {
		b.vel = b.vel.Add(j.Mul(b.invMass))
	}
}

// ApplyAngularImpulse changes angular velocity only.
func (b *RigidBody) ApplyAngularImpulse(j mgl64.Vec3) {
	if b.canMove {
		b.angVel = b.angVel.Add(b.InvInertiaWorld().Mul3x1(j))
	}
}

// VelocityAt returns the velocity of the material point at p.
func (b *RigidBody) VelocityAt(p mgl64.Vec3) mgl64.Vec3 {
	return b.vel.Add(b.angVel.Cross(p.Sub(b.CenterOfMass())))
}

// UpdateVel integrates gravity and accumulated forces over dt.
func (b *RigidBody) UpdateVel(dt float64, gravity mgl64.Vec3) {
	if !b.IsDynamic() {
		return
	}
	if b.gravityEnabled {
		b.vel = b.vel.Add(gravity.Mul(dt))
	}
	b.vel = b.vel.Add(b.force.Mul(b.invMass * dt))
	b.angVel = b.angVel.Add(b.InvInertiaWorld().Mul3x1(b.torque).Mul(dt))
	if b.linearDamping > 0 {
		b.vel = b.vel.Mul(math.Max(0, 1-b.linearDamping*dt))
	}
	if b.angularDamping > 0 {
		b.angVel = b.angVel.Mul(math.Max(0, 1-b.angularDamping*dt))
	}
}

// UpdatePos advances the pose over dt and re-files the body with rb, which
// may be nil.
func (b *RigidBody) UpdatePos(dt float64, rb Rebucketer) {
	if !b.IsDynamic() {
		return
	}
	com := b.CenterOfMass().Add(b.vel.Mul(dt))
	b.ori = geom.IntegrateOrientation(b.ori, b.angVel, dt)
	rot := b.ori.Mat4().Mat3()
	b.pos = com.Sub(rot.Mul3x1(b.comLocal))
	b.dirty = true
	if rb != nil {
		rb.Rebucket(b)
	}
}

// ResetForces clears the force and torque accumulators.
func (b *RigidBody) ResetForces() {
	b.force, b.torque = mgl64.Vec3{}, mgl64.Vec3{}
}

// Translate shifts the body without changing velocity; used for position
// correction.
func (b *RigidBody) Translate(d mgl64.Vec3) {
	if !b.canMove {
		return
	}
	b.pos = b.pos.Add(d)
	if !b.dirty {
		b.xform.Pos = b.xform.Pos.Add(d)
		b.com = b.com.Add(d)
		b.instance = nil
	}
}

// LinearMomentum returns m·v.
func (b *RigidBody) LinearMomentum() mgl64.Vec3 {
	return b.vel.Mul(b.Mass())
}

// AngularMomentum returns the angular momentum about the world origin.
func (b *RigidBody) AngularMomentum() mgl64.Vec3 {
	if !b.canMove {
		return mgl64.Vec3{}
	}
	inertia := b.InvInertiaWorld().Inv()
	return inertia.Mul3x1(b.angVel).Add(b.CenterOfMass().Cross(b.LinearMomentum()))
}

// KineticEnergy returns the translational plus rotational energy.
func (b *RigidBody) KineticEnergy() float64 {
	if !b.canMove {
		return 0
	}
	inertia := b.InvInertiaWorld().Inv()
	return 0.5*b.Mass()*b.vel.Dot(b.vel) + 0.5*b.angVel.Dot(inertia.Mul3x1(b.angVel))
}

// AddRegion records membership of a broad-phase region.
func (b *RigidBody) AddRegion(k RegionKey) {
	b.regions[k] = struct{}{}
}

// RemoveRegion drops a membership and reports whether it was the last one.
func (b *RigidBody) RemoveRegion(k RegionKey) (last bool) {
	if _, ok := b.regions[k]; !ok {
		return false
	}
	delete(b.regions, k)
	return len(b.regions) == 0
}

// HasRegion reports membership of k.
func (b *RigidBody) HasRegion(k RegionKey) bool {
	_, ok := b.regions[k]
	return ok
}

// RegionCount returns the number of owning regions.
func (b *RigidBody) RegionCount() int {
	return len(b.regions)
}

// Regions returns the owning region keys in a stable order.
func (b *RigidBody) Regions() []RegionKey {
	out := make([]RegionKey, 0, len(b.regions))
	for k := range b.regions {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		a, c := out[i], out[j]
		if a[0] != c[0] {
			return a[0] < c[0]
		}
		if a[1] != c[1] {
			return a[1] < c[1]
		}
		return a[2] < c[2]
	})
	return out
}

// AttachConstraint records that constraint id references this body.
func (b *RigidBody) AttachConstraint(id uint64) {
	b.constraints[id] = struct{}{}
}

// DetachConstraint forgets constraint id.
func (b *RigidBody) DetachConstraint(id uint64) {
	delete(b.constraints, id)
}

// Constraints returns the attached constraint IDs in ascending order.
func (b *RigidBody) Constraints() []uint64 {
	out := make([]uint64, 0, len(b.constraints))
	for id := range b.constraints {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
