// pkg/body/body_test.go
package body

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cubeShape() *shape.ConvexMesh {
	var pts []mgl64.Vec3
	for _, x := range []float64{-0.5, 0.5} {
		for _, y := range []float64{-0.5, 0.5} {
			for _, z := range []float64{-0.5, 0.5} {
				pts = append(pts, mgl64.Vec3{x, y, z})
			}
		}
	}
	return shape.NewConvexMesh(pts)
}

func TestNew_MassProperties(t *testing.T) {
	tests := []struct {
		name        string
		opts        Options
		wantMass    float64
		wantCanMove bool
	}{
		{"UnitCube", Options{Shape: cubeShape()}, 1, true},
		{"DenseCube", Options{Shape: cubeShape(), Density: 3}, 3, true},
		{"StaticCube", Options{Shape: cubeShape(), Static: true}, 0, false},
		{"Plane", Options{Shape: shape.NewInfinitePlane(mgl64.Vec3{0, 1, 0}, 0)}, 0, false},
		{"Ray", Options{Shape: &shape.Ray{}}, 1, true},
		{"NoShape", Options{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.opts)
			assert.InDelta(t, tt.wantMass, b.Mass(), 1e-12)
			assert.Equal(t, tt.wantCanMove, b.CanMove())
			assert.Equal(t, !tt.wantCanMove, b.MergesSubgraphs())
			assert.NotZero(t, b.ID())
		})
	}
}

func TestRigidBody_ApplyImpulse(t *testing.T) {
	b := New(Options{Shape: cubeShape()})

	b.ApplyCentralImpulse(mgl64.Vec3{2, 0, 0})
	assert.Equal(t, mgl64.Vec3{2, 0, 0}, b.Velocity())

	b.SetVelocity(mgl64.Vec3{})
	b.ApplyImpulse(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0.5, 0, 0})
	assert.InDelta(t, 1, b.Velocity()[1], 1e-12)
	// torque arm x × y = +z; I = 1/6
	assert.InDelta(t, 3, b.AngularVelocity()[2], 1e-9)

	static := New(Options{Shape: cubeShape(), Static: true})
	static.ApplyImpulse(mgl64.Vec3{1, 1, 1}, mgl64.Vec3{1, 0, 0})
	static.ApplyCentralForce(mgl64.Vec3{1, 0, 0})
	assert.Equal(t, mgl64.Vec3{}, static.Velocity())
	assert.Equal(t, mgl64.Vec3{}, static.Force())
}

func TestRigidBody_VelocityAt(t *testing.T) {
	b := New(Options{Shape: cubeShape()})
	b.SetVelocity(mgl64.Vec3{1, 0, 0})
	b.SetAngularVelocity(mgl64.Vec3{0, 0, 2})
	got := b.VelocityAt(mgl64.Vec3{0, 1, 0})
	assert.InDelta(t, -1, got[0], 1e-12)
}

func TestRigidBody_UpdateVel(t *testing.T) {
	gravity := mgl64.Vec3{0, -10, 0}
	dt := 0.1

	t.Run("Gravity", func(t *testing.T) {
		b := New(Options{Shape: cubeShape()})
		b.UpdateVel(dt, gravity)
		assert.InDelta(t, -1, b.Velocity()[1], 1e-12)
	})

	t.Run("GravityDisabled", func(t *testing.T) {
		b := New(Options{Shape: cubeShape()})
		b.SetGravityEnabled(false)
		b.UpdateVel(dt, gravity)
		assert.Equal(t, mgl64.Vec3{}, b.Velocity())
	})

	t.Run("ForceAndTorque", func(t *testing.T) {
		b := New(Options{Shape: cubeShape(), Density: 2})
		b.SetGravityEnabled(false)
		b.ApplyForce(mgl64.Vec3{4, 0, 0}, mgl64.Vec3{0, 0.5, 0})
		b.UpdateVel(dt, gravity)
		assert.InDelta(t, 0.2, b.Velocity()[0], 1e-12)
		// torque (0,0.5,0) × (4,0,0) = (0,0,-2); I = 2/6
		assert.InDelta(t, -0.6, b.AngularVelocity()[2], 1e-9)

		b.ResetForces()
		assert.Equal(t, mgl64.Vec3{}, b.Force())
		assert.Equal(t, mgl64.Vec3{}, b.Torque())
	})

	t.Run("Damping", func(t *testing.T) {
		b := New(Options{Shape: cubeShape(), LinearDamping: 1})
		b.SetVelocity(mgl64.Vec3{10, 0, 0})
		b.UpdateVel(dt, mgl64.Vec3{})
		assert.InDelta(t, 9, b.Velocity()[0], 1e-12)
	})

	t.Run("InactiveIgnored", func(t *testing.T) {
		b := New(Options{Shape: cubeShape()})
		b.SetActive(false)
		b.UpdateVel(dt, gravity)
		assert.Equal(t, mgl64.Vec3{}, b.Velocity())
		assert.True(t, b.MergesSubgraphs())
	})
}

type recordingRebucketer struct {
	calls []*RigidBody
}

func (r *recordingRebucketer) Rebucket(b *RigidBody) {
	r.calls = append(r.calls, b)
}

func TestRigidBody_UpdatePos(t *testing.T) {
	b := New(Options{Shape: cubeShape(), Position: mgl64.Vec3{1, 2, 3}})
	b.SetVelocity(mgl64.Vec3{0, 0, -2})
	b.SetAngularVelocity(mgl64.Vec3{0, math.Pi, 0})
	rb := &recordingRebucketer{}

	b.UpdatePos(0.5, rb)

	assert.InDelta(t, 2, b.Position()[2], 1e-12)
	require.Len(t, rb.calls, 1)
	rotated := b.Transform().ApplyDir(mgl64.Vec3{1, 0, 0})
	assert.InDelta(t, -1, rotated[2], 1e-9)

	box := b.AABB()
	assert.InDelta(t, 2.5, box.Max[1], 1e-9)
}

func TestRigidBody_Translate(t *testing.T) {
	b := New(Options{Shape: shape.NewSphere(1)})
	_ = b.AABB()
	b.Translate(mgl64.Vec3{0, 3, 0})
	assert.InDelta(t, 3, b.CenterOfMass()[1], 1e-12)
	assert.InDelta(t, 4, b.AABB().Max[1], 1e-12)
}

func TestRigidBody_RayBodySweep(t *testing.T) {
	b := New(Options{Shape: &shape.Ray{}})
	b.SetVelocity(mgl64.Vec3{0, -60, 0})
	b.RefreshCache(1.0 / 60)
	box := b.AABB()
	assert.InDelta(t, -1, box.Min[1], 1e-12)
	assert.InDelta(t, 0, box.Max[1], 1e-12)
}

func TestRigidBody_RegionsAndConstraints(t *testing.T) {
	b := New(Options{Shape: shape.NewSphere(1)})
	b.AddRegion(RegionKey{1, 0, 0})
	b.AddRegion(RegionKey{0, 0, 0})
	assert.Equal(t, []RegionKey{{0, 0, 0}, {1, 0, 0}}, b.Regions())
	assert.False(t, b.RemoveRegion(RegionKey{0, 0, 0}))
	assert.False(t, b.RemoveRegion(RegionKey{5, 5, 5}))
	assert.True(t, b.RemoveRegion(RegionKey{1, 0, 0}))

	b.AttachConstraint(7)
	b.AttachConstraint(3)
	assert.Equal(t, []uint64{3, 7}, b.Constraints())
	b.DetachConstraint(3)
	assert.Equal(t, []uint64{7}, b.Constraints())
}

func TestArena(t *testing.T) {
	a := NewArena()
	b1 := New(Options{Shape: shape.NewSphere(1)})
	b2 := New(Options{Shape: shape.NewSphere(1)})

	h1 := a.Insert(b1)
	h2 := a.Insert(b2)
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, h1, b1.Handle())
	assert.True(t, h1.Less(h2))

	got, ok := a.Get(h2)
	require.True(t, ok)
	assert.Same(t, b2, got)

	removed, ok := a.Remove(h1)
	require.True(t, ok)
	assert.Same(t, b1, removed)
	_, ok = a.Get(h1)
	assert.False(t, ok, "stale handle must not resolve")

	b3 := New(Options{Shape: shape.NewSphere(1)})
	h3 := a.Insert(b3)
	assert.Equal(t, h1.Index, h3.Index)
	assert.NotEqual(t, h1.Generation, h3.Generation)
	_, ok = a.Get(h1)
	assert.False(t, ok)

	assert.Equal(t, []*RigidBody{b3, b2}, a.Bodies())
	_, ok = a.Get(Handle{})
	assert.False(t, ok)
}
