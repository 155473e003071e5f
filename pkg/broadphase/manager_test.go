// pkg/broadphase/manager_test.go
package broadphase

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/body"
	"github.com/opd-ai/go-rigid/pkg/geom"
	"github.com/opd-ai/go-rigid/pkg/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	arena   *body.Arena
	mgr     *Manager
	orphans []*body.RigidBody
}

func newFixture() *fixture {
	f := &fixture{arena: body.NewArena()}
	f.mgr = NewManager(Options{
		RegionSize:      10,
		WorldHalfExtent: 100,
		OnOrphan:        func(b *body.RigidBody) { f.orphans = append(f.orphans, b) },
	})
	return f
}

func (f *fixture) add(t *testing.T, opts body.Options) *body.RigidBody {
	t.Helper()
	b := body.New(opts)
	f.arena.Insert(b)
	require.NoError(t, f.mgr.Add(b))
	return b
}

func sphereAt(p mgl64.Vec3, r float64) body.Options {
	return body.Options{Shape: shape.NewSphere(r), Position: p}
}

func TestManager_AddAssignsCoveringRegions(t *testing.T) {
	tests := []struct {
		name    string
		pos     mgl64.Vec3
		radius  float64
		regions []body.RegionKey
	}{
		{"InsideOneCell", mgl64.Vec3{5, 5, 5}, 1, []body.RegionKey{{0, 0, 0}}},
		{"StraddlesX", mgl64.Vec3{10, 5, 5}, 1, []body.RegionKey{{0, 0, 0}, {1, 0, 0}}},
		{"NegativeCell", mgl64.Vec3{-5, -5, -5}, 1, []body.RegionKey{{-1, -1, -1}}},
		{"Corner", mgl64.Vec3{0, 0, 5}, 1, []body.RegionKey{
			{-1, -1, 0}, {-1, 0, 0}, {0, -1, 0}, {0, 0, 0},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			b := f.add(t, sphereAt(tt.pos, tt.radius))
			assert.Equal(t, tt.regions, b.Regions())
			for _, k := range tt.regions {
				r, ok := f.mgr.Region(k)
				require.True(t, ok)
				assert.True(t, r.Contains(b))
				assert.Equal(t, 1, r.BucketLen(shape.TypeSphere, BucketActive))
			}
		})
	}
}

func TestManager_AddErrors(t *testing.T) {
	f := newFixture()

	far := body.New(sphereAt(mgl64.Vec3{500, 0, 0}, 1))
	f.arena.Insert(far)
	assert.ErrorIs(t, f.mgr.Add(far), ErrOutOfBounds)

	empty := body.New(body.Options{})
	f.arena.Insert(empty)
	assert.ErrorIs(t, f.mgr.Add(empty), ErrNoShape)
}

func TestManager_PlanesAreAlwaysRelevant(t *testing.T) {
	f := newFixture()
	ground := f.add(t, body.Options{Shape: shape.NewInfinitePlane(mgl64.Vec3{0, 1, 0}, 0)})
	assert.Equal(t, []body.RegionKey{unboundedKey}, ground.Regions())

	out := NewRelevant()
	f.mgr.GetRelevantObjects(geom.AABBAround(mgl64.Vec3{50, 50, 50}, 1), out)
	require.Len(t, out.ByType[shape.TypeInfinitePlane], 1)
	assert.Same(t, ground, out.ByType[shape.TypeInfinitePlane][0])
}

func TestManager_GetRelevantObjects(t *testing.T) {
	f := newFixture()
	a := f.add(t, sphereAt(mgl64.Vec3{5, 5, 5}, 1))
	b := f.add(t, sphereAt(mgl64.Vec3{10, 5, 5}, 1)) // straddles two regions
	c := f.add(t, sphereAt(mgl64.Vec3{5, 5, 8}, 1))
	f.add(t, sphereAt(mgl64.Vec3{50, 50, 50}, 1))

	out := NewRelevant()
	f.mgr.GetRelevantObjects(geom.AABB{Min: mgl64.Vec3{3, 3, 3}, Max: mgl64.Vec3{12, 7, 7.5}}, out)

	assert.Equal(t, []*body.RigidBody{a, b, c}, out.ByType[shape.TypeSphere], "deduplicated and sorted by handle")
	assert.Equal(t, 3, out.Len())

	f.mgr.GetRelevantObjects(geom.AABBAround(mgl64.Vec3{-50, -50, -50}, 1), out)
	assert.Zero(t, out.Len())
}

func TestManager_GetRelevantObjects_WorldSpanningBox(t *testing.T) {
	f := newFixture()
	near := f.add(t, sphereAt(mgl64.Vec3{-95, -95, -95}, 1))
	far := f.add(t, sphereAt(mgl64.Vec3{95, 95, 95}, 1))
	mid := f.add(t, sphereAt(mgl64.Vec3{0, 40, -20}, 1))
	off := f.add(t, sphereAt(mgl64.Vec3{95, -95, 50}, 1))

	out := NewRelevant()
	f.mgr.GetRelevantObjects(f.mgr.Bounds(), out)
	assert.Equal(t, []*body.RigidBody{near, far, mid, off}, out.ByType[shape.TypeSphere])

	// diagonal segment box: many cells, few live regions
	ray := geom.Ray{Origin: mgl64.Vec3{-99, -99, -99}, Direction: mgl64.Vec3{198, 198, 100}}
	f.mgr.GetRelevantObjects(ray.SegmentAABB(), out)
	assert.Equal(t, []*body.RigidBody{near, mid}, out.ByType[shape.TypeSphere])
}

func TestManager_Rebucket(t *testing.T) {
	f := newFixture()
	b := f.add(t, sphereAt(mgl64.Vec3{5, 5, 5}, 1))

	b.SetPosition(mgl64.Vec3{15, 5, 5})
	f.mgr.Rebucket(b)
	assert.Equal(t, []body.RegionKey{{1, 0, 0}}, b.Regions())
	_, ok := f.mgr.Region(body.RegionKey{0, 0, 0})
	assert.False(t, ok, "empty regions are dropped")
	assert.Empty(t, f.orphans)

	b.SetPosition(mgl64.Vec3{1000, 0, 0})
	f.mgr.Rebucket(b)
	assert.Zero(t, b.RegionCount())
	require.Len(t, f.orphans, 1)
	assert.Same(t, b, f.orphans[0])
	assert.Zero(t, f.mgr.RegionCount())
}

func TestManager_RemoveOrphans(t *testing.T) {
	f := newFixture()
	b := f.add(t, sphereAt(mgl64.Vec3{10, 10, 10}, 1))
	require.Equal(t, 8, b.RegionCount())

	f.mgr.Remove(b)
	assert.Zero(t, b.RegionCount())
	assert.Len(t, f.orphans, 1, "orphaned exactly once")
	assert.Zero(t, f.mgr.RegionCount())
}

func TestManager_SetActiveMovesBuckets(t *testing.T) {
	f := newFixture()
	b := f.add(t, sphereAt(mgl64.Vec3{5, 5, 5}, 1))
	s := f.add(t, body.Options{Shape: shape.NewSphere(1), Position: mgl64.Vec3{5, 5, 2}, Static: true})

	r, ok := f.mgr.Region(body.RegionKey{0, 0, 0})
	require.True(t, ok)
	assert.Equal(t, 1, r.BucketLen(shape.TypeSphere, BucketActive))
	assert.Equal(t, 1, r.BucketLen(shape.TypeSphere, BucketStatic))

	f.mgr.SetActive(b, false)
	assert.Equal(t, 0, r.BucketLen(shape.TypeSphere, BucketActive))
	assert.Equal(t, 1, r.BucketLen(shape.TypeSphere, BucketInactive))
	assert.Equal(t, BucketStatic, BucketOf(s))

	f.mgr.SetActive(b, true)
	assert.Equal(t, 1, r.BucketLen(shape.TypeSphere, BucketActive))
	assert.Equal(t, 2, r.Len())
}

func TestRegion_AddRemove(t *testing.T) {
	r := newRegion(body.RegionKey{0, 0, 0}, geom.AABB{Max: mgl64.Vec3{1, 1, 1}}, false)
	arena := body.NewArena()
	b := body.New(sphereAt(mgl64.Vec3{}, 0.5))
	arena.Insert(b)

	assert.True(t, r.AddRigidBody(b))
	assert.False(t, r.AddRigidBody(b))
	assert.Equal(t, 1, r.Len())
	assert.True(t, b.HasRegion(r.Key()))

	assert.True(t, r.RemoveRigidBody(b))
	assert.False(t, r.RemoveRigidBody(b))
	assert.Zero(t, r.Len())
}
