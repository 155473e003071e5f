// pkg/geom/geom_test.go
package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvexPoly_Insert(t *testing.T) {
	tests := []struct {
		name     string
		points   []mgl64.Vec2
		wantLen  int
		wantArea float64
	}{
		{
			name:     "Square",
			points:   []mgl64.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
			wantLen:  4,
			wantArea: 1,
		},
		{
			name:     "SquareClockwiseInput",
			points:   []mgl64.Vec2{{0, 0}, {0, 1}, {1, 1}, {1, 0}},
			wantLen:  4,
			wantArea: 1,
		},
		{
			name:     "InteriorPointsDiscarded",
			points:   []mgl64.Vec2{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {1, 1}, {0.5, 1.5}},
			wantLen:  4,
			wantArea: 4,
		},
		{
			name:     "ColinearPointsDropped",
			points:   []mgl64.Vec2{{0, 0}, {1, 0}, {2, 0}, {2, 2}, {0, 2}, {1, 2}},
			wantLen:  4,
			wantArea: 4,
		},
		{
			name:     "PointReplacesHiddenVertices",
			points:   []mgl64.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {3, 0.5}},
			wantLen:  5,
			wantArea: 2,
		},
		{
			name:    "ColinearSegmentKeepsExtremes",
			points:  []mgl64.Vec2{{1, 0}, {2, 0}, {0, 0}, {3, 0}},
			wantLen: 2,
		},
		{
			name:    "Duplicates",
			points:  []mgl64.Vec2{{1, 1}, {1, 1}, {1, 1}},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := NewConvexPoly(1e-9)
			for i, p := range tt.points {
				cp.Insert(p, i)
			}
			assert.Equal(t, tt.wantLen, cp.Len())
			assert.InDelta(t, tt.wantArea, cp.Area(), 1e-12)
			assert.Len(t, cp.Tags(), tt.wantLen)
		})
	}
}

func TestConvexPoly_TagsFollowPoints(t *testing.T) {
	cp := NewConvexPoly(1e-9)
	input := []mgl64.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for i, p := range input {
		cp.Insert(p, i)
	}
	pts := cp.Points()
	for i, tag := range cp.Tags() {
		assert.Equal(t, input[tag], pts[i])
	}
}

func TestClipPolygon(t *testing.T) {
	square := []mgl64.Vec2{{0, 0}, {2, 0}, {2, 2}, {0, 2}}
	shifted := []mgl64.Vec2{{1, 1}, {3, 1}, {3, 3}, {1, 3}}
	out := ClipPolygon(square, shifted)
	require.Len(t, out, 4)
	assert.InDelta(t, 1, PolygonArea(out), 1e-12)

	far := []mgl64.Vec2{{5, 5}, {6, 5}, {6, 6}, {5, 6}}
	assert.Empty(t, ClipPolygon(square, far))
}

func TestClipSegment(t *testing.T) {
	square := []mgl64.Vec2{{0, 0}, {2, 0}, {2, 2}, {0, 2}}

	p, q, ok := ClipSegment(mgl64.Vec2{-1, 1}, mgl64.Vec2{3, 1}, square)
	require.True(t, ok)
	assert.InDelta(t, 0, p[0], 1e-12)
	assert.InDelta(t, 2, q[0], 1e-12)

	_, _, ok = ClipSegment(mgl64.Vec2{-1, 3}, mgl64.Vec2{3, 3}, square)
	assert.False(t, ok)
}

func TestClosestPointOnTriangle(t *testing.T) {
	a, b, c := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}
	tests := []struct {
		name string
		p    mgl64.Vec3
		want mgl64.Vec3
	}{
		{"Interior", mgl64.Vec3{0.25, 0.25, 1}, mgl64.Vec3{0.25, 0.25, 0}},
		{"VertexA", mgl64.Vec3{-1, -1, 0}, a},
		{"VertexB", mgl64.Vec3{2, -0.5, 0}, b},
		{"EdgeBC", mgl64.Vec3{1, 1, 0}, mgl64.Vec3{0.5, 0.5, 0}},
		{"EdgeAB", mgl64.Vec3{0.5, -1, 3}, mgl64.Vec3{0.5, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClosestPointOnTriangle(tt.p, a, b, c)
			assert.InDelta(t, 0, Distance(tt.want, got), 1e-12)
		})
	}
}

func TestClosestPointsSegments(t *testing.T) {
	c1, c2 := ClosestPointsSegments(
		mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{1, 0, 0},
		mgl64.Vec3{0, 1, -1}, mgl64.Vec3{0, 1, 1},
	)
	assert.InDelta(t, 0, Distance(c1, mgl64.Vec3{0, 0, 0}), 1e-12)
	assert.InDelta(t, 0, Distance(c2, mgl64.Vec3{0, 1, 0}), 1e-12)
}

func TestTransform_RoundTrip(t *testing.T) {
	xf := NewTransform(mgl64.Vec3{1, 2, 3}, mgl64.QuatRotate(0.7, mgl64.Vec3{1, 1, 0}.Normalize()))
	p := mgl64.Vec3{-0.3, 4, 2}
	assert.InDelta(t, 0, Distance(p, xf.InvApply(xf.Apply(p))), 1e-12)
	assert.InDelta(t, 0, Distance(p, xf.Inverse().Apply(xf.Apply(p))), 1e-12)
}

func TestAABB_IntersectRay(t *testing.T) {
	box := AABB{Min: mgl64.Vec3{-1, -1, -1}, Max: mgl64.Vec3{1, 1, 1}}
	tmin, tmax, ok := box.IntersectRay(Ray{Origin: mgl64.Vec3{-3, 0, 0}, Direction: mgl64.Vec3{1, 0, 0}})
	require.True(t, ok)
	assert.InDelta(t, 2, tmin, 1e-12)
	assert.InDelta(t, 4, tmax, 1e-12)

	_, _, ok = box.IntersectRay(Ray{Origin: mgl64.Vec3{-3, 2, 0}, Direction: mgl64.Vec3{1, 0, 0}})
	assert.False(t, ok)
}

func TestIntegrateOrientation_StaysUnit(t *testing.T) {
	q := mgl64.QuatIdent()
	for i := 0; i < 600; i++ {
		q = IntegrateOrientation(q, mgl64.Vec3{0.3, 2, -1}, 1.0/60)
	}
	assert.InDelta(t, 1, q.Len(), 1e-9)

	spun := IntegrateOrientation(mgl64.QuatIdent(), mgl64.Vec3{0, math.Pi, 0}, 0.5)
	assert.InDelta(t, 0, Distance(spun.Rotate(mgl64.Vec3{1, 0, 0}), mgl64.Vec3{0, 0, -1}), 0.05)
}
