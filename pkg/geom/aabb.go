// pkg/geom/aabb.go
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB is an axis-aligned bounding box. The zero value is a degenerate box at
// the origin; use EmptyAABB for an accumulator.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// EmptyAABB returns an inverted box that any Expand call will overwrite.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: mgl64.Vec3{inf, inf, inf},
		Max: mgl64.Vec3{-inf, -inf, -inf},
	}
}

// InfiniteAABB returns a box covering all of space.
func InfiniteAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: mgl64.Vec3{-inf, -inf, -inf},
		Max: mgl64.Vec3{inf, inf, inf},
	}
}

// AABBFromPoints returns the smallest box containing every point.
func AABBFromPoints(points ...mgl64.Vec3) AABB {
	box := EmptyAABB()
	for _, p := range points {
		box = box.Expand(p)
	}
	return box
}

// AABBAround returns the box of half size r around center.
func AABBAround(center mgl64.Vec3, r float64) AABB {
	ext := mgl64.Vec3{r, r, r}
	return AABB{Min: center.Sub(ext), Max: center.Add(ext)}
}

// IsEmpty reports whether the box has been expanded by nothing.
func (b AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// IsInfinite reports whether any bound of the box is unbounded.
func (b AABB) IsInfinite() bool {
	for i := 0; i < 3; i++ {
		if math.IsInf(b.Min[i], 0) || math.IsInf(b.Max[i], 0) {
			return true
		}
	}
	return false
}

// Expand returns the box grown to contain p.
func (b AABB) Expand(p mgl64.Vec3) AABB {
	for i := 0; i < 3; i++ {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
	return b
}

// Union returns the box containing both boxes.
func (b AABB) Union(o AABB) AABB {
	if o.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return o
	}
	return b.Expand(o.Min).Expand(o.Max)
}

// Grow returns the box expanded by margin on every side.
func (b AABB) Grow(margin float64) AABB {
	ext := mgl64.Vec3{margin, margin, margin}
	return AABB{Min: b.Min.Sub(ext), Max: b.Max.Add(ext)}
}

// Intersects reports whether the two boxes overlap (touching counts).
func (b AABB) Intersects(o AABB) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return b.Min[0] <= o.Max[0] && b.Max[0] >= o.Min[0] &&
		b.Min[1] <= o.Max[1] && b.Max[1] >= o.Min[1] &&
		b.Min[2] <= o.Max[2] && b.Max[2] >= o.Min[2]
}

// Contains reports whether p is inside the box.
func (b AABB) Contains(p mgl64.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// Center returns the midpoint of the box.
func (b AABB) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the extent of the box along each axis.
func (b AABB) Size() mgl64.Vec3 {
	if b.IsEmpty() {
		return mgl64.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// Volume returns the volume of the box, zero when empty.
func (b AABB) Volume() float64 {
	s := b.Size()
	return s[0] * s[1] * s[2]
}

// Transform returns the box enclosing b after applying xform.
func (b AABB) Transform(xform Transform) AABB {
	if b.IsEmpty() {
		return b
	}
	if b.IsInfinite() {
		return InfiniteAABB()
	}
	out := EmptyAABB()
	for i := 0; i < 8; i++ {
		corner := mgl64.Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			corner[0] = b.Max[0]
		}
		if i&2 != 0 {
			corner[1] = b.Max[1]
		}
		if i&4 != 0 {
			corner[2] = b.Max[2]
		}
		out = out.Expand(xform.Apply(corner))
	}
	return out
}

// IntersectRay returns the parameter range [tmin, tmax] over which the ray is
// inside the box, clamped to t >= 0.
func (b AABB) IntersectRay(ray Ray) (tmin, tmax float64, ok bool) {
	if b.IsEmpty() {
		return 0, 0, false
	}
	tmin, tmax = 0, math.Inf(1)
	for i := 0; i < 3; i++ {
		if math.Abs(ray.Direction[i]) < Epsilon {
			if ray.Origin[i] < b.Min[i] || ray.Origin[i] > b.Max[i] {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / ray.Direction[i]
		t1 := (b.Min[i] - ray.Origin[i]) * inv
		t2 := (b.Max[i] - ray.Origin[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, 0, false
		}
	}
	return tmin, tmax, true
}
