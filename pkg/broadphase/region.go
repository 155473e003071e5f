// pkg/broadphase/region.go
package broadphase

import (
	"github.com/opd-ai/go-rigid/pkg/body"
	"github.com/opd-ai/go-rigid/pkg/geom"
	"github.com/opd-ai/go-rigid/pkg/shape"
)

// Bucket is the activity class a region files a body under.
type Bucket uint8

const (
	BucketStatic Bucket = iota
	BucketActive
	BucketInactive

	numBuckets
)

// String returns the bucket name.
func (k Bucket) String() string {
	switch k {
	case BucketStatic:
		return "static"
	case BucketActive:
		return "active"
	case BucketInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// BucketOf returns the bucket matching the body's current state.
func BucketOf(b *body.RigidBody) Bucket {
	switch {
	case !b.CanMove():
		return BucketStatic
	case b.IsActive():
		return BucketActive
	default:
		return BucketInactive
	}
}

type bodySet map[body.Handle]*body.RigidBody

// Region is one cell of the broad phase. It holds references to the bodies
// whose bounds touch it, split by shape type and bucket.
type Region struct {
	key       body.RegionKey
	bounds    geom.AABB
	unbounded bool
	sets      [shape.NumTypes][numBuckets]bodySet
	count     int
}

func newRegion(key body.RegionKey, bounds geom.AABB, unbounded bool) *Region {
	r := &Region{key: key, bounds: bounds, unbounded: unbounded}
	for t := range r.sets {
		for k := range r.sets[t] {
			r.sets[t][k] = make(bodySet)
		}
	}
	return r
}

// Key returns the grid coordinates of the region.
func (r *Region) Key() body.RegionKey { return r.key }

// Bounds returns the space covered by the region.
func (r *Region) Bounds() geom.AABB { return r.bounds }

// Unbounded reports whether this is the region for infinite shapes.
func (r *Region) Unbounded() bool { return r.unbounded }

// Len returns the number of bodies in the region.
func (r *Region) Len() int { return r.count }

// BucketLen returns the number of bodies of type t in bucket k.
func (r *Region) BucketLen(t shape.Type, k Bucket) int {
	if t >= shape.NumTypes || k >= numBuckets {
		return 0
	}
	return len(r.sets[t][k])
}

// Contains reports whether the region holds h.
func (r *Region) Contains(b *body.RigidBody) bool {
	t := b.Shape().Type()
	for k := range r.sets[t] {
		if _, ok := r.sets[t][k][b.Handle()]; ok {
			return true
		}
	}
	return false
}

// AddRigidBody files b under its shape type and current bucket and records
// the membership on the body. Adding a body twice is a no-op.
func (r *Region) AddRigidBody(b *body.RigidBody) bool {
	if b.Shape() == nil || r.Contains(b) {
		return false
	}
	r.sets[b.Shape().Type()][BucketOf(b)][b.Handle()] = b
	b.AddRegion(r.key)
	r.count++
	return true
}

// RemoveRigidBody drops b and reports whether this was its last region.
func (r *Region) RemoveRigidBody(b *body.RigidBody) (last bool) {
	if b.Shape() == nil || !r.Contains(b) {
		return false
	}
	sets := &r.sets[b.Shape().Type()]
	for k := range sets {
		delete(sets[k], b.Handle())
	}
	r.count--
	return b.RemoveRegion(r.key)
}

// refile moves b to the bucket matching its state.
func (r *Region) refile(b *body.RigidBody) {
	sets := &r.sets[b.Shape().Type()]
	for k := range sets {
		delete(sets[k], b.Handle())
	}
	sets[BucketOf(b)][b.Handle()] = b
}

// collect appends bodies of every bucket whose bounds overlap box. Bodies
// already in seen are skipped.
func (r *Region) collect(box geom.AABB, out *Relevant) {
	for t := range r.sets {
		for k := range r.sets[t] {
			for h, b := range r.sets[t][k] {
				if _, dup := out.seen[h]; dup {
					continue
				}
				if !r.unbounded && !b.AABB().Intersects(box) {
					continue
				}
				out.seen[h] = struct{}{}
				out.ByType[t] = append(out.ByType[t], b)
			}
		}
	}
}
