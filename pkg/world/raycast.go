// pkg/world/raycast.go
package world

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-rigid/pkg/body"
	"github.com/opd-ai/go-rigid/pkg/broadphase"
	"github.com/opd-ai/go-rigid/pkg/geom"
	"github.com/opd-ai/go-rigid/pkg/shape"
)

// RaycastHit is one surface crossing reported by Raycast.
type RaycastHit struct {
	Body   body.Handle
	T      float64
	Pos    mgl64.Vec3
	Normal mgl64.Vec3
}

// RaycastFunc receives hits nearest first and returns false to stop.
type RaycastFunc func(hit RaycastHit) bool

// Raycast casts the segment origin + t*direction, t in [0, 1], against every
// body except ray bodies and reports each crossing in order of t. It returns
// the number of hits delivered.
func (w *World) Raycast(origin, direction mgl64.Vec3, fn RaycastFunc) int {
	if geom.LengthSquared(direction) < geom.Epsilon {
		return 0
	}
	ray := geom.Ray{Origin: origin, Direction: direction}
	rel := broadphase.NewRelevant()
	w.manager.GetRelevantObjects(ray.SegmentAABB(), rel)

	var hits []RaycastHit
	for t := range rel.ByType {
		if shape.Type(t) == shape.TypeRay {
			continue
		}
		for _, b := range rel.ByType[t] {
			inst := b.Instance()
			if inst == nil {
				continue
			}
			for _, r := range inst.RayTest(ray) {
				if r.T > 1 {
					break
				}
				hits = append(hits, RaycastHit{Body: b.Handle(), T: r.T, Pos: r.Pos, Normal: r.Normal})
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].T != hits[j].T {
			return hits[i].T < hits[j].T
		}
		return hits[i].Body.Less(hits[j].Body)
	})

	for i, h := range hits {
		if !fn(h) {
			return i + 1
		}
	}
	return len(hits)
}

// RaycastFirst returns the nearest hit of the segment, if any.
func (w *World) RaycastFirst(origin, direction mgl64.Vec3) (RaycastHit, bool) {
	var first RaycastHit
	found := false
	w.Raycast(origin, direction, func(h RaycastHit) bool {
		first, found = h, true
		return false
	})
	return first, found
}
