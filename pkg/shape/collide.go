// pkg/shape/collide.go
package shape

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/geom"
)

// ManifoldPoint is one world-space contact. Normal points from the first
// shape toward the second; Depth is the penetration along it.
type ManifoldPoint struct {
	Pos    mgl64.Vec3
	Normal mgl64.Vec3
	Depth  float64
}

// Manifold is the result of one pairwise collision test.
type Manifold struct {
	Normal mgl64.Vec3
	Points []ManifoldPoint
}

// Empty reports whether the shapes do not touch.
func (m Manifold) Empty() bool {
	return len(m.Points) == 0
}

// Flip swaps the roles of the two shapes.
func (m Manifold) Flip() Manifold {
	m.Normal = m.Normal.Mul(-1)
	for i := range m.Points {
		m.Points[i].Normal = m.Points[i].Normal.Mul(-1)
	}
	return m
}

// CollideFunc tests two instances whose types match its table slot.
type CollideFunc func(a, b Instance) Manifold

var dispatch [NumTypes][NumTypes]CollideFunc

func register(a, b Type, fn CollideFunc) {
	dispatch[a][b] = fn
}

func init() {
	register(TypeSphere, TypeSphere, collideSphereSphere)
	register(TypeSphere, TypeInfinitePlane, collideRoundWithPlane)
	register(TypeSphere, TypeTriangleMesh, collideRoundWithMesh)
	register(TypeSphere, TypeConvexMesh, collideRoundWithConvex)
	register(TypeSphere, TypeMultiSphere, collideRoundWithRound)

	register(TypeMultiSphere, TypeInfinitePlane, collideRoundWithPlane)
	register(TypeMultiSphere, TypeMultiSphere, collideRoundWithRound)
	register(TypeMultiSphere, TypeConvexMesh, collideRoundWithConvex)
	register(TypeMultiSphere, TypeTriangleMesh, collideRoundWithMesh)

	register(TypeConvexMesh, TypeInfinitePlane, collideConvexPlane)
	register(TypeConvexMesh, TypeConvexMesh, collideConvexConvex)
	register(TypeConvexMesh, TypeTriangleMesh, collideConvexMesh)

	for _, t := range []Type{TypeSphere, TypeTriangleMesh, TypeInfinitePlane, TypeMultiSphere, TypeConvexMesh} {
		register(TypeRay, t, collideRay)
	}
}

// Collide tests two instances. When only the mirrored pair is registered the
// arguments are swapped and the result flipped, so the normal always points
// from a toward b.
func Collide(a, b Instance) Manifold {
	ta, tb := a.Shape().Type(), b.Shape().Type()
	if ta >= NumTypes || tb >= NumTypes {
		return Manifold{}
	}
	if fn := dispatch[ta][tb]; fn != nil {
		return fn(a, b)
	}
	if fn := dispatch[tb][ta]; fn != nil {
		return fn(b, a).Flip()
	}
	return Manifold{}
}

// CanCollide reports whether any routine handles the pair.
func CanCollide(a, b Type) bool {
	if a >= NumTypes || b >= NumTypes {
		return false
	}
	return dispatch[a][b] != nil || dispatch[b][a] != nil
}

type roundInstance interface {
	hull() *roundHull
}

func collideSphereSphere(a, b Instance) Manifold {
	sa, sb := a.(*SphereInstance), b.(*SphereInstance)
	d := sb.Center.Sub(sa.Center)
	dist := d.Len()
	depth := sa.Radius + sb.Radius - dist
	if depth < 0 {
		return Manifold{}
	}
	n := mgl64.Vec3{0, 1, 0}
	if dist > geom.Epsilon {
		n = d.Mul(1 / dist)
	}
	return Manifold{Normal: n, Points: []ManifoldPoint{{
		Pos:    sa.Center.Add(n.Mul(sa.Radius - depth/2)),
		Normal: n,
		Depth:  depth,
	}}}
}

func collideRoundWithPlane(a, b Instance) Manifold {
	return collideRoundPlane(a.(roundInstance).hull(), b.(*PlaneInstance).Plane)
}

func collideRoundWithRound(a, b Instance) Manifold {
	return collideRound(a.(roundInstance).hull(), b.(roundInstance).hull())
}

func collideRoundWithConvex(a, b Instance) Manifold {
	return collideRoundPolytope(a.(roundInstance).hull(), &b.(*ConvexInstance).polytope)
}

func collideRoundWithMesh(a, b Instance) Manifold {
	rh := a.(roundInstance).hull()
	return b.(*TriangleMeshInstance).collideEach(a.AABB(), func(tri *polytope) Manifold {
		return collideRoundPolytope(rh, tri)
	})
}

func collideConvexPlane(a, b Instance) Manifold {
	ci := a.(*ConvexInstance)
	pl := b.(*PlaneInstance).Plane
	n := pl.Normal.Mul(-1)
	m := Manifold{Normal: n}
	for _, v := range ci.verts {
		depth := -pl.SignedDistance(v)
		if depth < 0 {
			continue
		}
		m.Points = append(m.Points, ManifoldPoint{
			Pos:    v.Sub(n.Mul(depth / 2)),
			Normal: n,
			Depth:  depth,
		})
	}
	return m
}

func collideConvexConvex(a, b Instance) Manifold {
	return collidePolytopes(&a.(*ConvexInstance).polytope, &b.(*ConvexInstance).polytope)
}

func collideConvexMesh(a, b Instance) Manifold {
	ci := a.(*ConvexInstance)
	return b.(*TriangleMeshInstance).collideEach(ci.AABB(), func(tri *polytope) Manifold {
		return collidePolytopes(&ci.polytope, tri)
	})
}

// collideRay casts the segment swept by a ray body this step and reports the
// first surface it enters.
func collideRay(a, b Instance) Manifold {
	ri := a.(*RayInstance)
	seg := ri.Segment()
	if geom.LengthSquared(seg.Direction) < geom.Epsilon {
		return Manifold{}
	}
	for _, hit := range b.RayTest(seg) {
		if hit.T > 1 {
			break
		}
		along := hit.Normal.Dot(seg.Direction)
		if along >= 0 {
			continue
		}
		n := hit.Normal.Mul(-1)
		return Manifold{Normal: n, Points: []ManifoldPoint{{
			Pos:    hit.Pos,
			Normal: n,
			Depth:  (1 - hit.T) * -along,
		}}}
	}
	return Manifold{}
}
