// pkg/shape/roundhull.go
package shape

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/geom"
)

// roundHull is the world-space convex hull of a set of spheres: the spheres
// themselves, the cone tubes joining pairs of them and the planes tangent to
// triples of them.
type roundHull struct {
	centers []mgl64.Vec3
	radii   []float64
	tubes   []worldTube
	planes  []worldFacet
}

type worldTube struct {
	i, j     int
	axis     mgl64.Vec3
	length   float64
	sin, cos float64
}

type worldFacet struct {
	i, j, k int
	plane   geom.Plane
}

func (h *roundHull) support(n mgl64.Vec3) float64 {
	best := math.Inf(-1)
	for i, c := range h.centers {
		if d := c.Dot(n) + h.radii[i]; d > best {
			best = d
		}
	}
	return best
}

func (h *roundHull) feature(n mgl64.Vec3, tol float64) []mgl64.Vec3 {
	level := h.support(n) - tol
	var out []mgl64.Vec3
	for i, c := range h.centers {
		if c.Dot(n)+h.radii[i] >= level {
			out = append(out, c.Add(n.Mul(h.radii[i])))
		}
	}
	return out
}

// tubeNormal returns the outward normal of tube t in the half-plane that
// contains p.
func (h *roundHull) tubeNormal(t worldTube, p mgl64.Vec3) (mgl64.Vec3, bool) {
	q := p.Sub(h.centers[t.i])
	w, ok := geom.Normalize(q.Sub(t.axis.Mul(q.Dot(t.axis))))
	if !ok {
		return mgl64.Vec3{}, false
	}
	return t.axis.Mul(t.sin).Add(w.Mul(t.cos)), true
}

// signedDistance returns the distance from p to the hull surface (negative
// inside) and the outward surface normal nearest p. It maximizes p·n - h(n)
// over the normals of every sub-part.
func (h *roundHull) signedDistance(p mgl64.Vec3) (float64, mgl64.Vec3) {
	best := math.Inf(-1)
	var normal mgl64.Vec3
	try := func(n mgl64.Vec3) {
		if d := p.Dot(n) - h.support(n); d > best {
			best, normal = d, n
		}
	}
	for _, c := range h.centers {
		if n, ok := geom.Normalize(p.Sub(c)); ok {
			try(n)
		}
	}
	for _, t := range h.tubes {
		if n, ok := h.tubeNormal(t, p); ok {
			try(n)
		}
	}
	for _, f := range h.planes {
		try(f.plane.Normal)
	}
	if math.IsInf(best, -1) {
		// p sits exactly on the only center
		normal = mgl64.Vec3{0, 1, 0}
		best = -h.radii[0]
	}
	return best, normal
}

// onSurface reports whether a point with outward normal n lies on the hull.
func (h *roundHull) onSurface(p, n mgl64.Vec3, tol float64) bool {
	return math.Abs(p.Dot(n)-h.support(n)) <= tol
}

func (h *roundHull) surfaceTolerance() float64 {
	var r float64
	for _, ri := range h.radii {
		r = math.Max(r, ri)
	}
	return 1e-7 + 1e-6*r
}

// rayTest intersects the ray with every sub-part and keeps crossings that lie
// on the hull.
func (h *roundHull) rayTest(ray geom.Ray) []RayResult {
	if len(h.centers) == 0 {
		return nil
	}
	tol := h.surfaceTolerance()
	var hits hitList
	keep := func(t float64, n mgl64.Vec3) {
		if t >= 0 && h.onSurface(ray.At(t), n, tol) {
			hits.add(ray, t, n)
		}
	}

	for i, c := range h.centers {
		t0, t1, ok := ray.IntersectSphere(c, h.radii[i])
		if !ok {
			continue
		}
		for _, t := range [2]float64{t0, t1} {
			if n, ok := geom.Normalize(ray.At(t).Sub(c)); ok {
				keep(t, n)
			}
		}
	}
	for _, tube := range h.tubes {
		for _, t := range h.rayTube(ray, tube) {
			if n, ok := h.tubeNormal(tube, ray.At(t)); ok {
				keep(t, n)
			}
		}
	}
	for _, f := range h.planes {
		n := f.plane.Normal
		a := h.centers[f.i].Add(n.Mul(h.radii[f.i]))
		b := h.centers[f.j].Add(n.Mul(h.radii[f.j]))
		c := h.centers[f.k].Add(n.Mul(h.radii[f.k]))
		if t, _, _, ok := ray.IntersectTriangle(a, b, c); ok {
			keep(t, n)
		}
	}
	return hits.sorted(tol)
}

// rayTube solves for the crossings of the ray with the lateral cone surface of
// tube t. With X = origin - c_i + s*dir, z = X·axis and rho the distance to
// the axis, the surface is z*sin + rho*cos = r_i.
func (h *roundHull) rayTube(ray geom.Ray, t worldTube) []float64 {
	ri, rj := h.radii[t.i], h.radii[t.j]
	x0 := ray.Origin.Sub(h.centers[t.i])
	d := ray.Direction
	a := d.Dot(d)
	b := x0.Dot(d)
	c := x0.Dot(x0)
	z0 := x0.Dot(t.axis)
	dz := d.Dot(t.axis)
	cos2 := t.cos * t.cos
	sin2 := t.sin * t.sin

	qa := cos2*(a-dz*dz) - sin2*dz*dz
	qb := 2*cos2*(b-z0*dz) + 2*ri*t.sin*dz - 2*sin2*z0*dz
	qc := cos2*(c-z0*z0) - (ri-t.sin*z0)*(ri-t.sin*z0)

	var roots []float64
	switch {
	case math.Abs(qa) < geom.Epsilon:
		if math.Abs(qb) < geom.Epsilon {
			return nil
		}
		roots = append(roots, -qc/qb)
	default:
		disc := qb*qb - 4*qa*qc
		if disc < 0 {
			return nil
		}
		sq := math.Sqrt(disc)
		roots = append(roots, (-qb-sq)/(2*qa), (-qb+sq)/(2*qa))
	}

	lo := ri * t.sin
	hi := t.length + rj*t.sin
	out := roots[:0]
	for _, s := range roots {
		z := z0 + s*dz
		if z < lo-geom.Epsilon || z > hi+geom.Epsilon {
			continue
		}
		if ri-z*t.sin < 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}

// roundAxes collects separating-axis candidates between two round hulls.
func roundAxes(s *axisSearch, a, b *roundHull) {
	for _, ca := range a.centers {
		for _, cb := range b.centers {
			s.try(cb.Sub(ca), 0)
		}
	}
	for _, f := range a.planes {
		s.try(f.plane.Normal, 0)
	}
	for _, f := range b.planes {
		s.try(f.plane.Normal, 0)
	}
	for _, ta := range a.tubes {
		for _, cb := range b.centers {
			if n, ok := a.tubeNormal(ta, cb); ok {
				s.try(n, 0)
			}
		}
		for _, tb := range b.tubes {
			s.try(ta.axis.Cross(tb.axis), 0)
			p, q := geom.ClosestPointsSegments(a.centers[ta.i], a.centers[ta.j], b.centers[tb.i], b.centers[tb.j])
			s.try(q.Sub(p), 0)
		}
	}
	for _, tb := range b.tubes {
		for _, ca := range a.centers {
			if n, ok := b.tubeNormal(tb, ca); ok {
				s.try(n, 0)
			}
		}
	}
}

// roundPolytopeAxes collects separating-axis candidates between a round hull
// and a polytope.
func roundPolytopeAxes(s *axisSearch, a *roundHull, b *polytope) {
	for _, n := range b.normals {
		s.try(n, 0)
	}
	for _, f := range a.planes {
		s.try(f.plane.Normal, 0)
	}
	for _, c := range a.centers {
		s.try(b.closestPoint(c).Sub(c), 0)
	}
	for _, t := range a.tubes {
		for _, v := range b.verts {
			if n, ok := a.tubeNormal(t, v); ok {
				s.try(n, 0)
			}
		}
		for k, e := range b.edgeIdx {
			s.try(t.axis.Cross(b.edges[k]), edgeAxisBias)
			p, q := geom.ClosestPointsSegments(a.centers[t.i], a.centers[t.j], b.verts[e[0]], b.verts[e[1]])
			s.try(q.Sub(p), 0)
		}
	}
}

func collideRound(a, b *roundHull) Manifold {
	s := newAxisSearch(a, b)
	roundAxes(s, a, b)
	n, depth, ok := s.result()
	if !ok {
		return Manifold{}
	}
	return featureContacts(a, b, n, depth)
}

func collideRoundPolytope(a *roundHull, b *polytope) Manifold {
	s := newAxisSearch(a, b)
	roundPolytopeAxes(s, a, b)
	n, depth, ok := s.result()
	if !ok {
		return Manifold{}
	}
	return featureContacts(a, b, n, depth)
}

// collideRoundPlane reports every sphere of the hull that dips below the plane.
// The normal points from the hull into the plane's solid side.
func collideRoundPlane(a *roundHull, pl geom.Plane) Manifold {
	n := pl.Normal.Mul(-1)
	m := Manifold{Normal: n}
	for i, c := range a.centers {
		depth := a.radii[i] - pl.SignedDistance(c)
		if depth < 0 {
			continue
		}
		m.Points = append(m.Points, ManifoldPoint{
			Pos:    c.Add(n.Mul(a.radii[i] - depth/2)),
			Normal: n,
			Depth:  depth,
		})
	}
	return m
}
