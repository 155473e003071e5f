// pkg/shape/sat.go
package shape

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/geom"
)

const (
	// featureTolerance is how far below the support level a point may sit and
	// still belong to the supporting feature.
	featureTolerance = 1e-3
	// edgeAxisBias makes face axes win ties against edge×edge axes.
	edgeAxisBias = 1e-6
)

// supporter is a convex set described by its support function.
type supporter interface {
	// support returns max over the set of x·n.
	support(n mgl64.Vec3) float64
	// feature returns the points whose projection on n lies within tol of
	// support(n).
	feature(n mgl64.Vec3, tol float64) []mgl64.Vec3
}

// polytope is a convex polyhedron in world space with its separating-axis
// candidates.
type polytope struct {
	verts   []mgl64.Vec3
	normals []mgl64.Vec3
	faces   [][]int
	edgeIdx [][2]int
	edges   []mgl64.Vec3
}

func newPolytope(verts []mgl64.Vec3, normals []mgl64.Vec3, faces [][]int, edgeIdx [][2]int) polytope {
	p := polytope{verts: verts, normals: normals, faces: faces}
	for _, e := range edgeIdx {
		if d, ok := geom.Normalize(verts[e[1]].Sub(verts[e[0]])); ok {
			p.edgeIdx = append(p.edgeIdx, e)
			p.edges = append(p.edges, d)
		}
	}
	return p
}

func (p *polytope) support(n mgl64.Vec3) float64 {
	best := math.Inf(-1)
	for _, v := range p.verts {
		if d := v.Dot(n); d > best {
			best = d
		}
	}
	return best
}

func (p *polytope) feature(n mgl64.Vec3, tol float64) []mgl64.Vec3 {
	level := p.support(n) - tol
	var out []mgl64.Vec3
	for _, v := range p.verts {
		if v.Dot(n) >= level {
			out = append(out, v)
		}
	}
	return out
}

// closestPoint returns the point of the polytope surface nearest to x.
func (p *polytope) closestPoint(x mgl64.Vec3) mgl64.Vec3 {
	best := x
	bestDist := math.Inf(1)
	for _, f := range p.faces {
		a := p.verts[f[0]]
		for k := 1; k+1 < len(f); k++ {
			q := geom.ClosestPointOnTriangle(x, a, p.verts[f[k]], p.verts[f[k+1]])
			if d := geom.LengthSquared(q.Sub(x)); d < bestDist {
				best, bestDist = q, d
			}
		}
	}
	return best
}

var (
	triangleFaces = [][]int{{0, 1, 2}}
	triangleEdges = [][2]int{{0, 1}, {1, 2}, {2, 0}}
)

// trianglePolytope builds a two-sided polytope from a world-space triangle.
func trianglePolytope(a, b, c, normal mgl64.Vec3) *polytope {
	tp := newPolytope([]mgl64.Vec3{a, b, c}, []mgl64.Vec3{normal}, triangleFaces, triangleEdges)
	return &tp
}

// axisSearch tracks the least-penetrating axis seen so far.
type axisSearch struct {
	a, b      supporter
	best      mgl64.Vec3
	depth     float64
	separated bool
}

func newAxisSearch(a, b supporter) *axisSearch {
	return &axisSearch{a: a, b: b, depth: math.Inf(1)}
}

// try tests axis d in both directions. Overlap along n is
// support_A(n) - min_B(n); a negative overlap separates the sets.
func (s *axisSearch) try(d mgl64.Vec3, bias float64) {
	if s.separated {
		return
	}
	n, ok := geom.Normalize(d)
	if !ok {
		return
	}
	for _, dir := range [2]mgl64.Vec3{n, n.Mul(-1)} {
		depth := s.a.support(dir) + s.b.support(dir.Mul(-1))
		if depth < 0 {
			s.separated = true
			return
		}
		if depth+bias < s.depth {
			s.depth = depth + bias
			s.best = dir
		}
	}
}

// result returns the contact normal from A toward B and the penetration depth.
func (s *axisSearch) result() (mgl64.Vec3, float64, bool) {
	if s.separated || math.IsInf(s.depth, 1) {
		return mgl64.Vec3{}, 0, false
	}
	depth := s.a.support(s.best) + s.b.support(s.best.Mul(-1))
	return s.best, depth, true
}

// collidePolytopes runs the separating-axis test over face normals of both
// sides and every edge×edge cross product.
func collidePolytopes(a, b *polytope) Manifold {
	s := newAxisSearch(a, b)
	for _, n := range a.normals {
		s.try(n, 0)
	}
	for _, n := range b.normals {
		s.try(n, 0)
	}
	for _, ea := range a.edges {
		for _, eb := range b.edges {
			s.try(ea.Cross(eb), edgeAxisBias)
		}
	}
	n, depth, ok := s.result()
	if !ok {
		return Manifold{}
	}
	return featureContacts(a, b, n, depth)
}

// featureContacts builds contact points from the supporting features of A
// along n and of B along -n. Features with one, two or more points are treated
// as vertices, edges and polygons respectively.
func featureContacts(a, b supporter, n mgl64.Vec3, depth float64) Manifold {
	featA := a.feature(n, featureTolerance)
	featB := b.feature(n.Mul(-1), featureTolerance)
	m := Manifold{Normal: n}
	if len(featA) == 0 || len(featB) == 0 {
		return m
	}

	hA := a.support(n)
	hB := -b.support(n.Mul(-1))
	mid := (hA + hB) / 2
	u, v := geom.Basis(n)
	lift := func(p mgl64.Vec2) mgl64.Vec3 {
		return u.Mul(p[0]).Add(v.Mul(p[1])).Add(n.Mul(mid))
	}
	polyA, ptsA := projectFeature(featA, u, v)
	polyB, ptsB := projectFeature(featB, u, v)

	add := func(p mgl64.Vec3) {
		m.Points = append(m.Points, ManifoldPoint{Pos: p, Normal: n, Depth: depth})
	}
	switch {
	case len(polyA) == 1:
		add(ptsA[0].Sub(n.Mul(depth / 2)))
	case len(polyB) == 1:
		add(ptsB[0].Add(n.Mul(depth / 2)))
	case len(polyA) == 2 && len(polyB) == 2:
		c1, c2 := geom.ClosestPointsSegments(ptsA[0], ptsA[1], ptsB[0], ptsB[1])
		add(c1.Add(c2).Mul(0.5))
	case len(polyA) == 2:
		if p, q, ok := geom.ClipSegment(polyA[0], polyA[1], polyB); ok {
			add(lift(p))
			if q.Sub(p).Len() > featureTolerance {
				add(lift(q))
			}
		}
	case len(polyB) == 2:
		if p, q, ok := geom.ClipSegment(polyB[0], polyB[1], polyA); ok {
			add(lift(p))
			if q.Sub(p).Len() > featureTolerance {
				add(lift(q))
			}
		}
	default:
		for _, p := range geom.ClipPolygon(polyA, polyB) {
			add(lift(p))
		}
	}
	if len(m.Points) == 0 {
		// numerically disjoint features: fall back to the deepest point of A
		add(featA[0].Sub(n.Mul(depth / 2)))
	}
	return m
}

// projectFeature reduces a feature to its convex outline in the (u, v) plane,
// returning the 2D ring and the matching 3D points.
func projectFeature(pts []mgl64.Vec3, u, v mgl64.Vec3) ([]mgl64.Vec2, []mgl64.Vec3) {
	poly := geom.NewConvexPoly(featureTolerance)
	for i, p := range pts {
		poly.Insert(mgl64.Vec2{p.Dot(u), p.Dot(v)}, i)
	}
	tags := poly.Tags()
	out := make([]mgl64.Vec3, len(tags))
	for i, t := range tags {
		out[i] = pts[t]
	}
	return poly.Points(), out
}
