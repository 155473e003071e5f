// pkg/shape/trianglemesh.go
package shape

import (
	"io"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/geom"
	"github.com/opd-ai/go-rigid/pkg/render"
)

// TriangleMesh is static triangle soup geometry. Indices hold three vertex
// indices per triangle with counter-clockwise winding seen from the front.
type TriangleMesh struct {
	Vertices []mgl64.Vec3
	Indices  []uint32

	once   sync.Once
	tris   []triangleCache
	bounds geom.AABB
}

// triangleCache holds the per-triangle terms used by ray tests.
type triangleCache struct {
	a, e1, e2     mgl64.Vec3
	plane         geom.Plane
	d00, d01, d11 float64
	invDenom      float64
	ok            bool
}

// NewTriangleMesh creates a mesh; indices beyond the vertex list are ignored.
func NewTriangleMesh(vertices []mgl64.Vec3, indices []uint32) *TriangleMesh {
	return &TriangleMesh{Vertices: vertices, Indices: indices}
}

// TriangleCount returns the number of complete index triples.
func (tm *TriangleMesh) TriangleCount() int {
	return len(tm.Indices) / 3
}

// Triangle returns the local-space corners of triangle i.
func (tm *TriangleMesh) Triangle(i int) (a, b, c mgl64.Vec3, ok bool) {
	i0, i1, i2 := int(tm.Indices[3*i]), int(tm.Indices[3*i+1]), int(tm.Indices[3*i+2])
	n := len(tm.Vertices)
	if i0 >= n || i1 >= n || i2 >= n {
		return a, b, c, false
	}
	return tm.Vertices[i0], tm.Vertices[i1], tm.Vertices[i2], true
}

// cache builds the per-triangle terms once. The collision phase reads the
// mesh from several goroutines.
func (tm *TriangleMesh) cache() []triangleCache {
	tm.once.Do(func() {
		tm.bounds = geom.AABBFromPoints(tm.Vertices...)
		tm.tris = make([]triangleCache, tm.TriangleCount())
		for i := range tm.tris {
			a, b, c, ok := tm.Triangle(i)
			if !ok {
				continue
			}
			tc := triangleCache{a: a, e1: b.Sub(a), e2: c.Sub(a)}
			tc.plane, tc.ok = geom.PlaneFromTriangle(a, b, c)
			tc.d00 = tc.e1.Dot(tc.e1)
			tc.d01 = tc.e1.Dot(tc.e2)
			tc.d11 = tc.e2.Dot(tc.e2)
			den := tc.d00*tc.d11 - tc.d01*tc.d01
			if den < geom.Epsilon {
				tc.ok = false
			} else {
				tc.invDenom = 1 / den
			}
			tm.tris[i] = tc
		}
	})
	return tm.tris
}

func (tm *TriangleMesh) Type() Type    { return TypeTriangleMesh }
func (tm *TriangleMesh) CanMove() bool { return false }

func (tm *TriangleMesh) ComputeMassInfo() MassInfo {
	tm.cache()
	return BoxMassInfo(tm.bounds)
}

func (tm *TriangleMesh) AABB(xform geom.Transform) geom.AABB {
	tm.cache()
	return tm.bounds.Transform(xform)
}

func (tm *TriangleMesh) Instantiate(xform geom.Transform) Instance {
	tris := tm.cache()
	ti := &TriangleMeshInstance{shape: tm, xform: xform, box: geom.EmptyAABB()}
	ti.tris = make([]worldTriangle, 0, len(tris))
	for i, tc := range tris {
		if !tc.ok {
			continue
		}
		a, b, c, _ := tm.Triangle(i)
		wt := worldTriangle{
			a:      xform.Apply(a),
			b:      xform.Apply(b),
			c:      xform.Apply(c),
			normal: xform.ApplyDir(tc.plane.Normal),
		}
		wt.box = geom.AABBFromPoints(wt.a, wt.b, wt.c)
		ti.box = ti.box.Union(wt.box)
		ti.tris = append(ti.tris, wt)
	}
	return ti
}

func (tm *TriangleMesh) RayTest(ray geom.Ray, xform geom.Transform) []RayResult {
	local := ray.InvTransform(xform)
	var hits hitList
	for _, tc := range tm.cache() {
		if !tc.ok {
			continue
		}
		t, ok := tc.plane.IntersectRay(local)
		if !ok || t < 0 {
			continue
		}
		v2 := local.At(t).Sub(tc.a)
		d20 := v2.Dot(tc.e1)
		d21 := v2.Dot(tc.e2)
		v := (tc.d11*d20 - tc.d01*d21) * tc.invDenom
		w := (tc.d00*d21 - tc.d01*d20) * tc.invDenom
		const eps = 1e-9
		if v < -eps || w < -eps || v+w > 1+eps {
			continue
		}
		hits.add(ray, t, xform.ApplyDir(tc.plane.Normal))
	}
	return hits.sorted(geom.Epsilon)
}

func (tm *TriangleMesh) Write(w io.Writer) error {
	if err := writeUint32(w, uint32(len(tm.Vertices))); err != nil {
		return err
	}
	for _, v := range tm.Vertices {
		if err := writeVec3(w, v); err != nil {
			return err
		}
	}
	if err := writeUint32(w, uint32(len(tm.Indices))); err != nil {
		return err
	}
	for _, idx := range tm.Indices {
		if err := writeUint32(w, idx); err != nil {
			return err
		}
	}
	return nil
}

func (tm *TriangleMesh) Read(r io.Reader) Status {
	nv, st := readCount(r)
	if st != StatusOK {
		return st
	}
	verts := make([]mgl64.Vec3, nv)
	for i := range verts {
		if verts[i], st = readVec3(r); st != StatusOK {
			return st
		}
	}
	ni, st := readCount(r)
	if st != StatusOK {
		return st
	}
	if ni%3 != 0 {
		return StatusInvalid
	}
	indices := make([]uint32, ni)
	for i := range indices {
		if indices[i], st = readUint32(r); st != StatusOK {
			return st
		}
		if int(indices[i]) >= nv {
			return StatusInvalid
		}
	}
	tm.Vertices, tm.Indices = verts, indices
	tm.tris = nil
	tm.once = sync.Once{}
	return StatusOK
}

func (tm *TriangleMesh) AppendDebugDraw(xform geom.Transform, out *[]render.DrawRequest) {
	for i := 0; i < tm.TriangleCount(); i++ {
		a, b, c, ok := tm.Triangle(i)
		if !ok {
			continue
		}
		*out = append(*out, render.DrawRequest{
			Kind:   render.KindPolygon,
			Points: []mgl64.Vec3{xform.Apply(a), xform.Apply(b), xform.Apply(c)},
		})
	}
}

type worldTriangle struct {
	a, b, c mgl64.Vec3
	normal  mgl64.Vec3
	box     geom.AABB
}

// TriangleMeshInstance is a triangle mesh placed in the world.
type TriangleMeshInstance struct {
	shape *TriangleMesh
	xform geom.Transform
	box   geom.AABB
	tris  []worldTriangle
}

func (ti *TriangleMeshInstance) Shape() Shape              { return ti.shape }
func (ti *TriangleMeshInstance) Transform() geom.Transform { return ti.xform }
func (ti *TriangleMeshInstance) AABB() geom.AABB           { return ti.box }

func (ti *TriangleMeshInstance) RayTest(ray geom.Ray) []RayResult {
	return ti.shape.RayTest(ray, ti.xform)
}

// collideEach runs fn against every triangle overlapping box and merges the
// results. The merged normal is the one of the deepest point.
func (ti *TriangleMeshInstance) collideEach(box geom.AABB, fn func(*polytope) Manifold) Manifold {
	var out Manifold
	deepest := -1.0
	for _, t := range ti.tris {
		if !t.box.Intersects(box) {
			continue
		}
		m := fn(trianglePolytope(t.a, t.b, t.c, t.normal))
		for _, p := range m.Points {
			if p.Depth > deepest {
				deepest = p.Depth
				out.Normal = p.Normal
			}
		}
		out.Points = append(out.Points, m.Points...)
	}
	return out
}
