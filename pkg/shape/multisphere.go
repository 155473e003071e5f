// pkg/shape/multisphere.go
package shape

import (
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/geom"
	"github.com/opd-ai/go-rigid/pkg/render"
)

const (
	multiSphereContainTolerance = 1e-9
	multiSpherePlaneTolerance   = 1e-7
	multiSphereMergeTolerance   = 1e-6
)

// SubSphere is one ball of a MultiSphere in local coordinates.
type SubSphere struct {
	Center mgl64.Vec3
	Radius float64
}

// Tube is the cone surface tangent to two spheres. Sin and Cos describe the
// tilt of the surface normal toward Axis.
type Tube struct {
	I, J   int
	Axis   mgl64.Vec3
	Length float64
	Sin    float64
	Cos    float64
}

// TangentPlane touches spheres I, J and K with every other sphere behind it.
type TangentPlane struct {
	I, J, K int
	Plane   geom.Plane
}

// MultiSphere is the convex hull of a set of spheres (capsules, lozenges,
// rounded polyhedra).
type MultiSphere struct {
	Spheres []SubSphere
	Tubes   []Tube
	Planes  []TangentPlane
	bounds  geom.AABB
}

// NewMultiSphere builds the hull of spheres. Spheres contained in another are
// pruned.
func NewMultiSphere(spheres []SubSphere) *MultiSphere {
	ms := &MultiSphere{}
	ms.build(spheres)
	return ms
}

func contains(outer, inner SubSphere) bool {
	return geom.Distance(outer.Center, inner.Center)+inner.Radius <= outer.Radius+multiSphereContainTolerance
}

func (ms *MultiSphere) build(spheres []SubSphere) {
	ms.Spheres, ms.Tubes, ms.Planes = nil, nil, nil
	ms.bounds = geom.EmptyAABB()

	removed := make([]bool, len(spheres))
	for i := range spheres {
		for j := range spheres {
			if i != j && !removed[j] && contains(spheres[j], spheres[i]) {
				removed[i] = true
				break
			}
		}
	}
	for i, s := range spheres {
		if !removed[i] {
			ms.Spheres = append(ms.Spheres, s)
			ms.bounds = ms.bounds.Union(geom.AABBAround(s.Center, s.Radius))
		}
	}

	for i := range ms.Spheres {
		for j := i + 1; j < len(ms.Spheres); j++ {
			if t, ok := makeTube(ms.Spheres, i, j); ok {
				ms.Tubes = append(ms.Tubes, t)
			}
		}
	}

	n := len(ms.Spheres)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				ms.addTangentPlanes(i, j, k)
			}
		}
	}
}

func makeTube(spheres []SubSphere, i, j int) (Tube, bool) {
	d := spheres[j].Center.Sub(spheres[i].Center)
	length := d.Len()
	if length < geom.Epsilon {
		return Tube{}, false
	}
	sin := (spheres[i].Radius - spheres[j].Radius) / length
	if math.Abs(sin) >= 1 {
		return Tube{}, false
	}
	return Tube{
		I: i, J: j,
		Axis:   d.Mul(1 / length),
		Length: length,
		Sin:    sin,
		Cos:    math.Sqrt(1 - sin*sin),
	}, true
}

// addTangentPlanes solves n·(c_j-c_i) = r_i-r_j and n·(c_k-c_i) = r_i-r_k for
// unit n. There are up to two solutions, one per side of the triangle.
func (ms *MultiSphere) addTangentPlanes(i, j, k int) {
	si, sj, sk := ms.Spheres[i], ms.Spheres[j], ms.Spheres[k]
	e1 := sj.Center.Sub(si.Center)
	e2 := sk.Center.Sub(si.Center)
	g11, g12, g22 := e1.Dot(e1), e1.Dot(e2), e2.Dot(e2)
	det := g11*g22 - g12*g12
	if det < geom.Epsilon {
		return
	}
	r1 := si.Radius - sj.Radius
	r2 := si.Radius - sk.Radius
	x := (r1*g22 - r2*g12) / det
	y := (g11*r2 - g12*r1) / det
	p := e1.Mul(x).Add(e2.Mul(y))
	m := e1.Cross(e2)
	pp := p.Dot(p)
	if pp >= 1 {
		return
	}
	lambda := math.Sqrt((1 - pp) / m.Dot(m))
	for _, sign := range [2]float64{1, -1} {
		n, ok := geom.Normalize(p.Add(m.Mul(sign * lambda)))
		if !ok {
			continue
		}
		pl := geom.Plane{Normal: n, Offset: n.Dot(si.Center) + si.Radius}
		if ms.protrudes(pl) || ms.hasPlane(pl) {
			continue
		}
		ms.Planes = append(ms.Planes, TangentPlane{I: i, J: j, K: k, Plane: pl})
	}
}

func (ms *MultiSphere) protrudes(pl geom.Plane) bool {
	for _, s := range ms.Spheres {
		if pl.SignedDistance(s.Center)+s.Radius > multiSpherePlaneTolerance {
			return true
		}
	}
	return false
}

func (ms *MultiSphere) hasPlane(pl geom.Plane) bool {
	for _, existing := range ms.Planes {
		if existing.Plane.ApproxEqual(pl, multiSphereMergeTolerance, multiSphereMergeTolerance) {
			return true
		}
	}
	return false
}

func (ms *MultiSphere) Type() Type    { return TypeMultiSphere }
func (ms *MultiSphere) CanMove() bool { return true }

func (ms *MultiSphere) ComputeMassInfo() MassInfo {
	return BoxMassInfo(ms.bounds)
}

func (ms *MultiSphere) AABB(xform geom.Transform) geom.AABB {
	box := geom.EmptyAABB()
	for _, s := range ms.Spheres {
		box = box.Union(geom.AABBAround(xform.Apply(s.Center), s.Radius))
	}
	return box
}

func (ms *MultiSphere) Instantiate(xform geom.Transform) Instance {
	mi := &MultiSphereInstance{shape: ms, xform: xform, box: geom.EmptyAABB()}
	rh := &mi.rh
	rh.centers = make([]mgl64.Vec3, len(ms.Spheres))
	rh.radii = make([]float64, len(ms.Spheres))
	for i, s := range ms.Spheres {
		rh.centers[i] = xform.Apply(s.Center)
		rh.radii[i] = s.Radius
		mi.box = mi.box.Union(geom.AABBAround(rh.centers[i], s.Radius))
	}
	rh.tubes = make([]worldTube, len(ms.Tubes))
	for i, t := range ms.Tubes {
		rh.tubes[i] = worldTube{
			i: t.I, j: t.J,
			axis:   xform.ApplyDir(t.Axis),
			length: t.Length,
			sin:    t.Sin,
			cos:    t.Cos,
		}
	}
	rh.planes = make([]worldFacet, len(ms.Planes))
	for i, p := range ms.Planes {
		rh.planes[i] = worldFacet{i: p.I, j: p.J, k: p.K, plane: p.Plane.Transform(xform)}
	}
	return mi
}

func (ms *MultiSphere) RayTest(ray geom.Ray, xform geom.Transform) []RayResult {
	return ms.Instantiate(xform).RayTest(ray)
}

func (ms *MultiSphere) Write(w io.Writer) error {
	if err := writeUint32(w, uint32(len(ms.Spheres))); err != nil {
		return err
	}
	for _, s := range ms.Spheres {
		if err := writeVec3(w, s.Center); err != nil {
			return err
		}
		if err := writeFloat32(w, s.Radius); err != nil {
			return err
		}
	}
	return nil
}

func (ms *MultiSphere) Read(r io.Reader) Status {
	n, st := readCount(r)
	if st != StatusOK {
		return st
	}
	spheres := make([]SubSphere, n)
	for i := range spheres {
		if spheres[i].Center, st = readVec3(r); st != StatusOK {
			return st
		}
		if spheres[i].Radius, st = readFloat32(r); st != StatusOK {
			return st
		}
		if spheres[i].Radius < 0 {
			return StatusInvalid
		}
	}
	ms.build(spheres)
	return StatusOK
}

func (ms *MultiSphere) AppendDebugDraw(xform geom.Transform, out *[]render.DrawRequest) {
	for _, s := range ms.Spheres {
		*out = append(*out, render.DrawRequest{
			Kind:   render.KindSphere,
			Center: xform.Apply(s.Center),
			Radius: s.Radius,
		})
	}
	if len(ms.Tubes) == 0 {
		return
	}
	lines := make([]mgl64.Vec3, 0, 2*len(ms.Tubes))
	for _, t := range ms.Tubes {
		lines = append(lines, xform.Apply(ms.Spheres[t.I].Center), xform.Apply(ms.Spheres[t.J].Center))
	}
	*out = append(*out, render.DrawRequest{Kind: render.KindLines, Points: lines})
}

// MultiSphereInstance is a multi-sphere placed in the world.
type MultiSphereInstance struct {
	shape *MultiSphere
	xform geom.Transform
	box   geom.AABB
	rh    roundHull
}

func (mi *MultiSphereInstance) Shape() Shape              { return mi.shape }
func (mi *MultiSphereInstance) Transform() geom.Transform { return mi.xform }
func (mi *MultiSphereInstance) AABB() geom.AABB           { return mi.box }

func (mi *MultiSphereInstance) RayTest(ray geom.Ray) []RayResult {
	return mi.rh.rayTest(ray)
}

// SignedDistance returns the distance from p to the surface (negative inside)
// and the outward normal there.
func (mi *MultiSphereInstance) SignedDistance(p mgl64.Vec3) (float64, mgl64.Vec3) {
	if len(mi.rh.centers) == 0 {
		return math.Inf(1), mgl64.Vec3{}
	}
	return mi.rh.signedDistance(p)
}

func (mi *MultiSphereInstance) hull() *roundHull { return &mi.rh }
