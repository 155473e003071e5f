// pkg/shape/sphere.go
package shape

import (
	"io"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/geom"
	"github.com/opd-ai/go-rigid/pkg/render"
)

// Sphere is a solid ball centered on the body origin.
type Sphere struct {
	Radius float64
}

// NewSphere creates a sphere of the given radius.
func NewSphere(radius float64) *Sphere {
	return &Sphere{Radius: radius}
}

func (s *Sphere) Type() Type    { return TypeSphere }
func (s *Sphere) CanMove() bool { return true }

func (s *Sphere) ComputeMassInfo() MassInfo {
	return SphereMassInfo(mgl64.Vec3{}, s.Radius)
}

func (s *Sphere) AABB(xform geom.Transform) geom.AABB {
	return geom.AABBAround(xform.Pos, s.Radius)
}

func (s *Sphere) Instantiate(xform geom.Transform) Instance {
	return &SphereInstance{
		shape:  s,
		xform:  xform,
		Center: xform.Pos,
		Radius: s.Radius,
		rh:     roundHull{centers: []mgl64.Vec3{xform.Pos}, radii: []float64{s.Radius}},
	}
}

func (s *Sphere) RayTest(ray geom.Ray, xform geom.Transform) []RayResult {
	return s.Instantiate(xform).RayTest(ray)
}

func (s *Sphere) Write(w io.Writer) error {
	return writeFloat32(w, s.Radius)
}

func (s *Sphere) Read(r io.Reader) Status {
	radius, st := readFloat32(r)
	if st != StatusOK {
		return st
	}
	if radius < 0 {
		return StatusInvalid
	}
	s.Radius = radius
	return StatusOK
}

func (s *Sphere) AppendDebugDraw(xform geom.Transform, out *[]render.DrawRequest) {
	*out = append(*out, render.DrawRequest{Kind: render.KindSphere, Center: xform.Pos, Radius: s.Radius})
}

// SphereInstance is a sphere placed in the world.
type SphereInstance struct {
	shape  *Sphere
	xform  geom.Transform
	Center mgl64.Vec3
	Radius float64
	rh     roundHull
}

func (si *SphereInstance) Shape() Shape              { return si.shape }
func (si *SphereInstance) Transform() geom.Transform { return si.xform }
func (si *SphereInstance) AABB() geom.AABB           { return geom.AABBAround(si.Center, si.Radius) }

func (si *SphereInstance) RayTest(ray geom.Ray) []RayResult {
	t0, t1, ok := ray.IntersectSphere(si.Center, si.Radius)
	if !ok {
		return nil
	}
	var hits hitList
	hits.add(ray, t0, si.normalAt(ray.At(t0)))
	hits.add(ray, t1, si.normalAt(ray.At(t1)))
	return hits.sorted(geom.Epsilon)
}

func (si *SphereInstance) normalAt(p mgl64.Vec3) mgl64.Vec3 {
	n, ok := geom.Normalize(p.Sub(si.Center))
	if !ok {
		return mgl64.Vec3{0, 1, 0}
	}
	return n
}

func (si *SphereInstance) hull() *roundHull { return &si.rh }
