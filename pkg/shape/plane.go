// pkg/shape/plane.go
package shape

import (
	"io"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/geom"
	"github.com/opd-ai/go-rigid/pkg/render"
)

// InfinitePlane is an unbounded half-space boundary. Everything on the side
// opposite the normal is solid. Planes are always static.
type InfinitePlane struct {
	Plane geom.Plane
}

// NewInfinitePlane creates a plane with the given normal and offset; the
// normal is normalized.
func NewInfinitePlane(normal mgl64.Vec3, offset float64) *InfinitePlane {
	n, ok := geom.Normalize(normal)
	if !ok {
		n = mgl64.Vec3{0, 1, 0}
	}
	return &InfinitePlane{Plane: geom.Plane{Normal: n, Offset: offset}}
}

func (p *InfinitePlane) Type() Type                   { return TypeInfinitePlane }
func (p *InfinitePlane) CanMove() bool                { return false }
func (p *InfinitePlane) ComputeMassInfo() MassInfo    { return MassInfo{} }
func (p *InfinitePlane) AABB(geom.Transform) geom.AABB { return geom.InfiniteAABB() }

func (p *InfinitePlane) Instantiate(xform geom.Transform) Instance {
	return &PlaneInstance{shape: p, xform: xform, Plane: p.Plane.Transform(xform)}
}

func (p *InfinitePlane) RayTest(ray geom.Ray, xform geom.Transform) []RayResult {
	return p.Instantiate(xform).RayTest(ray)
}

func (p *InfinitePlane) Write(w io.Writer) error {
	if err := writeVec3(w, p.Plane.Normal); err != nil {
		return err
	}
	return writeFloat32(w, p.Plane.Offset)
}

func (p *InfinitePlane) Read(r io.Reader) Status {
	n, st := readVec3(r)
	if st != StatusOK {
		return st
	}
	offset, st := readFloat32(r)
	if st != StatusOK {
		return st
	}
	unit, ok := geom.Normalize(n)
	if !ok {
		return StatusInvalid
	}
	p.Plane = geom.Plane{Normal: unit, Offset: offset}
	return StatusOK
}

func (p *InfinitePlane) AppendDebugDraw(xform geom.Transform, out *[]render.DrawRequest) {
	wp := p.Plane.Transform(xform)
	*out = append(*out, render.DrawRequest{
		Kind:   render.KindPlane,
		Center: wp.Normal.Mul(wp.Offset),
		Normal: wp.Normal,
	})
}

// PlaneInstance is a plane placed in the world.
type PlaneInstance struct {
	shape *InfinitePlane
	xform geom.Transform
	Plane geom.Plane
}

func (pi *PlaneInstance) Shape() Shape              { return pi.shape }
func (pi *PlaneInstance) Transform() geom.Transform { return pi.xform }
func (pi *PlaneInstance) AABB() geom.AABB           { return geom.InfiniteAABB() }

func (pi *PlaneInstance) RayTest(ray geom.Ray) []RayResult {
	t, ok := pi.Plane.IntersectRay(ray)
	if !ok || t < 0 {
		return nil
	}
	return []RayResult{{T: t, Pos: ray.At(t), Normal: pi.Plane.Normal}}
}
