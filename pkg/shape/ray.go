// pkg/shape/ray.go
package shape

import (
	"io"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/geom"
	"github.com/opd-ai/go-rigid/pkg/render"
)

// Ray is the shape of a point-like projectile. A body carrying it collides by
// casting its per-step displacement against other shapes.
type Ray struct{}

func (r *Ray) Type() Type                { return TypeRay }
func (r *Ray) CanMove() bool             { return true }
func (r *Ray) ComputeMassInfo() MassInfo { return PointMassInfo() }

func (r *Ray) AABB(xform geom.Transform) geom.AABB {
	return geom.AABBFromPoints(xform.Pos)
}

func (r *Ray) Instantiate(xform geom.Transform) Instance {
	return &RayInstance{shape: r, xform: xform, Origin: xform.Pos}
}

// RayTest never reports a hit; a point has no surface.
func (r *Ray) RayTest(geom.Ray, geom.Transform) []RayResult { return nil }

func (r *Ray) Write(io.Writer) error { return nil }
func (r *Ray) Read(io.Reader) Status { return StatusOK }

func (r *Ray) AppendDebugDraw(xform geom.Transform, out *[]render.DrawRequest) {
	*out = append(*out, render.DrawRequest{Kind: render.KindRay, Center: xform.Pos})
}

// RayInstance carries the segment the projectile sweeps during one step.
type RayInstance struct {
	shape  *Ray
	xform  geom.Transform
	Origin mgl64.Vec3
	Sweep  mgl64.Vec3
}

func (ri *RayInstance) Shape() Shape              { return ri.shape }
func (ri *RayInstance) Transform() geom.Transform { return ri.xform }

func (ri *RayInstance) AABB() geom.AABB {
	return geom.AABBFromPoints(ri.Origin, ri.Origin.Add(ri.Sweep))
}

func (ri *RayInstance) RayTest(geom.Ray) []RayResult { return nil }

// Segment returns the swept path as a ray over t in [0, 1].
func (ri *RayInstance) Segment() geom.Ray {
	return geom.Ray{Origin: ri.Origin, Direction: ri.Sweep}
}
