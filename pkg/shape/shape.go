// pkg/shape/shape.go
package shape

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/geom"
	"github.com/opd-ai/go-rigid/pkg/render"
)

// Type identifies a concrete shape variant. The numeric values are written to
// persisted streams and must not be reordered.
type Type uint32

const (
	TypeRay Type = iota
	TypeSphere
	TypeTriangleMesh
	TypeInfinitePlane
	TypeMultiSphere
	TypeConvexMesh

	// NumTypes is the number of shape variants.
	NumTypes
)

// String returns the variant name.
func (t Type) String() string {
	switch t {
	case TypeRay:
		return "ray"
	case TypeSphere:
		return "sphere"
	case TypeTriangleMesh:
		return "triangle_mesh"
	case TypeInfinitePlane:
		return "infinite_plane"
	case TypeMultiSphere:
		return "multi_sphere"
	case TypeConvexMesh:
		return "convex_mesh"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// Shape is immutable collision geometry expressed in a body's local frame.
// A shape may be shared by many bodies.
type Shape interface {
	Type() Type

	// ComputeMassInfo returns the mass properties at unit density.
	ComputeMassInfo() MassInfo

	// AABB returns the world bounds of the shape under xform.
	AABB(xform geom.Transform) geom.AABB

	// Instantiate builds the world-space cache used by collision routines.
	Instantiate(xform geom.Transform) Instance

	// RayTest returns every surface crossing with t >= 0, sorted by t.
	RayTest(ray geom.Ray, xform geom.Transform) []RayResult

	// CanMove reports whether bodies carrying this shape may be dynamic.
	CanMove() bool

	Write(w io.Writer) error
	Read(r io.Reader) Status

	// AppendDebugDraw appends world-space primitives describing the shape.
	AppendDebugDraw(xform geom.Transform, out *[]render.DrawRequest)
}

// Instance is the world-space form of a shape on one body. It is rebuilt when
// the owning body's transform changes and is read concurrently during the
// collision phase, so implementations must not mutate after construction.
type Instance interface {
	Shape() Shape
	Transform() geom.Transform
	AABB() geom.AABB
	RayTest(ray geom.Ray) []RayResult
}

// RayResult is one crossing of a ray with a surface.
type RayResult struct {
	T      float64
	Pos    mgl64.Vec3
	Normal mgl64.Vec3
}

// CollideRay returns the nearest crossing with t >= 0.
func CollideRay(s Shape, ray geom.Ray, xform geom.Transform) (RayResult, bool) {
	hits := s.RayTest(ray, xform)
	if len(hits) == 0 {
		return RayResult{}, false
	}
	return hits[0], true
}

// hitList accumulates ray crossings, dropping negative parameters.
type hitList []RayResult

func (h *hitList) add(ray geom.Ray, t float64, normal mgl64.Vec3) {
	if t < 0 {
		return
	}
	*h = append(*h, RayResult{T: t, Pos: ray.At(t), Normal: normal})
}

// sorted orders the hits and merges crossings closer than tol.
func (h hitList) sorted(tol float64) []RayResult {
	if len(h) == 0 {
		return nil
	}
	sort.Slice(h, func(i, j int) bool { return h[i].T < h[j].T })
	out := h[:1]
	for _, r := range h[1:] {
		if r.T-out[len(out)-1].T > tol {
			out = append(out, r)
		}
	}
	return out
}

// New returns an empty shape of the given type, ready for Read.
func New(t Type) (Shape, bool) {
	switch t {
	case TypeRay:
		return &Ray{}, true
	case TypeSphere:
		return &Sphere{}, true
	case TypeTriangleMesh:
		return &TriangleMesh{}, true
	case TypeInfinitePlane:
		return &InfinitePlane{}, true
	case TypeMultiSphere:
		return &MultiSphere{}, true
	case TypeConvexMesh:
		return &ConvexMesh{}, true
	}
	return nil, false
}
