// pkg/render/draw.go
package render

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Kind identifies the primitive a DrawRequest describes.
type Kind int

const (
	// KindSphere is a sphere at Center with Radius.
	KindSphere Kind = iota
	// KindLines is a list of segments; Points holds pairs of endpoints.
	KindLines
	// KindPolygon is a closed planar polygon through Points.
	KindPolygon
	// KindPlane is an unbounded plane through Center facing Normal.
	KindPlane
	// KindRay is a segment from Center along Normal.
	KindRay
)

// String returns the primitive name used in logs and terminal output.
func (k Kind) String() string {
	switch k {
	case KindSphere:
		return "sphere"
	case KindLines:
		return "lines"
	case KindPolygon:
		return "polygon"
	case KindPlane:
		return "plane"
	case KindRay:
		return "ray"
	default:
		return "unknown"
	}
}

// DrawRequest is one debug-draw primitive in world space. Requests are plain
// records; any renderer may consume them.
type DrawRequest struct {
	Kind   Kind
	Body   uint64
	Center mgl64.Vec3
	Normal mgl64.Vec3
	Radius float64
	Points []mgl64.Vec3
}

// Renderer consumes debug-draw requests produced by the simulation.
type Renderer interface {
	Clear()
	Draw(req DrawRequest)
	Present()
}
