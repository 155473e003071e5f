// pkg/shape/massinfo.go
package shape

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/geom"
)

// MassInfo holds mass properties in the shape's local frame. Inertia is taken
// about the center of mass.
type MassInfo struct {
	Mass    float64
	COM     mgl64.Vec3
	Inertia mgl64.Mat3
}

// SphereMassInfo returns the properties of a solid sphere at unit density.
func SphereMassInfo(center mgl64.Vec3, radius float64) MassInfo {
	m := 4.0 / 3.0 * math.Pi * radius * radius * radius
	i := 0.4 * m * radius * radius
	return MassInfo{Mass: m, COM: center, Inertia: mgl64.Diag3(mgl64.Vec3{i, i, i})}
}

// BoxMassInfo returns the properties of a solid box filling b at unit density.
func BoxMassInfo(b geom.AABB) MassInfo {
	if b.IsEmpty() || b.IsInfinite() {
		return MassInfo{}
	}
	s := b.Size()
	m := s[0] * s[1] * s[2]
	k := m / 12
	return MassInfo{
		Mass: m,
		COM:  b.Center(),
		Inertia: mgl64.Diag3(mgl64.Vec3{
			k * (s[1]*s[1] + s[2]*s[2]),
			k * (s[0]*s[0] + s[2]*s[2]),
			k * (s[0]*s[0] + s[1]*s[1]),
		}),
	}
}

// PointMassInfo is a unit mass concentrated at the origin with unit inertia so
// the body remains invertible.
func PointMassInfo() MassInfo {
	return MassInfo{Mass: 1, Inertia: mgl64.Ident3()}
}

// Scale multiplies mass and inertia by density.
func (m MassInfo) Scale(density float64) MassInfo {
	return MassInfo{Mass: m.Mass * density, COM: m.COM, Inertia: m.Inertia.Mul(density)}
}

// Add combines two mass distributions, moving both inertia tensors to the
// shared center of mass.
func (m MassInfo) Add(o MassInfo) MassInfo {
	total := m.Mass + o.Mass
	if total <= 0 {
		return MassInfo{}
	}
	com := m.COM.Mul(m.Mass / total).Add(o.COM.Mul(o.Mass / total))
	inertia := m.Inertia.Add(parallelAxis(m.Mass, m.COM.Sub(com))).
		Add(o.Inertia).Add(parallelAxis(o.Mass, o.COM.Sub(com)))
	return MassInfo{Mass: total, COM: com, Inertia: inertia}
}

func parallelAxis(mass float64, d mgl64.Vec3) mgl64.Mat3 {
	dd := d.Dot(d)
	outer := mgl64.Mat3{
		d[0] * d[0], d[1] * d[0], d[2] * d[0],
		d[0] * d[1], d[1] * d[1], d[2] * d[1],
		d[0] * d[2], d[1] * d[2], d[2] * d[2],
	}
	return mgl64.Diag3(mgl64.Vec3{dd, dd, dd}).Sub(outer).Mul(mass)
}
