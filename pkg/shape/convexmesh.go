// pkg/shape/convexmesh.go
package shape

import (
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/geom"
	"github.com/opd-ai/go-rigid/pkg/render"
)

// Hull construction tolerances, relative to the extent of the point cloud.
const (
	hullDegenerateThreshold = 1e-10
	hullDiscardThreshold    = 1e-7
	hullMergeThreshold      = 1e-6
)

// Face is one polygonal face of a convex mesh. Indices run counter-clockwise
// when viewed from outside.
type Face struct {
	Plane   geom.Plane
	Indices []int
}

// ConvexMesh is the convex hull of a point cloud.
type ConvexMesh struct {
	Vertices []mgl64.Vec3
	Faces    []Face
	Edges    [][2]int
	bounds   geom.AABB
}

// NewConvexMesh builds the hull of points. Degenerate input (fewer than four
// non-coplanar points) produces an empty mesh.
func NewConvexMesh(points []mgl64.Vec3) *ConvexMesh {
	cm := &ConvexMesh{}
	cm.build(points)
	return cm
}

// IsEmpty reports whether the hull has no faces.
func (cm *ConvexMesh) IsEmpty() bool {
	return len(cm.Faces) == 0
}

func (cm *ConvexMesh) build(points []mgl64.Vec3) {
	cm.Vertices, cm.Faces, cm.Edges = nil, nil, nil
	cm.bounds = geom.EmptyAABB()
	if len(points) < 4 {
		return
	}
	size := geom.AABBFromPoints(points...).Size()
	scale := math.Max(size[0], math.Max(size[1], size[2]))
	if scale < geom.Epsilon {
		return
	}

	planes := hullPlanes(points, scale)
	var faces []Face
	used := make([]bool, len(points))
	tol := hullDiscardThreshold * scale
	for _, pl := range planes {
		u, v := geom.Basis(pl.Normal)
		poly := geom.NewConvexPoly(tol)
		for i, p := range points {
			if math.Abs(pl.SignedDistance(p)) <= tol {
				poly.Insert(mgl64.Vec2{p.Dot(u), p.Dot(v)}, i)
			}
		}
		if poly.Len() < 3 {
			continue
		}
		idx := poly.Tags()
		for _, i := range idx {
			used[i] = true
		}
		faces = append(faces, Face{Plane: pl, Indices: idx})
	}
	if len(faces) < 4 {
		return
	}

	remap := make([]int, len(points))
	for i, p := range points {
		remap[i] = -1
		if used[i] {
			remap[i] = len(cm.Vertices)
			cm.Vertices = append(cm.Vertices, p)
		}
	}
	seen := make(map[[2]int]bool)
	for fi := range faces {
		for k, i := range faces[fi].Indices {
			faces[fi].Indices[k] = remap[i]
		}
		ring := faces[fi].Indices
		for k := range ring {
			a, b := ring[k], ring[(k+1)%len(ring)]
			if a > b {
				a, b = b, a
			}
			e := [2]int{a, b}
			if !seen[e] {
				seen[e] = true
				cm.Edges = append(cm.Edges, e)
			}
		}
	}
	cm.Faces = faces
	cm.bounds = geom.AABBFromPoints(cm.Vertices...)
}

// hullPlanes enumerates every triple of points and keeps the supporting
// planes, merging near-identical candidates.
func hullPlanes(points []mgl64.Vec3, scale float64) []geom.Plane {
	var planes []geom.Plane
	n := len(points)
	discard := hullDiscardThreshold * scale
	degenerate := hullDegenerateThreshold * scale * scale
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				normal := points[j].Sub(points[i]).Cross(points[k].Sub(points[i]))
				length := normal.Len()
				if length < degenerate {
					continue
				}
				pl := geom.Plane{Normal: normal.Mul(1 / length)}
				pl.Offset = pl.Normal.Dot(points[i])

				above, below := false, false
				for _, p := range points {
					d := pl.SignedDistance(p)
					if d > discard {
						above = true
					} else if d < -discard {
						below = true
					}
				}
				if above && below {
					continue
				}
				if above {
					pl = pl.Flip()
				}
				merged := false
				for _, existing := range planes {
					if existing.ApproxEqual(pl, hullMergeThreshold, hullMergeThreshold*scale) {
						merged = true
						break
					}
				}
				if !merged {
					planes = append(planes, pl)
				}
			}
		}
	}
	return planes
}

func (cm *ConvexMesh) Type() Type    { return TypeConvexMesh }
func (cm *ConvexMesh) CanMove() bool { return true }

func (cm *ConvexMesh) ComputeMassInfo() MassInfo {
	return BoxMassInfo(cm.bounds)
}

func (cm *ConvexMesh) AABB(xform geom.Transform) geom.AABB {
	box := geom.EmptyAABB()
	for _, v := range cm.Vertices {
		box = box.Expand(xform.Apply(v))
	}
	return box
}

func (cm *ConvexMesh) Instantiate(xform geom.Transform) Instance {
	ci := &ConvexInstance{shape: cm, xform: xform, box: geom.EmptyAABB()}
	verts := make([]mgl64.Vec3, len(cm.Vertices))
	for i, v := range cm.Vertices {
		verts[i] = xform.Apply(v)
		ci.box = ci.box.Expand(verts[i])
	}
	ci.Planes = make([]geom.Plane, len(cm.Faces))
	normals := make([]mgl64.Vec3, len(cm.Faces))
	rings := make([][]int, len(cm.Faces))
	for i, f := range cm.Faces {
		ci.Planes[i] = f.Plane.Transform(xform)
		normals[i] = ci.Planes[i].Normal
		rings[i] = f.Indices
	}
	ci.polytope = newPolytope(verts, normals, rings, cm.Edges)
	return ci
}

func (cm *ConvexMesh) RayTest(ray geom.Ray, xform geom.Transform) []RayResult {
	return cm.Instantiate(xform).RayTest(ray)
}

func (cm *ConvexMesh) Write(w io.Writer) error {
	if err := writeUint32(w, uint32(len(cm.Vertices))); err != nil {
		return err
	}
	for _, v := range cm.Vertices {
		if err := writeVec3(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (cm *ConvexMesh) Read(r io.Reader) Status {
	n, st := readCount(r)
	if st != StatusOK {
		return st
	}
	points := make([]mgl64.Vec3, n)
	for i := range points {
		if points[i], st = readVec3(r); st != StatusOK {
			return st
		}
	}
	cm.build(points)
	if n > 0 && cm.IsEmpty() {
		return StatusInvalid
	}
	return StatusOK
}

func (cm *ConvexMesh) AppendDebugDraw(xform geom.Transform, out *[]render.DrawRequest) {
	for _, f := range cm.Faces {
		pts := make([]mgl64.Vec3, len(f.Indices))
		for i, idx := range f.Indices {
			pts[i] = xform.Apply(cm.Vertices[idx])
		}
		*out = append(*out, render.DrawRequest{
			Kind:   render.KindPolygon,
			Normal: xform.ApplyDir(f.Plane.Normal),
			Points: pts,
		})
	}
}

// ConvexInstance is a convex mesh placed in the world.
type ConvexInstance struct {
	polytope
	shape  *ConvexMesh
	xform  geom.Transform
	box    geom.AABB
	Planes []geom.Plane
}

func (ci *ConvexInstance) Shape() Shape              { return ci.shape }
func (ci *ConvexInstance) Transform() geom.Transform { return ci.xform }
func (ci *ConvexInstance) AABB() geom.AABB           { return ci.box }

// Vertices returns the world-space hull vertices.
func (ci *ConvexInstance) Vertices() []mgl64.Vec3 { return ci.verts }

// RayTest clips the ray against every face plane and reports the entry and
// exit crossings.
func (ci *ConvexInstance) RayTest(ray geom.Ray) []RayResult {
	if len(ci.Planes) == 0 {
		return nil
	}
	tEnter, tExit := math.Inf(-1), math.Inf(1)
	var nEnter, nExit mgl64.Vec3
	for _, pl := range ci.Planes {
		denom := pl.Normal.Dot(ray.Direction)
		dist := pl.SignedDistance(ray.Origin)
		if math.Abs(denom) < geom.Epsilon {
			if dist > 0 {
				return nil
			}
			continue
		}
		t := -dist / denom
		if denom < 0 {
			if t > tEnter {
				tEnter, nEnter = t, pl.Normal
			}
		} else if t < tExit {
			tExit, nExit = t, pl.Normal
		}
		if tEnter > tExit {
			return nil
		}
	}
	var hits hitList
	if !math.IsInf(tEnter, 0) {
		hits.add(ray, tEnter, nEnter)
	}
	if !math.IsInf(tExit, 0) {
		hits.add(ray, tExit, nExit)
	}
	return hits.sorted(geom.Epsilon)
}

// Contains reports whether p lies inside the hull.
func (ci *ConvexInstance) Contains(p mgl64.Vec3) bool {
	if len(ci.Planes) == 0 {
		return false
	}
	for _, pl := range ci.Planes {
		if pl.SignedDistance(p) > 0 {
			return false
		}
	}
	return true
}
