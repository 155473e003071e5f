// pkg/geom/convexpoly.go
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ConvexPoly incrementally builds a convex 2D polygon from points inserted in
// any order. Vertices live in a doubly linked ring kept counter-clockwise;
// points inside the current hull or nearly colinear with a hull edge are
// discarded. Every point carries a caller-supplied tag (e.g. a vertex index).
type ConvexPoly struct {
	nodes []polyNode
	free  []int
	head  int
	count int
	eps   float64
}

type polyNode struct {
	p          mgl64.Vec2
	tag        int
	prev, next int
}

// NewConvexPoly creates an empty polygon. eps is the distance below which a
// point counts as lying on an existing edge or vertex.
func NewConvexPoly(eps float64) *ConvexPoly {
	if eps <= 0 {
		eps = Epsilon
	}
	return &ConvexPoly{head: -1, eps: eps}
}

// Len returns the number of vertices on the ring.
func (cp *ConvexPoly) Len() int {
	return cp.count
}

func cross2(o, a, b mgl64.Vec2) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func (cp *ConvexPoly) alloc(p mgl64.Vec2, tag int) int {
	n := polyNode{p: p, tag: tag, prev: -1, next: -1}
	if k := len(cp.free); k > 0 {
		idx := cp.free[k-1]
		cp.free = cp.free[:k-1]
		cp.nodes[idx] = n
		return idx
	}
	cp.nodes = append(cp.nodes, n)
	return len(cp.nodes) - 1
}

// insertAfter links node idx after node at.
func (cp *ConvexPoly) insertAfter(at, idx int) {
	next := cp.nodes[at].next
	cp.nodes[idx].prev = at
	cp.nodes[idx].next = next
	cp.nodes[at].next = idx
	cp.nodes[next].prev = idx
	cp.count++
}

func (cp *ConvexPoly) unlink(idx int) {
	n := cp.nodes[idx]
	cp.nodes[n.prev].next = n.next
	cp.nodes[n.next].prev = n.prev
	if cp.head == idx {
		cp.head = n.next
	}
	cp.free = append(cp.free, idx)
	cp.count--
	if cp.count == 0 {
		cp.head = -1
	}
}

// Insert adds a point to the polygon. It returns false when the point was
// discarded because it does not extend the hull.
func (cp *ConvexPoly) Insert(p mgl64.Vec2, tag int) bool {
	switch cp.count {
	case 0:
		idx := cp.alloc(p, tag)
		cp.nodes[idx].prev = idx
		cp.nodes[idx].next = idx
		cp.head = idx
		cp.count = 1
		return true
	case 1:
		if p.Sub(cp.nodes[cp.head].p).Len() <= cp.eps {
			return false
		}
		cp.insertAfter(cp.head, cp.alloc(p, tag))
		return true
	case 2:
		return cp.insertIntoSegment(p, tag)
	}
	return cp.insertIntoRing(p, tag)
}

func (cp *ConvexPoly) insertIntoSegment(p mgl64.Vec2, tag int) bool {
	a := cp.head
	b := cp.nodes[a].next
	pa, pb := cp.nodes[a].p, cp.nodes[b].p
	edge := pb.Sub(pa)
	length := edge.Len()
	dist := cross2(pa, pb, p) / length
	if math.Abs(dist) <= cp.eps {
		// colinear: keep the two extreme points
		t := p.Sub(pa).Dot(edge) / (length * length)
		switch {
		case t < 0 && -t*length > cp.eps:
			cp.nodes[a].p, cp.nodes[a].tag = p, tag
			return true
		case t > 1 && (t-1)*length > cp.eps:
			cp.nodes[b].p, cp.nodes[b].tag = p, tag
			return true
		}
		return false
	}
	idx := cp.alloc(p, tag)
	if dist > 0 {
		cp.insertAfter(b, idx)
	} else {
		cp.insertAfter(a, idx)
	}
	return true
}

func (cp *ConvexPoly) outside(from, to int, p mgl64.Vec2) bool {
	a, b := cp.nodes[from].p, cp.nodes[to].p
	length := b.Sub(a).Len()
	if length < Epsilon {
		return false
	}
	return cross2(a, b, p)/length < -cp.eps
}

func (cp *ConvexPoly) insertIntoRing(p mgl64.Vec2, tag int) bool {
	// find an edge p can see, then widen to the whole visible chain
	start := -1
	idx := cp.head
	for i := 0; i < cp.count; i++ {
		if cp.outside(idx, cp.nodes[idx].next, p) {
			start = idx
			break
		}
		idx = cp.nodes[idx].next
	}
	if start < 0 {
		return false
	}
	for i := 0; i < cp.count; i++ {
		prev := cp.nodes[start].prev
		if !cp.outside(prev, start, p) {
			break
		}
		start = prev
	}
	end := cp.nodes[start].next
	for i := 0; i < cp.count; i++ {
		if !cp.outside(end, cp.nodes[end].next, p) {
			break
		}
		end = cp.nodes[end].next
	}

	// drop vertices hidden behind p
	for n := cp.nodes[start].next; n != end; {
		next := cp.nodes[n].next
		cp.unlink(n)
		n = next
	}
	added := cp.alloc(p, tag)
	cp.insertAfter(start, added)

	cp.dropColinear(start)
	cp.dropColinear(end)
	return true
}

// dropColinear removes idx when it lies on the segment between its neighbours.
func (cp *ConvexPoly) dropColinear(idx int) {
	if cp.count <= 3 {
		return
	}
	prev, next := cp.nodes[idx].prev, cp.nodes[idx].next
	a, b := cp.nodes[prev].p, cp.nodes[next].p
	length := b.Sub(a).Len()
	if length < Epsilon {
		return
	}
	if math.Abs(cross2(a, b, cp.nodes[idx].p))/length <= cp.eps {
		cp.unlink(idx)
	}
}

// Points returns the vertices in counter-clockwise order.
func (cp *ConvexPoly) Points() []mgl64.Vec2 {
	out := make([]mgl64.Vec2, 0, cp.count)
	cp.each(func(n polyNode) { out = append(out, n.p) })
	return out
}

// Tags returns the vertex tags in the same order as Points.
func (cp *ConvexPoly) Tags() []int {
	out := make([]int, 0, cp.count)
	cp.each(func(n polyNode) { out = append(out, n.tag) })
	return out
}

func (cp *ConvexPoly) each(fn func(polyNode)) {
	if cp.head < 0 {
		return
	}
	idx := cp.head
	for i := 0; i < cp.count; i++ {
		fn(cp.nodes[idx])
		idx = cp.nodes[idx].next
	}
}

// Area returns the signed area (positive for counter-clockwise).
func (cp *ConvexPoly) Area() float64 {
	return PolygonArea(cp.Points())
}

// PolygonArea returns the signed area of a simple polygon.
func PolygonArea(pts []mgl64.Vec2) float64 {
	var area float64
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1]
	}
	return area / 2
}
