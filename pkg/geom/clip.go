// pkg/geom/clip.go
package geom

import (
	"github.com/go-gl/mathgl/mgl64"
)

// ClipPolygon clips subject against the convex counter-clockwise polygon clip
// (Sutherland–Hodgman). The result may be empty.
func ClipPolygon(subject, clip []mgl64.Vec2) []mgl64.Vec2 {
	out := append([]mgl64.Vec2(nil), subject...)
	for i := range clip {
		if len(out) == 0 {
			break
		}
		a := clip[i]
		b := clip[(i+1)%len(clip)]
		in := out
		out = make([]mgl64.Vec2, 0, len(in)+1)
		for j := range in {
			cur := in[j]
			prev := in[(j+len(in)-1)%len(in)]
			curIn := cross2(a, b, cur) >= 0
			prevIn := cross2(a, b, prev) >= 0
			if curIn {
				if !prevIn {
					out = append(out, intersectLines2(prev, cur, a, b))
				}
				out = append(out, cur)
			} else if prevIn {
				out = append(out, intersectLines2(prev, cur, a, b))
			}
		}
	}
	return out
}

// ClipSegment clips segment pq against the convex counter-clockwise polygon.
func ClipSegment(p, q mgl64.Vec2, clip []mgl64.Vec2) (mgl64.Vec2, mgl64.Vec2, bool) {
	t0, t1 := 0.0, 1.0
	d := q.Sub(p)
	for i := range clip {
		a := clip[i]
		b := clip[(i+1)%len(clip)]
		// inside when cross2(a, b, x) >= 0; linear in t
		f0 := cross2(a, b, p)
		df := cross2(a, b, q) - f0
		if df == 0 {
			if f0 < 0 {
				return p, q, false
			}
			continue
		}
		t := -f0 / df
		if df > 0 {
			if t > t0 {
				t0 = t
			}
		} else if t < t1 {
			t1 = t
		}
		if t0 > t1 {
			return p, q, false
		}
	}
	return p.Add(d.Mul(t0)), p.Add(d.Mul(t1)), true
}

// PointInConvexPolygon reports whether p lies inside (or on) a counter-clockwise polygon.
func PointInConvexPolygon(p mgl64.Vec2, poly []mgl64.Vec2, eps float64) bool {
	if len(poly) < 3 {
		return false
	}
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		length := b.Sub(a).Len()
		if length < Epsilon {
			continue
		}
		if cross2(a, b, p)/length < -eps {
			return false
		}
	}
	return true
}

func intersectLines2(p, q, a, b mgl64.Vec2) mgl64.Vec2 {
	fp := cross2(a, b, p)
	fq := cross2(a, b, q)
	denom := fp - fq
	if denom == 0 {
		return p
	}
	return p.Add(q.Sub(p).Mul(fp / denom))
}
