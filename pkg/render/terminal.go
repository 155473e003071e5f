package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// View selects the two world axes the terminal projects onto.
type View int

const (
	// ViewSide looks along -Z: X to the right, Y up.
	ViewSide View = iota
	// ViewTop looks down -Y: X to the right, Z down the screen.
	ViewTop
)

func (v View) axes() (u, w int) {
	if v == ViewTop {
		return 0, 2
	}
	return 0, 1
}

// Glyphs used per primitive
const (
	GlyphSphere  = 'o'
	GlyphLine    = '.'
	GlyphPolygon = '#'
	GlyphPlane   = '='
	GlyphRay     = '*'
)

// TerminalRenderer provides a simple ASCII orthographic view of debug-draw
// requests
type TerminalRenderer struct {
	out       io.Writer
	width     int
	height    int
	buffer    [][]rune
	scale     float64
	view      View
	centerPos mgl64.Vec3
	// ANSI clears the terminal before each frame.
	ANSI bool
}

// NewTerminalRenderer creates a new terminal renderer with the specified
// dimensions; scale is world units per character cell
func NewTerminalRenderer(out io.Writer, width, height int, scale float64) *TerminalRenderer {
	buffer := make([][]rune, height)
	for i := range buffer {
		buffer[i] = make([]rune, width)
	}

	r := &TerminalRenderer{
		out:    out,
		width:  width,
		height: height,
		buffer: buffer,
		scale:  scale,
	}
	r.Clear()
	return r
}

// SetCenter sets the center position of the view
func (r *TerminalRenderer) SetCenter(pos mgl64.Vec3) {
	r.centerPos = pos
}

// SetView selects the projection.
func (r *TerminalRenderer) SetView(v View) {
	r.view = v
}

// worldToScreen converts world coordinates to screen coordinates
func (r *TerminalRenderer) worldToScreen(pos mgl64.Vec3) (int, int) {
	u, v := r.view.axes()
	sx := (pos[u]-r.centerPos[u])/r.scale + float64(r.width)/2
	sy := (pos[v]-r.centerPos[v])/r.scale + float64(r.height)/2
	if r.view == ViewSide {
		sy = float64(r.height)/2 - (pos[v]-r.centerPos[v])/r.scale
	}
	return int(math.Floor(sx)), int(math.Floor(sy))
}

func (r *TerminalRenderer) plot(x, y int, glyph rune) {
	if x >= 0 && x < r.width && y >= 0 && y < r.height {
		r.buffer[y][x] = glyph
	}
}

// line rasterises a segment with Bresenham's algorithm.
func (r *TerminalRenderer) line(a, b mgl64.Vec3, glyph rune) {
	x0, y0 := r.worldToScreen(a)
	x1, y1 := r.worldToScreen(b)
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	e := dx + dy
	for steps := 0; steps <= 4*(r.width+r.height); steps++ {
		r.plot(x0, y0, glyph)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Clear implements Renderer
func (r *TerminalRenderer) Clear() {
	for y := range r.buffer {
		for x := range r.buffer[y] {
			r.buffer[y][x] = ' '
		}
	}
}

// Draw implements Renderer
func (r *TerminalRenderer) Draw(req DrawRequest) {
	switch req.Kind {
	case KindSphere:
		r.drawSphere(req.Center, req.Radius)
	case KindLines:
		for i := 0; i+1 < len(req.Points); i += 2 {
			r.line(req.Points[i], req.Points[i+1], GlyphLine)
		}
	case KindPolygon:
		for i, p := range req.Points {
			r.line(p, req.Points[(i+1)%len(req.Points)], GlyphPolygon)
		}
	case KindPlane:
		r.drawPlane(req.Center, req.Normal)
	case KindRay:
		r.line(req.Center, req.Center.Add(req.Normal), GlyphRay)
	}
}

func (r *TerminalRenderer) drawSphere(c mgl64.Vec3, radius float64) {
	cells := radius / r.scale
	if cells < 1 {
		x, y := r.worldToScreen(c)
		r.plot(x, y, GlyphSphere)
		return
	}
	u, v := r.view.axes()
	n := max(8, int(4*math.Pi*cells))
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		p := c
		p[u] += radius * math.Cos(a)
		p[v] += radius * math.Sin(a)
		x, y := r.worldToScreen(p)
		r.plot(x, y, GlyphSphere)
	}
}

// drawPlane draws the trace of the plane in the view; planes parallel to the
// view have no trace.
func (r *TerminalRenderer) drawPlane(c, n mgl64.Vec3) {
	u, v := r.view.axes()
	nu, nv := n[u], n[v]
	l := math.Hypot(nu, nv)
	if l < 1e-9 {
		return
	}
	reach := float64(r.width+r.height) * r.scale
	var d mgl64.Vec3
	d[u], d[v] = -nv/l*reach, nu/l*reach
	r.line(c.Sub(d), c.Add(d), GlyphPlane)
}

// Present implements Renderer
func (r *TerminalRenderer) Present() {
	if r.ANSI {
		fmt.Fprint(r.out, "\033[H\033[2J")
	}
	fmt.Fprint(r.out, r.String())
}

// String returns the framed buffer.
func (r *TerminalRenderer) String() string {
	var sb strings.Builder
	border := "+" + strings.Repeat("-", r.width) + "+\n"
	sb.WriteString(border)
	for y := range r.buffer {
		sb.WriteByte('|')
		sb.WriteString(string(r.buffer[y]))
		sb.WriteString("|\n")
	}
	sb.WriteString(border)
	return sb.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
