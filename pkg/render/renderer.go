// pkg/render/renderer.go
package render

import (
	"context"

	"github.com/opd-ai/go-rigid/pkg/logging"
)

// NullRenderer logs debug-draw traffic instead of drawing it.
type NullRenderer struct {
	logger *logging.Logger
	frame  uint64
	counts map[Kind]int
}

// NewNullRenderer creates a new NullRenderer with structured logging. A nil
// logger discards everything.
func NewNullRenderer(logger *logging.Logger) *NullRenderer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &NullRenderer{
		logger: logger,
		counts: make(map[Kind]int),
	}
}

// Clear implements Renderer.
func (d *NullRenderer) Clear() {
	clear(d.counts)
	d.logger.Debug(context.Background(), "Clear called", "frame", d.frame)
}

// Draw implements Renderer.
func (d *NullRenderer) Draw(req DrawRequest) {
	d.counts[req.Kind]++
}

// Present implements Renderer.
func (d *NullRenderer) Present() {
	d.logger.Debug(context.Background(), "Present called",
		"frame", d.frame,
		"spheres", d.counts[KindSphere],
		"polygons", d.counts[KindPolygon],
		"lines", d.counts[KindLines],
		"planes", d.counts[KindPlane],
		"rays", d.counts[KindRay],
	)
	d.frame++
}

// Count returns how many requests of kind were drawn since the last Clear.
func (d *NullRenderer) Count(kind Kind) int {
	return d.counts[kind]
}

// Frames returns the number of presented frames.
func (d *NullRenderer) Frames() uint64 {
	return d.frame
}

// DrawAll clears r, draws every request and presents the frame.
func DrawAll(r Renderer, reqs []DrawRequest) {
	r.Clear()
	for _, req := range reqs {
		r.Draw(req)
	}
	r.Present()
}
