// pkg/world/step.go
package world

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-rigid/pkg/body"
	"github.com/opd-ai/go-rigid/pkg/broadphase"
	"github.com/opd-ai/go-rigid/pkg/event"
	"github.com/opd-ai/go-rigid/pkg/logging"
	"github.com/opd-ai/go-rigid/pkg/shape"
	"github.com/opd-ai/go-rigid/pkg/solver"
)

// workerScratch is the private state of one collision worker.
type workerScratch struct {
	rel      *broadphase.Relevant
	contacts []*solver.ContactPoint
	pairs    []pairSummary
	done     bool
}

// pairSummary aggregates the manifold of one body pair for the collision
// event.
type pairSummary struct {
	a, b     *body.RigidBody
	normal   mgl64.Vec3
	pos      mgl64.Vec3
	points   int
	maxDepth float64
}

// Step advances the world by one fixed timestep.
func (w *World) Step() StepStats {
	if w.closed.Load() {
		return StepStats{}
	}
	start := time.Now()
	w.step++
	ctx := logging.WithStep(context.Background(), w.step)
	dt := w.dt

	// velocities, then caches so the collision phase only reads
	w.dynamic = w.dynamic[:0]
	w.arena.Each(func(b *body.RigidBody) {
		if b.IsDynamic() {
			b.UpdateVel(dt, w.gravity)
			w.dynamic = append(w.dynamic, b)
		}
		b.RefreshCache(dt)
	})

	w.initiateCollisions(ctx)

	w.constraintSet = w.constraintSet[:0]
	for _, c := range w.contacts {
		w.constraintSet = append(w.constraintSet, c)
	}
	for _, id := range w.constraintOrder {
		w.constraintSet = append(w.constraintSet, w.constraints[id])
	}
	w.solver.Solve(ctx, w.constraintSet, dt)

	for _, b := range w.dynamic {
		b.UpdatePos(dt, w.manager)
	}
	w.arena.Each(func(b *body.RigidBody) { b.ResetForces() })
	orphans := w.flushOrphans(ctx)

	if w.bus.HasSubscribers(event.Collision) {
		for _, p := range w.pairs {
			w.bus.Publish(event.NewCollisionEvent(w, p.a.Handle(), p.b.Handle(), p.normal, p.pos, p.points, p.maxDepth))
		}
	}

	solverStats := w.solver.Stats()
	stats := StepStats{
		Step:        w.step,
		Bodies:      w.arena.Len(),
		Dynamic:     len(w.dynamic),
		Contacts:    len(w.contacts),
		Pairs:       len(w.pairs),
		Constraints: len(w.constraintOrder),
		Batches:     solverStats.Batches,
		Orphans:     orphans,
		Duration:    time.Since(start),
	}
	if len(w.constraintSet) == 0 {
		stats.Batches = 0
	}

	for i, c := range w.contacts {
		c.Release()
		w.contacts[i] = nil
	}
	w.contacts = w.contacts[:0]
	for i := range w.pairs {
		w.pairs[i] = pairSummary{}
	}
	w.pairs = w.pairs[:0]
	clear(w.constraintSet)
	clear(w.dynamic)

	w.lastStep.Store(int64(stats.Duration))
	w.statsMu.Lock()
	w.lastStats = stats
	w.solverStats = solverStats
	w.statsMu.Unlock()

	if w.bus.HasSubscribers(event.StepCompleted) {
		se := event.NewStepEvent(w, stats.Step)
		se.Bodies = stats.Bodies
		se.Contacts = stats.Contacts
		se.Constraints = stats.Constraints
		se.Batches = stats.Batches
		se.Duration = stats.Duration
		w.bus.Publish(se)
	}
	w.logger.Debug(ctx, "step completed",
		"contacts", stats.Contacts,
		"constraints", stats.Constraints,
		"batches", stats.Batches,
		"duration", stats.Duration,
	)
	return stats
}

// initiateCollisions runs narrow phase for every active dynamic body across
// the worker pool. Each worker fills private lists that are merged in worker
// order, so the contact order does not depend on scheduling. A worker that
// panics contributes nothing for the step.
func (w *World) initiateCollisions(ctx context.Context) {
	n := len(w.dynamic)
	chunks := w.pool.Chunks(n)
	for i := 0; i < chunks; i++ {
		s := &w.scratch[i]
		s.contacts = s.contacts[:0]
		s.pairs = s.pairs[:0]
		s.done = false
	}

	err := w.pool.Range(ctx, n, func(worker, lo, hi int) {
		s := &w.scratch[worker]
		for _, a := range w.dynamic[lo:hi] {
			w.collideBody(a, s)
		}
		s.done = true
	})
	if err != nil {
		w.logger.Error(ctx, "collision worker failed, dropping its contacts", err)
	}

	for i := 0; i < chunks; i++ {
		s := &w.scratch[i]
		if !s.done {
			for _, c := range s.contacts {
				c.Release()
			}
			s.contacts = s.contacts[:0]
			s.pairs = s.pairs[:0]
			continue
		}
		w.contacts = append(w.contacts, s.contacts...)
		w.pairs = append(w.pairs, s.pairs...)
	}
}

// collideBody tests a against its broad-phase neighbours. A pair of dynamic
// bodies is tested only by the one with the smaller handle.
func (w *World) collideBody(a *body.RigidBody, s *workerScratch) {
	w.manager.GetRelevantObjects(a.AABB(), s.rel)
	ta := a.Shape().Type()
	ia := a.Instance()
	for t := range s.rel.ByType {
		if !shape.CanCollide(ta, shape.Type(t)) {
			continue
		}
		for _, b := range s.rel.ByType[t] {
			if b == a || (b.IsDynamic() && b.Handle().Less(a.Handle())) {
				continue
			}
			m := shape.Collide(ia, b.Instance())
			if m.Empty() {
				continue
			}

			params := w.params
			params.Share = 1 / float64(len(m.Points))
			sum := pairSummary{a: a, b: b, normal: m.Normal, points: len(m.Points)}
			for _, p := range m.Points {
				s.contacts = append(s.contacts, solver.NewContactPoint(a, b, p, params))
				sum.pos = sum.pos.Add(p.Pos)
				if p.Depth > sum.maxDepth {
					sum.maxDepth = p.Depth
				}
			}
			sum.pos = sum.pos.Mul(params.Share)
			s.pairs = append(s.pairs, sum)
		}
	}
}
