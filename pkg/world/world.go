// Package world runs the fixed-step simulation: it owns the bodies, the broad
// phase, the joint constraints and the solver, and exposes the add/remove,
// raycast and debug-draw surface collaborators use.
package world

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EngoEngine/ecs"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-rigid/pkg/body"
	"github.com/opd-ai/go-rigid/pkg/broadphase"
	"github.com/opd-ai/go-rigid/pkg/config"
	"github.com/opd-ai/go-rigid/pkg/event"
	"github.com/opd-ai/go-rigid/pkg/logging"
	"github.com/opd-ai/go-rigid/pkg/render"
	"github.com/opd-ai/go-rigid/pkg/solver"
	"github.com/opd-ai/go-rigid/pkg/validation"
	"github.com/opd-ai/go-rigid/pkg/workers"
)

// Errors returned by the add/remove API
var (
	ErrClosed          = errors.New("world is closed")
	ErrUnknownBody     = errors.New("body is not in this world")
	ErrAlreadyAdded    = errors.New("body is already in this world")
	ErrNilConstraintA  = errors.New("constraint has no first body")
	ErrInvalidPosition = errors.New("body position is not finite")
)

// Options configures a World. Zero fields take the defaults of
// config.DefaultConfig.
type Options struct {
	Config *config.Config
	Logger *logging.Logger
	// Backend overrides the solver backend named in the config.
	Backend solver.Backend
}

// StepStats describes one fixed step.
type StepStats struct {
	Step        uint64        `json:"step"`
	Bodies      int           `json:"bodies"`
	Dynamic     int           `json:"dynamic"`
	Contacts    int           `json:"contacts"`
	Pairs       int           `json:"pairs"`
	Constraints int           `json:"constraints"`
	Batches     int           `json:"batches"`
	Orphans     int           `json:"orphans"`
	Duration    time.Duration `json:"duration"`
}

// World is a rigid-body simulation. It is driven from a single goroutine;
// only the collision phase and the parallel solver backend fan out to the
// worker pool.
type World struct {
	cfg     config.Config
	logger  *logging.Logger
	arena   *body.Arena
	manager *broadphase.Manager
	pool    *workers.Pool
	solver  *solver.GraphSolver
	bus     *event.Bus

	gravity     mgl64.Vec3
	dt          float64
	maxSteps    int
	accumulator float64
	step        uint64
	params      solver.ContactParams
	driftCoeff  float64

	constraints      map[uint64]solver.Constraint
	constraintOrder  []uint64
	nextConstraintID uint64
	entities         map[uint64]body.Handle
	orphans          []*body.RigidBody

	// step-scoped scratch
	dynamic       []*body.RigidBody
	scratch       []workerScratch
	contacts      []*solver.ContactPoint
	pairs         []pairSummary
	constraintSet []solver.Constraint

	closed   atomic.Bool
	lastStep atomic.Int64

	statsMu     sync.Mutex
	lastStats   StepStats
	solverStats solver.Stats
}

// New creates a world from opts.
func New(opts Options) (*World, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, logging.WrapError(err, "invalid world config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	w := &World{
		cfg:         *cfg,
		logger:      logger,
		arena:       body.NewArena(),
		bus:         event.NewEventBus(),
		gravity:     cfg.World.GravityVec(),
		dt:          cfg.World.FixedTimestep,
		maxSteps:    cfg.World.MaxStepsPerUpdate,
		driftCoeff:  cfg.Solver.JointDriftCoeff,
		constraints: make(map[uint64]solver.Constraint),
		entities:    make(map[uint64]body.Handle),
		params: solver.ContactParams{
			UndoPenetrationCoeff: cfg.Solver.UndoPenetrationCoeff,
			Share:                1,
			StaticFrictionScale:  cfg.Solver.StaticFrictionScale,
			KineticFrictionScale: cfg.Solver.KineticFrictionScale,
		},
		nextConstraintID: 1,
	}
	w.manager = broadphase.NewManager(broadphase.Options{
		RegionSize:      cfg.Broadphase.RegionSize,
		WorldHalfExtent: cfg.Broadphase.WorldHalfExtent,
		OnOrphan:        w.onOrphan,
	})
	w.pool = workers.NewPool(cfg.World.Workers, logger)
	w.scratch = make([]workerScratch, w.pool.Size())
	for i := range w.scratch {
		w.scratch[i].rel = broadphase.NewRelevant()
	}

	backend := opts.Backend
	if backend == nil && cfg.Solver.Backend == "parallel" {
		pb := solver.NewParallelBackend(w.pool)
		pb.MinBatch = cfg.Solver.ParallelMinBatch
		backend = pb
	}
	w.solver = solver.NewGraphSolver(solver.Options{
		Iterations: cfg.Solver.Iterations,
		Backend:    backend,
		Breaker: solver.BreakerSettings{
			MaxRequests:         cfg.CircuitBreaker.MaxRequests,
			Interval:            cfg.CircuitBreaker.Interval.Std(),
			Timeout:             cfg.CircuitBreaker.Timeout.Std(),
			MaxConsecutiveFails: cfg.CircuitBreaker.MaxConsecutiveFails,
		},
		Logger: logger,
	})
	w.solverStats = w.solver.Stats()

	logger.Info(context.Background(), "world created",
		"timestep", w.dt,
		"workers", w.pool.Size(),
		"backend", w.solverStats.Backend,
		"iterations", cfg.Solver.Iterations,
	)
	return w, nil
}

// Config returns the configuration the world was built with.
func (w *World) Config() config.Config {
	return w.cfg
}

// Events returns the bus on which the world publishes.
func (w *World) Events() *event.Bus {
	return w.bus
}

// Gravity returns the gravity vector.
func (w *World) Gravity() mgl64.Vec3 {
	return w.gravity
}

// SetGravity changes the gravity vector.
func (w *World) SetGravity(g mgl64.Vec3) {
	w.gravity = g
}

// Timestep returns the fixed step length in seconds.
func (w *World) Timestep() float64 {
	return w.dt
}

// StepCount returns the number of completed steps.
func (w *World) StepCount() uint64 {
	return w.step
}

// Body resolves a handle.
func (w *World) Body(h body.Handle) (*body.RigidBody, bool) {
	return w.arena.Get(h)
}

// Bodies returns every body in handle order.
func (w *World) Bodies() []*body.RigidBody {
	return w.arena.Bodies()
}

// BodyCount returns the number of bodies.
func (w *World) BodyCount() int {
	return w.arena.Len()
}

// Broadphase exposes the region manager for inspection.
func (w *World) Broadphase() *broadphase.Manager {
	return w.manager
}

// Pool returns the worker pool shared by collision and the parallel backend.
func (w *World) Pool() *workers.Pool {
	return w.pool
}

func (w *World) owns(b *body.RigidBody) bool {
	if b == nil {
		return false
	}
	cur, ok := w.arena.Get(b.Handle())
	return ok && cur == b
}

// AddBody inserts b and files it in the broad phase.
func (w *World) AddBody(b *body.RigidBody) (body.Handle, error) {
	if w.closed.Load() {
		return body.Handle{}, ErrClosed
	}
	if w.owns(b) {
		return body.Handle{}, ErrAlreadyAdded
	}
	if err := validation.ValidateVec3("position", b.Position()); err != nil {
		return body.Handle{}, errors.Join(ErrInvalidPosition, err)
	}

	h := w.arena.Insert(b)
	if err := w.manager.Add(b); err != nil {
		w.arena.Remove(h)
		return body.Handle{}, logging.WrapError(err, "add body %s", h)
	}
	w.entities[b.ID()] = h

	w.logger.Debug(context.Background(), "body added",
		"body", h.String(),
		"shape", b.Shape().Type().String(),
		"dynamic", b.IsDynamic(),
	)
	if w.bus.HasSubscribers(event.BodyAdded) {
		w.bus.Publish(event.NewBodyEvent(event.BodyAdded, w, h, b.ID()))
	}
	return h, nil
}

// RemoveBody removes the body behind h together with every constraint
// attached to it. It reports whether h was live.
func (w *World) RemoveBody(h body.Handle) bool {
	b, ok := w.arena.Remove(h)
	if !ok {
		return false
	}
	w.manager.Remove(b)
	for _, id := range b.Constraints() {
		w.RemoveConstraint(id)
	}
	delete(w.entities, b.ID())

	w.logger.Debug(context.Background(), "body removed", "body", h.String())
	if w.bus.HasSubscribers(event.BodyRemoved) {
		w.bus.Publish(event.NewBodyEvent(event.BodyRemoved, w, h, b.ID()))
	}
	return true
}

// RemoveEntity removes the body carrying the given ecs identity.
func (w *World) RemoveEntity(e ecs.BasicEntity) bool {
	h, ok := w.entities[e.ID()]
	if !ok {
		return false
	}
	return w.RemoveBody(h)
}

// SetActive moves a body between the active and inactive sets.
func (w *World) SetActive(h body.Handle, active bool) bool {
	b, ok := w.arena.Get(h)
	if !ok {
		return false
	}
	w.manager.SetActive(b, active)
	return true
}

// onOrphan queues bodies that left every region; the queue is drained after
// the position phase. Bodies being removed through RemoveBody are already
// gone from the arena and are ignored.
func (w *World) onOrphan(b *body.RigidBody) {
	if w.owns(b) {
		w.orphans = append(w.orphans, b)
	}
}

func (w *World) flushOrphans(ctx context.Context) int {
	n := len(w.orphans)
	for i, b := range w.orphans {
		h := b.Handle()
		w.logger.Warn(ctx, "body left the world, removing",
			"body", h.String(),
			"position", b.Position(),
		)
		if w.bus.HasSubscribers(event.BodyOrphaned) {
			w.bus.Publish(event.NewBodyEvent(event.BodyOrphaned, w, h, b.ID()))
		}
		w.RemoveBody(h)
		w.orphans[i] = nil
	}
	w.orphans = w.orphans[:0]
	return n
}

// AddConstraint registers a persistent constraint such as a joint. Both
// bodies, when non-nil, must belong to the world.
func (w *World) AddConstraint(c solver.Constraint) (uint64, error) {
	a, b := c.Bodies()
	if a == nil {
		return 0, ErrNilConstraintA
	}
	if !w.owns(a) || (b != nil && !w.owns(b)) {
		return 0, ErrUnknownBody
	}
	id := w.nextConstraintID
	w.nextConstraintID++
	w.constraints[id] = c
	w.constraintOrder = append(w.constraintOrder, id)
	a.AttachConstraint(id)
	if b != nil {
		b.AttachConstraint(id)
	}

	if w.bus.HasSubscribers(event.ConstraintAdded) {
		w.bus.Publish(event.NewConstraintEvent(event.ConstraintAdded, w, id))
	}
	return id, nil
}

// NewJoint creates a ball-and-socket joint at pivot using the configured
// drift coefficient. It still has to be added with AddConstraint.
func (w *World) NewJoint(a, b *body.RigidBody, pivot mgl64.Vec3) *solver.SkeletalJoint {
	j := solver.NewSkeletalJoint(a, b, pivot)
	j.DriftCoeff = w.driftCoeff
	return j
}

// RemoveConstraint unregisters a constraint. It reports whether id was live.
func (w *World) RemoveConstraint(id uint64) bool {
	c, ok := w.constraints[id]
	if !ok {
		return false
	}
	delete(w.constraints, id)
	for i, cid := range w.constraintOrder {
		if cid == id {
			w.constraintOrder = append(w.constraintOrder[:i], w.constraintOrder[i+1:]...)
			break
		}
	}
	a, b := c.Bodies()
	a.DetachConstraint(id)
	if b != nil {
		b.DetachConstraint(id)
	}

	if w.bus.HasSubscribers(event.ConstraintRemoved) {
		w.bus.Publish(event.NewConstraintEvent(event.ConstraintRemoved, w, id))
	}
	return true
}

// Constraint resolves a constraint ID.
func (w *World) Constraint(id uint64) (solver.Constraint, bool) {
	c, ok := w.constraints[id]
	return c, ok
}

// ConstraintCount returns the number of persistent constraints.
func (w *World) ConstraintCount() int {
	return len(w.constraints)
}

// DebugDraw appends the debug-draw primitives of every body to out. Each
// request carries the entity ID of its body.
func (w *World) DebugDraw(out *[]render.DrawRequest) {
	w.arena.Each(func(b *body.RigidBody) {
		if b.Shape() == nil {
			return
		}
		n := len(*out)
		b.Shape().AppendDebugDraw(b.Transform(), out)
		for i := n; i < len(*out); i++ {
			(*out)[i].Body = b.ID()
		}
	})
}

// Update advances the simulation by elapsed seconds of wall-clock time in
// fixed steps. At most MaxStepsPerUpdate steps run; time beyond that is
// dropped. It returns the number of steps taken.
func (w *World) Update(elapsed float64) int {
	if w.closed.Load() || elapsed <= 0 {
		return 0
	}
	w.accumulator += elapsed
	steps := 0
	for w.accumulator >= w.dt && steps < w.maxSteps {
		w.Step()
		w.accumulator -= w.dt
		steps++
	}
	if w.accumulator >= w.dt {
		kept := math.Mod(w.accumulator, w.dt)
		w.logger.Debug(context.Background(), "dropping simulation time",
			"dropped", w.accumulator-kept,
			"steps", steps,
		)
		w.accumulator = kept
	}
	return steps
}

// LastStepDuration returns the wall-clock time of the last step. Safe for
// concurrent use.
func (w *World) LastStepDuration() time.Duration {
	return time.Duration(w.lastStep.Load())
}

// LastStats returns the statistics of the last step. Safe for concurrent
// use.
func (w *World) LastStats() StepStats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.lastStats
}

// SolverStats returns the solver statistics as of the last step. Safe for
// concurrent use.
func (w *World) SolverStats() solver.Stats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.solverStats
}

// Running reports whether Close has not been called. Safe for concurrent
// use.
func (w *World) Running() bool {
	return !w.closed.Load()
}

// Close stops the world. Further Update and Step calls do nothing.
func (w *World) Close() {
	if w.closed.Swap(true) {
		return
	}
	w.logger.Info(context.Background(), "world closed",
		"steps", w.step,
		"bodies", w.arena.Len(),
	)
}
