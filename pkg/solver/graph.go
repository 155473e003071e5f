// pkg/solver/graph.go
package solver

import (
	"context"

	"github.com/opd-ai/go-rigid/pkg/body"
	"github.com/opd-ai/go-rigid/pkg/logging"
)

// BatchData is one step-scoped group of constraints that share no movable
// body. Bodies lists the movable bodies the batch touches; EndpointA and
// EndpointB index into it, or hold -1 for anchors.
type BatchData struct {
	Constraints []Constraint
	Bodies      []*body.RigidBody
	EndpointA   []int32
	EndpointB   []int32
	// Done, when a backend fills it, marks the constraints it applied before
	// failing. The CPU fallback skips them.
	Done []bool
}

func (b *BatchData) reset() {
	b.Constraints = b.Constraints[:0]
	b.Bodies = b.Bodies[:0]
	b.EndpointA = b.EndpointA[:0]
	b.EndpointB = b.EndpointB[:0]
	b.Done = b.Done[:0]
}

// isAnchor reports whether b never blocks batching: missing, immovable or
// inactive bodies.
func isAnchor(b *body.RigidBody) bool {
	return b == nil || b.MergesSubgraphs()
}

// Options configures a GraphSolver.
type Options struct {
	// Iterations is the number of passes over every batch per step.
	Iterations int
	// Backend solves single batches; nil uses CPUBackend.
	Backend Backend
	Breaker BreakerSettings
	Logger  *logging.Logger
}

// GraphSolver batches a constraint set and iterates it through a backend.
type GraphSolver struct {
	iterations int
	backend    *guardedBackend
	logger     *logging.Logger

	batches []BatchData
	marks   map[*body.RigidBody]int32
	pending []Constraint
	next    []Constraint
	lastLen int
}

// NewGraphSolver creates a solver. If the backend fails to initialise it is
// replaced by the CPU backend and the failure is logged.
func NewGraphSolver(opts Options) *GraphSolver {
	if opts.Iterations <= 0 {
		opts.Iterations = 10
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &GraphSolver{
		iterations: opts.Iterations,
		backend:    newGuardedBackend(opts.Backend, opts.Breaker, opts.Logger),
		logger:     opts.Logger,
		marks:      make(map[*body.RigidBody]int32),
	}
}

// Iterations returns the number of passes per step.
func (s *GraphSolver) Iterations() int {
	return s.iterations
}

// SetIterations changes the number of passes per step.
func (s *GraphSolver) SetIterations(n int) {
	if n > 0 {
		s.iterations = n
	}
}

// Build partitions cs into batches. Each pass greedily takes every remaining
// constraint whose movable bodies are not yet used by the current batch, in
// input order. The returned slice is reused by the next call.
func (s *GraphSolver) Build(cs []Constraint) []BatchData {
	for i := range s.batches {
		s.batches[i].reset()
	}
	n := 0
	s.pending = append(s.pending[:0], cs...)
	for len(s.pending) > 0 {
		if n == len(s.batches) {
			s.batches = append(s.batches, BatchData{})
		}
		batch := &s.batches[n]
		clear(s.marks)
		s.next = s.next[:0]
		for _, c := range s.pending {
			a, b := c.Bodies()
			if s.used(a) || s.used(b) {
				s.next = append(s.next, c)
				continue
			}
			batch.Constraints = append(batch.Constraints, c)
			batch.EndpointA = append(batch.EndpointA, s.mark(batch, a))
			batch.EndpointB = append(batch.EndpointB, s.mark(batch, b))
		}
		s.pending, s.next = s.next, s.pending
		n++
	}
	s.lastLen = n
	return s.batches[:n]
}

func (s *GraphSolver) used(b *body.RigidBody) bool {
	if isAnchor(b) {
		return false
	}
	_, ok := s.marks[b]
	return ok
}

func (s *GraphSolver) mark(batch *BatchData, b *body.RigidBody) int32 {
	if isAnchor(b) {
		return -1
	}
	idx := int32(len(batch.Bodies))
	batch.Bodies = append(batch.Bodies, b)
	s.marks[b] = idx
	return idx
}

// Solve runs DoUpdateAction on every constraint, then iterates the batches:
// each iteration walks every batch in order.
func (s *GraphSolver) Solve(ctx context.Context, cs []Constraint, dt float64) {
	if len(cs) == 0 {
		return
	}
	for _, c := range cs {
		c.DoUpdateAction(dt)
	}
	batches := s.Build(cs)
	for it := 0; it < s.iterations; it++ {
		for i := range batches {
			s.backend.SolveBatch(ctx, &batches[i])
		}
	}
}

// Stats describes the last Solve call and the backend state.
type Stats struct {
	Batches   int    `json:"batches"`
	Backend   string `json:"backend"`
	Breaker   string `json:"breaker"`
	Fallbacks int64  `json:"fallbacks"`
	InitError string `json:"init_error,omitempty"`
}

// Stats returns the solver statistics.
func (s *GraphSolver) Stats() Stats {
	st := Stats{
		Batches:   s.lastLen,
		Backend:   s.backend.Name(),
		Breaker:   s.backend.State().String(),
		Fallbacks: s.backend.Fallbacks(),
	}
	if err := s.backend.InitError(); err != nil {
		st.InitError = err.Error()
	}
	return st
}
