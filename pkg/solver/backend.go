// pkg/solver/backend.go
package solver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/opd-ai/go-rigid/pkg/logging"
	"github.com/opd-ai/go-rigid/pkg/workers"
)

// Backend solves one batch. Constraints in a batch share no movable body, so
// a backend may process them in any order or concurrently.
type Backend interface {
	Name() string
	Init() error
	SolveBatch(ctx context.Context, batch *BatchData) error
}

// CPUBackend solves a batch sequentially on the calling goroutine.
type CPUBackend struct{}

func (CPUBackend) Name() string { return "cpu" }
func (CPUBackend) Init() error  { return nil }

// SolveBatch applies every constraint once.
func (CPUBackend) SolveBatch(_ context.Context, batch *BatchData) error {
	for _, c := range batch.Constraints {
		c.DoConstraintAction()
	}
	return nil
}

// ParallelBackend spreads a batch over a worker pool. Batches smaller than
// MinBatch are solved inline.
type ParallelBackend struct {
	Pool     *workers.Pool
	MinBatch int
}

// NewParallelBackend creates a backend on pool.
func NewParallelBackend(pool *workers.Pool) *ParallelBackend {
	return &ParallelBackend{Pool: pool, MinBatch: 64}
}

func (p *ParallelBackend) Name() string { return "parallel" }

// Init fails when no pool is attached.
func (p *ParallelBackend) Init() error {
	if p.Pool == nil {
		return errors.New("parallel backend has no worker pool")
	}
	return nil
}

// SolveBatch applies every constraint once across the pool. Each applied
// constraint is marked in batch.Done, so a panicking chunk leaves the
// unapplied remainder for the fallback.
func (p *ParallelBackend) SolveBatch(ctx context.Context, batch *BatchData) error {
	cs := batch.Constraints
	if len(cs) < p.MinBatch || p.Pool.Size() == 1 {
		return CPUBackend{}.SolveBatch(ctx, batch)
	}
	done := batch.Done[:0]
	for range cs {
		done = append(done, false)
	}
	batch.Done = done
	return p.Pool.Range(ctx, len(cs), func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			cs[i].DoConstraintAction()
			done[i] = true
		}
	})
}

// BreakerSettings configures the circuit breaker around an accelerated
// backend.
type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	MaxConsecutiveFails uint32
}

// DefaultBreakerSettings returns the stock breaker tuning.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             5 * time.Second,
		MaxConsecutiveFails: 3,
	}
}

// guardedBackend runs an accelerated backend through a circuit breaker and
// falls back to the CPU backend when it fails or the breaker is open.
type guardedBackend struct {
	primary   Backend
	fallback  CPUBackend
	breaker   *gobreaker.CircuitBreaker
	logger    *logging.Logger
	initErr   error
	fallbacks int64
}

func newGuardedBackend(primary Backend, settings BreakerSettings, logger *logging.Logger) *guardedBackend {
	g := &guardedBackend{logger: logger}
	if primary == nil {
		return g
	}
	if err := primary.Init(); err != nil {
		g.initErr = logging.WrapError(err, "init %s backend", primary.Name())
		logger.Error(context.Background(), "solver backend unavailable, using cpu", g.initErr,
			"backend", primary.Name(),
		)
		return g
	}
	if settings.MaxConsecutiveFails == 0 {
		settings = DefaultBreakerSettings()
	}
	g.primary = primary
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "solver-" + primary.Name(),
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxConsecutiveFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from,
				"to", to,
			)
		},
	})
	return g
}

// Name returns the backend in use.
func (g *guardedBackend) Name() string {
	if g.primary == nil {
		return g.fallback.Name()
	}
	return g.primary.Name()
}

// State returns the breaker state; without an accelerated backend the
// breaker is reported closed.
func (g *guardedBackend) State() gobreaker.State {
	if g.breaker == nil {
		return gobreaker.StateClosed
	}
	return g.breaker.State()
}

func (g *guardedBackend) Fallbacks() int64 {
	return atomic.LoadInt64(&g.fallbacks)
}

func (g *guardedBackend) InitError() error {
	return g.initErr
}

func (g *guardedBackend) SolveBatch(ctx context.Context, batch *BatchData) {
	if g.primary == nil {
		g.fallback.SolveBatch(ctx, batch)
		return
	}
	batch.Done = batch.Done[:0]
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.primary.SolveBatch(ctx, batch)
	})
	if err == nil {
		return
	}
	atomic.AddInt64(&g.fallbacks, 1)
	if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
		g.logger.Error(ctx, "batch failed, solving on cpu", fmt.Errorf("circuit breaker: %w", err),
			"backend", g.primary.Name(),
			"constraints", len(batch.Constraints),
			"state", g.breaker.State(),
		)
	}
	g.solveRemaining(ctx, batch)
}

// solveRemaining runs the fallback over the constraints the primary did not
// mark as applied. Without marks the whole batch is solved again.
func (g *guardedBackend) solveRemaining(ctx context.Context, batch *BatchData) {
	if len(batch.Done) != len(batch.Constraints) {
		g.fallback.SolveBatch(ctx, batch)
		return
	}
	for i, c := range batch.Constraints {
		if !batch.Done[i] {
			c.DoConstraintAction()
		}
	}
}
