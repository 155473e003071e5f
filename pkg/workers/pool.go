// Package workers runs the data-parallel phases of a physics step. Work is
// split into contiguous index ranges, one per worker, and the caller blocks
// until every range completes.
package workers

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/go-rigid/pkg/logging"
)

// RangeFunc processes the half-open index range [lo, hi). worker identifies
// the chunk and is stable for a given (n, Size()) pair.
type RangeFunc func(worker, lo, hi int)

// PanicError reports a chunk that panicked.
type PanicError struct {
	Worker int
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker %d panicked: %v", e.Worker, e.Value)
}

// Pool is a fixed-size set of workers for stateless per-step tasks.
type Pool struct {
	size   int
	logger *logging.Logger

	// Atomic counters for thread-safe access
	dispatches int64
	chunks     int64
	panics     int64
	busy       int64
	lastNanos  int64
}

// NewPool creates a pool of size workers; size <= 0 uses GOMAXPROCS.
func NewPool(size int, logger *logging.Logger) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pool{size: size, logger: logger}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Chunks returns how many ranges Range will use for n items.
func (p *Pool) Chunks(n int) int {
	if n <= 0 {
		return 0
	}
	if n < p.size {
		return n
	}
	return p.size
}

// Range splits [0, n) into Chunks(n) contiguous ranges and runs fn on each
// concurrently. A panicking chunk is recovered and logged; its error is
// returned after every other chunk has finished.
func (p *Pool) Range(ctx context.Context, n int, fn RangeFunc) error {
	chunks := p.Chunks(n)
	if chunks == 0 {
		return nil
	}
	start := time.Now()
	atomic.AddInt64(&p.dispatches, 1)
	atomic.AddInt64(&p.chunks, int64(chunks))
	defer func() { atomic.StoreInt64(&p.lastNanos, int64(time.Since(start))) }()

	if chunks == 1 {
		return p.run(ctx, 0, 0, n, fn)
	}

	var g errgroup.Group
	per, extra := n/chunks, n%chunks
	lo := 0
	for w := 0; w < chunks; w++ {
		hi := lo + per
		if w < extra {
			hi++
		}
		worker, from, to := w, lo, hi
		g.Go(func() error { return p.run(ctx, worker, from, to, fn) })
		lo = hi
	}
	return g.Wait()
}

func (p *Pool) run(ctx context.Context, w, lo, hi int, fn RangeFunc) (err error) {
	atomic.AddInt64(&p.busy, 1)
	defer atomic.AddInt64(&p.busy, -1)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.panics, 1)
			err = &PanicError{Worker: w, Value: r}
			p.logger.Error(ctx, "worker panic", err, "worker", w, "lo", lo, "hi", hi)
		}
	}()
	fn(w, lo, hi)
	return nil
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Size         int           `json:"size"`
	Dispatches   int64         `json:"dispatches"`
	Chunks       int64         `json:"chunks"`
	Panics       int64         `json:"panics"`
	Busy         int64         `json:"busy"`
	LastDispatch time.Duration `json:"last_dispatch"`
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Size:         p.size,
		Dispatches:   atomic.LoadInt64(&p.dispatches),
		Chunks:       atomic.LoadInt64(&p.chunks),
		Panics:       atomic.LoadInt64(&p.panics),
		Busy:         atomic.LoadInt64(&p.busy),
		LastDispatch: time.Duration(atomic.LoadInt64(&p.lastNanos)),
	}
}
