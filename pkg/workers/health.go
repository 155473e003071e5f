// pkg/workers/health.go
package workers

import (
	"context"
	"fmt"
	"sync/atomic"
)

// PoolHealthCheck reports worker panics.
type PoolHealthCheck struct {
	pool       *Pool
	seenPanics atomic.Int64
}

// NewPoolHealthCheck creates a health check for pool.
func NewPoolHealthCheck(pool *Pool) *PoolHealthCheck {
	return &PoolHealthCheck{pool: pool}
}

// Name returns the name of this health check.
func (c *PoolHealthCheck) Name() string {
	return "workers"
}

// Check fails once for every batch of new worker panics.
func (c *PoolHealthCheck) Check(ctx context.Context) error {
	panics := c.pool.Stats().Panics
	if seen := c.seenPanics.Swap(panics); panics > seen {
		return fmt.Errorf("%d worker panics since last check", panics-seen)
	}
	return nil
}
