// pkg/workers/pool_test.go
package workers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RangeCoversEveryIndexOnce(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		n          int
		wantChunks int
	}{
		{"Empty", 4, 0, 0},
		{"FewerItemsThanWorkers", 8, 3, 3},
		{"Even", 4, 16, 4},
		{"Uneven", 4, 10, 4},
		{"SingleWorker", 1, 7, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool(tt.size, nil)
			assert.Equal(t, tt.wantChunks, p.Chunks(tt.n))

			hits := make([]int, tt.n)
			var mu sync.Mutex
			workersSeen := map[int]bool{}
			err := p.Range(context.Background(), tt.n, func(w, lo, hi int) {
				mu.Lock()
				workersSeen[w] = true
				mu.Unlock()
				for i := lo; i < hi; i++ {
					hits[i]++
				}
			})
			require.NoError(t, err)
			for i, h := range hits {
				assert.Equal(t, 1, h, "index %d", i)
			}
			assert.Len(t, workersSeen, tt.wantChunks)
		})
	}
}

func TestPool_RangesAreContiguousAndOrdered(t *testing.T) {
	p := NewPool(3, nil)
	bounds := make([][2]int, p.Chunks(10))
	require.NoError(t, p.Range(context.Background(), 10, func(w, lo, hi int) {
		bounds[w] = [2]int{lo, hi}
	}))
	assert.Equal(t, [][2]int{{0, 4}, {4, 7}, {7, 10}}, bounds)
}

func TestPool_EveryChunkGetsItsOwnBounds(t *testing.T) {
	tests := []struct {
		name string
		size int
		n    int
		want [][2]int
	}{
		{"FourWorkersTenItems", 4, 10, [][2]int{{0, 3}, {3, 6}, {6, 8}, {8, 10}}},
		{"TwoWorkersFiveItems", 2, 5, [][2]int{{0, 3}, {3, 5}}},
		{"EqualChunks", 4, 8, [][2]int{{0, 2}, {2, 4}, {4, 6}, {6, 8}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool(tt.size, nil)
			got := make([][2]int, p.Chunks(tt.n))
			require.NoError(t, p.Range(context.Background(), tt.n, func(w, lo, hi int) {
				got[w] = [2]int{lo, hi}
			}))
			assert.Equal(t, tt.want, got)
			for w, b := range got {
				assert.Less(t, b[0], b[1], "chunk %d is empty", w)
			}
		})
	}
}

func TestPool_PanicIsRecovered(t *testing.T) {
	p := NewPool(4, nil)
	done := make([]bool, 4)
	err := p.Range(context.Background(), 4, func(w, lo, hi int) {
		if w == 2 {
			panic("boom")
		}
		done[w] = true
	})

	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Worker)
	assert.Equal(t, []bool{true, true, false, true}, done)
	assert.EqualValues(t, 1, p.Stats().Panics)

	hc := NewPoolHealthCheck(p)
	assert.Equal(t, "workers", hc.Name())
	assert.Error(t, hc.Check(context.Background()))
	assert.NoError(t, hc.Check(context.Background()), "each panic is reported once")
}

func TestPool_DefaultSize(t *testing.T) {
	p := NewPool(0, nil)
	assert.Positive(t, p.Size())
}
