package idgen

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Next(t *testing.T) {
	g := New(41)

	assert.Equal(t, int64(42), g.Next())
	assert.Equal(t, int64(43), g.Next())
	assert.Equal(t, int64(43), g.Last())
}

func TestGenerator_ConcurrentIDsAreDistinct(t *testing.T) {
	g := New(0)

	const workers = 8
	const perWorker = 500

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
	assert.Equal(t, int64(workers*perWorker), g.Last())
}

func TestNewFromClock(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g := NewFromClock(FixedClock(at))

	assert.Equal(t, at.UnixMilli()+1, g.Next())
}
