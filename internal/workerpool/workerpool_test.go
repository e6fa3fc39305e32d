package workerpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubmitRunsOnPool(t *testing.T) {
	p, err := New(4)
	require.NoError(t, err)
	defer p.Release()

	var wg sync.WaitGroup
	var mu sync.Mutex
	sum := 0
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		i := i
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			mu.Lock()
			sum += i
			mu.Unlock()
		}))
	}
	wg.Wait()
	require.Equal(t, 55, sum)
}
