package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryAddAndSnapshotConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Add(RequestsServed, 1)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 100, r.Snapshot().Get(RequestsServed))
}
