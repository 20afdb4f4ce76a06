package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateULIDFormat(t *testing.T) {
	id := CreateULID()
	assert.Len(t, id, 26)
}

func TestCreateULIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := CreateULID()
		require.False(t, seen[id], "duplicate ULID %s", id)
		seen[id] = true
	}
}

func TestCreateULIDConcurrent(t *testing.T) {
	const goroutines = 16
	const perGoroutine = 200

	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				local = append(local, CreateULID())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				assert.False(t, seen[id])
				seen[id] = true
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}
