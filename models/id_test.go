package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequentialIDGeneratorNew(t *testing.T) {
	t.Run("returns a new id", func(t *testing.T) {
		var idGen SequentialIDGenerator

		for i := 1; i <= 5; i++ {
			id := idGen.New()
			require.Equal(t, uint32(i), id)
		}
		require.Equal(t, 5, idGen.InUse())
	})

	t.Run("returns the lowest reusable id", func(t *testing.T) {
		var idGen SequentialIDGenerator

		for i := 1; i <= 5; i++ {
			idGen.New()
		}

		idGen.Reuse(4)
		idGen.Reuse(2)
		require.Equal(t, 3, idGen.InUse())
		require.Equal(t, uint32(2), idGen.New())
		require.Equal(t, uint32(4), idGen.New())
		require.Equal(t, uint32(6), idGen.New())
	})

	t.Run("ignores unknown and duplicate ids", func(t *testing.T) {
		var idGen SequentialIDGenerator
		idGen.New()

		idGen.Reuse(0)
		idGen.Reuse(42)
		idGen.Reuse(1)
		idGen.Reuse(1)
		require.Zero(t, idGen.InUse())
		require.Equal(t, uint32(1), idGen.New())
		require.Equal(t, uint32(2), idGen.New())
	})

	t.Run("concurrent use returns unique ids", func(t *testing.T) {
		var idGen SequentialIDGenerator
		var mutex sync.Mutex
		var wg sync.WaitGroup
		ids := make(map[uint32]struct{})

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := idGen.New()

				mutex.Lock()
				ids[id] = struct{}{}
				mutex.Unlock()
			}()
		}

		wg.Wait()
		require.Len(t, ids, 50)
	})
}
