package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPool(t *testing.T) {
	assert := assert.New(t)

	t.Run("Get and Put", func(t *testing.T) {
		b := GetBuffer(16)
		assert.Len(*b, 16)
		PutBuffer(b)

		// Since bufferPool is a sync.Pool, the next buffer may or may not be b.
		b2 := GetBuffer(8)
		assert.Len(*b2, 8)
		PutBuffer(b2)
	})

	t.Run("Grows", func(t *testing.T) {
		small := GetBuffer(4)
		PutBuffer(small)

		big := GetBuffer(1024)
		assert.Len(*big, 1024)
		PutBuffer(big)
	})

	t.Run("Nil Put", func(t *testing.T) {
		assert.NotPanics(func() { PutBuffer(nil) })
	})

	t.Run("Concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				b := GetBuffer(n + 1)
				(*b)[n] = byte(n)
				assert.Len(*b, n+1)
				PutBuffer(b)
			}(i)
		}
		wg.Wait()
	})
}
