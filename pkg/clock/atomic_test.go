package clock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtomicClock_Next(t *testing.T) {
	c := NewAtomic(5)
	assert.Equal(t, uint64(5), c.Val())
	assert.Equal(t, uint64(6), c.Next())
	assert.Equal(t, uint64(6), c.Val())
}

func TestAtomicClock_Advance(t *testing.T) {
	c := NewAtomic(10)
	c.Advance(3)
	assert.Equal(t, uint64(10), c.Val())
	c.Advance(42)
	assert.Equal(t, uint64(42), c.Val())
}

func TestAtomicClock_ConcurrentNext(t *testing.T) {
	c := NewAtomic(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Next()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(800), c.Val())
}
