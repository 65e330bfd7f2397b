package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_CoalescesBurstIntoOneFlush(t *testing.T) {
	var mu sync.Mutex
	flushes := 0

	d := newDebouncer(30*time.Millisecond, SystemClock, func(path, op string, recent bool) {
		mu.Lock()
		flushes++
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		d.Notify("file.go", "write", false)
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, flushes, "10 writes within the debounce window must coalesce into exactly one flush")
}
