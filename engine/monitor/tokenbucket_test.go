package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_AllowsExactlyCapacityPerSecond(t *testing.T) {
	start := time.Unix(0, 0)
	tb := newTokenBucket(5, start)

	for i := 0; i < 5; i++ {
		assert.True(t, tb.Allow(start), "request %d should be allowed", i+1)
	}
	assert.False(t, tb.Allow(start), "the (capacity+1)th request in the same tick must be dropped")
}

func TestTokenBucket_RefillsAfterOneSecond(t *testing.T) {
	start := time.Unix(0, 0)
	tb := newTokenBucket(2, start)

	assert.True(t, tb.Allow(start))
	assert.True(t, tb.Allow(start))
	assert.False(t, tb.Allow(start))

	later := start.Add(time.Second)
	assert.True(t, tb.Allow(later))
	assert.True(t, tb.Allow(later))
	assert.False(t, tb.Allow(later))
}
