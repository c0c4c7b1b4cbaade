package auth

import (
	"sync"
	"time"
)

type testClock struct {
	mu      sync.Mutex
	current time.Time
}

// newTestClock starts on a whole second so issue times and token iat agree.
func newTestClock() *testClock {
	return &testClock{current: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}
