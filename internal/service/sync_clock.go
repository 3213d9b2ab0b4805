package service

import (
	"sync"
	"time"
)

// syncClock hands out strictly increasing UTC timestamps. Change pulls
// filter on updated_at > checkpoint, so two writes may never share a
// timestamp and a wall clock stepping backwards must not reorder them.
type syncClock struct {
	mu     sync.Mutex
	last   time.Time
	source func() time.Time
}

func newSyncClock(source func() time.Time) *syncClock {
	return &syncClock{source: source}
}

func (c *syncClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.source().UTC()
	if !now.After(c.last) {
		now = c.last.Add(time.Nanosecond)
	}
	c.last = now
	return now
}
