package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncClock_StrictlyIncreasing(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	readings := []time.Time{
		base,
		base,                      // same instant twice
		base.Add(-time.Second),    // wall clock stepped back
		base.Add(2 * time.Second), // caught up
	}
	i := 0
	clock := newSyncClock(func() time.Time {
		r := readings[i]
		i++
		return r
	})

	got := make([]time.Time, len(readings))
	for n := range got {
		got[n] = clock.Now()
	}

	assert.Equal(t, base, got[0])
	assert.Equal(t, base.Add(time.Nanosecond), got[1])
	assert.Equal(t, base.Add(2*time.Nanosecond), got[2])
	assert.Equal(t, base.Add(2*time.Second), got[3])
	for n := 1; n < len(got); n++ {
		assert.True(t, got[n].After(got[n-1]), "reading %d", n)
	}
}

func TestSyncClock_ReturnsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	clock := newSyncClock(func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, loc) })

	assert.Equal(t, time.UTC, clock.Now().Location())
}
