package taskstore

import (
	"sync/atomic"
	"time"

	"github.com/IDGHIM/TaskFlow/domain"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock in Location, UTC when nil.
type RealClock struct {
	Location *time.Location
}

func (c RealClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns T. It is meant for tests and demos.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// Today formats the clock's current date as YYYY-MM-DD.
func Today(c Clock) string {
	return c.Now().Format(domain.DateLayout)
}

var lastTimestamp int64

// nextTimestamp returns a strictly increasing unix nano timestamp, even when
// called more than once within the same clock tick.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}
