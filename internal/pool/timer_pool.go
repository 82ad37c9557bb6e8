// Package pool recycles the timers of the connection wait loops.
package pool

import (
	"sync"
	"time"
)

// Pooled timers are always stopped. Since Go 1.23 Stop and Reset discard a pending
// tick, so a timer taken from the pool never delivers a stale value.
var timerPool = sync.Pool{
	New: func() any {
		t := time.NewTimer(time.Hour)
		t.Stop()

		return t
	},
}

// GetTimer returns a timer firing after d. A non-positive d fires immediately.
//
// Hand the timer back with PutTimer once the wait is over.
func GetTimer(d time.Duration) *time.Timer {
	t, _ := timerPool.Get().(*time.Timer)
	t.Reset(max(d, 0))

	return t
}

// PutTimer stops t and returns it to the pool. t must not be used afterwards.
func PutTimer(t *time.Timer) {
	t.Stop()
	timerPool.Put(t)
}
