// Package notifier turns completion events into at-most-once push
// notifications for the reservation's owner.
package notifier

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/adam0307a/yurts-laundry-tracker/internal/feed"
)

// Notifier deduplicates completion events per reservation cycle and hands
// the survivors to the worker pool. The sweeper may report the same elapsed
// reservation on several ticks; tagging each cycle by (machineID, endTime)
// guarantees a single notification per cycle.
type Notifier struct {
	pool *WorkerPool
	seen *cache.Cache
}

// New creates a Notifier in front of the given worker pool.
func New(pool *WorkerPool) *Notifier {
	return &Notifier{
		pool: pool,
		seen: cache.New(12*time.Hour, time.Hour),
	}
}

// ReservationCompleted implements feed.CompletionSink.
func (n *Notifier) ReservationCompleted(c feed.Completion) {
	key := cycleKey(c.MachineID, c.EndTime)
	if err := n.seen.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
		// Already notified for this cycle.
		return
	}
	n.pool.Dispatch(c)
}

func cycleKey(machineID string, endTime time.Time) string {
	return fmt.Sprintf("%s|%d", machineID, endTime.UnixNano())
}
