// Package sweeper recomputes derived machine status on a fixed cadence.
//
// The sweeper is the single authoritative writer for elapsed reservations:
// it releases them itself through a conditional update and emits a
// completion event, while every other observer only derives display status
// locally and reconciles through the change feed.
package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/adam0307a/yurts-laundry-tracker/internal/feed"
	"github.com/adam0307a/yurts-laundry-tracker/internal/metrics"
	"github.com/adam0307a/yurts-laundry-tracker/internal/model"
	"github.com/adam0307a/yurts-laundry-tracker/internal/store"
)

// Sweeper drives the periodic status sweep.
type Sweeper struct {
	store    store.Store
	sink     feed.CompletionSink
	interval time.Duration
	now      func() time.Time
}

// New creates a Sweeper. sink may be nil when no completion consumer is
// wired (e.g. in a pure read deployment).
func New(s store.Store, sink feed.CompletionSink, interval time.Duration) *Sweeper {
	return &Sweeper{store: s, sink: sink, interval: interval, now: time.Now}
}

// WithClock overrides the sweeper's clock. Tests only.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run sweeps once immediately and then on every tick until the context is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log.Println("Starting status sweeper...")
	s.SweepOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Status sweeper shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// SweepOnce recomputes status for every reserved machine from the current
// time and its end time. The computation starts from scratch each pass;
// nothing is carried over between ticks. Store failures are logged and left
// for the next tick, never retried inline.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := s.now()

	machines, err := s.store.ListReservedMachines(ctx)
	if err != nil {
		log.Printf("sweep: listing reserved machines: %v", err)
		return
	}

	for _, m := range machines {
		remaining := model.RemainingMinutes(m, now)
		switch {
		case remaining <= 0:
			s.release(ctx, m, now)
		case remaining <= int(model.FinishingThreshold/time.Minute) && m.Status == model.StatusInUse:
			s.markFinishing(ctx, m)
		}
	}
}

// markFinishing flips inuse to finishing. Conditioned on the status still
// being inuse, so a repeat pass or a concurrent end is a no-op.
func (s *Sweeper) markFinishing(ctx context.Context, m model.Machine) {
	fields := map[string]any{"status": model.StatusFinishing}
	_, applied, err := s.store.UpdateMachine(ctx, m.ID, fields, store.StatusEquals(model.StatusInUse))
	if err != nil {
		log.Printf("sweep: marking machine %s finishing: %v", m.ID, err)
		return
	}
	if applied {
		log.Printf("machine %s is finishing", m.Name)
	}
}

// release clears an elapsed reservation. The condition requires the machine
// to still be reserved with its end time in the past, so a user-initiated
// end that lands first makes this a no-op and no completion event is
// emitted.
func (s *Sweeper) release(ctx context.Context, m model.Machine, now time.Time) {
	fields := store.ClearedReservationFields(model.StatusAvailable)
	_, applied, err := s.store.UpdateMachine(ctx, m.ID, fields, store.ReservedElapsed(now))
	if err != nil {
		log.Printf("sweep: releasing machine %s: %v", m.ID, err)
		return
	}
	if !applied {
		return
	}

	metrics.AutoReleases.Inc()
	log.Printf("machine %s reservation elapsed, released", m.Name)

	if s.sink != nil && m.OwnerID != nil && m.EndTime != nil {
		s.sink.ReservationCompleted(feed.Completion{
			MachineID:   m.ID,
			MachineName: m.Name,
			OwnerID:     *m.OwnerID,
			EndTime:     *m.EndTime,
		})
	}
}
