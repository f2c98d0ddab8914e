// Package view maintains the in-memory mirror of all machine records, kept
// in sync with the store's change feed. Readers always see a consistent
// snapshot; updates apply by record identity and the highest committed
// version wins.
package view

import (
	"context"
	"sort"
	"sync"

	"github.com/adam0307a/yurts-laundry-tracker/internal/feed"
	"github.com/adam0307a/yurts-laundry-tracker/internal/model"
)

// View is the authoritative read model for one process.
type View struct {
	mu       sync.RWMutex
	machines map[string]model.Machine
}

// New creates an empty view.
func New() *View {
	return &View{machines: make(map[string]model.Machine)}
}

// Load replaces the view's contents with the given records, typically the
// result of an initial full list from the store.
func (v *View) Load(machines []model.Machine) {
	next := make(map[string]model.Machine, len(machines))
	for _, m := range machines {
		next[m.ID] = m
	}
	v.mu.Lock()
	v.machines = next
	v.mu.Unlock()
}

// Apply folds one change event into the view. Events carrying a lower
// version than the record already held are overtaken by a later commit and
// are dropped, so delivery order between writers does not matter.
func (v *View) Apply(ev feed.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch ev.Kind {
	case feed.KindInsert, feed.KindUpdate:
		if cur, ok := v.machines[ev.Record.ID]; ok && ev.Record.Version < cur.Version {
			return
		}
		v.machines[ev.Record.ID] = ev.Record
	case feed.KindDelete:
		delete(v.machines, ev.Record.ID)
	}
}

// Follow applies events from the channel until it closes or the context is
// cancelled. Meant to run in its own goroutine, fed by a broker
// subscription.
func (v *View) Follow(ctx context.Context, events <-chan feed.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			v.Apply(ev)
		}
	}
}

// Get returns one machine by id.
func (v *View) Get(id string) (model.Machine, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	m, ok := v.machines[id]
	return m, ok
}

// Snapshot returns a copy of all machines, ordered by name.
func (v *View) Snapshot() []model.Machine {
	v.mu.RLock()
	machines := make([]model.Machine, 0, len(v.machines))
	for _, m := range v.machines {
		machines = append(machines, m)
	}
	v.mu.RUnlock()

	sort.Slice(machines, func(i, j int) bool { return machines[i].Name < machines[j].Name })
	return machines
}

// SnapshotBlock returns a copy of the machines in one block, ordered by name.
func (v *View) SnapshotBlock(blockID string) []model.Machine {
	v.mu.RLock()
	var machines []model.Machine
	for _, m := range v.machines {
		if m.BlockID == blockID {
			machines = append(machines, m)
		}
	}
	v.mu.RUnlock()

	sort.Slice(machines, func(i, j int) bool { return machines[i].Name < machines[j].Name })
	return machines
}
