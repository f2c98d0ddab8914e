package view

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adam0307a/yurts-laundry-tracker/internal/feed"
	"github.com/adam0307a/yurts-laundry-tracker/internal/model"
)

func machine(id, block, name string, status model.MachineStatus) model.Machine {
	return model.Machine{ID: id, BlockID: block, Name: name, Type: model.TypeWasher, Status: status}
}

func TestApplyLastWriteWinsPerID(t *testing.T) {
	v := New()
	v.Load([]model.Machine{machine("m1", "a", "A-W-1", model.StatusAvailable)})

	v.Apply(feed.Event{Kind: feed.KindUpdate, Record: machine("m1", "a", "A-W-1", model.StatusInUse)})
	v.Apply(feed.Event{Kind: feed.KindUpdate, Record: machine("m1", "a", "A-W-1", model.StatusFinishing)})

	m, ok := v.Get("m1")
	require.True(t, ok)
	assert.Equal(t, model.StatusFinishing, m.Status)
}

func TestApplyDropsEventOvertakenByLaterCommit(t *testing.T) {
	v := New()
	v.Load([]model.Machine{machine("m1", "a", "A-W-1", model.StatusAvailable)})

	// Two commits happened in order start (v1) then end (v2), but their
	// events arrive reversed.
	ended := machine("m1", "a", "A-W-1", model.StatusAvailable)
	ended.Version = 2
	started := machine("m1", "a", "A-W-1", model.StatusInUse)
	started.Version = 1

	v.Apply(feed.Event{Kind: feed.KindUpdate, Record: ended})
	v.Apply(feed.Event{Kind: feed.KindUpdate, Record: started})

	m, ok := v.Get("m1")
	require.True(t, ok)
	assert.Equal(t, model.StatusAvailable, m.Status)
	assert.Equal(t, uint64(2), m.Version)
}

func TestApplyInsertAndDelete(t *testing.T) {
	v := New()

	v.Apply(feed.Event{Kind: feed.KindInsert, Record: machine("m1", "a", "A-W-1", model.StatusAvailable)})
	_, ok := v.Get("m1")
	assert.True(t, ok)

	v.Apply(feed.Event{Kind: feed.KindDelete, Record: machine("m1", "a", "A-W-1", model.StatusAvailable)})
	_, ok = v.Get("m1")
	assert.False(t, ok)
}

func TestSnapshotsAreOrderedCopies(t *testing.T) {
	v := New()
	v.Load([]model.Machine{
		machine("m2", "a", "A-W-2", model.StatusAvailable),
		machine("m1", "a", "A-W-1", model.StatusAvailable),
		machine("m3", "b", "B-W-1", model.StatusAvailable),
	})

	snap := v.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "A-W-1", snap[0].Name)
	assert.Equal(t, "A-W-2", snap[1].Name)
	assert.Equal(t, "B-W-1", snap[2].Name)

	blockA := v.SnapshotBlock("a")
	require.Len(t, blockA, 2)

	// Mutating the snapshot must not leak into the view.
	snap[0].Status = model.StatusNonexistent
	m, ok := v.Get("m1")
	require.True(t, ok)
	assert.Equal(t, model.StatusAvailable, m.Status)
}

func TestFollowAppliesEventsFromBroker(t *testing.T) {
	b := feed.NewBroker()
	events, cancel := b.Subscribe()
	defer cancel()

	v := New()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	done := make(chan struct{})
	go func() {
		v.Follow(ctx, events)
		close(done)
	}()

	b.Publish(feed.Event{Kind: feed.KindInsert, Record: machine("m1", "a", "A-W-1", model.StatusAvailable)})
	b.Publish(feed.Event{Kind: feed.KindUpdate, Record: machine("m1", "a", "A-W-1", model.StatusInUse)})

	require.Eventually(t, func() bool {
		m, ok := v.Get("m1")
		return ok && m.Status == model.StatusInUse
	}, 2*time.Second, 10*time.Millisecond)

	stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not stop on context cancellation")
	}
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	v := New()
	v.Load([]model.Machine{machine("m1", "a", "A-W-1", model.StatusAvailable)})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = v.Snapshot()
					_, _ = v.Get("m1")
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		status := model.StatusInUse
		if i%2 == 0 {
			status = model.StatusAvailable
		}
		v.Apply(feed.Event{Kind: feed.KindUpdate, Record: machine("m1", "a", "A-W-1", status)})
	}
	close(stop)
	wg.Wait()
}
