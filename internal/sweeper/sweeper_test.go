package sweeper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/adam0307a/yurts-laundry-tracker/internal/feed"
	"github.com/adam0307a/yurts-laundry-tracker/internal/model"
	"github.com/adam0307a/yurts-laundry-tracker/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	require.NoError(t, db.AutoMigrate(&model.Block{}, &model.Machine{}))

	s := store.NewGormStore(db, feed.NewBroker())
	require.NoError(t, s.Seed(context.Background(), []model.Block{{ID: "a", Name: "A Blok"}}, []model.Machine{
		{ID: "a-w-1", BlockID: "a", Name: "A-W-1", Type: model.TypeWasher, Status: model.StatusAvailable},
		{ID: "a-w-2", BlockID: "a", Name: "A-W-2", Type: model.TypeWasher, Status: model.StatusAvailable},
	}))
	return s
}

// recordingSink captures completion events for assertions.
type recordingSink struct {
	mu          sync.Mutex
	completions []feed.Completion
}

func (r *recordingSink) ReservationCompleted(c feed.Completion) {
	r.mu.Lock()
	r.completions = append(r.completions, c)
	r.mu.Unlock()
}

func (r *recordingSink) all() []feed.Completion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]feed.Completion(nil), r.completions...)
}

func reserve(t *testing.T, s store.Store, id, owner string, start, end time.Time) {
	t.Helper()
	minutes := int(end.Sub(start) / time.Minute)
	fields := map[string]any{
		"status":           model.StatusInUse,
		"start_time":       start,
		"end_time":         end,
		"duration_minutes": minutes,
		"owner_id":         owner,
		"owner_email":      owner + "@example.com",
	}
	_, applied, err := s.UpdateMachine(context.Background(), id, fields, store.StatusEquals(model.StatusAvailable))
	require.NoError(t, err)
	require.True(t, applied)
}

func TestSweepMarksFinishing(t *testing.T) {
	s := newTestStore(t)
	sink := &recordingSink{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sw := New(s, sink, 30*time.Second).WithClock(func() time.Time { return now })
	ctx := context.Background()

	// 4 minutes remaining: inside the finishing threshold.
	reserve(t, s, "a-w-1", "user-x", now.Add(-41*time.Minute), now.Add(4*time.Minute))
	// 45 minutes remaining: far from the threshold.
	reserve(t, s, "a-w-2", "user-y", now, now.Add(45*time.Minute))

	sw.SweepOnce(ctx)

	m, err := s.GetMachine(ctx, "a-w-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinishing, m.Status)
	require.NotNil(t, m.EndTime, "finishing must keep the reservation fields")

	m, err = s.GetMachine(ctx, "a-w-2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInUse, m.Status)

	assert.Empty(t, sink.all(), "no completion before the end time passes")
}

func TestSweepIsIdempotentOnFinishing(t *testing.T) {
	s := newTestStore(t)
	sink := &recordingSink{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sw := New(s, sink, 30*time.Second).WithClock(func() time.Time { return now })
	ctx := context.Background()

	reserve(t, s, "a-w-1", "user-x", now.Add(-41*time.Minute), now.Add(4*time.Minute))

	sw.SweepOnce(ctx)
	first, err := s.GetMachine(ctx, "a-w-1")
	require.NoError(t, err)
	require.Equal(t, model.StatusFinishing, first.Status)

	events, cancel := s.Events().Subscribe()
	defer cancel()

	// Repeated passes over an already-finishing record change nothing.
	sw.SweepOnce(ctx)
	sw.SweepOnce(ctx)

	second, err := s.GetMachine(ctx, "a-w-1")
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	select {
	case ev := <-events:
		t.Fatalf("idempotent sweep published an event for %s", ev.Record.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSweepReleasesElapsedExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	sink := &recordingSink{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sw := New(s, sink, 30*time.Second).WithClock(func() time.Time { return now })
	ctx := context.Background()

	end := now.Add(-time.Minute)
	reserve(t, s, "a-w-1", "user-x", end.Add(-45*time.Minute), end)

	sw.SweepOnce(ctx)

	m, err := s.GetMachine(ctx, "a-w-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, m.Status)
	assert.Nil(t, m.StartTime)
	assert.Nil(t, m.EndTime)
	assert.Nil(t, m.DurationMinutes)
	assert.Nil(t, m.OwnerID)

	completions := sink.all()
	require.Len(t, completions, 1)
	assert.Equal(t, "a-w-1", completions[0].MachineID)
	assert.Equal(t, "A-W-1", completions[0].MachineName)
	assert.Equal(t, "user-x", completions[0].OwnerID)
	assert.WithinDuration(t, end, completions[0].EndTime, time.Second)

	// Another pass finds nothing reserved.
	sw.SweepOnce(ctx)
	assert.Len(t, sink.all(), 1)
}

func TestSweepReleaseNoOpsAfterUserEnd(t *testing.T) {
	s := newTestStore(t)
	sink := &recordingSink{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	end := now.Add(-time.Minute)
	reserve(t, s, "a-w-1", "user-x", end.Add(-45*time.Minute), end)

	// The owner ends between the sweeper's read and its write.
	listedThenEnded := &endRacingStore{Store: s}
	sw := New(listedThenEnded, sink, 30*time.Second).WithClock(func() time.Time { return now })

	sw.SweepOnce(ctx)

	m, err := s.GetMachine(ctx, "a-w-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, m.Status)
	assert.Empty(t, sink.all(), "a user-ended reservation must not produce a completion")
}

// endRacingStore lets a user-initiated end land after the sweeper listed the
// machine but before its release write.
type endRacingStore struct {
	store.Store
	once sync.Once
}

func (r *endRacingStore) ListReservedMachines(ctx context.Context) ([]model.Machine, error) {
	machines, err := r.Store.ListReservedMachines(ctx)
	r.once.Do(func() {
		for _, m := range machines {
			if m.OwnerID == nil {
				continue
			}
			_, _, endErr := r.Store.UpdateMachine(ctx, m.ID,
				store.ClearedReservationFields(model.StatusAvailable),
				store.OwnerEquals(*m.OwnerID))
			if endErr != nil {
				panic(endErr)
			}
		}
	})
	return machines, err
}
