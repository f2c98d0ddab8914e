package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/adam0307a/yurts-laundry-tracker/internal/auth"
	"github.com/adam0307a/yurts-laundry-tracker/internal/metrics"
	"github.com/adam0307a/yurts-laundry-tracker/internal/model"
	"github.com/adam0307a/yurts-laundry-tracker/internal/store"
)

// Engine is the state-transition authority for machine reservations. Every
// transition is a single conditional write; the engine never retries and
// never mutates state outside the store.
type Engine struct {
	store store.Store
	now   func() time.Time
}

// New creates an Engine over the given store.
func New(s store.Store) *Engine {
	return &Engine{store: s, now: time.Now}
}

// WithClock overrides the engine's clock. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Start reserves an available machine for the caller for hours*60+minutes
// minutes. The update is conditioned on the machine still being available
// at write time; losing that race yields ErrConflict.
func (e *Engine) Start(ctx context.Context, machineID string, hours, minutes int, note string, caller auth.Identity) (model.Machine, error) {
	if hours < 0 || minutes < 0 {
		return model.Machine{}, fmt.Errorf("%w: negative duration", ErrInvalidArgument)
	}
	totalMinutes := hours*60 + minutes
	if totalMinutes <= 0 {
		return model.Machine{}, fmt.Errorf("%w: duration must be positive", ErrInvalidArgument)
	}

	machine, err := e.fetch(ctx, machineID)
	if err != nil {
		return model.Machine{}, err
	}
	if machine.Status != model.StatusAvailable {
		return model.Machine{}, fmt.Errorf("%w: machine %s is %s", ErrInvalidState, machineID, machine.Status)
	}

	startTime := e.now()
	endTime := startTime.Add(time.Duration(totalMinutes) * time.Minute)
	fields := map[string]any{
		"status":           model.StatusInUse,
		"start_time":       startTime,
		"end_time":         endTime,
		"duration_minutes": totalMinutes,
		"owner_id":         caller.ID,
		"owner_email":      caller.Email,
	}
	if note != "" {
		fields["note"] = note
	} else {
		fields["note"] = nil
	}

	updated, applied, err := e.store.UpdateMachine(ctx, machineID, fields, store.StatusEquals(model.StatusAvailable))
	if err != nil {
		return model.Machine{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !applied {
		metrics.StartConflicts.Inc()
		return model.Machine{}, fmt.Errorf("%w: machine %s was taken", ErrConflict, machineID)
	}

	metrics.ReservationsStarted.Inc()
	return updated, nil
}

// End releases the caller's reservation, conditioned on the caller still
// owning it at write time. A zero-effect write is disambiguated by a
// follow-up read: an unreserved machine yields ErrInvalidState, a
// reservation held by someone else yields ErrUnauthorized.
func (e *Engine) End(ctx context.Context, machineID string, caller auth.Identity) (model.Machine, error) {
	fields := store.ClearedReservationFields(model.StatusAvailable)
	updated, applied, err := e.store.UpdateMachine(ctx, machineID, fields, store.OwnerEquals(caller.ID))
	if err != nil {
		return model.Machine{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if applied {
		metrics.ReservationsEnded.Inc()
		return updated, nil
	}

	machine, err := e.fetch(ctx, machineID)
	if err != nil {
		return model.Machine{}, err
	}
	if !machine.Reserved() {
		return model.Machine{}, fmt.Errorf("%w: machine %s has no reservation to end", ErrInvalidState, machineID)
	}
	return model.Machine{}, fmt.Errorf("%w: machine %s", ErrUnauthorized, machineID)
}

// ToggleExistence flips a machine between available and nonexistent. Any
// authenticated caller may do this; a reserved machine must be ended first.
// Reservation fields are cleared on both directions of the flip.
func (e *Engine) ToggleExistence(ctx context.Context, machineID string, caller auth.Identity) (model.Machine, error) {
	machine, err := e.fetch(ctx, machineID)
	if err != nil {
		return model.Machine{}, err
	}

	var from, to model.MachineStatus
	switch machine.Status {
	case model.StatusAvailable:
		from, to = model.StatusAvailable, model.StatusNonexistent
	case model.StatusNonexistent:
		from, to = model.StatusNonexistent, model.StatusAvailable
	default:
		return model.Machine{}, fmt.Errorf("%w: machine %s is %s, end the reservation first", ErrInvalidState, machineID, machine.Status)
	}

	updated, applied, err := e.store.UpdateMachine(ctx, machineID, store.ClearedReservationFields(to), store.StatusEquals(from))
	if err != nil {
		return model.Machine{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !applied {
		return model.Machine{}, fmt.Errorf("%w: machine %s changed state concurrently", ErrConflict, machineID)
	}
	return updated, nil
}

func (e *Engine) fetch(ctx context.Context, machineID string) (model.Machine, error) {
	machine, err := e.store.GetMachine(ctx, machineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Machine{}, fmt.Errorf("%w: %s", ErrNotFound, machineID)
		}
		return model.Machine{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return machine, nil
}
