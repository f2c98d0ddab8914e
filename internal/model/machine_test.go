package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func reservedMachine(status MachineStatus, end time.Time) Machine {
	owner := "user-1"
	duration := 45
	start := end.Add(-time.Duration(duration) * time.Minute)
	return Machine{
		ID:              "a-w-1",
		Status:          status,
		StartTime:       &start,
		EndTime:         &end,
		DurationMinutes: &duration,
		OwnerID:         &owner,
	}
}

func TestRemainingMinutes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		machine  Machine
		expected int
	}{
		{
			name:     "full period remaining",
			machine:  reservedMachine(StatusInUse, now.Add(45*time.Minute)),
			expected: 45,
		},
		{
			name:     "partial minute rounds up",
			machine:  reservedMachine(StatusInUse, now.Add(4*time.Minute+30*time.Second)),
			expected: 5,
		},
		{
			name:     "exactly at end",
			machine:  reservedMachine(StatusFinishing, now),
			expected: 0,
		},
		{
			name:     "past end floors at zero",
			machine:  reservedMachine(StatusFinishing, now.Add(-10*time.Minute)),
			expected: 0,
		},
		{
			name:     "available machine yields zero",
			machine:  Machine{ID: "a-w-2", Status: StatusAvailable},
			expected: 0,
		},
		{
			name:     "nonexistent machine yields zero",
			machine:  Machine{ID: "a-w-2", Status: StatusNonexistent},
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := RemainingMinutes(tc.machine, now)
			assert.Equal(t, tc.expected, got)
			assert.GreaterOrEqual(t, got, 0)
			if tc.machine.DurationMinutes != nil {
				assert.LessOrEqual(t, got, *tc.machine.DurationMinutes)
			}
		})
	}
}

func TestReservedAndOwnedBy(t *testing.T) {
	m := reservedMachine(StatusInUse, time.Now().Add(30*time.Minute))
	assert.True(t, m.Reserved())
	assert.True(t, m.OwnedBy("user-1"))
	assert.False(t, m.OwnedBy("user-2"))

	idle := Machine{Status: StatusAvailable}
	assert.False(t, idle.Reserved())
	assert.False(t, idle.OwnedBy("user-1"))
}
