package model

import "time"

// MachineStatus is the lifecycle state of a machine.
type MachineStatus string

const (
	StatusAvailable   MachineStatus = "available"
	StatusInUse       MachineStatus = "inuse"
	StatusFinishing   MachineStatus = "finishing"
	StatusNonexistent MachineStatus = "nonexistent"
)

// MachineType distinguishes washers from dryers.
type MachineType string

const (
	TypeWasher MachineType = "washer"
	TypeDryer  MachineType = "dryer"
)

// FinishingThreshold is the remaining-time boundary below which a running
// machine is reported as finishing.
const FinishingThreshold = 5 * time.Minute

// Machine represents one physical washer or dryer.
//
// StartTime, EndTime, DurationMinutes, Note, OwnerID and OwnerEmail are set
// together when a reservation starts and cleared together when it ends;
// they are never present on an available or nonexistent machine.
//
// Version increases by one with every committed write to the row. Change-feed
// followers compare it to drop events overtaken by a later commit.
type Machine struct {
	ID              string        `gorm:"primaryKey;size:64" json:"id"`
	BlockID         string        `gorm:"index;size:32;not null" json:"block"`
	Name            string        `gorm:"size:128;not null" json:"name"`
	Type            MachineType   `gorm:"size:16;not null" json:"type"`
	Status          MachineStatus `gorm:"size:16;not null;default:available" json:"status"`
	StartTime       *time.Time    `json:"start_time,omitempty"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	DurationMinutes *int          `json:"duration,omitempty"`
	Note            *string       `gorm:"size:512" json:"note,omitempty"`
	OwnerID         *string       `gorm:"size:64;index" json:"user_id,omitempty"`
	OwnerEmail      *string       `gorm:"size:256" json:"user_email,omitempty"`
	Version         uint64        `gorm:"not null;default:0" json:"version"`
	CreatedAt       time.Time     `json:"-"`
	UpdatedAt       time.Time     `json:"-"`

	// Associations
	Block Block `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Reserved reports whether the machine currently holds a reservation.
func (m *Machine) Reserved() bool {
	return m.Status == StatusInUse || m.Status == StatusFinishing
}

// OwnedBy reports whether the machine's reservation belongs to the given user.
func (m *Machine) OwnedBy(userID string) bool {
	return m.OwnerID != nil && *m.OwnerID == userID
}

// RemainingMinutes returns the whole minutes left on the machine's
// reservation at the given instant, rounded up and floored at zero. It is a
// pure function of now and EndTime: any status outside inuse/finishing
// yields zero.
func RemainingMinutes(m Machine, now time.Time) int {
	if !m.Reserved() || m.EndTime == nil {
		return 0
	}
	left := m.EndTime.Sub(now)
	if left <= 0 {
		return 0
	}
	mins := int(left / time.Minute)
	if left%time.Minute != 0 {
		mins++
	}
	return mins
}
