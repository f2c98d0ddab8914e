package model

import "time"

// PushSubscription holds a browser push registration for one user. Completion
// notifications for a reservation are delivered to every subscription whose
// UserID matches the reservation's owner.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	UserID    string    `gorm:"size:64;index;not null"`
	CreatedAt time.Time `gorm:"not null"`
}
