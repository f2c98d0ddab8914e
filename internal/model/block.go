package model

import "time"

// Block represents a dormitory block housing a group of machines.
// Blocks are seeded from the catalog at startup and never change afterwards.
type Block struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"-"`

	// Associations
	Machines []Machine `gorm:"foreignKey:BlockID" json:"-"`
}
