package models

import "time"

// Farm is the tenant: every flock, product, customer and order belongs to one.
type Farm struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:100;not null;unique"`
	Location  string `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Users []User
}
