package models

import "time"

type Flock struct {
	ID            uint `gorm:"primaryKey"`
	FarmID        uint `gorm:"index;not null"`
	Farm          Farm
	Name          string `gorm:"size:100;not null"`
	Breed         string `gorm:"size:100"`
	LiveBirdCount int    `gorm:"not null;default:0;check:live_bird_count >= 0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
