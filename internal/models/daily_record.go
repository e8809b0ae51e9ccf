package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ReviewStatus is the review state of a daily record. A record is either
// applied (approved) or parked for a reviewer (pending_review); reviewer
// decisions on pending records are handled outside the write pipeline.
type ReviewStatus string

const (
	ReviewApproved      ReviewStatus = "approved"
	ReviewPendingReview ReviewStatus = "pending_review"
)

func (s ReviewStatus) Valid() bool {
	return s == ReviewApproved || s == ReviewPendingReview
}

// DailyRecord: one submission of a flock's daily figures by one actor.
// At most one approved, non-duplicate record exists per (flock, date); see
// database.Migrate for the partial unique index.
type DailyRecord struct {
	ID            uint `gorm:"primaryKey"`
	FarmID        uint `gorm:"index;not null"`
	FlockID       uint `gorm:"index:idx_daily_record_key;not null"`
	Flock         Flock
	ActorID       uint      `gorm:"index:idx_daily_record_key;not null"`
	RecordDate    time.Time `gorm:"index:idx_daily_record_key;not null"`
	EggsCollected int       `gorm:"not null;default:0"`
	Mortality     int       `gorm:"not null;default:0"`
	FeedKg        float64   `gorm:"not null;default:0"`
	Notes         string    `gorm:"size:500"`

	ReviewStatus  ReviewStatus `gorm:"size:20;not null;index"`
	IsDuplicate   bool         `gorm:"not null"`
	DuplicateOfID *uint        `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate refuses a record whose review status is not one of the known
// states, so a typo never lands outside the approved-record index.
func (r *DailyRecord) BeforeCreate(*gorm.DB) error {
	if !r.ReviewStatus.Valid() {
		return fmt.Errorf("daily record: invalid review status %q", r.ReviewStatus)
	}
	return nil
}
