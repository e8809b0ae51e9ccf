package models

import "time"

type NotificationType string

const (
	NotificationDuplicateRecord NotificationType = "duplicate_record"
)

// Notification rows are only written by notify.FanOut inside another write's transaction.
type Notification struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	RecipientID uint `gorm:"index;not null" json:"recipient_id"`
	FarmID      uint `gorm:"index;not null" json:"farm_id"`

	Type     NotificationType `gorm:"size:50;not null" json:"type"`
	Title    string           `gorm:"size:150;not null" json:"title"`
	Message  string           `gorm:"size:500" json:"message"`
	Metadata string           `gorm:"type:jsonb" json:"metadata"`
	IsRead   bool             `gorm:"not null" json:"is_read"`

	CreatedAt time.Time `json:"created_at"`
}
