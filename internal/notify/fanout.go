// Package notify writes reviewer notifications as a side effect of another
// write. It never opens its own transaction.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"farmops-backend/internal/models"

	"gorm.io/gorm"
)

type Template struct {
	Type     models.NotificationType
	Title    string
	Message  string
	Metadata map[string]any
}

// FanOut inserts one notification per manager or farm owner of farmID, using
// tx so the rows commit with the triggering write. No recipients is not an
// error: nothing is written and 0 is returned.
func FanOut(ctx context.Context, tx *gorm.DB, farmID uint, tpl Template) (int, error) {
	var recipients []models.User
	if err := tx.WithContext(ctx).
		Select("id").
		Where("farm_id = ? AND role IN ?", farmID, models.ReviewerRoles).
		Order("id").
		Find(&recipients).Error; err != nil {
		return 0, fmt.Errorf("resolve notification recipients: %w", err)
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	// jsonb rejects an empty string
	metadata := "null"
	if tpl.Metadata != nil {
		b, err := json.Marshal(tpl.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal notification metadata: %w", err)
		}
		metadata = string(b)
	}

	rows := make([]models.Notification, 0, len(recipients))
	for _, r := range recipients {
		rows = append(rows, models.Notification{
			RecipientID: r.ID,
			FarmID:      farmID,
			Type:        tpl.Type,
			Title:       tpl.Title,
			Message:     tpl.Message,
			Metadata:    metadata,
		})
	}
	if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("insert notifications: %w", err)
	}
	return len(rows), nil
}
