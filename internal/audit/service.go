package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"farmops-backend/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	FarmID      *uint
	UserID      uint
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	After       any
}

// WriteLog records an audit row through tx, so it commits or rolls back with
// the write it describes.
func WriteLog(ctx context.Context, tx *gorm.DB, opts LogOptions) error {
	// PostgreSQL jsonb needs "null", not an empty string
	afterStr := "null"
	if opts.After != nil {
		b, err := json.Marshal(opts.After)
		if err != nil {
			return fmt.Errorf("audit payload could not be encoded: %w", err)
		}
		afterStr = string(b)
	}

	entry := models.AuditLog{
		FarmID:      opts.FarmID,
		UserID:      opts.UserID,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		AfterData:   afterStr,
	}

	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("audit log could not be saved: %w", err)
	}
	return nil
}
