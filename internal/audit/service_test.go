package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"farmops-backend/internal/audit"
	"farmops-backend/internal/database"
	"farmops-backend/internal/models"
	"farmops-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestWriteLog(t *testing.T) {
	db := testutil.NewDB(t)
	farm := testutil.CreateFarm(t, db, "Dubréka")

	err := audit.WriteLog(context.Background(), db, audit.LogOptions{
		FarmID:      &farm.ID,
		UserID:      7,
		EntityType:  "farm",
		EntityID:    farm.ID,
		Action:      models.AuditActionCreate,
		Description: "farm created",
		After:       map[string]any{"name": farm.Name},
	})
	require.NoError(t, err)

	var entry models.AuditLog
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, "farm", entry.EntityType)
	assert.Equal(t, models.AuditActionCreate, entry.Action)

	var after map[string]string
	require.NoError(t, json.Unmarshal([]byte(entry.AfterData), &after))
	assert.Equal(t, "Dubréka", after["name"])
}

func TestWriteLogNilPayload(t *testing.T) {
	db := testutil.NewDB(t)

	require.NoError(t, audit.WriteLog(context.Background(), db, audit.LogOptions{
		UserID: 1, EntityType: "order", EntityID: 4, Action: models.AuditActionUpdate,
	}))

	var entry models.AuditLog
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, "null", entry.AfterData)
}

func TestWriteLogRollsBackWithTransaction(t *testing.T) {
	db := testutil.NewDB(t)
	errAbort := errors.New("abort")

	err := database.WithTx(context.Background(), db, func(tx *gorm.DB) error {
		if err := audit.WriteLog(context.Background(), tx, audit.LogOptions{
			UserID: 1, EntityType: "order", EntityID: 4, Action: models.AuditActionCreate,
		}); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}
