// Package tenant creates farms and binds their creator as owner.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"farmops-backend/internal/apperr"
	"farmops-backend/internal/audit"
	"farmops-backend/internal/database"
	"farmops-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FarmInput struct {
	Name     string
	Location string
}

type BindResult struct {
	Farm models.Farm
	User models.User
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log}
}

// CreateFarmWithOwner persists the farm and promotes the actor to its owner in
// one transaction. A global admin creates the farm without being bound to it.
func (s *Service) CreateFarmWithOwner(ctx context.Context, in FarmInput, actorID uint) (*BindResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("farm name is required")
	}
	if len(name) > 100 {
		return nil, apperr.Validation("farm name must be at most 100 characters")
	}

	var result BindResult
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		farm := models.Farm{Name: name, Location: strings.TrimSpace(in.Location)}
		if err := tx.Omit(clause.Associations).Create(&farm).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.Conflict("farm %q already exists", name).Wrap(err)
			}
			return fmt.Errorf("create farm: %w", err)
		}

		var user models.User
		if err := tx.First(&user, "id = ?", actorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user %d not found", actorID)
			}
			return fmt.Errorf("load user %d: %w", actorID, err)
		}

		if !user.IsAdmin() {
			res := tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				Updates(map[string]any{"farm_id": farm.ID, "role": models.RoleFarmOwner})
			if res.Error != nil {
				return fmt.Errorf("bind user %d to farm: %w", user.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return apperr.NotFound("user %d not found", user.ID)
			}
			user.FarmID = &farm.ID
			user.Role = models.RoleFarmOwner
		}

		result = BindResult{Farm: farm, User: user}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			FarmID:      &farm.ID,
			UserID:      user.ID,
			EntityType:  "farm",
			EntityID:    farm.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Farm %s created", farm.Name),
			After:       farm,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("farm created",
		zap.Uint("farm_id", result.Farm.ID),
		zap.Uint("user_id", result.User.ID),
		zap.String("role", string(result.User.Role)))
	return &result, nil
}
