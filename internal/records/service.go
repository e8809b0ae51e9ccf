// Package records ingests daily flock records. A repeated submission for the
// same actor, flock and day is parked for review instead of being applied.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"farmops-backend/internal/apperr"
	"farmops-backend/internal/audit"
	"farmops-backend/internal/database"
	"farmops-backend/internal/models"
	"farmops-backend/internal/notify"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dateLayout = "2006-01-02"

type Actor struct {
	UserID uint
	Role   models.UserRole
	FarmID *uint
}

type Payload struct {
	EggsCollected int
	Mortality     int
	FeedKg        float64
	Notes         string
}

type IngestInput struct {
	Actor      Actor
	FlockID    uint
	RecordDate time.Time
	Payload    Payload
}

type IngestResult struct {
	Record models.DailyRecord
	// Duplicate is true when the record was parked as pending_review.
	Duplicate bool
	// Notified is the number of reviewers notified about the duplicate.
	Notified int
	Message  string
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

// Day returns midnight UTC of t's calendar date, the key records are matched on.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (in IngestInput) validate() error {
	switch {
	case in.Actor.UserID == 0:
		return apperr.Validation("actor is required")
	case in.FlockID == 0:
		return apperr.Validation("flock_id is required")
	case in.RecordDate.IsZero():
		return apperr.Validation("record_date is required")
	case in.Payload.EggsCollected < 0, in.Payload.Mortality < 0, in.Payload.FeedKg < 0:
		return apperr.Validation("eggs, mortality and feed must not be negative")
	}
	return nil
}

// IngestDailyRecord applies the first approved submission for (actor, flock,
// day) and parks every later one as a pending_review duplicate, notifying the
// farm's reviewers. Record, mortality update and notifications share one
// transaction.
func (s *Service) IngestDailyRecord(ctx context.Context, in IngestInput) (*IngestResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	day := Day(in.RecordDate)

	var result *IngestResult
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		flock, err := s.loadFlock(ctx, tx, in.Actor, in.FlockID)
		if err != nil {
			return err
		}

		existing, err := s.findApproved(ctx, tx, in.Actor.UserID, flock.ID, day)
		if err != nil {
			return err
		}

		record := models.DailyRecord{
			FarmID:        flock.FarmID,
			FlockID:       flock.ID,
			ActorID:       in.Actor.UserID,
			RecordDate:    day,
			EggsCollected: in.Payload.EggsCollected,
			Mortality:     in.Payload.Mortality,
			FeedKg:        in.Payload.FeedKg,
			Notes:         in.Payload.Notes,
			ReviewStatus:  models.ReviewApproved,
		}
		if existing != nil {
			record.ReviewStatus = models.ReviewPendingReview
			record.IsDuplicate = true
			record.DuplicateOfID = &existing.ID
		}

		if err := tx.Omit(clause.Associations).Create(&record).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.Conflict("duplicate record for flock %q on %s", flock.Name, day.Format(dateLayout)).Wrap(err)
			}
			return fmt.Errorf("create daily record: %w", err)
		}

		result = &IngestResult{Record: record}
		if existing == nil {
			if err := s.applyMortality(ctx, tx, flock.ID, record.Mortality); err != nil {
				return err
			}
		} else {
			n, err := notify.FanOut(ctx, tx, flock.FarmID, notify.Template{
				Type:    models.NotificationDuplicateRecord,
				Title:   "Duplicate daily record",
				Message: fmt.Sprintf("A second record for flock %q on %s is waiting for review", flock.Name, day.Format(dateLayout)),
				Metadata: map[string]any{
					"record_id":       record.ID,
					"duplicate_of_id": existing.ID,
					"flock_id":        flock.ID,
					"actor_id":        in.Actor.UserID,
					"record_date":     day.Format(dateLayout),
				},
			})
			if err != nil {
				return err
			}
			result.Duplicate = true
			result.Notified = n
			result.Message = fmt.Sprintf("A record for flock %q on %s already exists; this submission is pending review",
				flock.Name, day.Format(dateLayout))
		}

		return audit.WriteLog(ctx, tx, audit.LogOptions{
			FarmID:      &flock.FarmID,
			UserID:      in.Actor.UserID,
			EntityType:  "daily_record",
			EntityID:    record.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Daily record for %s (%s)", flock.Name, record.ReviewStatus),
			After:       record,
		})
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			s.log.Warn("daily record rejected", zap.Uint("flock_id", in.FlockID), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("daily record ingested",
		zap.Uint("record_id", result.Record.ID),
		zap.Uint("flock_id", result.Record.FlockID),
		zap.String("review_status", string(result.Record.ReviewStatus)),
		zap.Int("notified", result.Notified))
	return result, nil
}

func (s *Service) loadFlock(ctx context.Context, tx *gorm.DB, actor Actor, flockID uint) (models.Flock, error) {
	var flock models.Flock
	if err := tx.WithContext(ctx).First(&flock, "id = ?", flockID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return flock, apperr.NotFound("flock %d not found", flockID)
		}
		return flock, fmt.Errorf("load flock %d: %w", flockID, err)
	}
	if actor.Role == models.RoleAdmin {
		return flock, nil
	}
	if actor.FarmID == nil || *actor.FarmID != flock.FarmID {
		return flock, apperr.Forbidden("flock %d does not belong to your farm", flockID)
	}
	return flock, nil
}

func (s *Service) findApproved(ctx context.Context, tx *gorm.DB, actorID, flockID uint, day time.Time) (*models.DailyRecord, error) {
	var existing models.DailyRecord
	err := tx.WithContext(ctx).
		Where("actor_id = ? AND flock_id = ? AND record_date = ? AND review_status = ?",
			actorID, flockID, day, models.ReviewApproved).
		Order("id DESC").
		Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up existing record: %w", err)
	}
	return &existing, nil
}

// applyMortality lowers the live bird count, never below zero.
func (s *Service) applyMortality(ctx context.Context, tx *gorm.DB, flockID uint, mortality int) error {
	if mortality <= 0 {
		return nil
	}
	res := tx.WithContext(ctx).
		Model(&models.Flock{}).
		Where("id = ?", flockID).
		Update("live_bird_count", gorm.Expr(
			"CASE WHEN live_bird_count > ? THEN live_bird_count - ? ELSE 0 END", mortality, mortality))
	if res.Error != nil {
		return fmt.Errorf("apply mortality to flock %d: %w", flockID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("flock %d not found", flockID)
	}
	return nil
}
