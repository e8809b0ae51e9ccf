package records

import (
	"time"

	"farmops-backend/internal/auth"
	"farmops-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateRecordRequest struct {
	RecordDate    string  `json:"record_date"` // "2026-03-01"
	EggsCollected int     `json:"eggs_collected"`
	Mortality     int     `json:"mortality"`
	FeedKg        float64 `json:"feed_kg"`
	Notes         string  `json:"notes"`
}

type RecordResponse struct {
	ID            uint                `json:"id"`
	FarmID        uint                `json:"farm_id"`
	FlockID       uint                `json:"flock_id"`
	ActorID       uint                `json:"actor_id"`
	RecordDate    string              `json:"record_date"`
	EggsCollected int                 `json:"eggs_collected"`
	Mortality     int                 `json:"mortality"`
	FeedKg        float64             `json:"feed_kg"`
	Notes         string              `json:"notes"`
	ReviewStatus  models.ReviewStatus `json:"review_status"`
	IsDuplicate   bool                `json:"is_duplicate"`
	DuplicateOfID *uint               `json:"duplicate_of_id,omitempty"`
}

func toResponse(r models.DailyRecord) RecordResponse {
	return RecordResponse{
		ID:            r.ID,
		FarmID:        r.FarmID,
		FlockID:       r.FlockID,
		ActorID:       r.ActorID,
		RecordDate:    r.RecordDate.Format(dateLayout),
		EggsCollected: r.EggsCollected,
		Mortality:     r.Mortality,
		FeedKg:        r.FeedKg,
		Notes:         r.Notes,
		ReviewStatus:  r.ReviewStatus,
		IsDuplicate:   r.IsDuplicate,
		DuplicateOfID: r.DuplicateOfID,
	}
}

// POST /api/flocks/:id/daily-records
func CreateDailyRecordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		flockID, err := c.ParamsInt("id")
		if err != nil || flockID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid flock id")
		}

		var body CreateRecordRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.RecordDate == "" {
			return fiber.NewError(fiber.StatusBadRequest, "record_date is required")
		}
		day, err := time.Parse(dateLayout, body.RecordDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "record_date must be 'YYYY-MM-DD'")
		}

		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}

		res, err := svc.IngestDailyRecord(c.UserContext(), IngestInput{
			Actor:      Actor{UserID: id.UserID, Role: id.Role, FarmID: id.FarmID},
			FlockID:    uint(flockID),
			RecordDate: day,
			Payload: Payload{
				EggsCollected: body.EggsCollected,
				Mortality:     body.Mortality,
				FeedKg:        body.FeedKg,
				Notes:         body.Notes,
			},
		})
		if err != nil {
			return err
		}

		resp := fiber.Map{"record": toResponse(res.Record)}
		if res.Duplicate {
			resp["message"] = res.Message
		}
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}
