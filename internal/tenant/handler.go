package tenant

import (
	"farmops-backend/internal/auth"
	"farmops-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateFarmRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type FarmResponse struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

type UserResponse struct {
	ID     uint            `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	FarmID *uint           `json:"farm_id"`
}

// POST /api/farms
func CreateFarmHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateFarmRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}

		res, err := svc.CreateFarmWithOwner(c.UserContext(), FarmInput{Name: body.Name, Location: body.Location}, id.UserID)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"farm": FarmResponse{ID: res.Farm.ID, Name: res.Farm.Name, Location: res.Farm.Location},
			"user": UserResponse{
				ID:     res.User.ID,
				Name:   res.User.Name,
				Email:  res.User.Email,
				Role:   res.User.Role,
				FarmID: res.User.FarmID,
			},
		})
	}
}
