package orders

import (
	"time"

	"farmops-backend/internal/auth"
	"farmops-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateOrderRequest struct {
	FarmID          *uint              `json:"farm_id"` // admin only
	CustomerID      uint               `json:"customer_id"`
	DeliveryAddress string             `json:"delivery_address"`
	DeliveryDate    string             `json:"delivery_date"` // "2026-03-01"
	Notes           string             `json:"notes"`
	Items           []OrderItemRequest `json:"items"`
}

// OrderItemRequest carries no price: lines are always priced from the product.
type OrderItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type UpdateStatusRequest struct {
	FarmID *uint              `json:"farm_id"`
	Status models.OrderStatus `json:"status"`
}

type OrderItemResponse struct {
	ID          uint    `json:"id"`
	ProductID   uint    `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

type OrderResponse struct {
	ID              uint                 `json:"id"`
	OrderNumber     string               `json:"order_number"`
	FarmID          uint                 `json:"farm_id"`
	CustomerID      uint                 `json:"customer_id"`
	Status          models.OrderStatus   `json:"status"`
	PaymentStatus   models.PaymentStatus `json:"payment_status"`
	TotalAmount     float64              `json:"total_amount"`
	DeliveryAddress string               `json:"delivery_address"`
	DeliveryDate    string               `json:"delivery_date,omitempty"`
	Notes           string               `json:"notes"`
	Items           []OrderItemResponse  `json:"items"`
	CreatedAt       string               `json:"created_at"`
}

func toResponse(o models.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}
	resp := OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		FarmID:          o.FarmID,
		CustomerID:      o.CustomerID,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		TotalAmount:     o.TotalAmount,
		DeliveryAddress: o.DeliveryAddress,
		Notes:           o.Notes,
		Items:           items,
		CreatedAt:       o.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if o.DeliveryDate != nil {
		resp.DeliveryDate = o.DeliveryDate.Format("2006-01-02")
	}
	return resp
}

// POST /api/orders
func CreateOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateOrderRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		farmID, err := auth.ResolveFarmID(id, body.FarmID)
		if err != nil {
			return err
		}

		in := CreateOrderInput{
			FarmID:     farmID,
			CustomerID: body.CustomerID,
			ActorID:    id.UserID,
			Delivery: DeliveryInfo{
				Address: body.DeliveryAddress,
				Notes:   body.Notes,
			},
		}
		if body.DeliveryDate != "" {
			d, err := time.Parse("2006-01-02", body.DeliveryDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "delivery_date must be 'YYYY-MM-DD'")
			}
			in.Delivery.Date = &d
		}
		for _, it := range body.Items {
			in.Items = append(in.Items, ItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
		}

		res, err := svc.CreateOrderWithItems(c.UserContext(), in)
		if err != nil {
			return err
		}

		resp := toResponse(res.Order)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"order":        resp,
			"items":        resp.Items,
			"total_amount": res.TotalAmount,
		})
	}
}

// PATCH /api/orders/:id/status
func UpdateOrderStatusHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		orderID, err := c.ParamsInt("id")
		if err != nil || orderID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
		}

		var body UpdateStatusRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		farmID, err := auth.ResolveFarmID(id, body.FarmID)
		if err != nil {
			return err
		}

		order, err := svc.UpdateOrderStatus(c.UserContext(), farmID, uint(orderID), id.UserID, body.Status)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(*order))
	}
}
