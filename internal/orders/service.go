package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"farmops-backend/internal/apperr"
	"farmops-backend/internal/audit"
	"farmops-backend/internal/database"
	"farmops-backend/internal/inventory"
	"farmops-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ItemInput struct {
	ProductID uint
	Quantity  int
}

type DeliveryInfo struct {
	Address string
	Date    *time.Time
	Notes   string
}

type CreateOrderInput struct {
	FarmID     uint
	CustomerID uint
	ActorID    uint
	Delivery   DeliveryInfo
	Items      []ItemInput
}

type OrderResult struct {
	Order       models.Order
	Items       []models.OrderItem
	TotalAmount float64
}

type Service struct {
	db    *gorm.DB
	guard *inventory.Guard
	log   *zap.Logger
	now   func() time.Time
}

func NewService(db *gorm.DB, guard *inventory.Guard, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, guard: guard, log: log, now: time.Now}
}

// itemProblem is one rejected order line. stock separates shortfalls from
// malformed references so the rejection can be reported as Conflict.
type itemProblem struct {
	reason string
	stock  bool
}

// CreateOrderWithItems validates every line against the stored product, prices
// it with the stored unit price and persists the order, its items and the
// stock decrements as one unit of work.
func (s *Service) CreateOrderWithItems(ctx context.Context, in CreateOrderInput) (*OrderResult, error) {
	if len(in.Items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}
	for i, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, apperr.Validation("item %d: quantity must be greater than zero", i+1)
		}
		if it.ProductID == 0 {
			return nil, apperr.Validation("item %d: product_id is required", i+1)
		}
	}
	if in.FarmID == 0 || in.CustomerID == 0 {
		return nil, apperr.Validation("farm and customer are required")
	}

	var result *OrderResult
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.checkCustomer(ctx, tx, in.FarmID, in.CustomerID); err != nil {
			return err
		}

		items, total, err := s.priceItems(ctx, tx, in)
		if err != nil {
			return err
		}

		order := models.Order{
			OrderNumber:     s.newOrderNumber(),
			FarmID:          in.FarmID,
			CustomerID:      in.CustomerID,
			CreatedByID:     in.ActorID,
			Status:          models.OrderStatusPending,
			PaymentStatus:   models.PaymentStatusPending,
			TotalAmount:     total,
			DeliveryAddress: strings.TrimSpace(in.Delivery.Address),
			DeliveryDate:    in.Delivery.Date,
			Notes:           strings.TrimSpace(in.Delivery.Notes),
		}
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.Conflict("order number %s already exists", order.OrderNumber).Wrap(err)
			}
			return fmt.Errorf("create order: %w", err)
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.Omit(clause.Associations).Create(&items[i]).Error; err != nil {
				return fmt.Errorf("create order item for product %d: %w", items[i].ProductID, err)
			}
			if err := s.guard.DecrementStock(ctx, tx, items[i].ProductID, items[i].Quantity); err != nil {
				return err
			}
		}

		if err := audit.WriteLog(ctx, tx, audit.LogOptions{
			FarmID:      &in.FarmID,
			UserID:      in.ActorID,
			EntityType:  "order",
			EntityID:    order.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Order %s: %d items, total %.2f", order.OrderNumber, len(items), total),
			After:       order,
		}); err != nil {
			return err
		}

		result = &OrderResult{Order: order, Items: items, TotalAmount: total}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			s.log.Warn("order rejected", zap.Uint("farm_id", in.FarmID), zap.Error(err))
		}
		return nil, err
	}

	result.Order.Items = result.Items
	s.log.Info("order created",
		zap.Uint("order_id", result.Order.ID),
		zap.String("order_number", result.Order.OrderNumber),
		zap.Uint("farm_id", in.FarmID),
		zap.Int("items", len(result.Items)),
		zap.Float64("total", result.TotalAmount))
	return result, nil
}

func (s *Service) checkCustomer(ctx context.Context, tx *gorm.DB, farmID, customerID uint) error {
	var customer models.Customer
	if err := tx.WithContext(ctx).Select("id", "farm_id").First(&customer, "id = ?", customerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("customer %d not found", customerID)
		}
		return fmt.Errorf("load customer %d: %w", customerID, err)
	}
	if customer.FarmID != farmID {
		return apperr.Forbidden("customer %d does not belong to this farm", customerID)
	}
	return nil
}

// priceItems checks every line and collects all problems instead of stopping
// at the first one.
func (s *Service) priceItems(ctx context.Context, tx *gorm.DB, in CreateOrderInput) ([]models.OrderItem, float64, error) {
	var (
		items    []models.OrderItem
		problems []itemProblem
		total    = decimal.Zero
	)

	for _, it := range in.Items {
		st, err := s.guard.CheckStock(ctx, tx, it.ProductID, it.Quantity)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				problems = append(problems, itemProblem{reason: fmt.Sprintf("product %d: not found", it.ProductID)})
				continue
			}
			return nil, 0, err
		}
		// products of another farm are reported as unknown
		if st.FarmID != in.FarmID {
			problems = append(problems, itemProblem{reason: fmt.Sprintf("product %d: not found", it.ProductID)})
			continue
		}
		if !st.IsAvailable {
			problems = append(problems, itemProblem{reason: fmt.Sprintf("%s: not available for sale", st.Name)})
			continue
		}
		if !st.Sufficient {
			problems = append(problems, itemProblem{
				reason: fmt.Sprintf("%s: insufficient stock (requested %d, available %d)", st.Name, it.Quantity, st.CurrentStock),
				stock:  true,
			})
			continue
		}

		line := decimal.NewFromFloat(st.UnitPrice).Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		total = total.Add(line)
		items = append(items, models.OrderItem{
			ProductID:   st.ProductID,
			ProductName: st.Name,
			Quantity:    it.Quantity,
			UnitPrice:   st.UnitPrice,
			LineTotal:   line.InexactFloat64(),
		})
	}

	if len(problems) > 0 || len(items) == 0 {
		return nil, 0, rejection(problems)
	}
	return items, total.Round(2).InexactFloat64(), nil
}

func rejection(problems []itemProblem) *apperr.Error {
	details := make([]string, 0, len(problems))
	allStock := len(problems) > 0
	for _, p := range problems {
		details = append(details, p.reason)
		allStock = allStock && p.stock
	}
	if allStock {
		return apperr.Conflict("order rejected: insufficient stock").WithDetails(details...)
	}
	return apperr.Validation("order rejected").WithDetails(details...)
}

// UpdateOrderStatus moves a pending order to fulfilled or cancelled. The
// transition is a guarded update on status = pending, so two concurrent
// cancellations restock only once.
func (s *Service) UpdateOrderStatus(ctx context.Context, farmID, orderID, actorID uint, status models.OrderStatus) (*models.Order, error) {
	if status != models.OrderStatusFulfilled && status != models.OrderStatusCancelled {
		return nil, apperr.Validation("status must be %q or %q", models.OrderStatusFulfilled, models.OrderStatusCancelled)
	}

	var order models.Order
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("order %d not found", orderID)
			}
			return fmt.Errorf("load order %d: %w", orderID, err)
		}
		if order.FarmID != farmID {
			return apperr.Forbidden("order %d does not belong to this farm", orderID)
		}

		updates := map[string]any{"status": status}
		if status == models.OrderStatusCancelled && order.PaymentStatus == models.PaymentStatusPaid {
			updates["payment_status"] = models.PaymentStatusRefunded
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update order %d status: %w", orderID, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("order %s is no longer pending", order.OrderNumber)
		}

		if status == models.OrderStatusCancelled {
			for _, item := range order.Items {
				if err := s.guard.RestockProduct(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		}

		order.Status = status
		if v, ok := updates["payment_status"]; ok {
			order.PaymentStatus = v.(models.PaymentStatus)
		}

		return audit.WriteLog(ctx, tx, audit.LogOptions{
			FarmID:      &farmID,
			UserID:      actorID,
			EntityType:  "order_status",
			EntityID:    order.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Order %s marked %s", order.OrderNumber, status),
			After:       map[string]any{"status": status},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order status changed",
		zap.Uint("order_id", order.ID),
		zap.String("status", string(status)))
	return &order, nil
}

func (s *Service) newOrderNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("ORD-%s-%s", s.now().UTC().Format("20060102"), id[:8])
}
