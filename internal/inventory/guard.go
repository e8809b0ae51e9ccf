// Package inventory owns every change to Product.StockQuantity. Decrements are
// a single guarded UPDATE so concurrent orders can never oversell a row.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"farmops-backend/internal/apperr"
	"farmops-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StockStatus is the authoritative view of a product at check time.
type StockStatus struct {
	ProductID    uint
	FarmID       uint
	Name         string
	UnitPrice    float64
	CurrentStock int
	IsAvailable  bool
	// Sufficient is true when the product is available and holds at least the
	// requested quantity.
	Sufficient bool
}

type Guard struct {
	log *zap.Logger
}

func NewGuard(log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{log: log}
}

// CheckStock reads the product through tx. An unavailable product is never
// Sufficient, whatever its stock.
func (g *Guard) CheckStock(ctx context.Context, tx *gorm.DB, productID uint, requiredQty int) (StockStatus, error) {
	var product models.Product
	if err := tx.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StockStatus{}, apperr.NotFound("product %d not found", productID)
		}
		return StockStatus{}, fmt.Errorf("load product %d: %w", productID, err)
	}

	return StockStatus{
		ProductID:    product.ID,
		FarmID:       product.FarmID,
		Name:         product.Name,
		UnitPrice:    product.UnitPrice,
		CurrentStock: product.StockQuantity,
		IsAvailable:  product.IsAvailable,
		Sufficient:   product.IsAvailable && product.StockQuantity >= requiredQty,
	}, nil
}

// DecrementStock removes qty units in one conditional statement. If another
// request consumed the stock first, no row matches and the call fails with
// Conflict; the caller decides whether to re-read and report.
func (g *Guard) DecrementStock(ctx context.Context, tx *gorm.DB, productID uint, qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity must be positive, got %d", qty)
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND is_available = ? AND stock_quantity >= ?", productID, true, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return fmt.Errorf("decrement stock of product %d: %w", productID, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var product models.Product
	if err := tx.WithContext(ctx).Select("id", "name", "stock_quantity", "is_available").
		First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("product %d not found", productID)
		}
		return fmt.Errorf("reload product %d: %w", productID, err)
	}

	g.log.Warn("stock decrement refused",
		zap.Uint("product_id", productID),
		zap.Int("requested", qty),
		zap.Int("stock", product.StockQuantity),
		zap.Bool("available", product.IsAvailable))

	if !product.IsAvailable {
		return apperr.Conflict("product %q is not available for sale", product.Name)
	}
	return apperr.Conflict("insufficient stock for product %q: requested %d, available %d",
		product.Name, qty, product.StockQuantity)
}

// RestockProduct returns qty units to the product, e.g. when a pending order
// is cancelled.
func (g *Guard) RestockProduct(ctx context.Context, tx *gorm.DB, productID uint, qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity must be positive, got %d", qty)
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty))
	if res.Error != nil {
		return fmt.Errorf("restock product %d: %w", productID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product %d not found", productID)
	}
	return nil
}
