package models

import "time"

// Product stock is only changed through the inventory package.
type Product struct {
	ID            uint    `gorm:"primaryKey"`
	FarmID        uint    `gorm:"index;not null"`
	Farm          Farm
	Name          string  `gorm:"size:100;not null"`
	Unit          string  `gorm:"size:20;not null;default:'piece'"` // tray, piece, kg ...
	UnitPrice     float64 `gorm:"not null"`
	StockQuantity int     `gorm:"not null;default:0;check:stock_quantity >= 0"`
	IsAvailable   bool    `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
