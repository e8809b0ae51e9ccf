package models

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Order: TotalAmount is computed server side at creation and never updated.
type Order struct {
	ID              uint   `gorm:"primaryKey"`
	OrderNumber     string `gorm:"size:40;not null;uniqueIndex"`
	FarmID          uint   `gorm:"index;not null"`
	Farm            Farm
	CustomerID      uint `gorm:"index;not null"`
	Customer        Customer
	CreatedByID     uint          `gorm:"index;not null"`
	Status          OrderStatus   `gorm:"size:20;not null;index"`
	PaymentStatus   PaymentStatus `gorm:"size:20;not null"`
	TotalAmount     float64       `gorm:"not null"`
	DeliveryAddress string        `gorm:"size:255"`
	DeliveryDate    *time.Time
	Notes           string `gorm:"size:500"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem captures product name and price as they were when the order was placed.
type OrderItem struct {
	ID          uint `gorm:"primaryKey"`
	OrderID     uint `gorm:"index;not null"`
	ProductID   uint `gorm:"index;not null"`
	Product     Product
	ProductName string  `gorm:"size:100;not null"`
	Quantity    int     `gorm:"not null"`
	UnitPrice   float64 `gorm:"not null"`
	LineTotal   float64 `gorm:"not null"`
	CreatedAt   time.Time
}
