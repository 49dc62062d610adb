package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// Order is the immutable-total record of one placed cart. TotalAmount is
// fixed at creation; Status is written only by the finalizer through a
// conditional update, so it transitions out of pending exactly once.
type Order struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber         int64             `gorm:"column:order_number;autoIncrement;uniqueIndex"`
	CustomerID          uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	Status              enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	TotalAmount         decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	OrderDate           time.Time         `gorm:"column:order_date;not null"`
	EstimatedDeliveryAt time.Time         `gorm:"column:estimated_delivery_at;not null"`
	Items               []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
