package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// OrderItem is one product line of an order, owned by exactly one seller.
// SellerID and PriceAtPurchase are denormalized from the product at placement
// so the line survives later catalog changes. RefundIssued guards the
// finalizer against crediting the same rejected line twice.
type OrderItem struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	SellerID        uuid.UUID             `gorm:"column:seller_id;type:uuid;not null;index"`
	ProductName     string                `gorm:"column:product_name;not null"`
	Qty             int                   `gorm:"column:qty;not null"`
	PriceAtPurchase decimal.Decimal       `gorm:"column:price_at_purchase;type:numeric(12,2);not null"`
	Status          enums.OrderItemStatus `gorm:"column:status;type:order_item_status;not null;default:'pending'"`
	RefundIssued    bool                  `gorm:"column:refund_issued;not null;default:false"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// LineTotal returns PriceAtPurchase multiplied by the purchased quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Qty)))
}
