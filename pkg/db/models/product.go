package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product represents the canonical seller listing. Price is a live field on
// the listing; orders snapshot it into OrderItem.PriceAtPurchase so later
// price changes never touch placed orders.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID       `gorm:"column:seller_id;type:uuid;not null"`
	SKU         string          `gorm:"column:sku;not null"`
	Name        string          `gorm:"column:name;not null"`
	Description *string         `gorm:"column:description"`
	Tags        pq.StringArray  `gorm:"column:tags;type:text[]"`
	PriceAmount decimal.Decimal `gorm:"column:price_amount;type:numeric(12,2);not null"`
	// No default tag: GORM drops zero-valued fields that carry one from the
	// insert, which would turn an explicit false back into true.
	IsActive bool `gorm:"column:is_active;not null"`
	Inventory   *InventoryItem  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
