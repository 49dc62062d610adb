package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is the closed-loop balance per customer. Balance is a cached running
// total; the WalletTransaction log is the audit source of truth and the two
// always move together inside one transaction.
type Wallet struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID  uuid.UUID       `gorm:"column:customer_id;type:uuid;not null;uniqueIndex"`
	Balance     decimal.Decimal `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	LastUpdated time.Time       `gorm:"column:last_updated;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
