package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// WalletTransaction is one append-only ledger row. Amount is always positive;
// Type carries the direction (deposit/credit add, debit subtracts).
type WalletTransaction struct {
	ID          uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID    uuid.UUID                   `gorm:"column:wallet_id;type:uuid;not null;index"`
	Amount      decimal.Decimal             `gorm:"column:amount;type:numeric(12,2);not null"`
	Type        enums.WalletTransactionType `gorm:"column:type;type:wallet_transaction_type;not null"`
	Description string                      `gorm:"column:description;not null"`
	CreatedAt   time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

// SignedAmount returns the amount with the direction applied, so the sum of
// all signed amounts of a wallet equals its balance.
func (t WalletTransaction) SignedAmount() decimal.Decimal {
	if t.Type == enums.WalletTransactionTypeDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
