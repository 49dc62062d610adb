package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// OrderPlacedEvent signals a cart converted into an order across sellers.
type OrderPlacedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber int64           `json:"order_number"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	SellerIDs   []uuid.UUID     `json:"seller_ids"`
	ItemCount   int             `json:"item_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// OrderItemDecidedEvent is emitted when a seller approves or rejects a line.
type OrderItemDecidedEvent struct {
	OrderItemID  uuid.UUID             `json:"order_item_id"`
	OrderID      uuid.UUID             `json:"order_id"`
	SellerID     uuid.UUID             `json:"seller_id"`
	CustomerID   uuid.UUID             `json:"customer_id"`
	ProductName  string                `json:"product_name"`
	Decision     enums.OrderItemStatus `json:"decision"`
	RefundAmount decimal.Decimal       `json:"refund_amount"`
}

// OrderFinalizedEvent surfaces the aggregated outcome once every item is decided.
type OrderFinalizedEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	OrderNumber   int64             `json:"order_number"`
	CustomerID    uuid.UUID         `json:"customer_id"`
	FinalStatus   enums.OrderStatus `json:"final_status"`
	ApprovedCount int               `json:"approved_count"`
	RejectedCount int               `json:"rejected_count"`
	RefundTotal   decimal.Decimal   `json:"refund_total"`
}

// OrderCancelledEvent is emitted when a pending order is cancelled in full.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	CancelledAt time.Time       `json:"cancelled_at"`
	RefundTotal decimal.Decimal `json:"refund_total"`
	Reason      string          `json:"reason,omitempty"`
}
