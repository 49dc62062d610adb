package orders

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/internal/wallet"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/outbox"
	"github.com/bazario/bazario-backend/pkg/outbox/payloads"
)

// Finalizer aggregates item decisions into the order's terminal status. It is
// the only writer of Order.Status. Callers invoke it inside the same
// transaction as the decision that might have completed the order.
type Finalizer struct {
	repo   Repository
	wallet wallet.Service
	outbox *outbox.Service
	logg   *logger.Logger
}

// NewFinalizer wires the finalization aggregator.
func NewFinalizer(repo Repository, walletSvc wallet.Service, outboxSvc *outbox.Service, logg *logger.Logger) (*Finalizer, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &Finalizer{repo: repo, wallet: walletSvc, outbox: outboxSvc, logg: logg}, nil
}

// FinalizeInTx inspects the order's items and, when none remain pending,
// claims the terminal status and settles refunds for rejected lines. The
// claim is a conditional update on status=pending, so only one caller per
// order ever runs the settlement block. Returns the terminal status when this
// call performed the finalization and empty string otherwise.
func (f *Finalizer) FinalizeInTx(ctx context.Context, tx *gorm.DB, order *models.Order) (enums.OrderStatus, error) {
	if tx == nil {
		return "", fmt.Errorf("transaction required")
	}
	if order == nil {
		return "", fmt.Errorf("order required")
	}

	repo := f.repo.WithTx(tx)
	items, err := repo.ListItemsByOrder(ctx, order.ID)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", fmt.Errorf("order %s has no items", order.ID)
	}

	approved, rejected := 0, 0
	for _, item := range items {
		switch item.Status {
		case enums.OrderItemStatusPending:
			return "", nil
		case enums.OrderItemStatusApproved:
			approved++
		case enums.OrderItemStatusRejected:
			rejected++
		}
	}

	final := enums.OrderStatusPartiallyApproved
	switch {
	case rejected == 0:
		final = enums.OrderStatusApproved
	case approved == 0:
		final = enums.OrderStatusRejected
	}

	claimed, err := repo.ClaimStatus(ctx, order.ID, final)
	if err != nil {
		return "", err
	}
	if !claimed {
		return "", nil
	}

	refundTotal, err := f.settleRefundsInTx(ctx, tx, order, items)
	if err != nil {
		return "", err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderFinalized,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderFinalizedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			CustomerID:    order.CustomerID,
			FinalStatus:   final,
			ApprovedCount: approved,
			RejectedCount: rejected,
			RefundTotal:   refundTotal,
		},
	}
	if err := f.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return "", err
	}

	if f.logg != nil {
		fields := map[string]any{
			"order_id":     order.ID.String(),
			"final_status": final,
			"refund_total": refundTotal.StringFixed(2),
		}
		f.logg.Info(f.logg.WithFields(ctx, fields), "order finalized")
	}
	return final, nil
}

// settleRefundsInTx credits the customer once per rejected line. The
// refund_issued guard makes a replayed settlement a no-op per item, and
// running inside the claim transaction means a failed credit rolls the claim
// back too.
func (f *Finalizer) settleRefundsInTx(ctx context.Context, tx *gorm.DB, order *models.Order, items []models.OrderItem) (decimal.Decimal, error) {
	refundTotal := decimal.Zero

	rejected := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		if item.Status == enums.OrderItemStatusRejected && !item.RefundIssued {
			rejected = append(rejected, item)
		}
	}
	if len(rejected) == 0 {
		return refundTotal, nil
	}

	customerWallet, err := f.wallet.GetByCustomerIDInTx(ctx, tx, order.CustomerID)
	if err != nil {
		return refundTotal, err
	}

	repo := f.repo.WithTx(tx)
	for _, item := range rejected {
		flipped, err := repo.MarkRefundIssued(ctx, item.ID)
		if err != nil {
			return refundTotal, err
		}
		if !flipped {
			continue
		}
		amount := item.LineTotal()
		description := fmt.Sprintf("Refund for rejected item %q on order #%d", item.ProductName, order.OrderNumber)
		if err := f.wallet.CreditInTx(ctx, tx, customerWallet.ID, amount, description); err != nil {
			return refundTotal, err
		}
		refundTotal = refundTotal.Add(amount)
	}
	return refundTotal, nil
}
