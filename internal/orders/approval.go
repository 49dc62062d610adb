package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/internal/inventory"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/outbox"
	"github.com/bazario/bazario-backend/pkg/outbox/payloads"
)

// ApprovalService applies seller decisions to pending order items and runs
// the finalizer when a decision completes the order.
type ApprovalService interface {
	ApproveItem(ctx context.Context, itemID, sellerID uuid.UUID) (*models.OrderItem, error)
	RejectItem(ctx context.Context, itemID, sellerID uuid.UUID) (*models.OrderItem, error)
	ExpireOrder(ctx context.Context, orderID uuid.UUID) error
}

type approvalService struct {
	client    *db.Client
	repo      Repository
	inventory inventory.Service
	outbox    *outbox.Service
	finalizer *Finalizer
	logg      *logger.Logger
}

// NewApprovalService wires the approval state machine with its collaborators.
func NewApprovalService(
	client *db.Client,
	repo Repository,
	inventorySvc inventory.Service,
	outboxSvc *outbox.Service,
	finalizer *Finalizer,
	logg *logger.Logger,
) (ApprovalService, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if inventorySvc == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if finalizer == nil {
		return nil, fmt.Errorf("finalizer required")
	}
	return &approvalService{
		client:    client,
		repo:      repo,
		inventory: inventorySvc,
		outbox:    outboxSvc,
		finalizer: finalizer,
		logg:      logg,
	}, nil
}

func (s *approvalService) ApproveItem(ctx context.Context, itemID, sellerID uuid.UUID) (*models.OrderItem, error) {
	return s.decideItem(ctx, itemID, sellerID, enums.OrderItemStatusApproved)
}

func (s *approvalService) RejectItem(ctx context.Context, itemID, sellerID uuid.UUID) (*models.OrderItem, error) {
	return s.decideItem(ctx, itemID, sellerID, enums.OrderItemStatusRejected)
}

func (s *approvalService) decideItem(ctx context.Context, itemID, sellerID uuid.UUID, decision enums.OrderItemStatus) (*models.OrderItem, error) {
	if itemID == uuid.Nil {
		return nil, fmt.Errorf("item id is required")
	}
	if sellerID == uuid.Nil {
		return nil, fmt.Errorf("seller id is required")
	}

	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}
		return nil, err
	}
	if item.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order item belongs to another seller")
	}

	order, err := s.repo.GetByID(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}

	actor := &outbox.ActorRef{UserID: sellerID, Role: enums.UserRoleSeller.String()}
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		return s.decideItemInTx(ctx, tx, order, item, decision, actor)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{
			"order_item_id": item.ID.String(),
			"order_id":      order.ID.String(),
			"decision":      decision,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "order item decided")
	}

	item.Status = decision
	return item, nil
}

// decideItemInTx performs the pending->terminal transition, settles the
// reservation, and finalizes the order if this was the last open item. The
// transition is a guarded update; losing the race surfaces ALREADY_PROCESSED
// without touching stock.
func (s *approvalService) decideItemInTx(ctx context.Context, tx *gorm.DB, order *models.Order, item *models.OrderItem, decision enums.OrderItemStatus, actor *outbox.ActorRef) error {
	repo := s.repo.WithTx(tx)

	// Sibling decisions for the same order must not interleave: without the
	// order row lock two transactions can each see the other's item as still
	// pending and neither would attempt the status claim.
	if err := repo.LockOrder(ctx, order.ID); err != nil {
		return err
	}

	transitioned, err := repo.TransitionItem(ctx, item.ID, decision)
	if err != nil {
		return err
	}
	if !transitioned {
		return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "order item was already decided")
	}

	switch decision {
	case enums.OrderItemStatusApproved:
		err = s.inventory.Commit(ctx, tx, item.ProductID, item.Qty)
	case enums.OrderItemStatusRejected:
		err = s.inventory.Release(ctx, tx, item.ProductID, item.Qty)
	default:
		err = fmt.Errorf("invalid decision %q", decision)
	}
	if err != nil {
		return err
	}

	refund := decimal.Zero
	if decision == enums.OrderItemStatusRejected {
		refund = item.LineTotal()
	}
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventItemDecided,
		AggregateType: enums.AggregateOrderItem,
		AggregateID:   item.ID,
		Actor:         actor,
		Version:       1,
		Data: payloads.OrderItemDecidedEvent{
			OrderItemID:  item.ID,
			OrderID:      order.ID,
			SellerID:     item.SellerID,
			CustomerID:   order.CustomerID,
			ProductName:  item.ProductName,
			Decision:     decision,
			RefundAmount: refund,
		},
	})
	if err != nil {
		return err
	}

	_, err = s.finalizer.FinalizeInTx(ctx, tx, order)
	return err
}

// ExpireOrder closes out an order whose approval window has lapsed. Orders
// nobody has decided on are cancelled outright with a full refund; orders
// with partial decisions have their remaining pending items rejected so the
// normal finalization rules settle them.
func (s *approvalService) ExpireOrder(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return fmt.Errorf("order id is required")
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if order.Status != enums.OrderStatusPending {
		return nil
	}

	untouched := true
	for _, item := range order.Items {
		if item.Status != enums.OrderItemStatusPending {
			untouched = false
			break
		}
	}

	if untouched {
		return s.client.WithTx(ctx, func(tx *gorm.DB) error {
			return s.cancelOrderInTx(ctx, tx, order)
		})
	}

	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		for i := range order.Items {
			item := &order.Items[i]
			if item.Status != enums.OrderItemStatusPending {
				continue
			}
			err := s.decideItemInTx(ctx, tx, order, item, enums.OrderItemStatusRejected, nil)
			if err != nil && !pkgerrors.HasCode(err, pkgerrors.CodeAlreadyProcessed) {
				return err
			}
		}
		// An order whose items all reached terminal states without a status
		// claim (every rejection above raced ALREADY_PROCESSED, or the sweep
		// found nothing left to reject) still needs finalizing, so the sweep
		// doubles as the repair path for stuck orders.
		_, err := s.finalizer.FinalizeInTx(ctx, tx, order)
		return err
	})
}

// cancelOrderInTx claims pending->cancelled, rejects every line, releases the
// reservations and refunds the full total. The claim makes a concurrent
// seller decision and the sweep mutually exclusive.
func (s *approvalService) cancelOrderInTx(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := s.repo.WithTx(tx)

	claimed, err := repo.ClaimStatus(ctx, order.ID, enums.OrderStatusCancelled)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	for _, item := range order.Items {
		transitioned, err := repo.TransitionItem(ctx, item.ID, enums.OrderItemStatusRejected)
		if err != nil {
			return err
		}
		if !transitioned {
			// A seller decided this item after the claim check; the claim
			// already succeeded, so keep going and settle the rest.
			continue
		}
		if err := s.inventory.Release(ctx, tx, item.ProductID, item.Qty); err != nil {
			return err
		}
	}

	items, err := repo.ListItemsByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	refundTotal, err := s.finalizer.settleRefundsInTx(ctx, tx, order, items)
	if err != nil {
		return err
	}

	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderCancelledEvent{
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			CancelledAt: time.Now(),
			RefundTotal: refundTotal,
			Reason:      "approval window expired",
		},
	})
}
