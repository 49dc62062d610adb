package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/outbox"
	"github.com/bazario/bazario-backend/pkg/outbox/idempotency"
	"github.com/bazario/bazario-backend/pkg/outbox/payloads"
)

const orderNotificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type orderItemLister interface {
	ListItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
}

// Consumer watches order events and turns them into in-app notifications.
// It runs outside the order transactions: a failure here nacks the message
// and never touches stock, wallet or order state.
type Consumer struct {
	repo         repository
	items        orderItemLister
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo repository, items orderItemLister, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if items == nil {
		return nil, fmt.Errorf("order item lister required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		items:        items,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	switch eventType {
	case enums.EventOrderPlaced, enums.EventOrderFinalized, enums.EventOrderCancelled:
	default:
		c.logg.Info(logCtx, "event not handled by order notification consumer")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEvent(logCtx, eventType, envelope.Data); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage) error {
	switch eventType {
	case enums.EventOrderPlaced:
		var payload payloads.OrderPlacedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("decode order_placed payload: %w", err)
		}
		return c.notifySellers(ctx, payload)
	case enums.EventOrderFinalized:
		var payload payloads.OrderFinalizedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("decode order_finalized payload: %w", err)
		}
		return c.notifyCustomerFinalized(ctx, payload)
	case enums.EventOrderCancelled:
		var payload payloads.OrderCancelledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("decode order_cancelled payload: %w", err)
		}
		return c.notifyCustomerCancelled(ctx, payload)
	default:
		return nil
	}
}

// notifySellers writes one notification per seller naming only that seller's
// lines of the new order.
func (c *Consumer) notifySellers(ctx context.Context, payload payloads.OrderPlacedEvent) error {
	items, err := c.items.ListItemsByOrder(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}

	bySeller := make(map[uuid.UUID][]models.OrderItem)
	for _, item := range items {
		bySeller[item.SellerID] = append(bySeller[item.SellerID], item)
	}

	for sellerID, sellerItems := range bySeller {
		body := fmt.Sprintf("Order #%d has %d item(s) waiting for your decision:", payload.OrderNumber, len(sellerItems))
		for _, item := range sellerItems {
			body += fmt.Sprintf(" %s x%d;", item.ProductName, item.Qty)
		}
		metadata, err := json.Marshal(map[string]any{
			"order_id":     payload.OrderID,
			"order_number": payload.OrderNumber,
			"item_count":   len(sellerItems),
		})
		if err != nil {
			return err
		}
		notification := &models.Notification{
			UserID:   sellerID,
			Type:     enums.NotificationTypeNewOrderItems,
			Title:    "New order items pending approval",
			Body:     body,
			Metadata: metadata,
		}
		if err := c.repo.Create(ctx, notification); err != nil {
			return err
		}
	}
	c.logg.Info(ctx, "sellers notified of placed order")
	return nil
}

func (c *Consumer) notifyCustomerFinalized(ctx context.Context, payload payloads.OrderFinalizedEvent) error {
	var (
		kind  enums.NotificationType
		title string
		body  string
	)
	switch payload.FinalStatus {
	case enums.OrderStatusApproved:
		kind = enums.NotificationTypeOrderApproved
		title = "Order approved"
		body = fmt.Sprintf("All %d item(s) of order #%d were approved.", payload.ApprovedCount, payload.OrderNumber)
	case enums.OrderStatusRejected:
		kind = enums.NotificationTypeOrderRejected
		title = "Order rejected"
		body = fmt.Sprintf("Order #%d was rejected. %s was refunded to your wallet.", payload.OrderNumber, payload.RefundTotal.StringFixed(2))
	case enums.OrderStatusPartiallyApproved:
		kind = enums.NotificationTypePartialRejection
		title = "Order partially approved"
		body = fmt.Sprintf("Order #%d: %d item(s) approved, %d rejected. %s was refunded to your wallet.",
			payload.OrderNumber, payload.ApprovedCount, payload.RejectedCount, payload.RefundTotal.StringFixed(2))
	default:
		c.logg.Info(ctx, "final status not handled")
		return nil
	}

	metadata, err := json.Marshal(map[string]any{
		"order_id":     payload.OrderID,
		"order_number": payload.OrderNumber,
		"final_status": payload.FinalStatus,
		"refund_total": payload.RefundTotal.StringFixed(2),
	})
	if err != nil {
		return err
	}
	notification := &models.Notification{
		UserID:   payload.CustomerID,
		Type:     kind,
		Title:    title,
		Body:     body,
		Metadata: metadata,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(ctx, "customer notified of finalized order")
	return nil
}

func (c *Consumer) notifyCustomerCancelled(ctx context.Context, payload payloads.OrderCancelledEvent) error {
	metadata, err := json.Marshal(map[string]any{
		"order_id":     payload.OrderID,
		"refund_total": payload.RefundTotal.StringFixed(2),
		"reason":       payload.Reason,
	})
	if err != nil {
		return err
	}
	notification := &models.Notification{
		UserID:   payload.CustomerID,
		Type:     enums.NotificationTypeOrderCancelled,
		Title:    "Order cancelled",
		Body:     fmt.Sprintf("Your order was cancelled (%s). %s was refunded to your wallet.", payload.Reason, payload.RefundTotal.StringFixed(2)),
		Metadata: metadata,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(ctx, "customer notified of cancelled order")
	return nil
}
