package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/outbox"
	"github.com/bazario/bazario-backend/pkg/outbox/idempotency"
	"github.com/bazario/bazario-backend/pkg/outbox/payloads"
)

type fakeNotificationRepo struct {
	created []models.Notification
	err     error
}

func (f *fakeNotificationRepo) Create(_ context.Context, notification *models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, *notification)
	return nil
}

type fakeItemLister struct {
	items []models.OrderItem
}

func (f *fakeItemLister) ListItemsByOrder(_ context.Context, _ uuid.UUID) ([]models.OrderItem, error) {
	return f.items, nil
}

type fakeIdempotencyStore struct {
	keys map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{keys: map[string]bool{}}
}

func (f *fakeIdempotencyStore) Get(_ context.Context, _ string) (string, error) { return "", nil }

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func newTestConsumer(t *testing.T, repo *fakeNotificationRepo, items []models.OrderItem) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(newFakeIdempotencyStore(), time.Hour)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	return &Consumer{
		repo:        repo,
		items:       &fakeItemLister{items: items},
		idempotency: manager,
		logg:        logg,
	}
}

func eventMessage(t *testing.T, eventType enums.OutboxEventType, data any) *pubsub.Message {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       body,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func TestOrderPlacedNotifiesEachSeller(t *testing.T) {
	t.Parallel()

	sellerA, sellerB := uuid.New(), uuid.New()
	orderID := uuid.New()
	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(t, repo, []models.OrderItem{
		{OrderID: orderID, SellerID: sellerA, ProductName: "Mug", Qty: 2},
		{OrderID: orderID, SellerID: sellerA, ProductName: "Plate", Qty: 1},
		{OrderID: orderID, SellerID: sellerB, ProductName: "Vase", Qty: 1},
	})

	msg := eventMessage(t, enums.EventOrderPlaced, payloads.OrderPlacedEvent{
		OrderID:     orderID,
		OrderNumber: 42,
		CustomerID:  uuid.New(),
		SellerIDs:   []uuid.UUID{sellerA, sellerB},
		ItemCount:   3,
		TotalAmount: decimal.NewFromInt(30),
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(repo.created) != 2 {
		t.Fatalf("expected one notification per seller, got %d", len(repo.created))
	}
	recipients := map[uuid.UUID]bool{}
	for _, notification := range repo.created {
		if notification.Type != enums.NotificationTypeNewOrderItems {
			t.Fatalf("unexpected type %s", notification.Type)
		}
		recipients[notification.UserID] = true
	}
	if !recipients[sellerA] || !recipients[sellerB] {
		t.Fatalf("missing seller recipient: %v", recipients)
	}
}

func TestDuplicateDeliveryIsAckedOnce(t *testing.T) {
	t.Parallel()

	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(t, repo, []models.OrderItem{
		{SellerID: uuid.New(), ProductName: "Mug", Qty: 1},
	})
	msg := eventMessage(t, enums.EventOrderPlaced, payloads.OrderPlacedEvent{
		OrderID:     uuid.New(),
		OrderNumber: 7,
		CustomerID:  uuid.New(),
	})

	first := consumer.process(context.Background(), msg)
	second := consumer.process(context.Background(), msg)
	if !first.ack || !second.ack {
		t.Fatalf("expected both deliveries acked: %+v %+v", first, second)
	}
	if len(repo.created) != 1 {
		t.Fatalf("duplicate delivery created %d notifications", len(repo.created))
	}
}

func TestUnhandledEventTypeIsAcked(t *testing.T) {
	t.Parallel()

	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(t, repo, nil)
	msg := eventMessage(t, enums.EventItemDecided, payloads.OrderItemDecidedEvent{
		OrderItemID: uuid.New(),
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(repo.created) != 0 {
		t.Fatalf("unexpected notifications: %d", len(repo.created))
	}
}

func TestMalformedEnvelopeIsAcked(t *testing.T) {
	t.Parallel()

	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(t, repo, nil)
	msg := &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       []byte("not json"),
		Attributes: map[string]string{"event_type": string(enums.EventOrderPlaced)},
	}

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected poison message acked, got %+v", result)
	}
}

func TestFailedHandlingNacksAndAllowsRetry(t *testing.T) {
	t.Parallel()

	repo := &fakeNotificationRepo{err: errors.New("db down")}
	consumer := newTestConsumer(t, repo, []models.OrderItem{
		{SellerID: uuid.New(), ProductName: "Mug", Qty: 1},
	})
	msg := eventMessage(t, enums.EventOrderPlaced, payloads.OrderPlacedEvent{
		OrderID:     uuid.New(),
		OrderNumber: 9,
		CustomerID:  uuid.New(),
	})

	result := consumer.process(context.Background(), msg)
	if !result.nack {
		t.Fatalf("expected nack, got %+v", result)
	}

	// The idempotency mark is rolled back, so the redelivery goes through.
	repo.err = nil
	result = consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected retry ack, got %+v", result)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one notification after retry, got %d", len(repo.created))
	}
}

func TestOrderFinalizedNotifiesCustomer(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status enums.OrderStatus
		want   enums.NotificationType
	}{
		{enums.OrderStatusApproved, enums.NotificationTypeOrderApproved},
		{enums.OrderStatusRejected, enums.NotificationTypeOrderRejected},
		{enums.OrderStatusPartiallyApproved, enums.NotificationTypePartialRejection},
	}

	for _, tc := range cases {
		repo := &fakeNotificationRepo{}
		consumer := newTestConsumer(t, repo, nil)
		customerID := uuid.New()
		msg := eventMessage(t, enums.EventOrderFinalized, payloads.OrderFinalizedEvent{
			OrderID:       uuid.New(),
			OrderNumber:   11,
			CustomerID:    customerID,
			FinalStatus:   tc.status,
			ApprovedCount: 1,
			RejectedCount: 1,
			RefundTotal:   decimal.NewFromInt(5),
		})

		result := consumer.process(context.Background(), msg)
		if !result.ack {
			t.Fatalf("status %s: expected ack, got %+v", tc.status, result)
		}
		if len(repo.created) != 1 {
			t.Fatalf("status %s: expected one notification, got %d", tc.status, len(repo.created))
		}
		if repo.created[0].UserID != customerID || repo.created[0].Type != tc.want {
			t.Fatalf("status %s: unexpected notification %+v", tc.status, repo.created[0])
		}
	}
}

func TestOrderCancelledNotifiesCustomer(t *testing.T) {
	t.Parallel()

	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(t, repo, nil)
	customerID := uuid.New()
	msg := eventMessage(t, enums.EventOrderCancelled, payloads.OrderCancelledEvent{
		OrderID:     uuid.New(),
		CustomerID:  customerID,
		CancelledAt: time.Now().UTC(),
		RefundTotal: decimal.NewFromInt(20),
		Reason:      "approval window expired",
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(repo.created))
	}
	if repo.created[0].UserID != customerID || repo.created[0].Type != enums.NotificationTypeOrderCancelled {
		t.Fatalf("unexpected notification %+v", repo.created[0])
	}
}
