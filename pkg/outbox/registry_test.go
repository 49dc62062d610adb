package outbox

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/pkg/config"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/bazario/bazario-backend/pkg/outbox/payloads"
)

func newTestRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-events"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func placedEventRow(t *testing.T, data any) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	envelope, err := json.Marshal(PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       envelope,
	}
}

func TestRegistryRequiresOrdersTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatal("expected error for missing orders topic")
	}
}

func TestResolveDecodesTypedPayload(t *testing.T) {
	reg := newTestRegistry(t)
	orderID := uuid.New()
	row := placedEventRow(t, payloads.OrderPlacedEvent{
		OrderID:     orderID,
		OrderNumber: 42,
		CustomerID:  uuid.New(),
		ItemCount:   3,
	})

	resolved, err := reg.Resolve(row)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Descriptor.Topic != "orders-events" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	placed, ok := resolved.Payload.(*payloads.OrderPlacedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if placed.OrderID != orderID || placed.OrderNumber != 42 || placed.ItemCount != 3 {
		t.Fatalf("payload fields not decoded: %+v", placed)
	}
	if resolved.Envelope.Version != 1 || resolved.Envelope.EventID == "" {
		t.Fatalf("envelope not decoded: %+v", resolved.Envelope)
	}
}

func TestResolveRejectsUnknownEventType(t *testing.T) {
	reg := newTestRegistry(t)
	row := placedEventRow(t, payloads.OrderPlacedEvent{})
	row.EventType = enums.OutboxEventType("order_shipped")

	_, err := reg.Resolve(row)
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error got %v", err)
	}
}

func TestResolveRejectsAggregateMismatch(t *testing.T) {
	reg := newTestRegistry(t)
	row := placedEventRow(t, payloads.OrderPlacedEvent{})
	row.AggregateType = enums.AggregateOrderItem

	_, err := reg.Resolve(row)
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error got %v", err)
	}
}

func TestResolveRejectsMissingAggregateID(t *testing.T) {
	reg := newTestRegistry(t)
	row := placedEventRow(t, payloads.OrderPlacedEvent{})
	row.AggregateID = uuid.Nil

	_, err := reg.Resolve(row)
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error got %v", err)
	}
}

func TestResolveRejectsMalformedEnvelope(t *testing.T) {
	reg := newTestRegistry(t)
	row := placedEventRow(t, payloads.OrderPlacedEvent{})
	row.Payload = json.RawMessage(`{"version":`)

	_, err := reg.Resolve(row)
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error got %v", err)
	}
}

func TestResolveRejectsNullData(t *testing.T) {
	reg := newTestRegistry(t)
	envelope, err := json.Marshal(map[string]any{
		"version":    1,
		"eventId":    uuid.NewString(),
		"occurredAt": time.Now().UTC(),
		"data":       json.RawMessage(`null`),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       envelope,
	}

	_, resolveErr := reg.Resolve(row)
	var nonRetryable NonRetryableError
	if !errors.As(resolveErr, &nonRetryable) {
		t.Fatalf("expected non-retryable error got %v", resolveErr)
	}
}
