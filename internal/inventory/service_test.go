package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db/models"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	schema := `
CREATE TABLE IF NOT EXISTS inventory_items (
  product_id TEXT PRIMARY KEY,
  available_qty INTEGER NOT NULL DEFAULT 0,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`
	if err := conn.Exec(schema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return conn
}

func seedInventory(t *testing.T, conn *gorm.DB, productID uuid.UUID, available, reserved int) {
	t.Helper()
	item := models.InventoryItem{ProductID: productID, AvailableQty: available, ReservedQty: reserved}
	if err := conn.Create(&item).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
}

func loadInventory(t *testing.T, conn *gorm.DB, productID uuid.UUID) models.InventoryItem {
	t.Helper()
	var item models.InventoryItem
	if err := conn.First(&item, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return item
}

func TestReserveMovesStock(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	productID := uuid.New()
	seedInventory(t, conn, productID, 5, 0)

	if err := svc.Reserve(context.Background(), conn, productID, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	item := loadInventory(t, conn, productID)
	if item.AvailableQty != 2 || item.ReservedQty != 3 {
		t.Fatalf("unexpected inventory state: %+v", item)
	}
}

func TestReserveInsufficientStock(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	productID := uuid.New()
	seedInventory(t, conn, productID, 2, 0)

	err = svc.Reserve(context.Background(), conn, productID, 3)
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	item := loadInventory(t, conn, productID)
	if item.AvailableQty != 2 || item.ReservedQty != 0 {
		t.Fatalf("stock changed despite failed reserve: %+v", item)
	}
}

func TestReserveUnknownProduct(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.Reserve(context.Background(), conn, uuid.New(), 1)
	if err == nil {
		t.Fatal("expected error for unknown product")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReleaseReturnsStock(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	productID := uuid.New()
	seedInventory(t, conn, productID, 1, 4)

	if err := svc.Release(context.Background(), conn, productID, 4); err != nil {
		t.Fatalf("release: %v", err)
	}

	item := loadInventory(t, conn, productID)
	if item.AvailableQty != 5 || item.ReservedQty != 0 {
		t.Fatalf("unexpected inventory state: %+v", item)
	}
}

func TestReleaseExceedsReserved(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	productID := uuid.New()
	seedInventory(t, conn, productID, 1, 2)

	if err := svc.Release(context.Background(), conn, productID, 3); err == nil {
		t.Fatal("expected release error")
	}
}

func TestCommitConsumesReservation(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	productID := uuid.New()
	seedInventory(t, conn, productID, 1, 3)

	if err := svc.Commit(context.Background(), conn, productID, 3); err != nil {
		t.Fatalf("commit: %v", err)
	}

	item := loadInventory(t, conn, productID)
	if item.AvailableQty != 1 || item.ReservedQty != 0 {
		t.Fatalf("unexpected inventory state: %+v", item)
	}
}

func TestTransitionValidation(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.Reserve(context.Background(), nil, uuid.New(), 1); err == nil {
		t.Fatal("expected error without transaction")
	}
	if err := svc.Reserve(context.Background(), conn, uuid.Nil, 1); err == nil {
		t.Fatal("expected error for nil product id")
	}
	if err := svc.Reserve(context.Background(), conn, uuid.New(), 0); err == nil {
		t.Fatal("expected error for non-positive qty")
	}
}
