package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

// Repository manages persistence for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error)
	ListItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	ListSellerItems(ctx context.Context, sellerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.OrderItem, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	LockOrder(ctx context.Context, orderID uuid.UUID) error
	TransitionItem(ctx context.Context, itemID uuid.UUID, to enums.OrderItemStatus) (bool, error)
	ClaimStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (bool, error)
	MarkRefundIssued(ctx context.Context, itemID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) GetItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.db.WithContext(ctx).
		Where("id = ?", itemID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListSellerItems(ctx context.Context, sellerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.OrderItem, error) {
	query := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.OrderItem
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LockOrder takes the order's row lock by bumping updated_at inside the
// caller's transaction. Concurrent deciders for the same order queue here;
// when the waiter proceeds it reads the winner's committed item transitions,
// so the finalizer's pending scan and the status claim run as one serialized
// unit per order.
func (r *repository) LockOrder(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("updated_at", time.Now()).Error
}

// TransitionItem moves an item out of pending. The status guard means a
// second decision for the same item matches zero rows.
func (r *repository) TransitionItem(ctx context.Context, itemID uuid.UUID, to enums.OrderItemStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.OrderItem{}).
		Where("id = ? AND status = ?", itemID, enums.OrderItemStatusPending).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClaimStatus moves the order out of pending. Racing finalizers lose the
// claim and observe zero rows, which makes finalization exactly-once.
func (r *repository) ClaimStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkRefundIssued flips the refund flag for a rejected item once.
func (r *repository) MarkRefundIssued(ctx context.Context, itemID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.OrderItem{}).
		Where("id = ? AND status = ? AND refund_issued = ?", itemID, enums.OrderItemStatusRejected, false).
		Update("refund_issued", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
