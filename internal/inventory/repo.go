package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db/models"
)

// Repository manages persistence for per-product stock counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByProductID(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error)
	ListByProductIDs(ctx context.Context, productIDs []uuid.UUID) ([]models.InventoryItem, error)
	Reserve(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	Release(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	Commit(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByProductID(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListByProductIDs(ctx context.Context, productIDs []uuid.UUID) ([]models.InventoryItem, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var items []models.InventoryItem
	if err := r.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Reserve moves qty units from available to reserved. The guarded UPDATE only
// matches when enough stock remains, so concurrent checkouts cannot drive
// available_qty negative. Returns false when the guard rejected the row.
func (r *repository) Reserve(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("product_id = ? AND available_qty >= ?", productID, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty - ?", qty),
			"reserved_qty":  gorm.Expr("reserved_qty + ?", qty),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Release returns qty reserved units to available stock.
func (r *repository) Release(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("product_id = ? AND reserved_qty >= ?", productID, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty + ?", qty),
			"reserved_qty":  gorm.Expr("reserved_qty - ?", qty),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Commit burns qty reserved units after a seller approves the sale.
func (r *repository) Commit(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("product_id = ? AND reserved_qty >= ?", productID, qty).
		Updates(map[string]any{
			"reserved_qty": gorm.Expr("reserved_qty - ?", qty),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
