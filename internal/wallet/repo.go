package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

// Repository manages persistence for wallets and their transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*models.Wallet, error)
	Debit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error)
	Credit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error)
	InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.WalletTransaction, error)
	SumTransactions(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Debit subtracts amount from the balance. The guard only matches when the
// balance covers the amount, so concurrent checkouts cannot overdraw the
// wallet. Returns false when the guard rejected the row.
func (r *repository) Debit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ? AND balance >= ?", walletID, amount).
		Updates(map[string]any{
			"balance":      gorm.Expr("balance - ?", amount),
			"last_updated": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Credit adds amount to the balance.
func (r *repository) Credit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]any{
			"balance":      gorm.Expr("balance + ?", amount),
			"last_updated": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.WalletTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.WalletTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SumTransactions folds the signed transaction log for reconciliation checks.
func (r *repository) SumTransactions(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	var rows []models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Find(&rows).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.SignedAmount())
	}
	return total, nil
}
