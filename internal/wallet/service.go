package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

// Service owns the closed-loop wallet ledger. Funds enter through deposits,
// leave through checkout debits, and return through refund credits. Every
// balance change writes a matching transaction row in the same transaction.
type Service interface {
	GetOrCreate(ctx context.Context, customerID uuid.UUID) (*models.Wallet, error)
	GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*models.Wallet, error)
	GetByCustomerIDInTx(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*models.Wallet, error)
	AddFunds(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description string) (*models.Wallet, error)
	DebitInTx(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, amount decimal.Decimal, description string) error
	CreditInTx(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, amount decimal.Decimal, description string) error
	ListTransactions(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, string, error)
}

type service struct {
	client *db.Client
	repo   Repository
}

// NewService wires a wallet service with its dependencies.
func NewService(client *db.Client, repo Repository) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &service{client: client, repo: repo}, nil
}

func (s *service) GetOrCreate(ctx context.Context, customerID uuid.UUID) (*models.Wallet, error) {
	if customerID == uuid.Nil {
		return nil, fmt.Errorf("customer id is required")
	}

	wallet, err := s.repo.GetByCustomerID(ctx, customerID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &models.Wallet{
		CustomerID: customerID,
		Balance:    decimal.Zero,
	}
	if err := s.repo.Create(ctx, created); err != nil {
		// Lost the race against a concurrent first request for this customer.
		if db.IsUniqueViolation(err, "") {
			return s.repo.GetByCustomerID(ctx, customerID)
		}
		return nil, err
	}
	return created, nil
}

func (s *service) GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*models.Wallet, error) {
	if customerID == uuid.Nil {
		return nil, fmt.Errorf("customer id is required")
	}
	wallet, err := s.repo.GetByCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, err
	}
	return wallet, nil
}

// GetByCustomerIDInTx reads the wallet through the caller's transaction so
// refunds resolve the row they are about to credit.
func (s *service) GetByCustomerIDInTx(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*models.Wallet, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if customerID == uuid.Nil {
		return nil, fmt.Errorf("customer id is required")
	}
	wallet, err := s.repo.WithTx(tx).GetByCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, err
	}
	return wallet, nil
}

func (s *service) AddFunds(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description string) (*models.Wallet, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	wallet, err := s.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, err
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.Credit(ctx, wallet.ID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("wallet %s not found", wallet.ID)
		}
		return repo.InsertTransaction(ctx, &models.WalletTransaction{
			WalletID:    wallet.ID,
			Amount:      amount,
			Type:        enums.WalletTransactionTypeDeposit,
			Description: description,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetByCustomerID(ctx, customerID)
}

// DebitInTx withdraws amount inside the caller's transaction. Returns
// CodeInsufficientFunds when the balance guard rejects the withdrawal.
func (s *service) DebitInTx(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, amount decimal.Decimal, description string) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	ok, err := repo.Debit(ctx, walletID, amount)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance does not cover the amount").
			WithDetails(map[string]any{"required_amount": amount.StringFixed(2)})
	}
	return repo.InsertTransaction(ctx, &models.WalletTransaction{
		WalletID:    walletID,
		Amount:      amount,
		Type:        enums.WalletTransactionTypeDebit,
		Description: description,
	})
}

// CreditInTx refunds amount inside the caller's transaction.
func (s *service) CreditInTx(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, amount decimal.Decimal, description string) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	ok, err := repo.Credit(ctx, walletID, amount)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("wallet %s not found", walletID)
	}
	return repo.InsertTransaction(ctx, &models.WalletTransaction{
		WalletID:    walletID,
		Amount:      amount,
		Type:        enums.WalletTransactionTypeCredit,
		Description: description,
	})
}

func (s *service) ListTransactions(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, string, error) {
	wallet, err := s.GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, "", err
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListTransactions(ctx, wallet.ID, limit+1, cursor)
	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, nextCursor, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if amount.Exponent() < -2 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount precision is limited to cents")
	}
	return nil
}
