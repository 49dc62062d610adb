package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db/models"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
)

// Service exposes stock reservation transitions to order workflows. Every
// mutating method takes the caller's transaction so reservations commit
// atomically with the order rows that depend on them.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Commit(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	GetByProductID(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error)
}

type service struct {
	repo Repository
}

// NewService wires an inventory service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validateTransition(tx, productID, qty); err != nil {
		return err
	}
	ok, err := s.repo.WithTx(tx).Reserve(ctx, productID, qty)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for product %s", productID)).
			WithDetails(map[string]any{"product_id": productID.String(), "requested_qty": qty})
	}
	return nil
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validateTransition(tx, productID, qty); err != nil {
		return err
	}
	ok, err := s.repo.WithTx(tx).Release(ctx, productID, qty)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("release exceeds reserved stock for product %s", productID)
	}
	return nil
}

func (s *service) Commit(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validateTransition(tx, productID, qty); err != nil {
		return err
	}
	ok, err := s.repo.WithTx(tx).Commit(ctx, productID, qty)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("commit exceeds reserved stock for product %s", productID)
	}
	return nil
}

func (s *service) GetByProductID(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("product id is required")
	}
	return s.repo.GetByProductID(ctx, productID)
}

func validateTransition(tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if productID == uuid.Nil {
		return fmt.Errorf("product id is required")
	}
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	return nil
}
