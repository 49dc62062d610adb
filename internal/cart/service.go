package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/internal/products"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
)

// Service manages the single active cart each customer owns.
type Service interface {
	GetOrCreate(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error)
	AddItem(ctx context.Context, customerID, productID uuid.UUID, qty int) (*models.CartRecord, error)
	RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (*models.CartRecord, error)
	Clear(ctx context.Context, customerID uuid.UUID) error
	RemovePurchased(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, itemIDs []uuid.UUID) error
}

type service struct {
	repo     Repository
	products products.Repository
}

// NewService wires a cart service with its dependencies.
func NewService(repo Repository, productRepo products.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, products: productRepo}, nil
}

func (s *service) GetOrCreate(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error) {
	if customerID == uuid.Nil {
		return nil, fmt.Errorf("customer id is required")
	}

	record, err := s.repo.GetByCustomerID(ctx, customerID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &models.CartRecord{CustomerID: customerID}
	if err := s.repo.Create(ctx, created); err != nil {
		if db.IsUniqueViolation(err, "") {
			return s.repo.GetByCustomerID(ctx, customerID)
		}
		return nil, err
	}
	return created, nil
}

func (s *service) AddItem(ctx context.Context, customerID, productID uuid.UUID, qty int) (*models.CartRecord, error) {
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product is no longer available")
	}

	record, err := s.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindItemByProduct(ctx, record.ID, productID)
	switch {
	case err == nil:
		if err := s.repo.UpdateItemQty(ctx, existing.ID, existing.Qty+qty); err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.repo.InsertItem(ctx, &models.CartItem{
			CartID:    record.ID,
			ProductID: productID,
			Qty:       qty,
		}); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return s.repo.GetByCustomerID(ctx, customerID)
}

func (s *service) RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (*models.CartRecord, error) {
	record, err := s.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, err
	}

	removed, err := s.repo.DeleteItem(ctx, record.ID, itemID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.repo.GetByCustomerID(ctx, customerID)
}

func (s *service) Clear(ctx context.Context, customerID uuid.UUID) error {
	record, err := s.GetOrCreate(ctx, customerID)
	if err != nil {
		return err
	}
	return s.repo.ClearItems(ctx, record.ID)
}

// RemovePurchased drops the converted lines inside the checkout transaction
// so the cart and the new order change together.
func (s *service) RemovePurchased(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, itemIDs []uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	return s.repo.WithTx(tx).DeleteItems(ctx, cartID, itemIDs)
}
