package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/internal/cart"
	"github.com/bazario/bazario-backend/internal/inventory"
	"github.com/bazario/bazario-backend/internal/products"
	"github.com/bazario/bazario-backend/internal/wallet"
	"github.com/bazario/bazario-backend/pkg/config"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/outbox"
	"github.com/bazario/bazario-backend/pkg/outbox/payloads"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

// Service converts carts into orders and serves order views.
type Service interface {
	PlaceOrder(ctx context.Context, customerID uuid.UUID) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, requester Requester) (*models.Order, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	ListSellerItems(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.OrderItem, string, error)
}

type service struct {
	client    *db.Client
	repo      Repository
	carts     cart.Service
	products  products.Repository
	inventory inventory.Service
	wallet    wallet.Service
	outbox    *outbox.Service
	cfg       config.OrdersConfig
	logg      *logger.Logger
}

// NewService wires the order placement service with its collaborators.
func NewService(
	client *db.Client,
	repo Repository,
	cartSvc cart.Service,
	productRepo products.Repository,
	inventorySvc inventory.Service,
	walletSvc wallet.Service,
	outboxSvc *outbox.Service,
	cfg config.OrdersConfig,
	logg *logger.Logger,
) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if cartSvc == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if inventorySvc == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		client:    client,
		repo:      repo,
		carts:     cartSvc,
		products:  productRepo,
		inventory: inventorySvc,
		wallet:    walletSvc,
		outbox:    outboxSvc,
		cfg:       cfg,
		logg:      logg,
	}, nil
}

// PlaceOrder converts the customer's cart into a pending order. Stock
// reservations, the wallet debit, the order rows, the cart cleanup and the
// outbox event all commit in one transaction; the first reservation or debit
// failure rolls everything back.
func (s *service) PlaceOrder(ctx context.Context, customerID uuid.UUID) (*models.Order, error) {
	if customerID == uuid.Nil {
		return nil, fmt.Errorf("customer id is required")
	}

	record, err := s.carts.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	productIDs := make([]uuid.UUID, 0, len(record.Items))
	for _, item := range record.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	now := time.Now()
	order := &models.Order{
		CustomerID:          customerID,
		Status:              enums.OrderStatusPending,
		OrderDate:           now,
		EstimatedDeliveryAt: now.AddDate(0, 0, s.cfg.EstimatedDeliveryDays),
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		// Snapshot the catalog inside the transaction so the prices written
		// to the order lines are the ones the debit is computed from.
		catalog, err := s.products.WithTx(tx).ListByIDs(ctx, productIDs)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]models.Product, len(catalog))
		for _, product := range catalog {
			byID[product.ID] = product
		}

		total := decimal.Zero
		orderItems := make([]models.OrderItem, 0, len(record.Items))
		cartItemIDs := make([]uuid.UUID, 0, len(record.Items))
		for _, item := range record.Items {
			product, ok := byID[item.ProductID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product in cart no longer exists").
					WithDetails(map[string]any{"product_id": item.ProductID.String()})
			}
			if !product.IsActive {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "product in cart is no longer available").
					WithDetails(map[string]any{"product_id": item.ProductID.String()})
			}
			lineTotal := product.PriceAmount.Mul(decimal.NewFromInt(int64(item.Qty)))
			total = total.Add(lineTotal)
			orderItems = append(orderItems, models.OrderItem{
				ProductID:       product.ID,
				SellerID:        product.SellerID,
				ProductName:     product.Name,
				Qty:             item.Qty,
				PriceAtPurchase: product.PriceAmount,
				Status:          enums.OrderItemStatusPending,
			})
			cartItemIDs = append(cartItemIDs, item.ID)
		}

		customerWallet, err := s.wallet.GetByCustomerIDInTx(ctx, tx, customerID)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance does not cover the amount")
			}
			return err
		}

		order.TotalAmount = total
		order.Items = orderItems

		for _, item := range orderItems {
			if err := s.inventory.Reserve(ctx, tx, item.ProductID, item.Qty); err != nil {
				return err
			}
		}

		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		description := fmt.Sprintf("Payment for order #%d", order.OrderNumber)
		if err := s.wallet.DebitInTx(ctx, tx, customerWallet.ID, total, description); err != nil {
			return err
		}

		if err := s.carts.RemovePurchased(ctx, tx, record.ID, cartItemIDs); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: customerID, Role: enums.UserRoleCustomer.String()},
			Version:       1,
			Data: payloads.OrderPlacedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  customerID,
				SellerIDs:   distinctSellerIDs(order.Items),
				ItemCount:   len(order.Items),
				TotalAmount: total,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
			"item_count":   len(order.Items),
			"total_amount": order.TotalAmount.StringFixed(2),
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "order placed")
	}
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID, requester Requester) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}

	if !canViewOrder(order, requester) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	return order, nil
}

func (s *service) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if customerID == uuid.Nil {
		return nil, "", fmt.Errorf("customer id is required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByCustomer(ctx, customerID, limit+1, cursor)
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

func (s *service) ListSellerItems(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.OrderItem, string, error) {
	if sellerID == uuid.Nil {
		return nil, "", fmt.Errorf("seller id is required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListSellerItems(ctx, sellerID, limit+1, cursor)
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

func canViewOrder(order *models.Order, requester Requester) bool {
	if requester.IsAdmin() {
		return true
	}
	if order.CustomerID == requester.UserID {
		return true
	}
	for _, item := range order.Items {
		if item.SellerID == requester.UserID {
			return true
		}
	}
	return false
}

func distinctSellerIDs(items []models.OrderItem) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.SellerID]; ok {
			continue
		}
		seen[item.SellerID] = struct{}{}
		ids = append(ids, item.SellerID)
	}
	return ids
}
