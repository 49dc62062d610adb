package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
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
	"github.com/bazario/bazario-backend/pkg/outbox"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  sku TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  tags TEXT,
  price_amount NUMERIC NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS inventory_items (
  product_id TEXT PRIMARY KEY,
  available_qty INTEGER NOT NULL DEFAULT 0,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS cart_records (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  qty INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number INTEGER NOT NULL DEFAULT 0,
  customer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total_amount NUMERIC NOT NULL,
  order_date DATETIME NOT NULL,
  estimated_delivery_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  qty INTEGER NOT NULL,
  price_at_purchase NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  refund_issued BOOLEAN NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL UNIQUE,
  balance NUMERIC NOT NULL DEFAULT 0,
  last_updated DATETIME,
  created_at DATETIME
);
CREATE TABLE IF NOT EXISTS wallet_transactions (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  type TEXT NOT NULL,
  description TEXT NOT NULL,
  created_at DATETIME
);
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`

type testEnv struct {
	conn      *gorm.DB
	client    *db.Client
	carts     cart.Service
	wallets   wallet.Service
	inventory inventory.Service
	repo      Repository
	orders    Service
	approval  ApprovalService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(testSchema).Error)

	client := db.NewFromConn(conn)
	productRepo := products.NewRepository(conn)

	cartSvc, err := cart.NewService(cart.NewRepository(conn), productRepo)
	require.NoError(t, err)
	inventorySvc, err := inventory.NewService(inventory.NewRepository(conn))
	require.NoError(t, err)
	walletSvc, err := wallet.NewService(client, wallet.NewRepository(conn))
	require.NoError(t, err)

	outboxSvc := outbox.NewService(outbox.NewRepository(conn), nil)
	repo := NewRepository(conn)

	ordersSvc, err := NewService(client, repo, cartSvc, productRepo, inventorySvc, walletSvc, outboxSvc,
		config.OrdersConfig{EstimatedDeliveryDays: 5}, nil)
	require.NoError(t, err)

	finalizer, err := NewFinalizer(repo, walletSvc, outboxSvc, nil)
	require.NoError(t, err)
	approvalSvc, err := NewApprovalService(client, repo, inventorySvc, outboxSvc, finalizer, nil)
	require.NoError(t, err)

	return &testEnv{
		conn:      conn,
		client:    client,
		carts:     cartSvc,
		wallets:   walletSvc,
		inventory: inventorySvc,
		repo:      repo,
		orders:    ordersSvc,
		approval:  approvalSvc,
	}
}

func (e *testEnv) seedProduct(t *testing.T, sellerID uuid.UUID, price string, stock int) *models.Product {
	t.Helper()
	amount, err := decimal.NewFromString(price)
	require.NoError(t, err)
	product := models.Product{
		SellerID:    sellerID,
		SKU:         "SKU-" + uuid.NewString()[:8],
		Name:        "Handmade item",
		PriceAmount: amount,
		IsActive:    true,
	}
	require.NoError(t, e.conn.Create(&product).Error)
	require.NoError(t, e.conn.Create(&models.InventoryItem{ProductID: product.ID, AvailableQty: stock}).Error)
	return &product
}

func (e *testEnv) fundWallet(t *testing.T, customerID uuid.UUID, amount string) *models.Wallet {
	t.Helper()
	parsed, err := decimal.NewFromString(amount)
	require.NoError(t, err)
	w, err := e.wallets.AddFunds(context.Background(), customerID, parsed, "Wallet deposit")
	require.NoError(t, err)
	return w
}

func (e *testEnv) addToCart(t *testing.T, customerID, productID uuid.UUID, qty int) {
	t.Helper()
	_, err := e.carts.AddItem(context.Background(), customerID, productID, qty)
	require.NoError(t, err)
}

func (e *testEnv) stock(t *testing.T, productID uuid.UUID) models.InventoryItem {
	t.Helper()
	var item models.InventoryItem
	require.NoError(t, e.conn.First(&item, "product_id = ?", productID).Error)
	return item
}

func (e *testEnv) balance(t *testing.T, customerID uuid.UUID) decimal.Decimal {
	t.Helper()
	w, err := e.wallets.GetByCustomerID(context.Background(), customerID)
	require.NoError(t, err)
	return w.Balance
}

func (e *testEnv) outboxCount(t *testing.T, eventType enums.OutboxEventType, aggregateID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", eventType, aggregateID).
		Count(&count).Error)
	return count
}

func dec(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	require.NoError(t, err)
	return d
}

func TestPlaceOrderConvertsCart(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	customerID := uuid.New()
	sellerA, sellerB := uuid.New(), uuid.New()

	first := env.seedProduct(t, sellerA, "10.00", 5)
	second := env.seedProduct(t, sellerB, "4.50", 3)
	env.fundWallet(t, customerID, "100.00")
	env.addToCart(t, customerID, first.ID, 2)
	env.addToCart(t, customerID, second.ID, 1)

	order, err := env.orders.PlaceOrder(ctx, customerID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 2)
	require.True(t, order.TotalAmount.Equal(dec(t, "24.50")), "total %s", order.TotalAmount)

	byProduct := map[uuid.UUID]models.OrderItem{}
	for _, item := range order.Items {
		require.Equal(t, enums.OrderItemStatusPending, item.Status)
		byProduct[item.ProductID] = item
	}
	require.Equal(t, sellerA, byProduct[first.ID].SellerID)
	require.Equal(t, first.Name, byProduct[first.ID].ProductName)
	require.True(t, byProduct[first.ID].PriceAtPurchase.Equal(dec(t, "10.00")))
	require.Equal(t, 2, byProduct[first.ID].Qty)

	firstStock := env.stock(t, first.ID)
	require.Equal(t, 3, firstStock.AvailableQty)
	require.Equal(t, 2, firstStock.ReservedQty)

	require.True(t, env.balance(t, customerID).Equal(dec(t, "75.50")))

	record, err := env.carts.GetOrCreate(ctx, customerID)
	require.NoError(t, err)
	require.Empty(t, record.Items)

	require.EqualValues(t, 1, env.outboxCount(t, enums.EventOrderPlaced, order.ID))
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, err := env.orders.PlaceOrder(context.Background(), uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestPlaceOrderInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	customerID := uuid.New()

	product := env.seedProduct(t, uuid.New(), "10.00", 1)
	env.fundWallet(t, customerID, "100.00")
	env.addToCart(t, customerID, product.ID, 2)

	_, err := env.orders.PlaceOrder(ctx, customerID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)

	stock := env.stock(t, product.ID)
	require.Equal(t, 1, stock.AvailableQty)
	require.Equal(t, 0, stock.ReservedQty)
	require.True(t, env.balance(t, customerID).Equal(dec(t, "100.00")))

	record, err := env.carts.GetOrCreate(ctx, customerID)
	require.NoError(t, err)
	require.Len(t, record.Items, 1)

	var orderCount int64
	require.NoError(t, env.conn.Model(&models.Order{}).Count(&orderCount).Error)
	require.Zero(t, orderCount)
}

func TestPlaceOrderInsufficientFundsRollsBack(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	customerID := uuid.New()

	product := env.seedProduct(t, uuid.New(), "10.00", 5)
	env.fundWallet(t, customerID, "15.00")
	env.addToCart(t, customerID, product.ID, 2)

	_, err := env.orders.PlaceOrder(ctx, customerID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientFunds), "got %v", err)

	stock := env.stock(t, product.ID)
	require.Equal(t, 5, stock.AvailableQty)
	require.Equal(t, 0, stock.ReservedQty)
	require.True(t, env.balance(t, customerID).Equal(dec(t, "15.00")))
}

func TestPlaceOrderWithoutWallet(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	customerID := uuid.New()

	product := env.seedProduct(t, uuid.New(), "10.00", 5)
	env.addToCart(t, customerID, product.ID, 1)

	_, err := env.orders.PlaceOrder(context.Background(), customerID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientFunds), "got %v", err)
}

func TestPlaceOrderInactiveProduct(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	customerID := uuid.New()

	product := env.seedProduct(t, uuid.New(), "10.00", 5)
	env.fundWallet(t, customerID, "100.00")
	env.addToCart(t, customerID, product.ID, 1)

	require.NoError(t, env.conn.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("is_active", false).Error)

	_, err := env.orders.PlaceOrder(ctx, customerID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "got %v", err)
}

func TestPlaceOrderSnapshotsCheckoutTimePrice(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	customerID := uuid.New()

	product := env.seedProduct(t, uuid.New(), "10.00", 5)
	env.fundWallet(t, customerID, "100.00")
	env.addToCart(t, customerID, product.ID, 2)

	// The seller reprices after the item is carted; the order must charge
	// the price the catalog holds when the checkout transaction runs.
	require.NoError(t, env.conn.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("price_amount", "12.50").Error)

	order, err := env.orders.PlaceOrder(ctx, customerID)
	require.NoError(t, err)

	require.True(t, order.TotalAmount.Equal(dec(t, "25.00")))
	require.True(t, order.Items[0].PriceAtPurchase.Equal(dec(t, "12.50")))
	require.True(t, env.balance(t, customerID).Equal(dec(t, "75.00")))
}

func TestGetOrderVisibility(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	customerID := uuid.New()
	sellerID := uuid.New()

	product := env.seedProduct(t, sellerID, "10.00", 5)
	env.fundWallet(t, customerID, "100.00")
	env.addToCart(t, customerID, product.ID, 1)
	order, err := env.orders.PlaceOrder(ctx, customerID)
	require.NoError(t, err)

	_, err = env.orders.GetOrder(ctx, order.ID, Requester{UserID: customerID, Role: enums.UserRoleCustomer})
	require.NoError(t, err)

	_, err = env.orders.GetOrder(ctx, order.ID, Requester{UserID: sellerID, Role: enums.UserRoleSeller})
	require.NoError(t, err)

	_, err = env.orders.GetOrder(ctx, order.ID, Requester{UserID: uuid.New(), Role: enums.UserRoleAdmin})
	require.NoError(t, err)

	_, err = env.orders.GetOrder(ctx, order.ID, Requester{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden), "got %v", err)

	_, err = env.orders.GetOrder(ctx, uuid.New(), Requester{UserID: customerID, Role: enums.UserRoleCustomer})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestListCustomerOrdersPagination(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	customerID := uuid.New()

	product := env.seedProduct(t, uuid.New(), "5.00", 100)
	env.fundWallet(t, customerID, "500.00")

	for i := 0; i < 3; i++ {
		env.addToCart(t, customerID, product.ID, 1)
		_, err := env.orders.PlaceOrder(ctx, customerID)
		require.NoError(t, err)
	}

	firstPage, cursor, err := env.orders.ListCustomerOrders(ctx, customerID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, firstPage, 2)
	require.NotEmpty(t, cursor)

	secondPage, next, err := env.orders.ListCustomerOrders(ctx, customerID, pagination.Params{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, secondPage, 1)
	require.Empty(t, next)

	seen := map[uuid.UUID]bool{}
	for _, row := range append(firstPage, secondPage...) {
		require.False(t, seen[row.ID], "order %s returned twice", row.ID)
		seen[row.ID] = true
	}
}

func TestListSellerItems(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	customerID := uuid.New()
	sellerID := uuid.New()

	mine := env.seedProduct(t, sellerID, "5.00", 10)
	other := env.seedProduct(t, uuid.New(), "5.00", 10)
	env.fundWallet(t, customerID, "100.00")
	env.addToCart(t, customerID, mine.ID, 1)
	env.addToCart(t, customerID, other.ID, 1)
	_, err := env.orders.PlaceOrder(ctx, customerID)
	require.NoError(t, err)

	rows, cursor, err := env.orders.ListSellerItems(ctx, sellerID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Empty(t, cursor)
	require.Len(t, rows, 1)
	require.Equal(t, mine.ID, rows[0].ProductID)
}
