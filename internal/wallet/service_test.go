package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:wallet_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	schema := `
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
);`
	if err := conn.Exec(schema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return conn
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := newTestDB(t)
	svc, err := NewService(db.NewFromConn(conn), NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn
}

func mustDecimal(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", raw, err)
	}
	return d
}

func TestAddFundsCreatesWalletAndLedgerRow(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	customerID := uuid.New()

	wallet, err := svc.AddFunds(context.Background(), customerID, mustDecimal(t, "25.50"), "Wallet deposit")
	if err != nil {
		t.Fatalf("add funds: %v", err)
	}
	if !wallet.Balance.Equal(mustDecimal(t, "25.50")) {
		t.Fatalf("unexpected balance: %s", wallet.Balance)
	}

	var txns []models.WalletTransaction
	if err := conn.Where("wallet_id = ?", wallet.ID).Find(&txns).Error; err != nil {
		t.Fatalf("load transactions: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected one transaction, got %d", len(txns))
	}
	if txns[0].Type != "deposit" || !txns[0].Amount.Equal(mustDecimal(t, "25.50")) {
		t.Fatalf("unexpected transaction: %+v", txns[0])
	}
}

func TestAddFundsRejectsInvalidAmounts(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	customerID := uuid.New()

	for _, raw := range []string{"0", "-5", "1.999"} {
		_, err := svc.AddFunds(context.Background(), customerID, mustDecimal(t, raw), "deposit")
		if err == nil {
			t.Fatalf("expected validation error for amount %s", raw)
		}
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("unexpected error for amount %s: %v", raw, err)
		}
	}
}

func TestDebitInTxInsufficientFunds(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	customerID := uuid.New()

	wallet, err := svc.AddFunds(context.Background(), customerID, mustDecimal(t, "10.00"), "Wallet deposit")
	if err != nil {
		t.Fatalf("add funds: %v", err)
	}

	err = svc.DebitInTx(context.Background(), conn, wallet.ID, mustDecimal(t, "10.01"), "Order payment")
	if err == nil {
		t.Fatal("expected insufficient funds error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int64
	if err := conn.Model(&models.WalletTransaction{}).
		Where("wallet_id = ? AND type = ?", wallet.ID, "debit").
		Count(&count).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if count != 0 {
		t.Fatalf("debit row written despite failed guard")
	}
}

func TestLedgerReconcilesWithBalance(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	customerID := uuid.New()
	ctx := context.Background()

	wallet, err := svc.AddFunds(ctx, customerID, mustDecimal(t, "50.00"), "Wallet deposit")
	if err != nil {
		t.Fatalf("add funds: %v", err)
	}
	if err := svc.DebitInTx(ctx, conn, wallet.ID, mustDecimal(t, "20.00"), "Order payment"); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if err := svc.CreditInTx(ctx, conn, wallet.ID, mustDecimal(t, "5.00"), "Refund"); err != nil {
		t.Fatalf("credit: %v", err)
	}

	current, err := svc.GetByCustomerID(ctx, customerID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if !current.Balance.Equal(mustDecimal(t, "35.00")) {
		t.Fatalf("unexpected balance: %s", current.Balance)
	}

	sum, err := NewRepository(conn).SumTransactions(ctx, wallet.ID)
	if err != nil {
		t.Fatalf("sum transactions: %v", err)
	}
	if !sum.Equal(current.Balance) {
		t.Fatalf("ledger sum %s does not match balance %s", sum, current.Balance)
	}
}

func TestGetByCustomerIDNotFound(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.GetByCustomerID(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected not found error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	customerID := uuid.New()
	ctx := context.Background()

	first, err := svc.GetOrCreate(ctx, customerID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	second, err := svc.GetOrCreate(ctx, customerID)
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same wallet, got %s and %s", first.ID, second.ID)
	}
}

func TestListTransactionsPagination(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	customerID := uuid.New()
	ctx := context.Background()

	wallet, err := svc.AddFunds(ctx, customerID, mustDecimal(t, "100.00"), "Wallet deposit")
	if err != nil {
		t.Fatalf("add funds: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := svc.DebitInTx(ctx, conn, wallet.ID, mustDecimal(t, "1.00"), "Order payment"); err != nil {
			t.Fatalf("debit %d: %v", i, err)
		}
	}

	firstPage, cursor, err := svc.ListTransactions(ctx, customerID, pagination.Params{Limit: 3})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(firstPage) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(firstPage))
	}
	if cursor == "" {
		t.Fatal("expected a next cursor")
	}

	secondPage, next, err := svc.ListTransactions(ctx, customerID, pagination.Params{Limit: 3, Cursor: cursor})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(secondPage) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(secondPage))
	}
	if next != "" {
		t.Fatalf("expected no further cursor, got %q", next)
	}

	seen := map[uuid.UUID]bool{}
	for _, row := range append(firstPage, secondPage...) {
		if seen[row.ID] {
			t.Fatalf("transaction %s returned twice", row.ID)
		}
		seen[row.ID] = true
	}
}

func TestListTransactionsRejectsBadCursor(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	customerID := uuid.New()

	if _, err := svc.AddFunds(context.Background(), customerID, mustDecimal(t, "1.00"), "Wallet deposit"); err != nil {
		t.Fatalf("add funds: %v", err)
	}

	_, _, err := svc.ListTransactions(context.Background(), customerID, pagination.Params{Limit: 5, Cursor: "not-a-cursor"})
	if err == nil {
		t.Fatal("expected cursor validation error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}
