package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazario/bazario-backend/api/middleware"
	"github.com/bazario/bazario-backend/api/responses"
	"github.com/bazario/bazario-backend/api/validators"
	walletsvc "github.com/bazario/bazario-backend/internal/wallet"
	"github.com/bazario/bazario-backend/pkg/db/models"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
)

// WalletFetch returns the caller's wallet, creating it on first read.
func WalletFetch(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		customerID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		wallet, err := svc.GetOrCreate(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletResponse(wallet))
	}
}

// WalletAddFunds deposits into the caller's wallet.
func WalletAddFunds(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		customerID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var payload addFundsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := validators.DecimalField(payload.Amount, "amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		description := payload.Description
		if description == "" {
			description = "Wallet deposit"
		}

		wallet, err := svc.AddFunds(r.Context(), customerID, amount, description)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletResponse(wallet))
	}
}

// WalletTransactions returns the caller's ledger entries, newest first.
func WalletTransactions(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		customerID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactions, cursor, err := svc.ListTransactions(r.Context(), customerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]walletTransactionResponse, 0, len(transactions))
		for _, txn := range transactions {
			items = append(items, newWalletTransactionResponse(txn))
		}
		responses.WriteSuccess(w, map[string]any{"items": items, "cursor": cursor})
	}
}

type addFundsRequest struct {
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description"`
}

type walletResponse struct {
	ID          uuid.UUID       `json:"id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	Balance     decimal.Decimal `json:"balance"`
	LastUpdated time.Time       `json:"last_updated"`
}

type walletTransactionResponse struct {
	ID          uuid.UUID       `json:"id"`
	WalletID    uuid.UUID       `json:"wallet_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newWalletResponse(wallet *models.Wallet) *walletResponse {
	if wallet == nil {
		return nil
	}
	return &walletResponse{
		ID:          wallet.ID,
		CustomerID:  wallet.CustomerID,
		Balance:     wallet.Balance,
		LastUpdated: wallet.LastUpdated,
	}
}

func newWalletTransactionResponse(txn models.WalletTransaction) walletTransactionResponse {
	return walletTransactionResponse{
		ID:          txn.ID,
		WalletID:    txn.WalletID,
		Amount:      txn.Amount,
		Type:        txn.Type.String(),
		Description: txn.Description,
		CreatedAt:   txn.CreatedAt,
	}
}
