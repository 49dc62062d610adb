package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazario/bazario-backend/api/middleware"
	"github.com/bazario/bazario-backend/api/responses"
	"github.com/bazario/bazario-backend/api/validators"
	ordersvc "github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

// Checkout converts the caller's cart into a pending order.
func Checkout(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		customerID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		order, err := svc.PlaceOrder(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// OrderDetail returns one order, enforcing per-role visibility.
func OrderDetail(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		requester, ok := requesterFromContext(r)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		orderID, err := validators.UUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID, requester)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// ListOrders returns the caller's orders, newest first.
func ListOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		orders, cursor, err := svc.ListCustomerOrders(r.Context(), customerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]*orderResponse, 0, len(orders))
		for i := range orders {
			items = append(items, newOrderResponse(&orders[i]))
		}
		responses.WriteSuccess(w, map[string]any{"items": items, "cursor": cursor})
	}
}

// SellerItems returns the order lines addressed to the calling seller.
func SellerItems(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		sellerID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines, cursor, err := svc.ListSellerItems(r.Context(), sellerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orderItemResponse, 0, len(lines))
		for _, line := range lines {
			items = append(items, newOrderItemResponse(line))
		}
		responses.WriteSuccess(w, map[string]any{"items": items, "cursor": cursor})
	}
}

// ApproveItem records the seller's approval of one order line.
func ApproveItem(svc ordersvc.ApprovalService, logg *logger.Logger) http.HandlerFunc {
	return decideItem(svc, logg, enums.OrderItemStatusApproved)
}

// RejectItem records the seller's rejection of one order line.
func RejectItem(svc ordersvc.ApprovalService, logg *logger.Logger) http.HandlerFunc {
	return decideItem(svc, logg, enums.OrderItemStatusRejected)
}

func decideItem(svc ordersvc.ApprovalService, logg *logger.Logger, decision enums.OrderItemStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "approval service unavailable"))
			return
		}

		sellerID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		itemID, err := validators.UUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var item *models.OrderItem
		if decision == enums.OrderItemStatusApproved {
			item, err = svc.ApproveItem(r.Context(), itemID, sellerID)
		} else {
			item, err = svc.RejectItem(r.Context(), itemID, sellerID)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderItemResponse(*item))
	}
}

func requesterFromContext(r *http.Request) (ordersvc.Requester, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return ordersvc.Requester{}, false
	}
	role, ok := middleware.RoleFromContext(r.Context())
	if !ok {
		return ordersvc.Requester{}, false
	}
	return ordersvc.Requester{UserID: userID, Role: role}, true
}

func listParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.LimitQuery(r)
	if err != nil {
		return pagination.Params{}, err
	}
	cursor, err := validators.CursorQuery(r)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: cursor}, nil
}

type orderResponse struct {
	ID                  uuid.UUID           `json:"id"`
	OrderNumber         int64               `json:"order_number"`
	CustomerID          uuid.UUID           `json:"customer_id"`
	Status              string              `json:"status"`
	TotalAmount         decimal.Decimal     `json:"total_amount"`
	OrderDate           time.Time           `json:"order_date"`
	EstimatedDeliveryAt time.Time           `json:"estimated_delivery_at"`
	Items               []orderItemResponse `json:"items"`
	CreatedAt           time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"order_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	SellerID        uuid.UUID       `json:"seller_id"`
	ProductName     string          `json:"product_name"`
	Qty             int             `json:"qty"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	LineTotal       decimal.Decimal `json:"line_total"`
	Status          string          `json:"status"`
	RefundIssued    bool            `json:"refund_issued"`
	CreatedAt       time.Time       `json:"created_at"`
}

func newOrderResponse(order *models.Order) *orderResponse {
	if order == nil {
		return nil
	}
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, newOrderItemResponse(item))
	}
	return &orderResponse{
		ID:                  order.ID,
		OrderNumber:         order.OrderNumber,
		CustomerID:          order.CustomerID,
		Status:              order.Status.String(),
		TotalAmount:         order.TotalAmount,
		OrderDate:           order.OrderDate,
		EstimatedDeliveryAt: order.EstimatedDeliveryAt,
		Items:               items,
		CreatedAt:           order.CreatedAt,
	}
}

func newOrderItemResponse(item models.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:              item.ID,
		OrderID:         item.OrderID,
		ProductID:       item.ProductID,
		SellerID:        item.SellerID,
		ProductName:     item.ProductName,
		Qty:             item.Qty,
		PriceAtPurchase: item.PriceAtPurchase,
		LineTotal:       item.LineTotal(),
		Status:          item.Status.String(),
		RefundIssued:    item.RefundIssued,
		CreatedAt:       item.CreatedAt,
	}
}
