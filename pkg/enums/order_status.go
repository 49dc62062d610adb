package enums

import "fmt"

// OrderStatus tracks the lifecycle of a customer order. Terminal resolution
// states (approved, partially_approved, rejected) are written only by the
// finalizer, exactly once per order.
type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "pending"
	OrderStatusPartiallyApproved OrderStatus = "partially_approved"
	OrderStatusApproved          OrderStatus = "approved"
	OrderStatusRejected          OrderStatus = "rejected"
	OrderStatusCancelled         OrderStatus = "cancelled"
	OrderStatusDelivered         OrderStatus = "delivered"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPartiallyApproved,
	OrderStatusApproved,
	OrderStatusRejected,
	OrderStatusCancelled,
	OrderStatusDelivered,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is a resolution state that can no
// longer change through the approval flow.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusApproved, OrderStatusPartiallyApproved, OrderStatusRejected, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
