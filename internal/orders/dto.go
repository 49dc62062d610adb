package orders

import (
	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// Requester carries the authenticated identity asking for an order view.
type Requester struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// IsAdmin reports whether the requester can see every order.
func (r Requester) IsAdmin() bool {
	return r.Role == enums.UserRoleAdmin
}
