package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// User is the directory row the engine references for customers and sellers.
// Account management lives in the identity service; the engine only reads
// these rows for ownership checks and notification routing.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string         `gorm:"column:email;not null;uniqueIndex"`
	Name      string         `gorm:"column:name;not null"`
	Role      enums.UserRole `gorm:"column:role;type:user_role;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
