package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order statuses the gateway cares about. The storefront owns the rest of the
// lifecycle; anything other than pending/completed is opaque to this service.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// PaymentMethodGrin tags orders that chose the GRIN gateway at checkout.
const PaymentMethodGrin = "grin"

// Metadata keys managed by the gateway.
const (
	MetaPaymentReference = "grin_payment_reference"
	MetaGrinAmount       = "grin_amount"
)

type Order struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber   string          `gorm:"uniqueIndex;not null" json:"order_number"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Total         decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"total"`
	Currency      string          `gorm:"type:varchar(10);not null" json:"currency"`
	Status        string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentMethod string          `gorm:"type:varchar(20);index" json:"payment_method"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

// OrderMeta is a key/value row attached to an order. The gateway stores the
// payment reference and the GRIN amount here; writes to both keys happen in
// one transaction so a reader never sees one without the other.
type OrderMeta struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_order_meta_key"`
	MetaKey   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_order_meta_key"`
	MetaValue string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// OrderNote is an append-only audit entry on an order.
type OrderNote struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	Note      string    `gorm:"type:text;not null" json:"note"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
