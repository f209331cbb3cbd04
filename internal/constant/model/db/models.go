package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment represents a payment entity in the database. The state column is
// only ever advanced through conditional updates keyed on the expected
// prior state.
type Payment struct {
	LocalOrderRef     string     `gorm:"type:varchar(32);primary_key" json:"local_order_ref"`
	ProviderOrderRef  string     `gorm:"type:varchar(64);not null" json:"provider_order_ref"`
	ProviderAccessRef string     `gorm:"type:varchar(64);not null" json:"provider_access_ref"`
	Amount            int64      `gorm:"not null" json:"amount"`
	State             string     `gorm:"type:varchar(20);not null;index" json:"state"`
	IsZeroSettlement  bool       `gorm:"not null;default:false" json:"is_zero_settlement"`
	AuthorizedAt      *time.Time `json:"authorized_at"`
	CapturedAt        *time.Time `json:"captured_at"`
	CancelledAt       *time.Time `json:"cancelled_at"`
	CreatedAt         time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	return nil
}

// Refund represents a completed refund row. Rows are append-only and never
// mutated or deleted, so the remaining refundable amount of a payment is
// always recomputable by summation.
type Refund struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	PaymentRef        string    `gorm:"type:varchar(32);not null;index" json:"payment_ref"`
	Amount            int64     `gorm:"not null" json:"amount"`
	ProviderRefundRef string    `gorm:"type:varchar(64)" json:"provider_refund_ref"`
	Status            string    `gorm:"type:varchar(20);not null" json:"status"`
	Reason            string    `gorm:"type:varchar(255)" json:"reason"`
	ProcessedAt       time.Time `gorm:"not null" json:"processed_at"`
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName specifies the table name for GORM
func (Refund) TableName() string {
	return "refunds"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (r *Refund) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}
