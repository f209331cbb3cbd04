package core

import (
	"time"

	"github.com/google/uuid"
)

// RefundStatus represents the status of a refund row.
// Only completed refunds are ever persisted; a failed provider refund
// leaves no row behind.
type RefundStatus string

const (
	RefundStatusCompleted RefundStatus = "COMPLETED"
)

// Refund is one completed refund against a payment. Rows are append-only:
// the remaining refundable amount is always recomputable by summation.
type Refund struct {
	ID                uuid.UUID
	PaymentRef        string // LocalOrderRef of the owning payment
	Amount            int64  // minor currency units
	ProviderRefundRef string
	Status            RefundStatus
	Reason            string
	ProcessedAt       time.Time
}
