package output

import (
	"context"

	"github.com/toilaloc/research-fincode-payment/internal/core"
)

// RefundRepository is an output port (secondary port) for the append-only
// refund ledger. Secondary adapters (database implementations) will
// implement this
type RefundRepository interface {
	// CreateCompleted appends a completed refund under one atomic unit
	// scoped to the owning payment: the payment row is locked, the
	// remaining refundable amount is recomputed by summation, the refund
	// is inserted only if it fits, and the payment state advances to
	// PARTIALLY_REFUNDED or REFUNDED. Returns the remaining refundable
	// amount after the insert.
	//
	// Returns *core.ValidationError when the amount no longer fits the
	// re-read remaining amount, and *core.StateConflictError when the
	// payment left a refundable state concurrently.
	CreateCompleted(ctx context.Context, refund *core.Refund) (remaining int64, err error)

	// RemainingRefundable computes payment.Amount minus the sum of all
	// completed refund amounts for the payment
	RemainingRefundable(ctx context.Context, localOrderRef string) (int64, error)

	// ListByPayment returns all refunds recorded against a payment
	ListByPayment(ctx context.Context, localOrderRef string) ([]core.Refund, error)
}
