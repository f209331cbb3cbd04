package input

import (
	"context"
	"time"

	"github.com/toilaloc/research-fincode-payment/internal/core"
)

// PaymentService is an input port (primary port) for payment orchestration
// Primary adapters (HTTP handlers) will use this
type PaymentService interface {
	// Register creates a payment and registers it with the provider
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)

	// ConfirmAuthorization records a provider-side authorization reported
	// by the frontend and moves the payment to AUTHORIZED
	ConfirmAuthorization(ctx context.Context, localOrderRef string) (*PaymentSnapshot, error)

	// FailAuthorization records an authorization failure reported by the
	// frontend or provider and moves the payment to FAILED
	FailAuthorization(ctx context.Context, localOrderRef string) (*PaymentSnapshot, error)

	// Capture converts the authorization hold into an actual charge
	Capture(ctx context.Context, localOrderRef string) (*PaymentSnapshot, error)

	// Cancel releases an authorization hold before capture
	Cancel(ctx context.Context, localOrderRef string) (*PaymentSnapshot, error)

	// Refund issues a full or partial refund against a captured payment
	Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error)

	// GetPayment retrieves a payment snapshot by local order reference
	GetPayment(ctx context.Context, localOrderRef string) (*PaymentSnapshot, error)
}

// RegisterRequest represents the request to register a payment
type RegisterRequest struct {
	Amount      int64 // minor currency units; 0 means zero settlement
	CustomerRef string
}

// RegisterResponse carries the references the frontend needs to run the
// provider-side tokenized authorization
type RegisterResponse struct {
	LocalOrderRef     string
	ProviderOrderRef  string
	ProviderAccessRef string
}

// RefundRequest represents the request to refund a payment.
// Amount 0 means the full remaining refundable amount. A non-empty
// ExternalRefundRef marks the frontend-driven path: the provider-side
// refund already happened and no gateway call is made.
type RefundRequest struct {
	LocalOrderRef     string
	Amount            int64
	Reason            string
	ExternalRefundRef string
}

// RefundResponse represents the outcome of a refund
type RefundResponse struct {
	RefundID            string
	RemainingRefundable int64
	State               core.PaymentState
}

// PaymentSnapshot represents the current state of a payment
type PaymentSnapshot struct {
	LocalOrderRef     string
	ProviderOrderRef  string
	ProviderAccessRef string
	Amount            int64
	State             core.PaymentState
	IsZeroSettlement  bool
	AuthorizedAt      *time.Time
	CapturedAt        *time.Time
	CancelledAt       *time.Time
	CreatedAt         time.Time
}
