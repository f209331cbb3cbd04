package output

import (
	"context"
)

// GatewayRegistration carries the opaque references returned by the
// provider when a payment is registered
type GatewayRegistration struct {
	ProviderOrderRef  string
	ProviderAccessRef string
}

// PaymentGateway is an output port (secondary port) adapting one external
// payment provider's wire protocol to a uniform capability interface.
// Implementations are stateless, one instance per provider; credentials are
// injected at construction, never read from the environment at call time.
//
// Provider-specific failures are mapped to *core.ProviderError at this
// boundary; wire details never leak past it. The orchestrator guarantees
// idempotency above this interface by checking ledger state before calling,
// so implementations do not need provider idempotency keys.
type PaymentGateway interface {
	// Register creates a provider-side order and authorization context
	Register(ctx context.Context, amount int64, customerRef string) (*GatewayRegistration, error)

	// Capture converts the authorization hold into an actual charge
	Capture(ctx context.Context, providerOrderRef, providerAccessRef string, amount int64) error

	// Cancel releases the authorization hold
	Cancel(ctx context.Context, providerOrderRef, providerAccessRef string) error

	// Refund returns part or all of a captured amount; amount is the exact
	// amount to refund in this call
	Refund(ctx context.Context, providerOrderRef, providerAccessRef string, amount int64) (providerRefundRef string, err error)
}
