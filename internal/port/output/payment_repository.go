package output

import (
	"context"
	"time"

	"github.com/toilaloc/research-fincode-payment/internal/core"
)

// PaymentRepository is an output port (secondary port) for the payment ledger
// Secondary adapters (database implementations) will implement this
type PaymentRepository interface {
	// Create persists a new payment in PENDING state
	Create(ctx context.Context, payment *core.Payment) error

	// GetByLocalOrderRef retrieves a payment by its local order reference.
	// Returns *core.NotFoundError when no payment matches.
	GetByLocalOrderRef(ctx context.Context, localOrderRef string) (*core.Payment, error)

	// TransitionState conditionally advances the payment state: the update
	// applies only if the current state equals from (compare-and-swap).
	// The transition timestamp for the target state is set exactly once.
	// Returns core.ErrConcurrentUpdate when the conditional update matched
	// no row because a concurrent write changed the state first.
	TransitionState(ctx context.Context, localOrderRef string, from, to core.PaymentState, at time.Time) error
}
