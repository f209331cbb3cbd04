package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/toilaloc/research-fincode-payment/internal/config"
	"github.com/toilaloc/research-fincode-payment/internal/core"
	"github.com/toilaloc/research-fincode-payment/internal/metrics"
	"github.com/toilaloc/research-fincode-payment/internal/port/input"
	"github.com/toilaloc/research-fincode-payment/internal/port/output"
)

const localOrderRefLength = 21

// PaymentOrchestrator implements the PaymentService input port. It is the
// state machine over the payment ledger: every operation validates its
// precondition against the ledger, calls the provider gateway when required,
// and advances state with a conditional write. A provider call is never
// reissued when its effect is already reflected in the ledger.
type PaymentOrchestrator struct {
	paymentRepo output.PaymentRepository
	refundRepo  output.RefundRepository
	gateway     output.PaymentGateway
	holdQueue   output.HoldReleaseQueue
	metrics     *metrics.PaymentMetrics
	logger      *slog.Logger

	minCharge   int64
	maxAttempts int

	// per-payment serialization; operations on distinct payments
	// proceed fully in parallel
	locks sync.Map
}

// NewPaymentOrchestrator creates a new payment orchestrator
func NewPaymentOrchestrator(
	paymentRepo output.PaymentRepository,
	refundRepo output.RefundRepository,
	gateway output.PaymentGateway,
	holdQueue output.HoldReleaseQueue,
	paymentMetrics *metrics.PaymentMetrics,
	logger *slog.Logger,
	cfg config.Payments,
) input.PaymentService {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &PaymentOrchestrator{
		paymentRepo: paymentRepo,
		refundRepo:  refundRepo,
		gateway:     gateway,
		holdQueue:   holdQueue,
		metrics:     paymentMetrics,
		logger:      logger,
		minCharge:   cfg.MinChargeAmount,
		maxAttempts: maxAttempts,
	}
}

// Register creates a payment and registers it with the provider.
// The local order reference is generated before any external call; the
// provider references are set once from the registration response.
func (o *PaymentOrchestrator) Register(ctx context.Context, req input.RegisterRequest) (*input.RegisterResponse, error) {
	if req.Amount < 0 {
		return nil, core.NewValidationError("amount must not be negative: %d", req.Amount)
	}
	if req.Amount > 0 && req.Amount < o.minCharge {
		return nil, core.NewValidationError("amount %d is below the minimum charge of %d", req.Amount, o.minCharge)
	}
	if req.CustomerRef == "" {
		return nil, core.NewValidationError("customer reference is required")
	}

	generateRef, err := nanoid.Standard(localOrderRefLength)
	if err != nil {
		return nil, fmt.Errorf("failed to init order ref generator: %w", err)
	}
	localOrderRef := generateRef()

	registration, err := o.callRegister(ctx, req.Amount, req.CustomerRef)
	if err != nil {
		return nil, err
	}

	payment := &core.Payment{
		LocalOrderRef:     localOrderRef,
		ProviderOrderRef:  registration.ProviderOrderRef,
		ProviderAccessRef: registration.ProviderAccessRef,
		Amount:            req.Amount,
		State:             core.PaymentStatePending,
		IsZeroSettlement:  req.Amount == 0,
	}
	if err := o.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	o.metrics.PaymentsRegisteredTotal.Inc()
	o.logger.Info("payment registered",
		"local_order_ref", localOrderRef,
		"amount", req.Amount,
		"zero_settlement", payment.IsZeroSettlement,
	)

	return &input.RegisterResponse{
		LocalOrderRef:     localOrderRef,
		ProviderOrderRef:  registration.ProviderOrderRef,
		ProviderAccessRef: registration.ProviderAccessRef,
	}, nil
}

// ConfirmAuthorization records a provider-side authorization success
// reported by the frontend and moves the payment to AUTHORIZED
func (o *PaymentOrchestrator) ConfirmAuthorization(ctx context.Context, localOrderRef string) (*input.PaymentSnapshot, error) {
	unlock := o.lockPayment(localOrderRef)
	defer unlock()

	payment, err := o.paymentRepo.GetByLocalOrderRef(ctx, localOrderRef)
	if err != nil {
		return nil, err
	}

	// repeated confirmation is not an error
	if payment.State == core.PaymentStateAuthorized {
		return toSnapshot(payment), nil
	}
	if !core.CanApply(core.OpConfirmAuthorization, payment.State) {
		return nil, o.stateConflict(core.OpConfirmAuthorization, payment.State, "")
	}

	if err := o.paymentRepo.TransitionState(ctx, localOrderRef,
		core.PaymentStatePending, core.PaymentStateAuthorized, time.Now()); err != nil {
		return nil, err
	}

	o.metrics.PaymentsAuthorizedTotal.Inc()
	o.logger.Info("payment authorized", "local_order_ref", localOrderRef)
	return o.snapshot(ctx, localOrderRef)
}

// FailAuthorization records an authorization failure reported by the
// frontend or provider and moves the payment to FAILED
func (o *PaymentOrchestrator) FailAuthorization(ctx context.Context, localOrderRef string) (*input.PaymentSnapshot, error) {
	unlock := o.lockPayment(localOrderRef)
	defer unlock()

	payment, err := o.paymentRepo.GetByLocalOrderRef(ctx, localOrderRef)
	if err != nil {
		return nil, err
	}

	if payment.State == core.PaymentStateFailed {
		return toSnapshot(payment), nil
	}
	if !core.CanApply(core.OpFailAuthorization, payment.State) {
		return nil, o.stateConflict(core.OpFailAuthorization, payment.State, "")
	}

	if err := o.paymentRepo.TransitionState(ctx, localOrderRef,
		core.PaymentStatePending, core.PaymentStateFailed, time.Now()); err != nil {
		return nil, err
	}

	o.metrics.PaymentsFailedTotal.Inc()
	o.logger.Info("payment authorization failed", "local_order_ref", localOrderRef)
	return o.snapshot(ctx, localOrderRef)
}

// GetPayment retrieves a payment snapshot by local order reference
func (o *PaymentOrchestrator) GetPayment(ctx context.Context, localOrderRef string) (*input.PaymentSnapshot, error) {
	return o.snapshot(ctx, localOrderRef)
}

// lockPayment serializes operations on one payment. The returned func
// releases the lock.
func (o *PaymentOrchestrator) lockPayment(localOrderRef string) func() {
	v, _ := o.locks.LoadOrStore(localOrderRef, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// withRetry runs fn up to maxAttempts times, re-reading state on each
// attempt. Only transient provider failures and lost conditional updates
// are retried.
func (o *PaymentOrchestrator) withRetry(fn func() (*input.PaymentSnapshot, error)) (*input.PaymentSnapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		snapshot, err := fn()
		if err == nil {
			return snapshot, nil
		}
		if !core.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (o *PaymentOrchestrator) stateConflict(op core.Operation, state core.PaymentState, hint string) error {
	o.metrics.StateConflictsTotal.WithLabelValues(string(op)).Inc()
	return &core.StateConflictError{Op: op, State: state, Hint: hint}
}

func (o *PaymentOrchestrator) snapshot(ctx context.Context, localOrderRef string) (*input.PaymentSnapshot, error) {
	payment, err := o.paymentRepo.GetByLocalOrderRef(ctx, localOrderRef)
	if err != nil {
		return nil, err
	}
	return toSnapshot(payment), nil
}

func toSnapshot(p *core.Payment) *input.PaymentSnapshot {
	return &input.PaymentSnapshot{
		LocalOrderRef:     p.LocalOrderRef,
		ProviderOrderRef:  p.ProviderOrderRef,
		ProviderAccessRef: p.ProviderAccessRef,
		Amount:            p.Amount,
		State:             p.State,
		IsZeroSettlement:  p.IsZeroSettlement,
		AuthorizedAt:      p.AuthorizedAt,
		CapturedAt:        p.CapturedAt,
		CancelledAt:       p.CancelledAt,
		CreatedAt:         p.CreatedAt,
	}
}

// callRegister invokes the provider registration with call metrics
func (o *PaymentOrchestrator) callRegister(ctx context.Context, amount int64, customerRef string) (*output.GatewayRegistration, error) {
	start := time.Now()
	registration, err := o.gateway.Register(ctx, amount, customerRef)
	o.observeProviderCall("register", start, err)
	if err != nil {
		return nil, err
	}
	return registration, nil
}

func (o *PaymentOrchestrator) observeProviderCall(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		var perr *core.ProviderError
		if errors.As(err, &perr) {
			outcome = string(perr.Kind)
		}
	}
	o.metrics.ProviderCallSeconds.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}
