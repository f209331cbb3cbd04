package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/toilaloc/research-fincode-payment/internal/config"
	"github.com/toilaloc/research-fincode-payment/internal/core"
	"github.com/toilaloc/research-fincode-payment/internal/metrics"
	"github.com/toilaloc/research-fincode-payment/internal/port/input"
	"github.com/toilaloc/research-fincode-payment/internal/port/output"
)

// fakePaymentRepo is an in-memory payment ledger with the same conditional
// update contract as the GORM adapter
type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*core.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[string]*core.Payment)}
}

func (f *fakePaymentRepo) Create(ctx context.Context, payment *core.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.payments[payment.LocalOrderRef]; exists {
		return fmt.Errorf("duplicate local order ref %s", payment.LocalOrderRef)
	}
	now := time.Now()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	clone := *payment
	f.payments[payment.LocalOrderRef] = &clone
	return nil
}

func (f *fakePaymentRepo) GetByLocalOrderRef(ctx context.Context, localOrderRef string) (*core.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[localOrderRef]
	if !ok {
		return nil, &core.NotFoundError{LocalOrderRef: localOrderRef}
	}
	clone := *payment
	return &clone, nil
}

func (f *fakePaymentRepo) TransitionState(ctx context.Context, localOrderRef string, from, to core.PaymentState, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[localOrderRef]
	if !ok {
		return &core.NotFoundError{LocalOrderRef: localOrderRef}
	}
	if payment.State != from {
		return core.ErrConcurrentUpdate
	}
	payment.State = to
	payment.UpdatedAt = at
	switch to {
	case core.PaymentStateAuthorized:
		payment.AuthorizedAt = &at
	case core.PaymentStateCaptured:
		payment.CapturedAt = &at
	case core.PaymentStateCancelled:
		payment.CancelledAt = &at
	}
	return nil
}

// setState force-places a payment in a state, bypassing the machine
func (f *fakePaymentRepo) setState(localOrderRef string, state core.PaymentState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[localOrderRef].State = state
}

// fakeRefundRepo is an in-memory refund ledger sharing the payment repo's
// lock so the remaining-amount check and the insert form one atomic unit
type fakeRefundRepo struct {
	payments *fakePaymentRepo
	refunds  map[string][]core.Refund
}

func newFakeRefundRepo(payments *fakePaymentRepo) *fakeRefundRepo {
	return &fakeRefundRepo{payments: payments, refunds: make(map[string][]core.Refund)}
}

func (f *fakeRefundRepo) CreateCompleted(ctx context.Context, refund *core.Refund) (int64, error) {
	f.payments.mu.Lock()
	defer f.payments.mu.Unlock()

	payment, ok := f.payments.payments[refund.PaymentRef]
	if !ok {
		return 0, &core.NotFoundError{LocalOrderRef: refund.PaymentRef}
	}
	if !core.CanApply(core.OpRefund, payment.State) {
		return 0, &core.StateConflictError{Op: core.OpRefund, State: payment.State}
	}

	var refunded int64
	for _, r := range f.refunds[refund.PaymentRef] {
		refunded += r.Amount
	}
	remaining := payment.Amount - refunded
	if refund.Amount <= 0 || refund.Amount > remaining {
		return 0, core.NewValidationError("refund amount %d exceeds remaining refundable %d", refund.Amount, remaining)
	}

	f.refunds[refund.PaymentRef] = append(f.refunds[refund.PaymentRef], *refund)
	remainingAfter := remaining - refund.Amount
	if remainingAfter == 0 {
		payment.State = core.PaymentStateRefunded
	} else {
		payment.State = core.PaymentStatePartiallyRefunded
	}
	return remainingAfter, nil
}

func (f *fakeRefundRepo) RemainingRefundable(ctx context.Context, localOrderRef string) (int64, error) {
	f.payments.mu.Lock()
	defer f.payments.mu.Unlock()
	payment, ok := f.payments.payments[localOrderRef]
	if !ok {
		return 0, &core.NotFoundError{LocalOrderRef: localOrderRef}
	}
	var refunded int64
	for _, r := range f.refunds[localOrderRef] {
		refunded += r.Amount
	}
	return payment.Amount - refunded, nil
}

func (f *fakeRefundRepo) ListByPayment(ctx context.Context, localOrderRef string) ([]core.Refund, error) {
	f.payments.mu.Lock()
	defer f.payments.mu.Unlock()
	return append([]core.Refund(nil), f.refunds[localOrderRef]...), nil
}

// fakeGateway records provider calls and pops scripted errors per operation
type fakeGateway struct {
	mu sync.Mutex

	registerCalls int
	captureCalls  int
	cancelCalls   int
	refundCalls   int

	registerErrs []error
	captureErrs  []error
	cancelErrs   []error
	refundErrs   []error
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeGateway) Register(ctx context.Context, amount int64, customerRef string) (*output.GatewayRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if err := popErr(&f.registerErrs); err != nil {
		return nil, err
	}
	return &output.GatewayRegistration{
		ProviderOrderRef:  fmt.Sprintf("ord-%d", f.registerCalls),
		ProviderAccessRef: fmt.Sprintf("acc-%d", f.registerCalls),
	}, nil
}

func (f *fakeGateway) Capture(ctx context.Context, providerOrderRef, providerAccessRef string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captureCalls++
	return popErr(&f.captureErrs)
}

func (f *fakeGateway) Cancel(ctx context.Context, providerOrderRef, providerAccessRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return popErr(&f.cancelErrs)
}

func (f *fakeGateway) Refund(ctx context.Context, providerOrderRef, providerAccessRef string, amount int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refundCalls++
	if err := popErr(&f.refundErrs); err != nil {
		return "", err
	}
	return fmt.Sprintf("ref-%d", f.refundCalls), nil
}

func (f *fakeGateway) calls() (register, capture, cancel, refund int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registerCalls, f.captureCalls, f.cancelCalls, f.refundCalls
}

// fakeHoldQueue records published hold-release requests
type fakeHoldQueue struct {
	mu         sync.Mutex
	published  []string
	publishErr error
}

func (f *fakeHoldQueue) PublishHoldRelease(localOrderRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, localOrderRef)
	return nil
}

func (f *fakeHoldQueue) Close() error { return nil }

type testEnv struct {
	service     input.PaymentService
	paymentRepo *fakePaymentRepo
	refundRepo  *fakeRefundRepo
	gateway     *fakeGateway
	holdQueue   *fakeHoldQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	paymentRepo := newFakePaymentRepo()
	refundRepo := newFakeRefundRepo(paymentRepo)
	gateway := &fakeGateway{}
	holdQueue := &fakeHoldQueue{}

	svc := NewPaymentOrchestrator(
		paymentRepo,
		refundRepo,
		gateway,
		holdQueue,
		metrics.NewPaymentMetrics(prometheus.NewRegistry()),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		config.Payments{MinChargeAmount: 100, MaxAttempts: 3},
	)

	return &testEnv{
		service:     svc,
		paymentRepo: paymentRepo,
		refundRepo:  refundRepo,
		gateway:     gateway,
		holdQueue:   holdQueue,
	}
}

// registerAuthorized registers a payment and confirms its authorization
func (e *testEnv) registerAuthorized(t *testing.T, amount int64) string {
	t.Helper()
	ctx := context.Background()
	reg, err := e.service.Register(ctx, input.RegisterRequest{Amount: amount, CustomerRef: "cust-1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := e.service.ConfirmAuthorization(ctx, reg.LocalOrderRef); err != nil {
		t.Fatalf("ConfirmAuthorization failed: %v", err)
	}
	return reg.LocalOrderRef
}

// registerCaptured registers, authorizes and captures a payment
func (e *testEnv) registerCaptured(t *testing.T, amount int64) string {
	t.Helper()
	ref := e.registerAuthorized(t, amount)
	if _, err := e.service.Capture(context.Background(), ref); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	return ref
}

func isValidation(err error) bool {
	var verr *core.ValidationError
	return errors.As(err, &verr)
}

func isStateConflict(err error) bool {
	var cerr *core.StateConflictError
	return errors.As(err, &cerr)
}
