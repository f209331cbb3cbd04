package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/toilaloc/research-fincode-payment/internal/core"
	"github.com/toilaloc/research-fincode-payment/internal/port/input"
)

// Refund issues a full or partial refund against a captured payment.
//
// Two creation paths share the same precondition and amount checks:
// backend-driven, where the orchestrator calls the provider refund and
// records the returned reference, and frontend-driven, where a trusted
// caller supplies an ExternalRefundRef for a provider-side refund that
// already completed and no gateway call is made.
//
// The remaining refundable amount is re-read under the same atomic unit as
// the refund insert, so concurrent partial refunds can never jointly exceed
// the captured amount.
func (o *PaymentOrchestrator) Refund(ctx context.Context, req input.RefundRequest) (*input.RefundResponse, error) {
	unlock := o.lockPayment(req.LocalOrderRef)
	defer unlock()

	var response *input.RefundResponse
	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		response, lastErr = o.refundOnce(ctx, req)
		if lastErr == nil {
			return response, nil
		}
		if !core.IsRetryable(lastErr) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (o *PaymentOrchestrator) refundOnce(ctx context.Context, req input.RefundRequest) (*input.RefundResponse, error) {
	payment, err := o.paymentRepo.GetByLocalOrderRef(ctx, req.LocalOrderRef)
	if err != nil {
		return nil, err
	}

	if !core.CanApply(core.OpRefund, payment.State) {
		// a fully refunded payment fails the amount check, not the state
		// machine: there is simply nothing left to refund
		if payment.State == core.PaymentStateRefunded {
			return nil, core.NewValidationError("no remaining refundable amount")
		}
		return nil, o.stateConflict(core.OpRefund, payment.State, "")
	}

	remaining, err := o.refundRepo.RemainingRefundable(ctx, req.LocalOrderRef)
	if err != nil {
		return nil, err
	}

	amount := req.Amount
	if amount < 0 {
		return nil, core.NewValidationError("refund amount must not be negative: %d", amount)
	}
	if amount == 0 {
		// omitted amount defaults to the full remaining amount
		amount = remaining
	}
	if remaining <= 0 || amount <= 0 {
		return nil, core.NewValidationError("no remaining refundable amount")
	}
	if amount > remaining {
		return nil, core.NewValidationError("refund amount %d exceeds remaining refundable %d", amount, remaining)
	}

	providerRefundRef := req.ExternalRefundRef
	if providerRefundRef == "" {
		start := time.Now()
		providerRefundRef, err = o.gateway.Refund(ctx, payment.ProviderOrderRef, payment.ProviderAccessRef, amount)
		o.observeProviderCall("refund", start, err)
		if err != nil {
			// a failed refund attempt is never persisted
			return nil, err
		}
	}

	refund := &core.Refund{
		ID:                uuid.New(),
		PaymentRef:        req.LocalOrderRef,
		Amount:            amount,
		ProviderRefundRef: providerRefundRef,
		Status:            core.RefundStatusCompleted,
		Reason:            req.Reason,
		ProcessedAt:       time.Now(),
	}

	remainingAfter, err := o.refundRepo.CreateCompleted(ctx, refund)
	if err != nil {
		return nil, err
	}

	state := core.PaymentStatePartiallyRefunded
	if remainingAfter == 0 {
		state = core.PaymentStateRefunded
	}

	o.metrics.RefundsTotal.Inc()
	o.metrics.RefundedAmountTotal.Add(float64(amount))
	o.logger.Info("refund completed",
		"local_order_ref", req.LocalOrderRef,
		"refund_id", refund.ID,
		"amount", amount,
		"remaining", remainingAfter,
	)

	return &input.RefundResponse{
		RefundID:            refund.ID.String(),
		RemainingRefundable: remainingAfter,
		State:               state,
	}, nil
}
