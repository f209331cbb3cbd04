package service

import (
	"context"
	"errors"
	"time"

	"github.com/toilaloc/research-fincode-payment/internal/core"
	"github.com/toilaloc/research-fincode-payment/internal/port/input"
)

// Capture converts the authorization hold into an actual charge. The
// zero-settlement policy is evaluated before any provider call: a payment
// whose amount is zero is captured locally and the hold release is handed
// to the worker queue instead.
//
// Retried capture of an already-captured payment returns the captured
// snapshot without a provider call.
func (o *PaymentOrchestrator) Capture(ctx context.Context, localOrderRef string) (*input.PaymentSnapshot, error) {
	unlock := o.lockPayment(localOrderRef)
	defer unlock()

	return o.withRetry(func() (*input.PaymentSnapshot, error) {
		return o.captureOnce(ctx, localOrderRef)
	})
}

func (o *PaymentOrchestrator) captureOnce(ctx context.Context, localOrderRef string) (*input.PaymentSnapshot, error) {
	payment, err := o.paymentRepo.GetByLocalOrderRef(ctx, localOrderRef)
	if err != nil {
		return nil, err
	}

	// already in target state: idempotent success, no provider call
	if payment.State == core.PaymentStateCaptured {
		return toSnapshot(payment), nil
	}
	if !core.CanApply(core.OpCapture, payment.State) {
		return nil, o.stateConflict(core.OpCapture, payment.State, "")
	}

	if payment.IsZeroSettlement {
		return o.captureZeroSettlement(ctx, payment)
	}

	start := time.Now()
	err = o.gateway.Capture(ctx, payment.ProviderOrderRef, payment.ProviderAccessRef, payment.Amount)
	o.observeProviderCall("capture", start, err)
	if err != nil {
		var perr *core.ProviderError
		if errors.As(err, &perr) && perr.Kind == core.ProviderDeclined {
			o.failCapture(ctx, payment, perr)
		}
		// transient failures leave the payment AUTHORIZED; the caller may
		// retry and the retried call is detected via current state
		return nil, err
	}

	// ledger is written only after provider confirmation
	if err := o.paymentRepo.TransitionState(ctx, localOrderRef,
		core.PaymentStateAuthorized, core.PaymentStateCaptured, time.Now()); err != nil {
		if errors.Is(err, core.ErrConcurrentUpdate) {
			// a concurrent duplicate won the write race after the provider
			// already captured; settle on whatever the ledger says now
			fresh, ferr := o.paymentRepo.GetByLocalOrderRef(ctx, localOrderRef)
			if ferr == nil && fresh.State == core.PaymentStateCaptured {
				return toSnapshot(fresh), nil
			}
		}
		return nil, err
	}

	o.metrics.PaymentsCapturedTotal.Inc()
	o.logger.Info("payment captured", "local_order_ref", localOrderRef, "amount", payment.Amount)
	return o.snapshot(ctx, localOrderRef)
}

// captureZeroSettlement captures a zero-amount payment without touching the
// provider, then releases the prior authorization hold best-effort
func (o *PaymentOrchestrator) captureZeroSettlement(ctx context.Context, payment *core.Payment) (*input.PaymentSnapshot, error) {
	if err := o.paymentRepo.TransitionState(ctx, payment.LocalOrderRef,
		core.PaymentStateAuthorized, core.PaymentStateCaptured, time.Now()); err != nil {
		return nil, err
	}

	o.metrics.PaymentsCapturedTotal.Inc()
	o.metrics.ZeroSettlementsTotal.Inc()
	o.logger.Info("payment captured with zero settlement", "local_order_ref", payment.LocalOrderRef)

	o.releaseHold(ctx, payment)
	return o.snapshot(ctx, payment.LocalOrderRef)
}

// releaseHold hands the authorization hold release to the worker queue,
// falling back to an inline provider cancel when the publish fails. The
// release is best-effort either way: an unreleased hold expires naturally
// on the provider side.
func (o *PaymentOrchestrator) releaseHold(ctx context.Context, payment *core.Payment) {
	if err := o.holdQueue.PublishHoldRelease(payment.LocalOrderRef); err != nil {
		o.logger.Warn("failed to enqueue hold release, releasing inline",
			"local_order_ref", payment.LocalOrderRef, "error", err)
	} else {
		return
	}

	start := time.Now()
	err := o.gateway.Cancel(ctx, payment.ProviderOrderRef, payment.ProviderAccessRef)
	o.observeProviderCall("cancel", start, err)
	if err != nil {
		o.metrics.HoldReleasesTotal.WithLabelValues("failed").Inc()
		o.logger.Warn("best-effort hold release failed, hold will expire on the provider side",
			"local_order_ref", payment.LocalOrderRef, "error", err)
		return
	}
	o.metrics.HoldReleasesTotal.WithLabelValues("released").Inc()
}

// failCapture records the capture-failed edge after a provider decline
func (o *PaymentOrchestrator) failCapture(ctx context.Context, payment *core.Payment, perr *core.ProviderError) {
	err := o.paymentRepo.TransitionState(ctx, payment.LocalOrderRef,
		core.PaymentStateAuthorized, core.PaymentStateFailed, time.Now())
	if err != nil && !errors.Is(err, core.ErrConcurrentUpdate) {
		o.logger.Error("failed to record capture failure",
			"local_order_ref", payment.LocalOrderRef, "error", err)
		return
	}
	o.metrics.PaymentsFailedTotal.Inc()
	o.logger.Warn("capture declined by provider",
		"local_order_ref", payment.LocalOrderRef, "code", perr.Code)
}

// Cancel releases an authorization hold before capture. Capture and cancel
// are mutually exclusive: both require AUTHORIZED and both leave it.
func (o *PaymentOrchestrator) Cancel(ctx context.Context, localOrderRef string) (*input.PaymentSnapshot, error) {
	unlock := o.lockPayment(localOrderRef)
	defer unlock()

	return o.withRetry(func() (*input.PaymentSnapshot, error) {
		return o.cancelOnce(ctx, localOrderRef)
	})
}

func (o *PaymentOrchestrator) cancelOnce(ctx context.Context, localOrderRef string) (*input.PaymentSnapshot, error) {
	payment, err := o.paymentRepo.GetByLocalOrderRef(ctx, localOrderRef)
	if err != nil {
		return nil, err
	}

	if payment.State == core.PaymentStateCancelled {
		return toSnapshot(payment), nil
	}
	if payment.State == core.PaymentStateCaptured || payment.State == core.PaymentStatePartiallyRefunded {
		return nil, o.stateConflict(core.OpCancel, payment.State,
			"payment is already captured, use refund instead")
	}
	if !core.CanApply(core.OpCancel, payment.State) {
		return nil, o.stateConflict(core.OpCancel, payment.State, "")
	}

	start := time.Now()
	err = o.gateway.Cancel(ctx, payment.ProviderOrderRef, payment.ProviderAccessRef)
	o.observeProviderCall("cancel", start, err)
	if err != nil {
		return nil, err
	}

	if err := o.paymentRepo.TransitionState(ctx, localOrderRef,
		core.PaymentStateAuthorized, core.PaymentStateCancelled, time.Now()); err != nil {
		if errors.Is(err, core.ErrConcurrentUpdate) {
			fresh, ferr := o.paymentRepo.GetByLocalOrderRef(ctx, localOrderRef)
			if ferr == nil && fresh.State == core.PaymentStateCancelled {
				return toSnapshot(fresh), nil
			}
		}
		return nil, err
	}

	o.metrics.PaymentsCancelledTotal.Inc()
	o.logger.Info("payment cancelled", "local_order_ref", localOrderRef)
	return o.snapshot(ctx, localOrderRef)
}
