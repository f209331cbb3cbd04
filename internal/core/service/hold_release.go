package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/toilaloc/research-fincode-payment/internal/core"
	"github.com/toilaloc/research-fincode-payment/internal/metrics"
	"github.com/toilaloc/research-fincode-payment/internal/port/output"
)

// HoldReleaseProcessor releases provider-side authorization holds for
// zero-settlement captures. Consumed from the worker queue; the release is
// best-effort, since an unreleased hold expires naturally on the provider
// side and never blocks the capture that produced it.
type HoldReleaseProcessor struct {
	paymentRepo output.PaymentRepository
	gateway     output.PaymentGateway
	metrics     *metrics.PaymentMetrics
	logger      *slog.Logger
}

// NewHoldReleaseProcessor creates a new hold release processor
func NewHoldReleaseProcessor(
	paymentRepo output.PaymentRepository,
	gateway output.PaymentGateway,
	paymentMetrics *metrics.PaymentMetrics,
	logger *slog.Logger,
) *HoldReleaseProcessor {
	return &HoldReleaseProcessor{
		paymentRepo: paymentRepo,
		gateway:     gateway,
		metrics:     paymentMetrics,
		logger:      logger,
	}
}

// ReleaseHold cancels the provider authorization for one payment. Messages
// for payments that no longer need a release are dropped, not retried.
func (p *HoldReleaseProcessor) ReleaseHold(ctx context.Context, localOrderRef string) error {
	payment, err := p.paymentRepo.GetByLocalOrderRef(ctx, localOrderRef)
	if err != nil {
		var notFound *core.NotFoundError
		if errors.As(err, &notFound) {
			p.logger.Warn("hold release for unknown payment, dropping", "local_order_ref", localOrderRef)
			return nil
		}
		return fmt.Errorf("failed to load payment for hold release: %w", err)
	}

	if !payment.IsZeroSettlement || payment.State != core.PaymentStateCaptured {
		p.logger.Info("payment needs no hold release, dropping",
			"local_order_ref", localOrderRef, "state", payment.State)
		p.metrics.HoldReleasesTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	start := time.Now()
	err = p.gateway.Cancel(ctx, payment.ProviderOrderRef, payment.ProviderAccessRef)
	if err != nil {
		var perr *core.ProviderError
		if errors.As(err, &perr) && perr.Retryable() {
			// requeue transient failures; anything else is final and the
			// hold is left to expire
			return fmt.Errorf("transient hold release failure: %w", err)
		}
		p.metrics.HoldReleasesTotal.WithLabelValues("failed").Inc()
		p.logger.Warn("hold release rejected by provider, hold will expire on its own",
			"local_order_ref", localOrderRef, "error", err)
		return nil
	}

	p.metrics.HoldReleasesTotal.WithLabelValues("released").Inc()
	p.logger.Info("authorization hold released",
		"local_order_ref", localOrderRef,
		"took", time.Since(start),
	)
	return nil
}
