package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/toilaloc/research-fincode-payment/internal/constant/model/db"
	"github.com/toilaloc/research-fincode-payment/internal/core"
	"github.com/toilaloc/research-fincode-payment/internal/port/output"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRefundRepository is a secondary adapter that implements the
// RefundRepository output port over the append-only refunds table
type GormRefundRepository struct {
	gormDB *gorm.DB
}

// NewGormRefundRepository creates a new GORM refund repository
func NewGormRefundRepository(gormDB *gorm.DB) output.RefundRepository {
	return &GormRefundRepository{gormDB: gormDB}
}

func toCoreRefund(r *db.Refund) core.Refund {
	return core.Refund{
		ID:                r.ID,
		PaymentRef:        r.PaymentRef,
		Amount:            r.Amount,
		ProviderRefundRef: r.ProviderRefundRef,
		Status:            core.RefundStatus(r.Status),
		Reason:            r.Reason,
		ProcessedAt:       r.ProcessedAt,
	}
}

// CreateCompleted appends a completed refund under one transaction: the
// payment row is locked with SELECT FOR UPDATE, the remaining amount is
// recomputed by summation, and the insert plus payment state update happen
// only if the amount still fits. Two concurrent partial refunds can never
// jointly exceed the captured amount.
func (r *GormRefundRepository) CreateCompleted(ctx context.Context, refund *core.Refund) (int64, error) {
	var remainingAfter int64

	err := r.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment db.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("local_order_ref = ?", refund.PaymentRef).
			First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &core.NotFoundError{LocalOrderRef: refund.PaymentRef}
			}
			return fmt.Errorf("failed to lock payment: %w", err)
		}

		state := core.PaymentState(payment.State)
		if !core.CanApply(core.OpRefund, state) {
			return &core.StateConflictError{Op: core.OpRefund, State: state}
		}

		refunded, err := sumCompletedRefunds(tx, refund.PaymentRef)
		if err != nil {
			return err
		}

		remaining := payment.Amount - refunded
		if refund.Amount <= 0 || refund.Amount > remaining {
			return core.NewValidationError("refund amount %d exceeds remaining refundable %d", refund.Amount, remaining)
		}

		dbRefund := &db.Refund{
			ID:                refund.ID,
			PaymentRef:        refund.PaymentRef,
			Amount:            refund.Amount,
			ProviderRefundRef: refund.ProviderRefundRef,
			Status:            string(refund.Status),
			Reason:            refund.Reason,
			ProcessedAt:       refund.ProcessedAt,
		}
		if err := tx.Create(dbRefund).Error; err != nil {
			return fmt.Errorf("failed to create refund: %w", err)
		}

		remainingAfter = remaining - refund.Amount
		newState := core.PaymentStatePartiallyRefunded
		if remainingAfter == 0 {
			newState = core.PaymentStateRefunded
		}

		return tx.Model(&db.Payment{}).
			Where("local_order_ref = ?", refund.PaymentRef).
			Updates(map[string]any{
				"state":      string(newState),
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		return 0, err
	}
	return remainingAfter, nil
}

// RemainingRefundable computes the payment amount minus all completed
// refund amounts
func (r *GormRefundRepository) RemainingRefundable(ctx context.Context, localOrderRef string) (int64, error) {
	var payment db.Payment
	if err := r.gormDB.WithContext(ctx).
		Where("local_order_ref = ?", localOrderRef).
		First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &core.NotFoundError{LocalOrderRef: localOrderRef}
		}
		return 0, fmt.Errorf("failed to get payment: %w", err)
	}

	refunded, err := sumCompletedRefunds(r.gormDB.WithContext(ctx), localOrderRef)
	if err != nil {
		return 0, err
	}
	return payment.Amount - refunded, nil
}

// ListByPayment returns all refunds recorded against a payment
func (r *GormRefundRepository) ListByPayment(ctx context.Context, localOrderRef string) ([]core.Refund, error) {
	var dbRefunds []db.Refund
	if err := r.gormDB.WithContext(ctx).
		Where("payment_ref = ?", localOrderRef).
		Order("processed_at ASC").
		Find(&dbRefunds).Error; err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}

	refunds := make([]core.Refund, 0, len(dbRefunds))
	for i := range dbRefunds {
		refunds = append(refunds, toCoreRefund(&dbRefunds[i]))
	}
	return refunds, nil
}

func sumCompletedRefunds(tx *gorm.DB, localOrderRef string) (int64, error) {
	var refunded int64
	err := tx.Model(&db.Refund{}).
		Where("payment_ref = ? AND status = ?", localOrderRef, string(core.RefundStatusCompleted)).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&refunded).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum refunds: %w", err)
	}
	return refunded, nil
}
