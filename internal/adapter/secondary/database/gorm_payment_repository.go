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
)

// GormPaymentRepository is a secondary adapter that implements the
// PaymentRepository output port
type GormPaymentRepository struct {
	gormDB *gorm.DB
}

// NewGormPaymentRepository creates a new GORM payment repository
func NewGormPaymentRepository(gormDB *gorm.DB) output.PaymentRepository {
	return &GormPaymentRepository{gormDB: gormDB}
}

// toCore converts db.Payment to core.Payment
func toCore(p *db.Payment) *core.Payment {
	return &core.Payment{
		LocalOrderRef:     p.LocalOrderRef,
		ProviderOrderRef:  p.ProviderOrderRef,
		ProviderAccessRef: p.ProviderAccessRef,
		Amount:            p.Amount,
		State:             core.PaymentState(p.State),
		IsZeroSettlement:  p.IsZeroSettlement,
		AuthorizedAt:      p.AuthorizedAt,
		CapturedAt:        p.CapturedAt,
		CancelledAt:       p.CancelledAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// fromCore converts core.Payment to db.Payment
func fromCore(p *core.Payment) *db.Payment {
	return &db.Payment{
		LocalOrderRef:     p.LocalOrderRef,
		ProviderOrderRef:  p.ProviderOrderRef,
		ProviderAccessRef: p.ProviderAccessRef,
		Amount:            p.Amount,
		State:             string(p.State),
		IsZeroSettlement:  p.IsZeroSettlement,
		AuthorizedAt:      p.AuthorizedAt,
		CapturedAt:        p.CapturedAt,
		CancelledAt:       p.CancelledAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// Create persists a new payment
func (r *GormPaymentRepository) Create(ctx context.Context, payment *core.Payment) error {
	dbPayment := fromCore(payment)
	if err := r.gormDB.WithContext(ctx).Create(dbPayment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	// Propagate timestamps set by GORM hooks
	payment.CreatedAt = dbPayment.CreatedAt
	payment.UpdatedAt = dbPayment.UpdatedAt
	return nil
}

// GetByLocalOrderRef retrieves a payment by its local order reference
func (r *GormPaymentRepository) GetByLocalOrderRef(ctx context.Context, localOrderRef string) (*core.Payment, error) {
	var dbPayment db.Payment
	if err := r.gormDB.WithContext(ctx).
		Where("local_order_ref = ?", localOrderRef).
		First(&dbPayment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &core.NotFoundError{LocalOrderRef: localOrderRef}
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return toCore(&dbPayment), nil
}

// TransitionState conditionally advances the payment state. The UPDATE is
// keyed on the expected prior state, so a lost race affects zero rows and
// surfaces as core.ErrConcurrentUpdate instead of clobbering a concurrent
// write. The transition timestamp column for the target state is written in
// the same statement, which sets it exactly once per lifetime.
func (r *GormPaymentRepository) TransitionState(ctx context.Context, localOrderRef string, from, to core.PaymentState, at time.Time) error {
	updates := map[string]any{
		"state":      string(to),
		"updated_at": at,
	}
	switch to {
	case core.PaymentStateAuthorized:
		updates["authorized_at"] = at
	case core.PaymentStateCaptured:
		updates["captured_at"] = at
	case core.PaymentStateCancelled:
		updates["cancelled_at"] = at
	}

	result := r.gormDB.WithContext(ctx).
		Model(&db.Payment{}).
		Where("local_order_ref = ? AND state = ?", localOrderRef, string(from)).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to transition payment state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.gormDB.WithContext(ctx).
			Model(&db.Payment{}).
			Where("local_order_ref = ?", localOrderRef).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check payment existence: %w", err)
		}
		if count == 0 {
			return &core.NotFoundError{LocalOrderRef: localOrderRef}
		}
		return core.ErrConcurrentUpdate
	}
	return nil
}
