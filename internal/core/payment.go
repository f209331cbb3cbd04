package core

import (
	"time"
)

// PaymentState represents the lifecycle state of a payment
type PaymentState string

const (
	PaymentStatePending           PaymentState = "PENDING"
	PaymentStateAuthorized        PaymentState = "AUTHORIZED"
	PaymentStateCaptured          PaymentState = "CAPTURED"
	PaymentStateCancelled         PaymentState = "CANCELLED"
	PaymentStateFailed            PaymentState = "FAILED"
	PaymentStatePartiallyRefunded PaymentState = "PARTIALLY_REFUNDED"
	PaymentStateRefunded          PaymentState = "REFUNDED"
)

// Operation is a state-changing operation on a payment
type Operation string

const (
	OpConfirmAuthorization Operation = "confirm_authorization"
	OpFailAuthorization    Operation = "fail_authorization"
	OpCapture              Operation = "capture"
	OpCancel               Operation = "cancel"
	OpRefund               Operation = "refund"
)

// transitions lists, per operation, the states the operation may fire from.
// Capture and cancel both require AUTHORIZED, which makes them mutually
// exclusive: whichever fires first moves the payment out of AUTHORIZED.
var transitions = map[Operation][]PaymentState{
	OpConfirmAuthorization: {PaymentStatePending},
	OpFailAuthorization:    {PaymentStatePending},
	OpCapture:              {PaymentStateAuthorized},
	OpCancel:               {PaymentStateAuthorized},
	OpRefund:               {PaymentStateCaptured, PaymentStatePartiallyRefunded},
}

// CanApply reports whether op is a valid transition out of state,
// derived from the transition table rather than per-state booleans.
func CanApply(op Operation, state PaymentState) bool {
	for _, from := range transitions[op] {
		if from == state {
			return true
		}
	}
	return false
}

// TargetState returns the state an operation lands in on success.
// Refund is excluded: its target depends on the remaining refundable amount.
func TargetState(op Operation) PaymentState {
	switch op {
	case OpConfirmAuthorization:
		return PaymentStateAuthorized
	case OpFailAuthorization:
		return PaymentStateFailed
	case OpCapture:
		return PaymentStateCaptured
	case OpCancel:
		return PaymentStateCancelled
	}
	return ""
}

// Payment represents a payment domain entity, one per purchase attempt
type Payment struct {
	LocalOrderRef     string
	ProviderOrderRef  string
	ProviderAccessRef string
	Amount            int64 // minor currency units, fixed at registration
	State             PaymentState
	IsZeroSettlement  bool
	AuthorizedAt      *time.Time
	CapturedAt        *time.Time
	CancelledAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsTerminal checks if the payment is in a state with no outgoing transitions
func (p *Payment) IsTerminal() bool {
	switch p.State {
	case PaymentStateCancelled, PaymentStateFailed, PaymentStateRefunded:
		return true
	}
	return false
}

// Refundable checks if the payment may still accept refunds
func (p *Payment) Refundable() bool {
	return CanApply(OpRefund, p.State)
}
