package core

import "testing"

func TestCanApply(t *testing.T) {
	t.Parallel()
	allStates := []PaymentState{
		PaymentStatePending,
		PaymentStateAuthorized,
		PaymentStateCaptured,
		PaymentStateCancelled,
		PaymentStateFailed,
		PaymentStatePartiallyRefunded,
		PaymentStateRefunded,
	}

	allowed := map[Operation]map[PaymentState]bool{
		OpConfirmAuthorization: {PaymentStatePending: true},
		OpFailAuthorization:    {PaymentStatePending: true},
		OpCapture:              {PaymentStateAuthorized: true},
		OpCancel:               {PaymentStateAuthorized: true},
		OpRefund:               {PaymentStateCaptured: true, PaymentStatePartiallyRefunded: true},
	}

	for op, fromStates := range allowed {
		for _, state := range allStates {
			if got := CanApply(op, state); got != fromStates[state] {
				t.Errorf("CanApply(%s, %s) = %v, want %v", op, state, got, fromStates[state])
			}
		}
	}
}

func TestTargetState(t *testing.T) {
	t.Parallel()
	cases := map[Operation]PaymentState{
		OpConfirmAuthorization: PaymentStateAuthorized,
		OpFailAuthorization:    PaymentStateFailed,
		OpCapture:              PaymentStateCaptured,
		OpCancel:               PaymentStateCancelled,
	}
	for op, want := range cases {
		if got := TargetState(op); got != want {
			t.Errorf("TargetState(%s) = %s, want %s", op, got, want)
		}
	}

	// refund has no single target: it depends on the remaining amount
	if got := TargetState(OpRefund); got != "" {
		t.Errorf("TargetState(refund) = %s, want empty", got)
	}
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()
	terminal := map[PaymentState]bool{
		PaymentStatePending:           false,
		PaymentStateAuthorized:        false,
		PaymentStateCaptured:          false,
		PaymentStateCancelled:         true,
		PaymentStateFailed:            true,
		PaymentStatePartiallyRefunded: false,
		PaymentStateRefunded:          true,
	}
	for state, want := range terminal {
		p := &Payment{State: state}
		if got := p.IsTerminal(); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", state, got, want)
		}
	}
}

func TestRefundable(t *testing.T) {
	t.Parallel()
	for state, want := range map[PaymentState]bool{
		PaymentStateCaptured:          true,
		PaymentStatePartiallyRefunded: true,
		PaymentStateAuthorized:        false,
		PaymentStateRefunded:          false,
	} {
		p := &Payment{State: state}
		if got := p.Refundable(); got != want {
			t.Errorf("Refundable(%s) = %v, want %v", state, got, want)
		}
	}
}
