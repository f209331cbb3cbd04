package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/toilaloc/research-fincode-payment/internal/core"
	"github.com/toilaloc/research-fincode-payment/internal/port/input"
)

// stubService returns canned responses so the handler's translation layer
// can be tested without the orchestrator
type stubService struct {
	snapshot     *input.PaymentSnapshot
	registerResp *input.RegisterResponse
	refundResp   *input.RefundResponse
	err          error
}

func (s *stubService) Register(ctx context.Context, req input.RegisterRequest) (*input.RegisterResponse, error) {
	return s.registerResp, s.err
}

func (s *stubService) ConfirmAuthorization(ctx context.Context, ref string) (*input.PaymentSnapshot, error) {
	return s.snapshot, s.err
}

func (s *stubService) FailAuthorization(ctx context.Context, ref string) (*input.PaymentSnapshot, error) {
	return s.snapshot, s.err
}

func (s *stubService) Capture(ctx context.Context, ref string) (*input.PaymentSnapshot, error) {
	return s.snapshot, s.err
}

func (s *stubService) Cancel(ctx context.Context, ref string) (*input.PaymentSnapshot, error) {
	return s.snapshot, s.err
}

func (s *stubService) Refund(ctx context.Context, req input.RefundRequest) (*input.RefundResponse, error) {
	return s.refundResp, s.err
}

func (s *stubService) GetPayment(ctx context.Context, ref string) (*input.PaymentSnapshot, error) {
	return s.snapshot, s.err
}

func performRequest(t *testing.T, handler echo.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("ref")
	c.SetParamValues("ord_abc")
	if err := handler(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func TestRegisterPaymentReturnsCreated(t *testing.T) {
	t.Parallel()
	h := NewPaymentHandler(&stubService{
		registerResp: &input.RegisterResponse{
			LocalOrderRef:     "ord_abc",
			ProviderOrderRef:  "o_123",
			ProviderAccessRef: "a_456",
		},
	})

	rec := performRequest(t, h.RegisterPayment, http.MethodPost, "/api/v1/payments",
		`{"amount":5000,"customer_ref":"cust-1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var resp RegisterPaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.LocalOrderRef != "ord_abc" || resp.ProviderAccessRef != "a_456" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestGetPaymentFormatsTimestamps(t *testing.T) {
	t.Parallel()
	captured := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	h := NewPaymentHandler(&stubService{
		snapshot: &input.PaymentSnapshot{
			LocalOrderRef:    "ord_abc",
			ProviderOrderRef: "o_123",
			Amount:           5000,
			State:            core.PaymentStateCaptured,
			CapturedAt:       &captured,
			CreatedAt:        captured.Add(-time.Hour),
		},
	})

	rec := performRequest(t, h.GetPayment, http.MethodGet, "/api/v1/payments/ord_abc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp PaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.State != "CAPTURED" {
		t.Errorf("state = %q, want CAPTURED", resp.State)
	}
	if resp.CapturedAt == nil || *resp.CapturedAt != "2024-03-01T12:30:00Z" {
		t.Errorf("captured_at = %v, want 2024-03-01T12:30:00Z", resp.CapturedAt)
	}
	if resp.AuthorizedAt != nil {
		t.Errorf("authorized_at should be omitted, got %v", resp.AuthorizedAt)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", core.NewValidationError("amount must not be negative"), http.StatusBadRequest},
		{"state conflict", &core.StateConflictError{Op: core.OpCapture, State: core.PaymentStatePending}, http.StatusConflict},
		{"not found", &core.NotFoundError{LocalOrderRef: "ord_abc"}, http.StatusNotFound},
		{"provider declined", &core.ProviderError{Kind: core.ProviderDeclined, Code: "E01"}, http.StatusPaymentRequired},
		{"provider transient", &core.ProviderError{Kind: core.ProviderTransient}, http.StatusBadGateway},
		{"provider auth", &core.ProviderError{Kind: core.ProviderAuthError}, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := NewPaymentHandler(&stubService{err: tc.err})
			rec := performRequest(t, h.CapturePayment, http.MethodPost, "/api/v1/payments/ord_abc/capture", "")
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestRefundPaymentPassesThroughRequest(t *testing.T) {
	t.Parallel()
	h := NewPaymentHandler(&stubService{
		refundResp: &input.RefundResponse{
			RefundID:            "rf_789",
			RemainingRefundable: 3000,
			State:               core.PaymentStatePartiallyRefunded,
		},
	})

	rec := performRequest(t, h.RefundPayment, http.MethodPost, "/api/v1/payments/ord_abc/refunds",
		`{"amount":2000,"reason":"customer request"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var resp RefundPaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.RefundID != "rf_789" || resp.RemainingRefundable != 3000 || resp.State != "PARTIALLY_REFUNDED" {
		t.Errorf("unexpected response %+v", resp)
	}
}
