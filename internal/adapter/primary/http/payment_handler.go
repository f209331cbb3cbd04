package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/toilaloc/research-fincode-payment/internal/core"
	"github.com/toilaloc/research-fincode-payment/internal/port/input"
)

// PaymentHandler is a primary adapter (HTTP handler)
type PaymentHandler struct {
	paymentService input.PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService input.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// RegisterPaymentRequest represents the HTTP request to register a payment
type RegisterPaymentRequest struct {
	Amount      int64  `json:"amount"`
	CustomerRef string `json:"customer_ref"`
}

// RegisterPaymentResponse represents the HTTP response for a registration
type RegisterPaymentResponse struct {
	LocalOrderRef     string `json:"local_order_ref"`
	ProviderOrderRef  string `json:"provider_order_ref"`
	ProviderAccessRef string `json:"provider_access_ref"`
}

// RefundPaymentRequest represents the HTTP request to refund a payment
type RefundPaymentRequest struct {
	Amount            int64  `json:"amount"`
	Reason            string `json:"reason"`
	ExternalRefundRef string `json:"external_refund_ref"`
}

// RefundPaymentResponse represents the HTTP response for a refund
type RefundPaymentResponse struct {
	RefundID            string `json:"refund_id"`
	RemainingRefundable int64  `json:"remaining_refundable"`
	State               string `json:"state"`
}

// PaymentResponse represents the HTTP response for a payment snapshot
type PaymentResponse struct {
	LocalOrderRef    string  `json:"local_order_ref"`
	ProviderOrderRef string  `json:"provider_order_ref"`
	Amount           int64   `json:"amount"`
	State            string  `json:"state"`
	IsZeroSettlement bool    `json:"is_zero_settlement"`
	AuthorizedAt     *string `json:"authorized_at,omitempty"`
	CapturedAt       *string `json:"captured_at,omitempty"`
	CancelledAt      *string `json:"cancelled_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// RegisterPayment handles payment registration
func (h *PaymentHandler) RegisterPayment(c echo.Context) error {
	var req RegisterPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	response, err := h.paymentService.Register(c.Request().Context(), input.RegisterRequest{
		Amount:      req.Amount,
		CustomerRef: req.CustomerRef,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, RegisterPaymentResponse{
		LocalOrderRef:     response.LocalOrderRef,
		ProviderOrderRef:  response.ProviderOrderRef,
		ProviderAccessRef: response.ProviderAccessRef,
	})
}

// ConfirmAuthorization handles frontend-reported authorization success
func (h *PaymentHandler) ConfirmAuthorization(c echo.Context) error {
	snapshot, err := h.paymentService.ConfirmAuthorization(c.Request().Context(), c.Param("ref"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentResponse(snapshot))
}

// FailAuthorization handles frontend-reported authorization failure
func (h *PaymentHandler) FailAuthorization(c echo.Context) error {
	snapshot, err := h.paymentService.FailAuthorization(c.Request().Context(), c.Param("ref"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentResponse(snapshot))
}

// CapturePayment handles capture of an authorized payment
func (h *PaymentHandler) CapturePayment(c echo.Context) error {
	snapshot, err := h.paymentService.Capture(c.Request().Context(), c.Param("ref"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentResponse(snapshot))
}

// CancelPayment handles cancellation of an authorized payment
func (h *PaymentHandler) CancelPayment(c echo.Context) error {
	snapshot, err := h.paymentService.Cancel(c.Request().Context(), c.Param("ref"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentResponse(snapshot))
}

// RefundPayment handles full or partial refunds
func (h *PaymentHandler) RefundPayment(c echo.Context) error {
	var req RefundPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	response, err := h.paymentService.Refund(c.Request().Context(), input.RefundRequest{
		LocalOrderRef:     c.Param("ref"),
		Amount:            req.Amount,
		Reason:            req.Reason,
		ExternalRefundRef: req.ExternalRefundRef,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, RefundPaymentResponse{
		RefundID:            response.RefundID,
		RemainingRefundable: response.RemainingRefundable,
		State:               string(response.State),
	})
}

// GetPayment handles payment retrieval by local order reference
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	snapshot, err := h.paymentService.GetPayment(c.Request().Context(), c.Param("ref"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentResponse(snapshot))
}

// writeError maps the error taxonomy to HTTP statuses so callers can branch
// on wrong-state vs bad-input without parsing messages
func writeError(c echo.Context, err error) error {
	var validationErr *core.ValidationError
	var conflictErr *core.StateConflictError
	var notFoundErr *core.NotFoundError
	var providerErr *core.ProviderError

	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &conflictErr):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &notFoundErr):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &providerErr):
		switch providerErr.Kind {
		case core.ProviderDeclined:
			return c.JSON(http.StatusPaymentRequired, map[string]string{"error": err.Error()})
		case core.ProviderTransient:
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Payment provider unavailable"})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

func toPaymentResponse(s *input.PaymentSnapshot) PaymentResponse {
	return PaymentResponse{
		LocalOrderRef:    s.LocalOrderRef,
		ProviderOrderRef: s.ProviderOrderRef,
		Amount:           s.Amount,
		State:            string(s.State),
		IsZeroSettlement: s.IsZeroSettlement,
		AuthorizedAt:     formatTime(s.AuthorizedAt),
		CapturedAt:       formatTime(s.CapturedAt),
		CancelledAt:      formatTime(s.CancelledAt),
		CreatedAt:        s.CreatedAt.Format(time.RFC3339),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.RFC3339)
	return &formatted
}
