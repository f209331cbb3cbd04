package fincode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/toilaloc/research-fincode-payment/internal/config"
	"github.com/toilaloc/research-fincode-payment/internal/core"
	"github.com/toilaloc/research-fincode-payment/internal/port/output"
)

const payTypeCard = "Card"

// Client is a secondary adapter that implements the PaymentGateway output
// port against the fincode JSON API. It is stateless; credentials come from
// the injected configuration, never from the process environment.
type Client struct {
	baseURL string
	apiKey  string
	shopID  string
	http    *http.Client
}

// NewClient creates a new fincode gateway client
func NewClient(cfg config.Fincode) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		shopID:  cfg.ShopID,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type registerRequest struct {
	PayType     string `json:"pay_type"`
	JobCode     string `json:"job_code"`
	Amount      string `json:"amount"`
	ClientField string `json:"client_field_1,omitempty"`
}

type registerResponse struct {
	ID       string `json:"id"`
	AccessID string `json:"access_id"`
}

type captureRequest struct {
	PayType  string `json:"pay_type"`
	AccessID string `json:"access_id"`
	Amount   string `json:"amount"`
}

type cancelRequest struct {
	PayType  string `json:"pay_type"`
	AccessID string `json:"access_id"`
}

type refundRequest struct {
	PayType  string `json:"pay_type"`
	AccessID string `json:"access_id"`
	Amount   string `json:"amount"`
}

type refundResponse struct {
	RefundID string `json:"refund_id"`
}

type errorResponse struct {
	Errors []struct {
		ErrorCode    string `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"errors"`
}

// Register creates a provider-side order with an AUTH job, returning the
// order and access references the frontend tokenization flow needs
func (c *Client) Register(ctx context.Context, amount int64, customerRef string) (*output.GatewayRegistration, error) {
	req := registerRequest{
		PayType:     payTypeCard,
		JobCode:     "AUTH",
		Amount:      strconv.FormatInt(amount, 10),
		ClientField: customerRef,
	}

	var resp registerResponse
	if err := c.do(ctx, http.MethodPost, "/v1/payments", req, &resp); err != nil {
		return nil, err
	}
	return &output.GatewayRegistration{
		ProviderOrderRef:  resp.ID,
		ProviderAccessRef: resp.AccessID,
	}, nil
}

// Capture converts the authorization hold into an actual charge
func (c *Client) Capture(ctx context.Context, providerOrderRef, providerAccessRef string, amount int64) error {
	req := captureRequest{
		PayType:  payTypeCard,
		AccessID: providerAccessRef,
		Amount:   strconv.FormatInt(amount, 10),
	}
	path := fmt.Sprintf("/v1/payments/%s/capture", providerOrderRef)
	return c.do(ctx, http.MethodPut, path, req, nil)
}

// Cancel releases the authorization hold
func (c *Client) Cancel(ctx context.Context, providerOrderRef, providerAccessRef string) error {
	req := cancelRequest{
		PayType:  payTypeCard,
		AccessID: providerAccessRef,
	}
	path := fmt.Sprintf("/v1/payments/%s/cancel", providerOrderRef)
	return c.do(ctx, http.MethodPut, path, req, nil)
}

// Refund returns part or all of a captured amount
func (c *Client) Refund(ctx context.Context, providerOrderRef, providerAccessRef string, amount int64) (string, error) {
	req := refundRequest{
		PayType:  payTypeCard,
		AccessID: providerAccessRef,
		Amount:   strconv.FormatInt(amount, 10),
	}
	path := fmt.Sprintf("/v1/payments/%s/refund", providerOrderRef)

	var resp refundResponse
	if err := c.do(ctx, http.MethodPut, path, req, &resp); err != nil {
		return "", err
	}
	return resp.RefundID, nil
}

// do issues one JSON request and maps any failure to *core.ProviderError.
// Provider wire details never leak past this method.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &core.ProviderError{Kind: core.ProviderTransient, Msg: "failed to encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &core.ProviderError{Kind: core.ProviderTransient, Msg: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.shopID != "" {
		req.Header.Set("Tenant-Shop-Id", c.shopID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// network failures and timeouts are retryable; the orchestrator
		// only advances ledger state after a confirmed response
		return &core.ProviderError{Kind: core.ProviderTransient, Msg: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &core.ProviderError{Kind: core.ProviderTransient, Msg: "failed to read response", Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return &core.ProviderError{Kind: core.ProviderTransient, Msg: "failed to decode response", Err: err}
		}
		return nil
	}

	return c.mapError(resp.StatusCode, raw)
}

// mapError folds provider status codes and error bodies into the small
// error taxonomy the orchestrator branches on
func (c *Client) mapError(status int, raw []byte) error {
	var body errorResponse
	code, msg := "", http.StatusText(status)
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Errors) > 0 {
		code = body.Errors[0].ErrorCode
		msg = body.Errors[0].ErrorMessage
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &core.ProviderError{Kind: core.ProviderAuthError, Code: code, Msg: msg}
	case status >= 500:
		return &core.ProviderError{Kind: core.ProviderTransient, Code: code, Msg: msg}
	default:
		return &core.ProviderError{Kind: core.ProviderDeclined, Code: code, Msg: msg}
	}
}
