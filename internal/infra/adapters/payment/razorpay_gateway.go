// File: internal/infra/adapters/payment/razorpay_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"telegram-payment-links/internal/config"
	"telegram-payment-links/internal/domain/model"
	"telegram-payment-links/internal/domain/ports/adapter"
	"telegram-payment-links/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ adapter.PaymentProvider = (*RazorpayGateway)(nil)

const maxResponseBody = 1 << 20

// RazorpayGateway implements adapter.PaymentProvider against the Razorpay
// Payment Links REST API (v1) using HTTP basic auth.
type RazorpayGateway struct {
	keyID       string
	keySecret   string
	baseURL     string
	callbackURL string
	client      *http.Client
	log         *zerolog.Logger
}

func NewRazorpayGateway(cfg config.RazorpayConfig, logger *zerolog.Logger) (*RazorpayGateway, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("razorpay key id/secret empty")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.razorpay.com/v1"
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.CallbackURL != "" {
		if _, err := url.Parse(cfg.CallbackURL); err != nil {
			return nil, fmt.Errorf("invalid callback url: %w", err)
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "RazorpayGateway").Logger()
	return &RazorpayGateway{
		keyID:       cfg.KeyID,
		keySecret:   cfg.KeySecret,
		baseURL:     base,
		callbackURL: cfg.CallbackURL,
		client:      &http.Client{Timeout: timeout},
		log:         &l,
	}, nil
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

type linkResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateLink calls POST /payment_links and returns the provider id, short url and status.
func (g *RazorpayGateway) CreateLink(ctx context.Context, req adapter.CreateLinkRequest) (adapter.ProviderLink, error) {
	payload := map[string]any{
		"amount":          req.Amount,
		"currency":        req.Currency,
		"accept_partial":  false,
		"reference_id":    req.ReferenceID,
		"description":     req.Description,
		"customer":        map[string]any{"name": customerName(req.CustomerRef)},
		"notify":          map[string]any{"sms": false, "email": false},
		"reminder_enable": false,
	}
	if !req.ExpireBy.IsZero() {
		payload["expire_by"] = req.ExpireBy.Unix()
	}
	if g.callbackURL != "" {
		payload["callback_url"] = g.callbackURL
		payload["callback_method"] = "get"
	}

	var out linkResponse
	if err := g.do(ctx, "create", http.MethodPost, "/payment_links", payload, &out); err != nil {
		return adapter.ProviderLink{}, err
	}
	if out.ID == "" || out.ShortURL == "" {
		return adapter.ProviderLink{}, &adapter.ProviderError{Op: "create", Err: errors.New("response missing id or short_url")}
	}
	return adapter.ProviderLink{ID: out.ID, URL: out.ShortURL, Status: MapStatus(out.Status)}, nil
}

// CancelLink calls POST /payment_links/{id}/cancel.
func (g *RazorpayGateway) CancelLink(ctx context.Context, providerLinkID string) error {
	return g.do(ctx, "cancel", http.MethodPost, "/payment_links/"+url.PathEscape(providerLinkID)+"/cancel", nil, nil)
}

// FetchLink calls GET /payment_links/{id}.
func (g *RazorpayGateway) FetchLink(ctx context.Context, providerLinkID string) (adapter.ProviderLink, error) {
	var out linkResponse
	if err := g.do(ctx, "fetch", http.MethodGet, "/payment_links/"+url.PathEscape(providerLinkID), nil, &out); err != nil {
		return adapter.ProviderLink{}, err
	}
	return adapter.ProviderLink{ID: out.ID, URL: out.ShortURL, Status: MapStatus(out.Status)}, nil
}

func (g *RazorpayGateway) do(ctx context.Context, op, method, path string, body any, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveProviderCall(g.Name(), op, callResult(err), time.Since(start))
	}()

	var rdr io.Reader
	if body != nil {
		b, mErr := json.Marshal(body)
		if mErr != nil {
			return &adapter.ProviderError{Op: op, Err: mErr}
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rdr)
	if err != nil {
		return &adapter.ProviderError{Op: op, Err: err}
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &adapter.ProviderError{Op: op, Transient: true, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &adapter.ProviderError{Op: op, StatusCode: resp.StatusCode, Transient: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(raw, &e) == nil && e.Error.Description != "" {
			msg = e.Error.Code + ": " + e.Error.Description
		}
		g.log.Warn().Str("op", op).Int("status", resp.StatusCode).Str("reason", msg).Msg("razorpay call failed")
		return &adapter.ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Transient:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Err:        errors.New(msg),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &adapter.ProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func callResult(err error) string {
	if err == nil {
		return "ok"
	}
	var pe *adapter.ProviderError
	if errors.As(err, &pe) && pe.Transient {
		return "transient"
	}
	return "error"
}

func customerName(ref string) string {
	if ref == "" {
		return "anonymous"
	}
	return ref
}

// MapStatus translates a Razorpay payment link status. Unknown values map to "".
func MapStatus(s string) model.LinkStatus {
	switch strings.ToLower(s) {
	case "created":
		return model.LinkStatusCreated
	case "partially_paid":
		return model.LinkStatusPending
	case "paid":
		return model.LinkStatusPaid
	case "expired":
		return model.LinkStatusExpired
	case "cancelled":
		return model.LinkStatusCancelled
	}
	return ""
}
