package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/billing"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// Verifier confirms a charge reference against the provider's API. Webhook
// payloads are never trusted on their own.
type Verifier interface {
	Verify(ctx context.Context, reference string) (billing.Info, error)
}

// PaystackVerifier checks references against the Paystack transaction API.
type PaystackVerifier struct {
	client *http.Client
	base   string
	secret string
	log    *logger.Logger
}

// NewPaystackVerifier builds a verifier for the Paystack API. An empty base
// targets the live API.
func NewPaystackVerifier(client *http.Client, base, secret string, log *logger.Logger) (*PaystackVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if base == "" {
		base = "https://api.paystack.co"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("paystack")
	}
	return &PaystackVerifier{client: client, base: base, secret: secret, log: log}, nil
}

// Verify fetches the charge for a reference. Paystack reports amounts in
// kobo, so the value is divided by 100.
func (v *PaystackVerifier) Verify(ctx context.Context, reference string) (billing.Info, error) {
	endpoint := v.base + "/transaction/verify/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return billing.Info{}, err
	}
	req.Header.Set("Authorization", "Bearer "+v.secret)

	resp, err := v.client.Do(req)
	if err != nil {
		return billing.Info{}, fmt.Errorf("paystack verify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return billing.Info{}, fmt.Errorf("paystack verify: status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Status bool `json:"status"`
		Data   struct {
			Status   string  `json:"status"`
			Amount   float64 `json:"amount"`
			Currency string  `json:"currency"`
			Customer struct {
				Email string `json:"email"`
			} `json:"customer"`
			Metadata struct {
				UserID string `json:"user_id"`
				Plan   string `json:"plan"`
			} `json:"metadata"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return billing.Info{}, fmt.Errorf("paystack verify: decode: %w", err)
	}

	return billing.Info{
		Reference: reference,
		Amount:    payload.Data.Amount / 100,
		Currency:  payload.Data.Currency,
		Email:     payload.Data.Customer.Email,
		UserID:    payload.Data.Metadata.UserID,
		Plan:      payload.Data.Metadata.Plan,
		Succeeded: payload.Status && payload.Data.Status == "success",
	}, nil
}

// FlutterwaveVerifier checks references against the Flutterwave v3 API.
type FlutterwaveVerifier struct {
	client *http.Client
	base   string
	secret string
	log    *logger.Logger
}

// NewFlutterwaveVerifier builds a verifier for the Flutterwave API.
func NewFlutterwaveVerifier(client *http.Client, base, secret string, log *logger.Logger) (*FlutterwaveVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if base == "" {
		base = "https://api.flutterwave.com/v3"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("flutterwave")
	}
	return &FlutterwaveVerifier{client: client, base: base, secret: secret, log: log}, nil
}

// Verify fetches the charge for a reference.
func (v *FlutterwaveVerifier) Verify(ctx context.Context, reference string) (billing.Info, error) {
	endpoint := v.base + "/transactions/" + url.PathEscape(reference) + "/verify"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return billing.Info{}, err
	}
	req.Header.Set("Authorization", "Bearer "+v.secret)

	resp, err := v.client.Do(req)
	if err != nil {
		return billing.Info{}, fmt.Errorf("flutterwave verify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return billing.Info{}, fmt.Errorf("flutterwave verify: status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Status string `json:"status"`
		Data   struct {
			Status   string  `json:"status"`
			Amount   float64 `json:"amount"`
			Currency string  `json:"currency"`
			Customer struct {
				Email string `json:"email"`
			} `json:"customer"`
			Meta struct {
				UserID string `json:"user_id"`
				Plan   string `json:"plan"`
			} `json:"meta"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return billing.Info{}, fmt.Errorf("flutterwave verify: decode: %w", err)
	}

	return billing.Info{
		Reference: reference,
		Amount:    payload.Data.Amount,
		Currency:  payload.Data.Currency,
		Email:     payload.Data.Customer.Email,
		UserID:    payload.Data.Meta.UserID,
		Plan:      payload.Data.Meta.Plan,
		Succeeded: payload.Status == "success" && payload.Data.Status == "successful",
	}, nil
}
