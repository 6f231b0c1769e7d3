// Package billing turns provider webhooks into verified payments and plan
// upgrades. Every webhook is re-verified against the provider's API before
// anything changes.
package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lifeos-hq/lifeos/internal/app/domain/billing"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/metrics"
	"github.com/lifeos-hq/lifeos/internal/app/services/mailer"
	"github.com/lifeos-hq/lifeos/internal/app/services/notifications"
	"github.com/lifeos-hq/lifeos/internal/app/services/users"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// Sentinel errors mapped to HTTP statuses at the edge.
var (
	ErrBadSignature    = errors.New("webhook signature mismatch")
	ErrNotConfigured   = errors.New("payment provider not configured")
	ErrProviderFailure = errors.New("payment provider failure")
)

// Service handles payment webhooks and the payment log.
type Service struct {
	store  storage.PaymentStore
	users  *users.Service
	log    *logger.Logger
	notify *notifications.Service
	mail   *mailer.Service

	paystackSecret  string
	paystack        Verifier
	flutterwaveHash string
	flutterwave     Verifier
}

// New constructs a billing service with no providers configured.
func New(store storage.PaymentStore, usersSvc *users.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("billing")
	}
	return &Service{store: store, users: usersSvc, log: log}
}

// ConfigurePaystack enables the Paystack webhook with its signing secret.
func (s *Service) ConfigurePaystack(secret string, verifier Verifier) {
	s.paystackSecret = secret
	s.paystack = verifier
}

// ConfigureFlutterwave enables the Flutterwave webhook with its verif-hash.
func (s *Service) ConfigureFlutterwave(hash string, verifier Verifier) {
	s.flutterwaveHash = hash
	s.flutterwave = verifier
}

// AttachNotifier enables payment receipt notifications.
func (s *Service) AttachNotifier(notify *notifications.Service) {
	s.notify = notify
}

// AttachMailer enables payment receipt emails.
func (s *Service) AttachMailer(mail *mailer.Service) {
	s.mail = mail
}

// ListPayments returns a user's payment history, newest first.
func (s *Service) ListPayments(ctx context.Context, userID string) ([]billing.Payment, error) {
	return s.store.ListPayments(ctx, userID)
}

// SignPaystack computes the hex HMAC-SHA512 signature Paystack sends for a
// webhook body.
func SignPaystack(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HandlePaystack processes one Paystack webhook delivery. The boolean is true
// when a new payment row was written; replays and foreign events return
// false with no error so the provider stops retrying.
func (s *Service) HandlePaystack(ctx context.Context, signature string, body []byte) (billing.Payment, bool, error) {
	if s.paystackSecret == "" || s.paystack == nil {
		return billing.Payment{}, false, ErrNotConfigured
	}

	signature = strings.ToLower(strings.TrimSpace(signature))
	expected := SignPaystack(s.paystackSecret, body)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		metrics.RecordPaymentEvent(billing.ProviderPaystack, "bad_signature")
		return billing.Payment{}, false, ErrBadSignature
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return billing.Payment{}, false, fmt.Errorf("paystack webhook: %w", err)
	}
	if event.Event != "charge.success" {
		metrics.RecordPaymentEvent(billing.ProviderPaystack, "ignored")
		s.log.WithField("event", event.Event).Debug("paystack event ignored")
		return billing.Payment{}, false, nil
	}
	if event.Data.Reference == "" {
		return billing.Payment{}, false, fmt.Errorf("paystack webhook carried no reference")
	}

	return s.settle(ctx, billing.ProviderPaystack, s.paystack, event.Data.Reference)
}

// HandleFlutterwave processes one Flutterwave webhook delivery. The verif-hash
// header must match the configured value exactly.
func (s *Service) HandleFlutterwave(ctx context.Context, verifHash string, body []byte) (billing.Payment, bool, error) {
	if s.flutterwaveHash == "" || s.flutterwave == nil {
		return billing.Payment{}, false, ErrNotConfigured
	}

	if !hmac.Equal([]byte(verifHash), []byte(s.flutterwaveHash)) {
		metrics.RecordPaymentEvent(billing.ProviderFlutterwave, "bad_signature")
		return billing.Payment{}, false, ErrBadSignature
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			ID    json.Number `json:"id"`
			TxRef string      `json:"tx_ref"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return billing.Payment{}, false, fmt.Errorf("flutterwave webhook: %w", err)
	}
	if event.Event != "charge.completed" {
		metrics.RecordPaymentEvent(billing.ProviderFlutterwave, "ignored")
		s.log.WithField("event", event.Event).Debug("flutterwave event ignored")
		return billing.Payment{}, false, nil
	}

	reference := event.Data.TxRef
	if reference == "" {
		reference = event.Data.ID.String()
	}
	if reference == "" {
		return billing.Payment{}, false, fmt.Errorf("flutterwave webhook carried no reference")
	}

	return s.settle(ctx, billing.ProviderFlutterwave, s.flutterwave, reference)
}

// settle re-verifies a reference and applies the outcome. The plan upgrade
// runs before the payment row is written so a retried webhook can finish the
// job if the row insert fails.
func (s *Service) settle(ctx context.Context, provider string, verifier Verifier, reference string) (billing.Payment, bool, error) {
	if existing, err := s.store.GetPaymentByReference(ctx, provider, reference); err == nil {
		metrics.RecordPaymentEvent(provider, "duplicate")
		s.log.WithField("reference", reference).Debug("webhook replay acknowledged")
		return existing, false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return billing.Payment{}, false, err
	}

	info, err := verifier.Verify(ctx, reference)
	if err != nil {
		metrics.RecordPaymentEvent(provider, "error")
		return billing.Payment{}, false, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	u, err := s.resolveUser(ctx, info)
	if err != nil {
		metrics.RecordPaymentEvent(provider, "orphan")
		s.log.WithError(err).
			WithField("reference", reference).
			Warn("payment matched no user")
		return billing.Payment{}, false, nil
	}

	plan := info.Plan
	if !user.KnownPlan(plan) {
		if plan != "" {
			s.log.WithField("plan", plan).Warn("unknown plan in payment metadata, defaulting to pro")
		}
		plan = user.PlanPro
	}

	status := billing.StatusVerified
	if !info.Succeeded {
		status = billing.StatusRejected
	}

	if info.Succeeded {
		if _, err := s.users.SetPlan(ctx, u.ID, plan); err != nil {
			return billing.Payment{}, false, fmt.Errorf("apply plan: %w", err)
		}
	}

	payment, err := s.store.CreatePayment(ctx, billing.Payment{
		UserID:    u.ID,
		Provider:  provider,
		Reference: reference,
		Amount:    info.Amount,
		Currency:  info.Currency,
		Plan:      plan,
		Status:    status,
	})
	if err != nil {
		return billing.Payment{}, false, err
	}

	if info.Succeeded {
		s.receipt(ctx, u, payment)
		metrics.RecordPaymentEvent(provider, "verified")
	} else {
		metrics.RecordPaymentEvent(provider, "rejected")
	}

	s.log.WithField("reference", reference).
		WithField("provider", provider).
		WithField("user_id", u.ID).
		WithField("status", status).
		Info("payment settled")
	return payment, true, nil
}

func (s *Service) resolveUser(ctx context.Context, info billing.Info) (user.User, error) {
	if info.UserID != "" {
		if u, err := s.users.GetUser(ctx, info.UserID); err == nil {
			return u, nil
		}
	}
	if info.Email == "" {
		return user.User{}, fmt.Errorf("payment carries neither a known user id nor an email")
	}
	return s.users.GetUserByEmail(ctx, info.Email)
}

// receipt thanks the user on both channels, best-effort.
func (s *Service) receipt(ctx context.Context, u user.User, p billing.Payment) {
	amount := fmt.Sprintf("%.2f %s", p.Amount, p.Currency)

	if s.notify != nil {
		_, err := s.notify.Notify(ctx, u.ID, "payment",
			"Payment received",
			fmt.Sprintf("Your %s plan is active. We received %s.", p.Plan, amount),
			"/settings/billing", "billing")
		if err != nil {
			s.log.WithError(err).Warn("payment notification failed")
		}
	}

	if s.mail.Enabled() {
		_, err := s.mail.Send(ctx, u.ID, u.Email, mailer.TemplatePaymentReceipt, map[string]string{
			"name":   u.DisplayName,
			"amount": amount,
			"plan":   p.Plan,
		})
		if err != nil {
			s.log.WithError(err).Warn("payment receipt email failed")
		}
	}
}
