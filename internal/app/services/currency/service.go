// Package currency maintains conversion rates into the NGN base currency and
// converts amounts between currencies through it.
package currency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/currency"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// Service manages stored conversion rates and converts amounts between
// currencies. Every conversion goes through the base currency.
type Service struct {
	store storage.CurrencyStore
	log   *logger.Logger
}

// New constructs a currency service.
func New(store storage.CurrencyStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("currency")
	}
	return &Service{store: store, log: log}
}

// UpsertRate stores the conversion rate for one currency code. The base rate
// is fixed at 1 and cannot be stored or overridden.
func (s *Service) UpsertRate(ctx context.Context, code string, rateToNGN float64, source string) (currency.Rate, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	source = strings.TrimSpace(source)

	if code == "" {
		return currency.Rate{}, fmt.Errorf("code is required")
	}
	if code == currency.Base {
		return currency.Rate{}, fmt.Errorf("the %s rate is fixed at 1", currency.Base)
	}
	if rateToNGN <= 0 {
		return currency.Rate{}, fmt.Errorf("rate must be positive")
	}
	if source == "" {
		source = "manual"
	}

	rate, err := s.store.UpsertRate(ctx, currency.Rate{
		Code:      code,
		RateToNGN: rateToNGN,
		Source:    source,
		FetchedAt: time.Now().UTC(),
	})
	if err != nil {
		return currency.Rate{}, err
	}
	s.log.WithField("code", rate.Code).
		WithField("rate", rate.RateToNGN).
		WithField("source", rate.Source).
		Info("currency rate stored")
	return rate, nil
}

// GetRate returns the stored rate for a code. The base currency resolves to a
// fixed rate of 1 without a store lookup.
func (s *Service) GetRate(ctx context.Context, code string) (currency.Rate, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == currency.Base {
		return currency.Rate{Code: currency.Base, RateToNGN: 1, Source: "fixed"}, nil
	}
	return s.store.GetRate(ctx, code)
}

// ListRates returns every stored rate.
func (s *Service) ListRates(ctx context.Context) ([]currency.Rate, error) {
	return s.store.ListRates(ctx)
}

// ToBase converts an amount into the base currency and reports the rate used.
func (s *Service) ToBase(ctx context.Context, amount float64, from string) (float64, float64, error) {
	rate, err := s.rateFor(ctx, from)
	if err != nil {
		return 0, 0, err
	}
	return amount * rate, rate, nil
}

// Convert converts an amount between two currencies, both legs through the
// base currency.
func (s *Service) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	fromRate, err := s.rateFor(ctx, from)
	if err != nil {
		return 0, err
	}
	toRate, err := s.rateFor(ctx, to)
	if err != nil {
		return 0, err
	}
	return amount * fromRate / toRate, nil
}

func (s *Service) rateFor(ctx context.Context, code string) (float64, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return 0, fmt.Errorf("currency code is required")
	}
	if code == currency.Base {
		return 1, nil
	}

	rate, err := s.store.GetRate(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("no stored rate for %s: %w", code, err)
	}
	if rate.RateToNGN <= 0 {
		return 0, fmt.Errorf("stored rate for %s is invalid", code)
	}
	return rate.RateToNGN, nil
}
