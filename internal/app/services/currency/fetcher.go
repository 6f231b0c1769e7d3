package currency

import (
	"context"

	"github.com/lifeos-hq/lifeos/internal/app/domain/currency"
)

// Fetcher retrieves a fresh batch of conversion rates from an external source.
type Fetcher interface {
	Fetch(ctx context.Context) ([]currency.Rate, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) ([]currency.Rate, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]currency.Rate, error) {
	if f == nil {
		return nil, nil
	}
	return f(ctx)
}
