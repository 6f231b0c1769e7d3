package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/currency"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// HTTPFetcher pulls rates from a JSON endpoint. The endpoint reports values
// as units per one NGN; they are inverted to RateToNGN before storage.
type HTTPFetcher struct {
	client *http.Client
	url    string
	source string
	log    *logger.Logger
}

// NewHTTPFetcher creates a fetcher against the given rates endpoint.
func NewHTTPFetcher(client *http.Client, rawURL string, log *logger.Logger) (*HTTPFetcher, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("rates url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid rates url: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("currency-fetcher")
	}
	return &HTTPFetcher{
		client: client,
		url:    rawURL,
		source: parsed.Host,
		log:    log,
	}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]currency.Rate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		Base  string             `json:"base"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode rates response: %w", err)
	}
	if payload.Base != "" && !strings.EqualFold(payload.Base, currency.Base) {
		return nil, fmt.Errorf("rates endpoint reports base %s, want %s", payload.Base, currency.Base)
	}

	fetchedAt := time.Now().UTC()
	rates := make([]currency.Rate, 0, len(payload.Rates))
	for code, perNGN := range payload.Rates {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || code == currency.Base {
			continue
		}
		if perNGN <= 0 {
			f.log.WithField("code", code).
				WithField("value", perNGN).
				Warn("skipping non-positive rate")
			continue
		}
		rates = append(rates, currency.Rate{
			Code:      code,
			RateToNGN: 1 / perNGN,
			Source:    f.source,
			FetchedAt: fetchedAt,
		})
	}
	return rates, nil
}
