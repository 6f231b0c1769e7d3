package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/lifeos-hq/lifeos/internal/app/domain/currency"
	"github.com/lifeos-hq/lifeos/internal/app/storage/memory"
)

func TestUpsertRateValidation(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.UpsertRate(ctx, "", 1500, ""); err == nil {
		t.Fatalf("expected error for empty code")
	}
	if _, err := svc.UpsertRate(ctx, "USD", 0, ""); err == nil {
		t.Fatalf("expected error for zero rate")
	}
	if _, err := svc.UpsertRate(ctx, "usd", -3, ""); err == nil {
		t.Fatalf("expected error for negative rate")
	}
	if _, err := svc.UpsertRate(ctx, "ngn", 2, ""); err == nil {
		t.Fatalf("expected error for base currency")
	}

	rate, err := svc.UpsertRate(ctx, " usd ", 1500, "")
	if err != nil {
		t.Fatalf("upsert rate: %v", err)
	}
	if rate.Code != "USD" || rate.Source != "manual" {
		t.Fatalf("unexpected rate: %#v", rate)
	}
}

func TestConvertThroughBase(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.UpsertRate(ctx, "USD", 1500, "test"); err != nil {
		t.Fatalf("seed usd: %v", err)
	}
	if _, err := svc.UpsertRate(ctx, "EUR", 1600, "test"); err != nil {
		t.Fatalf("seed eur: %v", err)
	}

	got, err := svc.Convert(ctx, 10, "usd", "eur")
	if err != nil {
		t.Fatalf("convert usd->eur: %v", err)
	}
	if got != 9.375 {
		t.Fatalf("expected 9.375, got %v", got)
	}

	got, err = svc.Convert(ctx, 2, "USD", "NGN")
	if err != nil {
		t.Fatalf("convert usd->ngn: %v", err)
	}
	if got != 3000 {
		t.Fatalf("expected 3000, got %v", got)
	}

	if _, err := svc.Convert(ctx, 1, "GBP", "NGN"); err == nil {
		t.Fatalf("expected error for unknown code")
	}
}

func TestToBaseRecordsRateUsed(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.UpsertRate(ctx, "USD", 1500, "test"); err != nil {
		t.Fatalf("seed usd: %v", err)
	}

	amount, rate, err := svc.ToBase(ctx, 5, "USD")
	if err != nil {
		t.Fatalf("to base: %v", err)
	}
	if amount != 7500 || rate != 1500 {
		t.Fatalf("unexpected conversion amount=%v rate=%v", amount, rate)
	}

	amount, rate, err = svc.ToBase(ctx, 5, "NGN")
	if err != nil {
		t.Fatalf("to base ngn: %v", err)
	}
	if amount != 5 || rate != 1 {
		t.Fatalf("base currency should convert at 1, got amount=%v rate=%v", amount, rate)
	}
}

func TestHTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base":"NGN","rates":{"USD":0.0005,"EUR":-1,"NGN":1}}`))
	}))
	defer server.Close()

	fetcher, err := NewHTTPFetcher(server.Client(), server.URL, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	rates, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rates) != 1 {
		t.Fatalf("expected 1 usable rate, got %d", len(rates))
	}
	if rates[0].Code != "USD" || rates[0].RateToNGN != 2000 {
		t.Fatalf("unexpected rate: %#v", rates[0])
	}
}

func TestHTTPFetcherRejectsForeignBase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base":"USD","rates":{"NGN":1500}}`))
	}))
	defer server.Close()

	fetcher, err := NewHTTPFetcher(server.Client(), server.URL, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	if _, err := fetcher.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for foreign base")
	}
}

func TestHTTPFetcherStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher, err := NewHTTPFetcher(server.Client(), server.URL, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	if _, err := fetcher.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for bad status")
	}

	if _, err := NewHTTPFetcher(nil, "", nil); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestRefresherStoresFetchedRates(t *testing.T) {
	svc := New(memory.New(), nil)
	refresher := NewRefresher(svc, 5*time.Millisecond, nil)
	refresher.WithFetcher(FetcherFunc(func(ctx context.Context) ([]domain.Rate, error) {
		return []domain.Rate{{Code: "USD", RateToNGN: 1450, Source: "test"}}, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := refresher.Start(ctx); err != nil {
		t.Fatalf("start refresher: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	refresher.Stop(context.Background())

	rate, err := svc.GetRate(context.Background(), "USD")
	if err != nil {
		t.Fatalf("get refreshed rate: %v", err)
	}
	if rate.RateToNGN != 1450 {
		t.Fatalf("unexpected stored rate: %#v", rate)
	}
}
