package currency

import (
	"context"
	"sync"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/metrics"
	"github.com/lifeos-hq/lifeos/internal/app/system"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// Refresher periodically pulls fresh rates through a Fetcher and stores them.
type Refresher struct {
	service  *Service
	log      *logger.Logger
	interval time.Duration
	fetcher  Fetcher

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRefresher creates a lifecycle-managed rate refresher. A non-positive
// interval falls back to one hour.
func NewRefresher(service *Service, interval time.Duration, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("currency-refresher")
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Refresher{
		service:  service,
		log:      log,
		interval: interval,
	}
}

// WithFetcher assigns the fetcher used to retrieve external rates.
func (r *Refresher) WithFetcher(fetcher Fetcher) {
	r.mu.Lock()
	r.fetcher = fetcher
	r.mu.Unlock()
}

func (r *Refresher) Name() string { return "currency-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		// Prime once so rates are usable before the first full interval.
		r.tick(runCtx)

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.WithField("interval", r.interval.String()).Info("currency refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("currency refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) {
	if r.service == nil {
		return
	}
	r.mu.Lock()
	fetcher := r.fetcher
	r.mu.Unlock()
	if fetcher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rates, err := fetcher.Fetch(ctx)
	if err != nil {
		metrics.RecordRateRefresh(false)
		r.log.WithError(err).Warn("rate refresh failed")
		return
	}

	stored := 0
	for _, rate := range rates {
		if _, err := r.service.UpsertRate(ctx, rate.Code, rate.RateToNGN, rate.Source); err != nil {
			r.log.WithError(err).
				WithField("code", rate.Code).
				Warn("store refreshed rate failed")
			continue
		}
		stored++
	}

	metrics.RecordRateRefresh(true)
	r.log.WithField("stored", stored).Debug("rate refresh completed")
}
