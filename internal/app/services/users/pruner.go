package users

import (
	"context"
	"sync"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/system"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

var _ system.Service = (*SessionPruner)(nil)

// SessionPruner periodically deletes expired sessions.
type SessionPruner struct {
	service  *Service
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSessionPruner creates a lifecycle-managed pruner. A non-positive
// interval falls back to one hour.
func NewSessionPruner(service *Service, interval time.Duration, log *logger.Logger) *SessionPruner {
	if log == nil {
		log = logger.NewDefault("session-pruner")
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionPruner{
		service:  service,
		log:      log,
		interval: interval,
	}
}

func (p *SessionPruner) Name() string { return "session-pruner" }

func (p *SessionPruner) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.tick(runCtx)
			}
		}
	}()

	p.log.Info("session pruner started")
	return nil
}

func (p *SessionPruner) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.log.Info("session pruner stopped")
	return nil
}

func (p *SessionPruner) tick(ctx context.Context) {
	if p.service == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	removed, err := p.service.PruneSessions(ctx)
	if err != nil {
		p.log.WithError(err).Warn("session prune failed")
		return
	}
	if removed > 0 {
		p.log.WithField("removed", removed).Info("expired sessions pruned")
	}
}
