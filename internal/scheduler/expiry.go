// Package scheduler runs periodic marketplace maintenance.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sudo-init-do/quickquid/internal/monitoring"
)

// Expirer moves pending hire requests past their SLA to expired
type Expirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// ExpirySweeper periodically expires stale hire requests so they stop
// showing up as pending even when nobody touches them.
type ExpirySweeper struct {
	expirer  Expirer
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	lastRun time.Time
	expired int
}

func NewExpirySweeper(expirer Expirer, interval time.Duration, logger zerolog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		expirer:  expirer,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.With().Str("component", "expiry_sweeper").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// Start begins sweeping in the background
func (s *ExpirySweeper) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", s.interval)
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("expiry sweeper already running")
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	s.log.Info().Dur("interval", s.interval).Msg("expiry sweeper started")
	return nil
}

// Stop halts the sweeper and waits for an in-flight sweep to finish
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.log.Info().Msg("expiry sweeper stopped")
}

func (s *ExpirySweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastRun returns when the last sweep finished and how many requests it expired
func (s *ExpirySweeper) LastRun() (time.Time, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.expired
}

func (s *ExpirySweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one expiry pass
func (s *ExpirySweeper) Sweep(ctx context.Context) {
	n, err := s.expirer.ExpireStale(ctx, s.now())
	if err != nil {
		s.log.Error().Err(err).Int("expired", n).Msg("expiry sweep failed")
	}
	if n > 0 {
		monitoring.RecordExpired(n)
		s.log.Info().Int("expired", n).Msg("expired stale hire requests")
	}

	s.mu.Lock()
	s.lastRun = s.now()
	s.expired = n
	s.mu.Unlock()
}
