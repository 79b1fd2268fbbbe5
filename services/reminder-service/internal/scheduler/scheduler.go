package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/dispatch"
)

// Cycler runs one scan cycle.
type Cycler interface {
	RunScanCycle(ctx context.Context) (dispatch.Summary, error)
}

// Scheduler triggers scan cycles on a fixed interval.
type Scheduler struct {
	cycler       Cycler
	interval     time.Duration
	cycleTimeout time.Duration
	logger       *zerolog.Logger
}

// New creates a new Scheduler.
func New(cycler Cycler, interval, cycleTimeout time.Duration, logger *zerolog.Logger) *Scheduler {
	return &Scheduler{
		cycler:       cycler,
		interval:     interval,
		cycleTimeout: cycleTimeout,
		logger:       logger,
	}
}

// Run starts a cycle immediately and then on every tick until ctx is
// cancelled. Each cycle runs in its own goroutine, so a slow cycle may overlap
// the next one. Run returns after every in-flight cycle has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", s.interval)
	}

	s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")

	var wg sync.WaitGroup
	defer wg.Wait()

	start := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.tick(ctx)
		}()
	}

	start()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler shutting down, waiting for in-flight cycles")
			return nil
		case <-ticker.C:
			start()
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	cycleCtx := ctx
	if s.cycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, s.cycleTimeout)
		defer cancel()
	}

	if _, err := s.cycler.RunScanCycle(cycleCtx); err != nil {
		s.logger.Error().Err(err).Msg("scan cycle failed")
	}
}
