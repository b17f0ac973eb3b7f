package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Janus/internal/janus/registry"
)

// SweepRunner runs one lifecycle pass. PolicyService implements it.
type SweepRunner interface {
	Sweep(ctx context.Context, graceDays int) (registry.SweepResult, error)
}

// Sweeper runs the lifecycle sweep on a fixed interval and on demand after
// inventory changes. It runs as a background goroutine and is safe to stop
// via its context or the Stop method.
//
// A negative grace period disables the sweeper entirely.
type Sweeper struct {
	runner    SweepRunner
	graceDays int
	interval  time.Duration
	logger    *log.Logger

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	pending  *time.Timer
	started  bool
	stopped  bool
	inflight sync.WaitGroup
	done     chan struct{}
}

// SweeperConfig holds the parameters for NewSweeper.
type SweeperConfig struct {
	// GraceDays is passed to every sweep. <0 disables the sweeper.
	GraceDays int

	// IntervalHours is how often the sweeper runs.  Defaults to 24.
	IntervalHours int
}

// NewSweeper creates a sweeper but does not start it.
// Call Start to begin the background loop.
func NewSweeper(r SweepRunner, cfg SweeperConfig, logger *log.Logger) *Sweeper {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	return &Sweeper{
		runner:    r,
		graceDays: cfg.GraceDays,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins the background loop.  It sweeps immediately on startup, then
// repeats on the configured interval.  The loop exits when ctx is cancelled
// or Stop is called.  Calling Start more than once has no effect.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	if s.graceDays < 0 {
		s.logger.Printf("sweeper disabled (grace=%d)", s.graceDays)
		close(s.done)
		return
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(s.ctx)

	s.logger.Printf("sweeper started (grace=%dd, interval=%dh)",
		s.graceDays, int(s.interval.Hours()))
}

// Trigger arms a single deferred sweep after delay. A sweep already pending
// is replaced, so a burst of triggers yields one run. It reports whether a
// sweep was armed; a disabled, unstarted or stopped sweeper arms nothing.
func (s *Sweeper) Trigger(delay time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil || s.stopped {
		return false
	}

	if s.pending != nil && s.pending.Stop() {
		// The replaced run never started.
		s.inflight.Done()
	}

	ctx := s.ctx
	s.inflight.Add(1)
	s.pending = time.AfterFunc(delay, func() {
		defer s.inflight.Done()
		s.sweep(ctx, "deferred")
	})
	return true
}

// Stop cancels the loop and any pending deferred sweep, then waits for
// in-flight sweeps to finish.  Safe to call more than once.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.pending != nil && s.pending.Stop() {
		s.inflight.Done()
	}
	s.pending = nil
	if s.cancel != nil {
		s.cancel()
	}
	started := s.started
	s.mu.Unlock()

	if started {
		<-s.done
	}
	s.inflight.Wait()
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)

	// Run immediately on startup to clear any backlog.
	s.sweep(ctx, "startup")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx, "interval")
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	res, err := s.runner.Sweep(ctx, s.graceDays)
	if err != nil {
		s.logger.Printf("sweep (%s) error: %v", reason, err)
		return
	}
	if res.Changed() {
		s.logger.Printf("sweep (%s): marked=%d reinstated=%d removed=%d",
			reason, len(res.Marked), len(res.Reinstated), len(res.Removed))
	}
}
