// Package scheduler runs the periodic dispatch tick. Each tick is a single
// invocation of the tick function; the runner never overlaps ticks.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TickFunc performs one unit of work and reports how many items it handled.
type TickFunc func(ctx context.Context) (int, error)

type Scheduler struct {
	interval time.Duration
	tickFn   TickFunc

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(interval time.Duration, tickFn TickFunc) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	return &Scheduler{
		interval: interval,
		tickFn:   tickFn,
		done:     make(chan struct{}),
	}, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		slog.Info("dispatch loop started", "interval", s.interval.String())

		s.safeTick(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("dispatch loop stopping")
				return
			case <-ticker.C:
				s.safeTick(ctx)
			}
		}
	}()

	return true
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	slog.Info("dispatch loop stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch tick panic recovered", "panic", r)
		}
	}()

	start := time.Now()
	processed, err := s.tickFn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		slog.Error("dispatch tick failed",
			"processed", processed, "duration_ms", elapsed.Milliseconds(), "error", err)
		return
	}

	if elapsed > s.interval {
		slog.Warn("dispatch tick overran its interval",
			"processed", processed, "duration_ms", elapsed.Milliseconds())
		return
	}

	if processed > 0 {
		slog.Info("dispatch tick completed",
			"processed", processed, "duration_ms", elapsed.Milliseconds())
	}
}
