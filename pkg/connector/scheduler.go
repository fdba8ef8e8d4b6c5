package connector

import (
	"context"
	"sync"
	"time"
)

// Trigger names the event that made connectors stale.
type Trigger string

const (
	TriggerSettle   Trigger = "settle"
	TriggerScroll   Trigger = "scroll"
	TriggerResize   Trigger = "resize"
	TriggerMutation Trigger = "mutation"
)

// Scheduler coalesces recompute requests so that connectors are recomputed
// at most once per frame, after the latest request.
//
// Request may be called from any goroutine. A recompute already running is
// never interrupted; requests made meanwhile are served by the next frame.
type Scheduler struct {
	recompute func(Trigger)

	mu      sync.Mutex
	pending bool
	last    Trigger
	runs    int
}

// NewScheduler returns a scheduler that calls recompute with the latest
// pending trigger.
func NewScheduler(recompute func(Trigger)) *Scheduler {
	return &Scheduler{recompute: recompute}
}

// Request marks a recompute as pending. A newer request supersedes an
// older one that has not run yet.
func (s *Scheduler) Request(t Trigger) {
	s.mu.Lock()
	s.pending = true
	s.last = t
	s.mu.Unlock()
}

// Pending reports whether a recompute is waiting for the next frame.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Runs returns how many recomputes have run.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Frame runs the pending recompute, if any, and reports whether it ran.
func (s *Scheduler) Frame() bool {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return false
	}
	t := s.last
	s.pending = false
	s.runs++
	s.mu.Unlock()

	s.recompute(t)
	return true
}

// Run drives frames every interval until ctx is done. A final frame flushes
// any pending request before returning.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Frame()
			return ctx.Err()
		case <-ticker.C:
			s.Frame()
		}
	}
}
