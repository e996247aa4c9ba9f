// Package scheduler drives the live preview. Scheduling opportunities arrive
// at a fixed cadence; an opportunity only turns into a compositor tick when
// the policy interval for the current load has elapsed. Late opportunities
// are dropped, never queued.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HDPixels is the pixel count at which a surface counts as HD.
const HDPixels = 1280 * 720

// DefaultOpportunity is how often Run offers a tick.
const DefaultOpportunity = 4 * time.Millisecond

// FPSWindow is the span over which throughput is averaged.
const FPSWindow = time.Second

// ErrStopped is returned by Run once Stop has been called.
var ErrStopped = errors.New("scheduler stopped")

// MinFrameInterval returns the shortest gap allowed between two ticks for a
// surface of pixels with active effects enabled.
func MinFrameInterval(pixels, active int) time.Duration {
	if pixels >= HDPixels {
		switch {
		case active == 0:
			return 25 * time.Millisecond
		case active <= 2:
			return 33 * time.Millisecond
		default:
			return 50 * time.Millisecond
		}
	}
	switch {
	case active < 3:
		return 16 * time.Millisecond
	case active <= 4:
		return 25 * time.Millisecond
	default:
		return 33 * time.Millisecond
	}
}

// State is the scheduler lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config wires a scheduler.
type Config struct {
	// Tick runs one compositor pass. Required.
	Tick func(now time.Time)
	// Load reports the current surface pixel count and active effect count.
	// Required.
	Load func() (pixels, active int)
	// Observe receives the measured frames per second once per window.
	Observe func(fps float64)
	// Now defaults to time.Now.
	Now func() time.Time
	// Opportunity defaults to DefaultOpportunity.
	Opportunity time.Duration
}

// Scheduler is a throttled preview loop.
type Scheduler struct {
	cfg Config
	log *logrus.Entry

	mu          sync.Mutex
	state       State
	last        time.Time
	ticked      bool
	frames      int
	windowStart time.Time
	fps         float64
	offered     uint64
	rendered    uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// New returns an idle scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Opportunity <= 0 {
		cfg.Opportunity = DefaultOpportunity
	}
	return &Scheduler{
		cfg:  cfg,
		log:  logrus.WithField("component", "scheduler"),
		stop: make(chan struct{}),
	}
}

// Offer presents one scheduling opportunity at now and reports whether it
// produced a tick. The tick runs on the caller's goroutine.
func (s *Scheduler) Offer(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return false
	}
	s.offered++
	if s.windowStart.IsZero() {
		s.windowStart = now
	}

	pixels, active := s.cfg.Load()
	if s.ticked && now.Sub(s.last) < MinFrameInterval(pixels, active) {
		return false
	}
	s.cfg.Tick(now)
	s.last = now
	s.ticked = true
	s.rendered++
	s.frames++

	if elapsed := now.Sub(s.windowStart); elapsed >= FPSWindow {
		s.fps = float64(s.frames) * float64(time.Second) / float64(elapsed)
		s.frames = 0
		s.windowStart = now
		if s.cfg.Observe != nil {
			s.cfg.Observe(s.fps)
		}
	}
	return true
}

// Run offers ticks until ctx is done or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		return ErrStopped
	case StateRunning:
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.state = StateRunning
	s.mu.Unlock()

	s.log.Debug("preview loop started")
	ticker := time.NewTicker(s.cfg.Opportunity)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.setIdle()
			return ctx.Err()
		case <-s.stop:
			return ErrStopped
		case <-ticker.C:
			s.Offer(s.cfg.Now())
		}
	}
}

func (s *Scheduler) setIdle() {
	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateIdle
	}
	s.ticked = false
	s.frames = 0
	s.windowStart = time.Time{}
	s.mu.Unlock()
}

// Stop waits for an in-flight tick to finish and prevents any further one.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stop) })
	s.log.Debug("preview loop stopped")
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	FPS      float64 `json:"fps"`
	Offered  uint64  `json:"offered"`
	Rendered uint64  `json:"rendered"`
	State    string  `json:"state"`
}

// Stats returns the current counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{FPS: s.fps, Offered: s.offered, Rendered: s.rendered, State: s.state.String()}
}
