// Package timebase implements the timebase supervisor (§4.2, §2): it
// observes the timestamp span of hits within a rolling sample window and
// emits a coincidence-window base duration, clamped to a configured range.
package timebase

import (
	"time"

	"github.com/muonpi/clusterproc/internal/messages"
)

// Config holds the timebase supervisor's tunables (§4.2).
type Config struct {
	SampleWindow time.Duration
	Min          time.Duration
	Max          time.Duration
}

// DefaultConfig returns the spec's default tunables: 2s sample window,
// clamped to [800ms, 2min].
func DefaultConfig() Config {
	return Config{
		SampleWindow: 2 * time.Second,
		Min:          800 * time.Millisecond,
		Max:          2 * time.Minute,
	}
}

// Supervisor maintains the min/max start timestamp of Hits observed within
// a rolling sample window and derives a clamped base duration on each tick.
type Supervisor struct {
	cfg Config

	windowStart time.Time
	minStart    int64
	maxStart    int64
	haveSample  bool

	lastBase int64 // nanoseconds, the most recently observed span
}

// NewSupervisor creates a timebase supervisor.
func NewSupervisor(cfg Config) *Supervisor {
	return &Supervisor{cfg: cfg, lastBase: cfg.Min.Nanoseconds()}
}

// Observe records a Hit's start timestamp, resetting the sample window once
// SampleWindow has elapsed since it began.
func (s *Supervisor) Observe(hit messages.Hit, now time.Time) {
	if s.windowStart.IsZero() || now.Sub(s.windowStart) > s.cfg.SampleWindow {
		s.windowStart = now
		s.minStart = hit.Start
		s.maxStart = hit.Start
		s.haveSample = true
		return
	}
	if hit.Start < s.minStart {
		s.minStart = hit.Start
	}
	if hit.Start > s.maxStart {
		s.maxStart = hit.Start
	}
	s.haveSample = true
}

// clamp bounds a duration in nanoseconds to [Min, Max].
func (s *Supervisor) clamp(nanos int64) int64 {
	min := s.cfg.Min.Nanoseconds()
	max := s.cfg.Max.Nanoseconds()
	if nanos < min {
		return min
	}
	if nanos > max {
		return max
	}
	return nanos
}

// Tick emits a Timebase whose base is the observed span clamped to
// [Min, Max]; between samples it re-emits the last base unchanged. The
// given factor, the scaling the station supervisor reports from its slowest
// reliable station, travels alongside it in the Timebase and is applied by
// the consumer (§4.2).
func (s *Supervisor) Tick(factor float64) messages.Timebase {
	if s.haveSample {
		s.lastBase = s.clamp(s.maxStart - s.minStart)
		s.haveSample = false
	}
	return messages.Timebase{Factor: factor, Base: s.lastBase}
}
