package station

import (
	"time"

	"github.com/muonpi/clusterproc/internal/geo"
	"github.com/muonpi/clusterproc/internal/messages"
)

// Config holds the station supervisor's tunables, sourced from the
// cluster's ClusterConfig (§4.1).
type Config struct {
	Hysteresis              float64
	MissedLogInterval       time.Duration // single-miss threshold (> this -> Unreliable)
	DeletionInterval        time.Duration // triple-miss threshold (> this -> Deleted)
	DetectorSummaryInterval time.Duration
}

// DefaultConfig returns the spec's default tunables: 90s missed-log
// interval, 270s (3x) deletion threshold, 60s detector-summary interval.
func DefaultConfig() Config {
	missed := 90 * time.Second
	return Config{
		Hysteresis:              0.15,
		MissedLogInterval:       missed,
		DeletionInterval:        3 * missed,
		DetectorSummaryInterval: 60 * time.Second,
	}
}

// Supervisor owns the station map and implements §4.1 in full: per-hit
// processing, the reliability heuristic, the 4-state machine, and the
// global timebase-rescaling factor.
type Supervisor struct {
	cfg      Config
	stations map[uint64]*DetectorStation

	sinceLastSummary time.Duration

	triggers  []messages.DetectorTrigger
	summaries []messages.DetectorSummary
	forwarded []messages.Hit
}

// NewSupervisor creates an empty station supervisor.
func NewSupervisor(cfg Config) *Supervisor {
	return &Supervisor{cfg: cfg, stations: map[uint64]*DetectorStation{}}
}

// LocationUpdate applies a location-update message, creating the station if
// unknown (§4.1).
func (s *Supervisor) LocationUpdate(userInfo messages.UserInfo, loc geo.Location, now time.Time) {
	hash := userInfo.Hash()
	st, ok := s.stations[hash]
	if !ok {
		st = NewDetectorStation(userInfo, loc, now)
		s.stations[hash] = st
		s.emitTrigger(st, messages.Created, messages.ReasonNone)
		return
	}
	st.UpdateLocation(loc)
	st.Touch(now)
}

// Hit applies an incoming Hit, looked up by station hash; unknown stations
// silently drop the hit (§4.1).
func (s *Supervisor) Hit(hit messages.Hit, now time.Time) {
	st, ok := s.stations[hit.Hash]
	if !ok {
		return
	}
	forwarded, ok := st.ProcessHit(hit, now)
	if ok {
		s.forwarded = append(s.forwarded, forwarded)
	}
}

// TakeForwarded drains and returns the hits forwarded since the last call.
func (s *Supervisor) TakeForwarded() []messages.Hit {
	out := s.forwarded
	s.forwarded = nil
	return out
}

// TakeTriggers drains and returns the DetectorTriggers emitted since the
// last call.
func (s *Supervisor) TakeTriggers() []messages.DetectorTrigger {
	out := s.triggers
	s.triggers = nil
	return out
}

// TakeSummaries drains and returns the DetectorSummaries emitted since the
// last call.
func (s *Supervisor) TakeSummaries() []messages.DetectorSummary {
	out := s.summaries
	s.summaries = nil
	return out
}

// emitTrigger records a status transition: a DetectorTrigger always, and
// for non-terminal transitions a change-flagged DetectorSummary (§4.1).
func (s *Supervisor) emitTrigger(st *DetectorStation, status messages.Status, reason messages.Reason) {
	st.Status = status
	st.Reason = reason
	s.triggers = append(s.triggers, messages.DetectorTrigger{
		UserInfo: st.UserInfo,
		Status:   status,
		Reason:   reason,
	})
	if status == messages.Deleted {
		return
	}
	s.summaries = append(s.summaries, messages.DetectorSummary{
		Hash:                 st.UserInfo.Hash(),
		UserInfo:             st.UserInfo,
		Deadtime:             st.deadtime,
		Active:               status == messages.Reliable,
		MeanEventRate:        st.meanRate.Mean(),
		StdDevEventRate:      st.meanRate.StdDev(),
		MeanPulseLength:      st.pulseLength.Mean(),
		UbloxCounterProgress: st.UbloxProgress(),
		Incoming:             uint64(st.IncomingCount()),
		Change:               true,
		MeanTimeAccuracy:     st.timeAccuracy.Mean(),
	})
}

// Step runs §4.1's per-step processing and returns the current global
// timebase-rescaling factor. elapsed is the time since the previous Step
// call, used to drive the detector-summary cadence.
func (s *Supervisor) Step(now time.Time, elapsed time.Duration) float64 {
	s.sinceLastSummary += elapsed
	emitSummaries := s.sinceLastSummary >= s.cfg.DetectorSummaryInterval
	if emitSummaries {
		s.sinceLastSummary = 0
	}

	var globalFactor float64 = 1
	var toDelete []uint64

	for hash, st := range s.stations {
		since := now.Sub(st.LastLog())
		switch {
		case since > s.cfg.DeletionInterval:
			s.emitTrigger(st, messages.Deleted, messages.ReasonMissedLogInterval)
			toDelete = append(toDelete, hash)
			continue
		case since > s.cfg.MissedLogInterval:
			if st.Status != messages.Unreliable {
				s.emitTrigger(st, messages.Unreliable, messages.ReasonMissedLogInterval)
			}
		default:
			newStatus, reason := st.Recheck(s.cfg.Hysteresis)
			if newStatus != st.Status {
				s.emitTrigger(st, newStatus, reason)
			}
		}

		if st.currentRate.Step(now) {
			if st.meanRate.Step(now) {
				mean := st.meanRate.Mean()
				stddev := st.meanRate.StdDev()
				current := st.currentRate.Current()
				if stddev > 0 && current < mean-stddev {
					st.deadtime = ((mean-current)/stddev + 1) * 2
				} else {
					st.deadtime = 1
				}
			}
		}

		if st.Status == messages.Reliable && st.deadtime > globalFactor {
			globalFactor = st.deadtime
		}

		if emitSummaries {
			s.summaries = append(s.summaries, messages.DetectorSummary{
				Hash:                 hash,
				UserInfo:             st.UserInfo,
				Deadtime:             st.deadtime,
				Active:               st.Status == messages.Reliable,
				MeanEventRate:        st.meanRate.Mean(),
				StdDevEventRate:      st.meanRate.StdDev(),
				MeanPulseLength:      st.pulseLength.Mean(),
				UbloxCounterProgress: st.UbloxProgress(),
				Incoming:             uint64(st.IncomingCount()),
				MeanTimeAccuracy:     st.timeAccuracy.Mean(),
			})
			st.ResetUbloxProgress()
		}
	}

	for _, hash := range toDelete {
		delete(s.stations, hash)
	}

	return globalFactor
}

// Station returns the station record for hash, if any; it is used by tests.
func (s *Supervisor) Station(hash uint64) (*DetectorStation, bool) {
	st, ok := s.stations[hash]
	return st, ok
}

// Count returns the number of tracked stations and how many are Reliable.
func (s *Supervisor) Count() (total, reliable int) {
	for _, st := range s.stations {
		total++
		if st.Status == messages.Reliable {
			reliable++
		}
	}
	return total, reliable
}
