// Package station implements the station supervisor (§4.1): per-station
// lifecycle, reliability classification, rate/accuracy statistics, hit
// forwarding, and the global timebase-rescaling factor.
package station

import (
	"time"

	"github.com/muonpi/clusterproc/internal/geo"
	"github.com/muonpi/clusterproc/internal/messages"
	"github.com/muonpi/clusterproc/internal/stats"
)

const (
	// maxTimeAccuracyNanos is the forwarding threshold (§4.1).
	maxTimeAccuracyNanos = 1000
	// extremeAccuracyFactor times maxTimeAccuracyNanos marks a hit's time
	// accuracy as so far out of range the station is immediately suspect.
	extremeAccuracyFactor = 100

	// pulseLength bounds: only hits whose duration falls in (0, 1e6) ns
	// feed the pulse-length series.
	minPulseLengthNanos = 0
	maxPulseLengthNanos = 1_000_000

	currentRateWindows     = 10
	currentRateWindowMs    = 1_000
	meanRateWindows        = 60
	meanRateWindowMs       = 60_000
	pulseLengthSeriesSize  = 100
	timeAccuracySeriesSize = 100
	shortAccuracySize      = 10
)

// DetectorStation tracks one detector station's lifecycle, rate, and
// accuracy statistics, grounded on the original's detector_station
// (include/station/detectorstation.h is not present in the retrieved
// sources; shape is derived from §3/§4.1).
type DetectorStation struct {
	UserInfo messages.UserInfo
	Location geo.Location
	Status   messages.Status
	Reason   messages.Reason

	currentRate *stats.RateMeter
	meanRate    *stats.RateMeter

	pulseLength       *stats.Series[float64]
	timeAccuracy      *stats.Series[float64]
	shortTimeAccuracy *stats.Series[float64]

	ubloxCounter         uint16
	ubloxCounterHasValue bool
	ubloxProgress        int64

	incoming int64

	lastLog      time.Time
	deadtime     float64
}

// NewDetectorStation creates a station record in the Unreliable state (the
// supervisor's LocationUpdate then records the Created transition), grounded
// on §4.1: "if the station is unknown, a new DetectorStation is
// created in state Unreliable and enabled (emitting a Created transition)."
func NewDetectorStation(userInfo messages.UserInfo, location geo.Location, now time.Time) *DetectorStation {
	return &DetectorStation{
		UserInfo:          userInfo,
		Location:          location,
		Status:            messages.Unreliable,
		currentRate:       stats.NewRateMeter(currentRateWindows, currentRateWindowMs, false),
		meanRate:          stats.NewRateMeter(meanRateWindows, meanRateWindowMs, false),
		pulseLength:       stats.NewSeries[float64](pulseLengthSeriesSize, false),
		timeAccuracy:      stats.NewSeries[float64](timeAccuracySeriesSize, false),
		shortTimeAccuracy: stats.NewSeries[float64](shortAccuracySize, false),
		deadtime:          1,
		lastLog:           now,
	}
}

// UpdateLocation replaces the station's Location, as driven by a location
// update message (§4.1).
func (d *DetectorStation) UpdateLocation(loc geo.Location) {
	d.Location = loc
}

// ubloxWrap computes the counter progress since the last hit, wrapping
// through the full uint16 range. Subtracting two uint16 values in Go wraps
// modulo 65536 automatically, which is exactly the wrap-around arithmetic
// the original's unsigned counter relies on.
func ubloxWrap(prev, cur uint16) int64 {
	return int64(cur - prev)
}

// ProcessHit applies §4.1's per-hit processing to a forwarded-candidate hit
// and returns the (possibly stamped) hit plus whether it should be
// forwarded downstream.
func (d *DetectorStation) ProcessHit(hit messages.Hit, now time.Time) (messages.Hit, bool) {
	d.currentRate.IncreaseCounter()
	d.meanRate.IncreaseCounter()
	d.incoming++
	d.lastLog = now

	if d.ubloxCounterHasValue {
		d.ubloxProgress += ubloxWrap(d.ubloxCounter, hit.UbloxCounter)
	}
	d.ubloxCounter = hit.UbloxCounter
	d.ubloxCounterHasValue = true

	duration := hit.Duration()
	if duration > minPulseLengthNanos && duration < maxPulseLengthNanos {
		d.pulseLength.Add(float64(duration))
	}

	acc := float64(hit.TimeAccuracy)
	d.timeAccuracy.Add(acc)
	d.shortTimeAccuracy.Add(acc)

	if hit.TimeAccuracy > extremeAccuracyFactor*maxTimeAccuracyNanos {
		d.Status = messages.Unreliable
		d.Reason = messages.ReasonTimeAccuracyExtreme
	}

	forward := hit.TimeAccuracy <= maxTimeAccuracyNanos && hit.Fix == 1 && d.Status == messages.Reliable
	if forward {
		hit.Location = d.Location
		hit.UserInfo = d.UserInfo
		hit.Hash = d.UserInfo.Hash()
	}
	return hit, forward
}

// IncomingCount returns the number of hits processed since creation.
func (d *DetectorStation) IncomingCount() int64 { return d.incoming }

// UbloxProgress returns the accumulated ublox-counter progress since the
// last reset (made when Supervisor.Step emits its periodic DetectorSummary).
func (d *DetectorStation) UbloxProgress() int64 { return d.ubloxProgress }

// ResetUbloxProgress zeroes the accumulated progress counter, called after
// each periodic DetectorSummary emission in Supervisor.Step.
func (d *DetectorStation) ResetUbloxProgress() { d.ubloxProgress = 0 }

// Deadtime returns the station's current deadtime factor.
func (d *DetectorStation) Deadtime() float64 { return d.deadtime }

// LastLog returns the timestamp of the station's most recent activity
// (any processed hit or a location update), used by the missed-log
// interval check (§4.1 step 1).
func (d *DetectorStation) LastLog() time.Time { return d.lastLog }

// Touch records activity without a hit, used when a location update arrives
// so the missed-log clock resets even absent new hits.
func (d *DetectorStation) Touch(now time.Time) { d.lastLog = now }
