// Package recorder implements the station-pair coincidence recorder
// (§4.3): one time-difference histogram per ordered detector pair, grown
// and shrunk as stations come online/offline, periodically snapshotted to
// disk alongside an adjacency matrix.
package recorder

import (
	"time"

	"github.com/muonpi/clusterproc/internal/stats"
)

const (
	defaultBins      = 2000
	minBinWidthNanos = 1.0
	maxBinWidthNanos = 100.0
	binWidthDivisor  = 2000.0
)

// PairHistogram accumulates the time-difference histogram for one ordered
// pair of stations, along with their straight-line distance and online
// bookkeeping (§3, §4.3).
type PairHistogram struct {
	Distance float64 // metres
	Hist     *stats.Histogram

	OnlineCount   int
	LastOnline    time.Time
	UptimeMinutes float64
}

// binWidth clamps 2*tof/2000 to [1ns, 100ns], per §4.3's sizing rule.
func binWidth(distanceMetres, speedOfLight float64) float64 {
	tof := distanceMetres / speedOfLight * 1e9 // nanoseconds
	width := 2 * tof / binWidthDivisor
	if width < minBinWidthNanos {
		return minBinWidthNanos
	}
	if width > maxBinWidthNanos {
		return maxBinWidthNanos
	}
	return width
}

// NewPairHistogram creates a histogram sized for the pair's straight-line
// distance: bin_width = clamp(2*tof/2000, 1ns, 100ns), spanning
// [-1000*bin_width, +1000*bin_width] over 2000 bins (§4.3).
func NewPairHistogram(distanceMetres, speedOfLight float64) *PairHistogram {
	w := binWidth(distanceMetres, speedOfLight)
	return &PairHistogram{
		Distance: distanceMetres,
		Hist:     stats.NewHistogram(defaultBins, -1000*w, 1000*w),
	}
}

// Add records one time difference (nanoseconds, signed) into the
// histogram.
func (p *PairHistogram) Add(deltaNanos float64) {
	p.Hist.Add(deltaNanos)
}

// MarkOnline increments the online-count; if this is the 1->2 transition
// for the pair, stamps LastOnline (§4.3).
func (p *PairHistogram) MarkOnline(now time.Time) {
	p.OnlineCount++
	if p.OnlineCount == 2 {
		p.LastOnline = now
	}
}

// MarkOffline decrements the online-count; if this is the 2->1 transition,
// folds the elapsed online time into UptimeMinutes (§4.3).
func (p *PairHistogram) MarkOffline(now time.Time) {
	if p.OnlineCount == 2 {
		p.UptimeMinutes += now.Sub(p.LastOnline).Minutes()
	}
	if p.OnlineCount > 0 {
		p.OnlineCount--
	}
}

// FoldUptime folds now-LastOnline into UptimeMinutes and resets LastOnline,
// used at snapshot time for pairs currently online (§4.3 step 4).
func (p *PairHistogram) FoldUptime(now time.Time) {
	if p.OnlineCount == 2 {
		p.UptimeMinutes += now.Sub(p.LastOnline).Minutes()
		p.LastOnline = now
	}
}

// ResetAfterSnapshot zeroes the histogram and uptime after a snapshot write
// (§4.3 step 5), preserving distance and online bookkeeping.
func (p *PairHistogram) ResetAfterSnapshot() {
	p.Hist.Reset()
	p.UptimeMinutes = 0
}
