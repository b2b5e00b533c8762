package stats

import "time"

// RateMeter is the ring buffer of N windows of width WindowMillis described
// in §4.1: IncreaseCounter bumps a per-window counter; Step rotates windows
// that have elapsed and appends counter*1000/WindowMillis (an events/second
// rate) to an inner Series that tracks mean/variance over the last N rates.
type RateMeter struct {
	windowMillis int64
	series       *Series[float64]
	counter      int64
	lastStep     time.Time
}

// NewRateMeter creates a RateMeter with windows of windowMillis milliseconds,
// keeping the last n rate samples for its statistical series.
func NewRateMeter(n int, windowMillis int64, sample bool) *RateMeter {
	return &RateMeter{
		windowMillis: windowMillis,
		series:       NewSeries[float64](n, sample),
		lastStep:     time.Time{},
	}
}

// IncreaseCounter bumps the counter for the currently-open window.
func (r *RateMeter) IncreaseCounter() {
	r.counter++
}

// Step advances the meter to now, rotating as many elapsed windows as have
// passed since the last Step. Returns true if at least one window rotated
// (i.e. a new rate sample was appended), so callers can chain dependent
// steps (the mean-rate meter only steps when its current-rate meter ticks).
func (r *RateMeter) Step(now time.Time) bool {
	if r.lastStep.IsZero() {
		r.lastStep = now
		return false
	}
	elapsed := now.Sub(r.lastStep).Milliseconds()
	if elapsed < r.windowMillis {
		return false
	}

	windows := elapsed / r.windowMillis
	rate := float64(r.counter) * 1000.0 / float64(r.windowMillis)
	r.series.Add(rate)
	// Any further fully-elapsed windows with no events rotate in as zero
	// rate, so a silent station's mean correctly decays toward zero.
	for i := int64(1); i < windows; i++ {
		r.series.Add(0)
	}
	r.counter = 0
	r.lastStep = r.lastStep.Add(time.Duration(windows*r.windowMillis) * time.Millisecond)
	return true
}

// Mean returns the mean of the buffered rate samples.
func (r *RateMeter) Mean() float64 { return r.series.Mean() }

// StdDev returns the standard deviation of the buffered rate samples.
func (r *RateMeter) StdDev() float64 { return r.series.StdDev() }

// Current returns the most recently committed rate sample.
func (r *RateMeter) Current() float64 { return r.series.Current() }

// Entries returns how many rate samples are buffered.
func (r *RateMeter) Entries() int { return r.series.Entries() }
