package messages

import "github.com/muonpi/clusterproc/internal/geo"

// Hit is a single timestamped trigger from one detector station, stamped
// with the GNSS metadata the station supervisor attached at forward time,
// grounded on the original's event_t::data_t (include/messages/event.h).
type Hit struct {
	Hash         uint64
	UserInfo     UserInfo
	Location     geo.Location
	Start        int64 // nanoseconds since epoch
	End          int64 // nanoseconds since epoch
	TimeAccuracy uint32 // nanoseconds
	UbloxCounter uint16
	Fix          uint8
	UTC          uint8
	GNSSTimeGrid uint8
}

// Duration returns End-Start in nanoseconds.
func (h Hit) Duration() int64 { return h.End - h.Start }

// Event is one or more Hits grouped by the coincidence filter. A fresh Event
// wraps a single Hit; Emplace turns it into a composite as soon as a second
// Hit is added.
type Event struct {
	Hits       []Hit
	Conflict   bool
	ScoreTotal float64
	Weight     int
}

// NewEvent wraps a single Hit as a fresh Event.
func NewEvent(h Hit) Event {
	return Event{Hits: []Hit{h}}
}

// N is the coincidence level: the number of constituent Hits.
func (e Event) N() int { return len(e.Hits) }

// Start is the minimum start timestamp among constituent Hits.
func (e Event) Start() int64 {
	start := e.Hits[0].Start
	for _, h := range e.Hits[1:] {
		if h.Start < start {
			start = h.Start
		}
	}
	return start
}

// End is the maximum start timestamp among constituent Hits, matching the
// original's convention that a composite event's span is measured between
// constituent starts, not start/end pairs (§8: end-start equals the max
// pairwise delta of hit starts).
func (e Event) End() int64 {
	end := e.Hits[0].Start
	for _, h := range e.Hits[1:] {
		if h.Start > end {
			end = h.Start
		}
	}
	return end
}

// HasStation reports whether any constituent Hit belongs to the given
// station hash, the check the filter uses to prevent a station from
// appearing twice in one Event (§3 invariant, §8).
func (e Event) HasStation(hash uint64) bool {
	for _, h := range e.Hits {
		if h.Hash == hash {
			return true
		}
	}
	return false
}

// Emplace appends a Hit to the event, promoting a single into a composite.
func (e *Event) Emplace(h Hit) {
	e.Hits = append(e.Hits, h)
}

// Merge folds another Event's constituent Hits into e.
func (e *Event) Merge(other Event) {
	e.Hits = append(e.Hits, other.Hits...)
}

// Timebase carries the dynamically adjusted coincidence-window duration
// emitted by the timebase supervisor (§4.2) and the scaling factor computed
// by the station supervisor from the slowest reliable station.
type Timebase struct {
	Factor float64
	Base   int64 // nanoseconds
}
