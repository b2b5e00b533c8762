// Package coincidence implements the coincidence filter (§4.2): it groups
// Hits from different stations into multi-station Events using the
// light-cone criterion, merges conflicting partial matches, and emits
// finalized Events once their constructor's timeout elapses.
package coincidence

import (
	"time"

	"github.com/muonpi/clusterproc/internal/geo"
	"github.com/muonpi/clusterproc/internal/messages"
)

// constructor is an open (not yet emitted) Event accumulating matches
// within a timeout window, grounded on the original's event_constructor
// (include/analysis/eventconstructor.h).
type constructor struct {
	event   messages.Event
	created time.Time
	timeout time.Duration
}

func (c *constructor) timedOut(now time.Time) bool {
	return now.Sub(c.created) >= c.timeout
}

// setTimeout only accepts longer timeouts, matching the original's
// monotonic-lengthening rule (§4.2's "Timeout dynamics").
func (c *constructor) setTimeout(d time.Duration) {
	if d > c.timeout {
		c.timeout = d
	}
}

// Filter holds the bounded set of open constructors and the current
// timebase, and implements the matching algorithm of §4.2.
type Filter struct {
	open []*constructor

	base    time.Duration // last timebase duration reported by the timebase supervisor
	factor  float64
}

// NewFilter creates an empty coincidence filter with the given initial
// timeout base.
func NewFilter(initialBase time.Duration) *Filter {
	return &Filter{base: initialBase, factor: 1}
}

// pairwiseScores computes the light-cone score of every (hit in a, hit in
// b) pair, the raw input to the Event-vs-Event rule of §4.2.
func pairwiseScores(a, b messages.Event) []float64 {
	scores := make([]float64, 0, len(a.Hits)*len(b.Hits))
	for _, ha := range a.Hits {
		for _, hb := range b.Hits {
			scores = append(scores, geo.PairScore(ha.Start, hb.Start, ha.Location, hb.Location))
		}
	}
	return scores
}

// criterionScore scores a Hit against an already-accumulated Event by the
// mean of the pairwise light-cone scores over the event's constituent Hits
// (§4.2's Event-vs-Event rule applied to a single-Hit candidate).
func criterionScore(hit messages.Hit, event messages.Event) (geo.Verdict, int) {
	return geo.Classify(pairwiseScores(messages.NewEvent(hit), event))
}

// eventCriterionScore applies the same Event-vs-Event rule to two
// already-combined Events, such as an L1-composite-hit group matched
// against another open constructor.
func eventCriterionScore(candidate, event messages.Event) (geo.Verdict, int) {
	return geo.Classify(pairwiseScores(candidate, event))
}

// currentTimeout is base*factor, the timeout assigned to newly created and
// newly updated constructors.
func (f *Filter) currentTimeout() time.Duration {
	return time.Duration(float64(f.base) * f.factor)
}

// SetTimebase applies a new Timebase message: factor and base together
// determine the active timeout for future and existing constructors, which
// may only grow (§4.2).
func (f *Filter) SetTimebase(tb messages.Timebase) {
	f.base = time.Duration(tb.Base)
	f.factor = tb.Factor
	timeout := f.currentTimeout()
	for _, c := range f.open {
		c.setTimeout(timeout)
	}
}

// matchResult is kept local to Add. It pairs an open constructor with the
// verdict/weight its event scored against the incoming hit.
type matchResult struct {
	c      *constructor
	weight int
}

// Add runs the matching algorithm of §4.2 for one incoming Hit.
func (f *Filter) Add(hit messages.Hit, now time.Time) {
	var matches []matchResult
	for _, c := range f.open {
		if c.event.HasStation(hit.Hash) {
			continue
		}
		verdict, weight := criterionScore(hit, c.event)
		if verdict != geo.Invalid {
			matches = append(matches, matchResult{c: c, weight: weight})
		}
	}

	if len(matches) == 0 {
		f.open = append(f.open, &constructor{
			event:   messages.NewEvent(hit),
			created: now,
			timeout: f.currentTimeout(),
		})
		return
	}

	primary := matches[0].c
	primary.event.Emplace(hit) // promotes a still-single event to composite
	primary.event.Weight += matches[0].weight
	primary.setTimeout(f.currentTimeout())

	if len(matches) == 1 {
		return
	}

	// More than one matched constructor: merge every other match's event
	// into the primary, mark it conflicting (any merge of a second matched
	// constructor sets the flag), and remove the merged constructors.
	primary.event.Conflict = true
	merged := map[*constructor]bool{primary: true}
	for _, m := range matches[1:] {
		primary.event.Merge(m.c.event)
		primary.event.Weight += m.weight
		merged[m.c] = true
	}

	remaining := f.open[:0]
	for _, c := range f.open {
		if !merged[c] {
			remaining = append(remaining, c)
		}
	}
	f.open = remaining
}

// AddEvent runs the matching algorithm of §4.2 for one already-combined
// candidate Event, such as an L1-composite-hit group whose n rows were
// assembled by the ingress worker before reaching the filter. It mirrors
// Add, but scores the candidate against open constructors with the full
// Event-vs-Event criterion instead of wrapping a single Hit.
func (f *Filter) AddEvent(candidate messages.Event, now time.Time) {
	var matches []matchResult
	for _, c := range f.open {
		shared := false
		for _, h := range candidate.Hits {
			if c.event.HasStation(h.Hash) {
				shared = true
				break
			}
		}
		if shared {
			continue
		}
		verdict, weight := eventCriterionScore(candidate, c.event)
		if verdict != geo.Invalid {
			matches = append(matches, matchResult{c: c, weight: weight})
		}
	}

	if len(matches) == 0 {
		f.open = append(f.open, &constructor{
			event:   candidate,
			created: now,
			timeout: f.currentTimeout(),
		})
		return
	}

	primary := matches[0].c
	primary.event.Merge(candidate)
	primary.event.Weight += matches[0].weight
	primary.setTimeout(f.currentTimeout())

	if len(matches) == 1 {
		return
	}

	primary.event.Conflict = true
	merged := map[*constructor]bool{primary: true}
	for _, m := range matches[1:] {
		primary.event.Merge(m.c.event)
		primary.event.Weight += m.weight
		merged[m.c] = true
	}

	remaining := f.open[:0]
	for _, c := range f.open {
		if !merged[c] {
			remaining = append(remaining, c)
		}
	}
	f.open = remaining
}

// Sweep emits and removes every open constructor whose age has reached its
// timeout (§4.2 step 3).
func (f *Filter) Sweep(now time.Time) []messages.Event {
	var emitted []messages.Event
	remaining := f.open[:0]
	for _, c := range f.open {
		if c.timedOut(now) {
			emitted = append(emitted, c.event)
		} else {
			remaining = append(remaining, c)
		}
	}
	f.open = remaining
	return emitted
}

// OpenCount returns the number of open constructors, surfaced in the
// cluster-log's buffer_length (§4.5, §5).
func (f *Filter) OpenCount() int {
	return len(f.open)
}
