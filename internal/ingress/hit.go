package ingress

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/muonpi/clusterproc/internal/messages"
)

// ParseSingleHit parses a single-hit payload: "start_ts end_ts time_acc
// ublox_counter fix gnss_time_grid utc …" (§6). start_ts/end_ts are decimal
// seconds with at least 17 characters, must not start with '.', and are
// converted to nanosecond integers.
func ParseSingleHit(userInfo messages.UserInfo, payload string) (messages.Hit, error) {
	fields := strings.Fields(payload)
	if len(fields) < 7 {
		return messages.Hit{}, fmt.Errorf("ingress: single hit payload too short: %q", payload)
	}

	startStr, endStr := fields[0], fields[1]
	if len(startStr) < 17 || len(endStr) < 17 {
		return messages.Hit{}, fmt.Errorf("ingress: hit timestamp too short in %q", payload)
	}
	if strings.HasPrefix(startStr, ".") || strings.HasPrefix(endStr, ".") {
		return messages.Hit{}, fmt.Errorf("ingress: hit timestamp starts with '.': %q", payload)
	}

	startSec, err := strconv.ParseFloat(startStr, 64)
	if err != nil {
		return messages.Hit{}, fmt.Errorf("ingress: bad start timestamp %q: %w", startStr, err)
	}
	endSec, err := strconv.ParseFloat(endStr, 64)
	if err != nil {
		return messages.Hit{}, fmt.Errorf("ingress: bad end timestamp %q: %w", endStr, err)
	}

	timeAcc, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return messages.Hit{}, fmt.Errorf("ingress: bad time_acc %q: %w", fields[2], err)
	}
	ublox, err := strconv.ParseUint(fields[3], 10, 16)
	if err != nil {
		return messages.Hit{}, fmt.Errorf("ingress: bad ublox_counter %q: %w", fields[3], err)
	}
	fix, err := strconv.ParseUint(fields[4], 10, 8)
	if err != nil {
		return messages.Hit{}, fmt.Errorf("ingress: bad fix %q: %w", fields[4], err)
	}
	gnssGrid, err := strconv.ParseUint(fields[5], 10, 8)
	if err != nil {
		return messages.Hit{}, fmt.Errorf("ingress: bad gnss_time_grid %q: %w", fields[5], err)
	}
	utc, err := strconv.ParseUint(fields[6], 10, 8)
	if err != nil {
		return messages.Hit{}, fmt.Errorf("ingress: bad utc %q: %w", fields[6], err)
	}

	start := int64(startSec * 1e9)
	end := int64(endSec * 1e9)
	if start > end {
		return messages.Hit{}, fmt.Errorf("ingress: hit start %d after end %d", start, end)
	}

	return messages.Hit{
		Hash:         userInfo.Hash(),
		UserInfo:     userInfo,
		Start:        start,
		End:          end,
		TimeAccuracy: uint32(timeAcc),
		UbloxCounter: uint16(ublox),
		Fix:          uint8(fix),
		UTC:          uint8(utc),
		GNSSTimeGrid: uint8(gnssGrid),
	}, nil
}

// CompositeHit is one row of an L1-composite-hit payload group, sharing a
// common ingest key with the other n-1 rows of the group.
type CompositeHit struct {
	Hash         uint64
	TimeAccuracy uint32
	UbloxCounter uint16
	Fix          uint8
	UTC          uint8
	GNSSTimeGrid uint8
	Start        int64
	End          int64
}

// CompositeGroup is the decoded header of an L1-composite-hit payload: a
// shared UUID, the number of constituent rows n, and the first decoded row.
type CompositeGroup struct {
	ID      string
	N       int
	First   CompositeHit
}

// ParseCompositeHeader parses the first row of an L1-composite-hit payload:
// marker "l1data", then the original's unmarked content[] fields verbatim
// (§6) — "uuid hash … time_acc n … … counter duration gnss_grid fix start
// utc". Since the marker occupies fields[0] here (the original carries it in
// the topic, not the payload), every content[] index is read one field to
// the right of its original offset: content[0] (the uuid, never read by the
// original) becomes the group ID (spec.md:184's "common ingest key"),
// content[1] (hash) is fields[2], and so on.
func ParseCompositeHeader(payload string) (CompositeGroup, error) {
	fields := strings.Fields(payload)
	if len(fields) < 14 {
		return CompositeGroup{}, fmt.Errorf("ingress: composite hit payload too short: %q", payload)
	}
	if fields[0] != "l1data" {
		return CompositeGroup{}, fmt.Errorf("ingress: composite hit missing l1data marker: %q", payload)
	}

	id := fields[1]
	hash, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return CompositeGroup{}, fmt.Errorf("ingress: bad composite hash %q: %w", fields[2], err)
	}
	timeAcc, err := strconv.ParseUint(fields[4], 10, 32)
	if err != nil {
		return CompositeGroup{}, fmt.Errorf("ingress: bad composite time_acc %q: %w", fields[4], err)
	}
	n, err := strconv.ParseUint(fields[5], 10, 32)
	if err != nil {
		return CompositeGroup{}, fmt.Errorf("ingress: bad composite n %q: %w", fields[5], err)
	}
	ublox, err := strconv.ParseUint(fields[8], 10, 16)
	if err != nil {
		return CompositeGroup{}, fmt.Errorf("ingress: bad composite ublox_counter %q: %w", fields[8], err)
	}
	duration, err := strconv.ParseInt(fields[9], 10, 64)
	if err != nil {
		return CompositeGroup{}, fmt.Errorf("ingress: bad composite duration %q: %w", fields[9], err)
	}
	gnssGrid, err := strconv.ParseUint(fields[10], 10, 8)
	if err != nil {
		return CompositeGroup{}, fmt.Errorf("ingress: bad composite gnss_time_grid %q: %w", fields[10], err)
	}
	fix, err := strconv.ParseUint(fields[11], 10, 8)
	if err != nil {
		return CompositeGroup{}, fmt.Errorf("ingress: bad composite fix %q: %w", fields[11], err)
	}
	start, err := strconv.ParseInt(fields[12], 10, 64)
	if err != nil {
		return CompositeGroup{}, fmt.Errorf("ingress: bad composite start %q: %w", fields[12], err)
	}
	utc, err := strconv.ParseUint(fields[13], 10, 8)
	if err != nil {
		return CompositeGroup{}, fmt.Errorf("ingress: bad composite utc %q: %w", fields[13], err)
	}

	return CompositeGroup{
		ID: id,
		N:  int(n),
		First: CompositeHit{
			Hash:         hash,
			TimeAccuracy: uint32(timeAcc),
			UbloxCounter: uint16(ublox),
			Fix:          uint8(fix),
			UTC:          uint8(utc),
			GNSSTimeGrid: uint8(gnssGrid),
			Start:        start,
			End:          start + duration,
		},
	}, nil
}

// compositeItem buffers the rows seen so far for one in-flight
// L1-composite-hit group.
type compositeItem struct {
	userInfo     messages.UserInfo
	n            int
	hits         []CompositeHit
	firstMessage time.Time
}

// CompositeAggregator buffers the n rows of an L1-composite-hit group,
// keyed by their shared ingest uuid, until all n have arrived or the
// aggregation window expires (§6).
type CompositeAggregator struct {
	window time.Duration
	buffer map[string]*compositeItem
}

// NewCompositeAggregator creates an aggregator with the default 5-second
// aggregation window, matching LocationAggregator's.
func NewCompositeAggregator() *CompositeAggregator {
	return &CompositeAggregator{window: 5 * time.Second, buffer: map[string]*compositeItem{}}
}

// Add ingests one row of an L1-composite-hit payload, returning the
// assembled multi-hit Event once the group's n-th row has arrived.
func (a *CompositeAggregator) Add(now time.Time, userInfo messages.UserInfo, payload string) (messages.Event, bool, error) {
	group, err := ParseCompositeHeader(payload)
	if err != nil {
		return messages.Event{}, false, err
	}

	item, ok := a.buffer[group.ID]
	if !ok || now.Sub(item.firstMessage) > a.window {
		item = &compositeItem{userInfo: userInfo, n: group.N, firstMessage: now}
		a.buffer[group.ID] = item
	}
	item.hits = append(item.hits, group.First)
	if len(item.hits) < item.n {
		return messages.Event{}, false, nil
	}
	delete(a.buffer, group.ID)

	event := messages.NewEvent(compositeHitToHit(item.userInfo, item.hits[0]))
	for _, h := range item.hits[1:] {
		event.Emplace(compositeHitToHit(item.userInfo, h))
	}
	return event, true, nil
}

// Expire drops any buffered group whose window has elapsed without
// completing, to be called from the ingress worker's periodic tick.
func (a *CompositeAggregator) Expire(now time.Time) {
	for id, item := range a.buffer {
		if now.Sub(item.firstMessage) > a.window {
			delete(a.buffer, id)
		}
	}
}

func compositeHitToHit(userInfo messages.UserInfo, h CompositeHit) messages.Hit {
	return messages.Hit{
		Hash:         userInfo.Hash(),
		UserInfo:     userInfo,
		Start:        h.Start,
		End:          h.End,
		TimeAccuracy: h.TimeAccuracy,
		UbloxCounter: h.UbloxCounter,
		Fix:          h.Fix,
		UTC:          h.UTC,
		GNSSTimeGrid: h.GNSSTimeGrid,
	}
}
