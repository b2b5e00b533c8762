package messages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// eventNamespace seeds the deterministic per-event UUID. Using a fixed
// namespace means the same (hash, start) pair always yields the same UUID,
// which is what downstream consumers rely on for deduplication.
var eventNamespace = uuid.MustParse("6f1c1e3a-0f3a-4b8a-9f2e-2a9b6b6d9d3d")

// HitUUID derives a stable UUID for one constituent hit of an emitted event,
// seeded on the owning station hash and the event's start timestamp (§6).
func HitUUID(stationHash uint64, startNanos int64) uuid.UUID {
	name := strconv.FormatUint(stationHash, 10) + ":" + strconv.FormatInt(startNanos, 10)
	return uuid.NewSHA1(eventNamespace, []byte(name))
}

// EventLines renders one outgoing line per constituent Hit of e, in the
// whitespace-delimited format described in §6: UUID, detector hash, a
// 5-character geohash, time-accuracy, coincidence level, total span,
// relative time, ublox counter, duration, time-grid, fix, start timestamp.
func EventLines(e Event) []string {
	start := e.Start()
	span := e.End() - start
	lines := make([]string, 0, len(e.Hits))
	for _, h := range e.Hits {
		id := HitUUID(h.Hash, start)
		geohash := h.Location.Geohash
		if len(geohash) > 5 {
			geohash = geohash[:5]
		}
		relative := h.Start - start
		lines = append(lines, strings.Join([]string{
			id.String(),
			fmt.Sprintf("%d", h.Hash),
			geohash,
			fmt.Sprintf("%d", h.TimeAccuracy),
			fmt.Sprintf("%d", e.N()),
			fmt.Sprintf("%d", span),
			fmt.Sprintf("%d", relative),
			fmt.Sprintf("%d", h.UbloxCounter),
			fmt.Sprintf("%d", h.Duration()),
			fmt.Sprintf("%d", h.GNSSTimeGrid),
			fmt.Sprintf("%d", h.Fix),
			fmt.Sprintf("%d", h.Start),
		}, " "))
	}
	return lines
}
