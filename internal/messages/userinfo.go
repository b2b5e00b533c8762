// Package messages holds the shared data model passed between the station
// supervisor, coincidence filter, and station-pair recorder: UserInfo,
// Hit, Event, DetectorStation status records, and the outgoing trigger,
// summary and cluster-log shapes (§3, §6).
package messages

import "hash/fnv"

// UserInfo identifies a detector station by its owning username and its
// station id, grounded on the original's UserInfo (include/messages/userinfo.h).
type UserInfo struct {
	Username  string
	StationID string
}

// SiteID concatenates username and station id into the canonical site
// identifier used in file names and outgoing messages.
func (u UserInfo) SiteID() string {
	return u.Username + u.StationID
}

// Hash returns a stable, content-derived identifier for this station. It is
// deterministic across process restarts, unlike a pointer or a map index.
func (u UserInfo) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(u.SiteID()))
	return h.Sum64()
}
