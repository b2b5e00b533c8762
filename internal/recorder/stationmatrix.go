package recorder

import (
	"github.com/muonpi/clusterproc/internal/geo"
	"github.com/muonpi/clusterproc/internal/matrix"
)

// stationEntry is one row of the recorder's station-identity vector (§4.3:
// "A vector of station identities (hash + Location snapshot), index =
// position in the upper-triangular matrix").
type stationEntry struct {
	Hash     uint64
	SiteID   string
	Location geo.Location
}

// stationMatrix pairs an UpperMatrix[*PairHistogram] with the station
// identity vector described in §4.3, keeping both in lockstep across
// admissions and removals. A station's matrix index is assigned on first
// participation in an emitted event, not on first sight (§4.3 "Station
// admission").
type stationMatrix struct {
	stations []stationEntry
	index    map[uint64]int // station hash -> matrix column
	data     *matrix.UpperMatrix[*PairHistogram]
}

func newStationMatrix() *stationMatrix {
	return &stationMatrix{
		index: map[uint64]int{},
		data:  matrix.New[*PairHistogram](0),
	}
}

// indexOf returns the station's matrix column and whether it is already
// admitted.
func (sm *stationMatrix) indexOf(hash uint64) (int, bool) {
	i, ok := sm.index[hash]
	return i, ok
}

// admit adds a station to the matrix if it isn't already present, growing
// the matrix by one column via UpperMatrix.Increase (§4.3 step 1).
func (sm *stationMatrix) admit(hash uint64, siteID string, loc geo.Location) int {
	if i, ok := sm.index[hash]; ok {
		return i
	}
	i := sm.data.Increase()
	sm.stations = append(sm.stations, stationEntry{Hash: hash, SiteID: siteID, Location: loc})
	sm.index[hash] = i
	return i
}

// pair returns the *PairHistogram cell for the unordered pair (a, b),
// seeding it on first use with a bin width computed from the pair's
// straight-line distance (§4.3 "Pair histogram sizing").
func (sm *stationMatrix) pair(a, b int) *PairHistogram {
	hi, lo := a, b
	if lo > hi {
		hi, lo = lo, hi
	}
	cell := sm.data.At(hi, lo)
	if *cell == nil {
		distance := geo.Distance(sm.stations[hi].Location, sm.stations[lo].Location)
		*cell = NewPairHistogram(distance, geo.SpeedOfLight)
	}
	return *cell
}

// remove drops a station from the matrix, keeping the identity vector in
// lockstep with UpperMatrix's swap-with-last removal: the last station's
// identity moves into the removed slot, every other station's index is
// unaffected.
func (sm *stationMatrix) remove(hash uint64) {
	i, ok := sm.index[hash]
	if !ok {
		return
	}
	last := len(sm.stations) - 1
	delete(sm.index, hash)
	if i != last {
		sm.stations[i] = sm.stations[last]
		sm.index[sm.stations[i].Hash] = i
	}
	sm.stations = sm.stations[:last]
	sm.data.Remove(i)
}

// each calls fn once per currently-admitted station.
func (sm *stationMatrix) each(fn func(stationEntry)) {
	for _, s := range sm.stations {
		fn(s)
	}
}

// histogramAt returns the stored *PairHistogram for the pair (a, b) of
// matrix indices, or nil if no event has crossed that pair yet.
func (sm *stationMatrix) histogramAt(a, b int) *PairHistogram {
	hi, lo := a, b
	if lo > hi {
		hi, lo = lo, hi
	}
	return *sm.data.At(hi, lo)
}

// count returns the number of currently-admitted stations.
func (sm *stationMatrix) count() int {
	return len(sm.stations)
}
