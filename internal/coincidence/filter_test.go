package coincidence

import (
	"testing"
	"time"

	"github.com/muonpi/clusterproc/internal/geo"
	"github.com/muonpi/clusterproc/internal/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stationLoc(lat, lon float64) geo.Location {
	return geo.Location{Latitude: lat, Longitude: lon, Height: 200}
}

func TestFilter_TwoStationCoincidence(t *testing.T) {
	f := NewFilter(time.Minute)
	now := time.Unix(0, 0)

	a := messages.Hit{Hash: 1, Start: 1_000_000_000, Location: stationLoc(50.0, 10.0)}
	b := messages.Hit{Hash: 2, Start: 1_000_003_700, Location: stationLoc(50.01, 10.0)}

	f.Add(a, now)
	f.Add(b, now)

	require.Equal(t, 1, f.OpenCount())
	emitted := f.Sweep(now.Add(2 * time.Minute))
	require.Len(t, emitted, 1)
	assert.Equal(t, 2, emitted[0].N())
	assert.Equal(t, int64(1_000_000_000), emitted[0].Start())
	assert.Equal(t, int64(1_000_003_700), emitted[0].End())
}

func TestFilter_RejectedByDistance(t *testing.T) {
	f := NewFilter(time.Minute)
	now := time.Unix(0, 0)

	a := messages.Hit{Hash: 1, Start: 1_000_000_000, Location: stationLoc(50.0, 10.0)}
	// ~72 km apart and 250us later: beyond the d_max/c cutoff (~208us), so
	// the pair scores -1 and each hit keeps its own constructor.
	b := messages.Hit{Hash: 2, Start: 1_000_250_000, Location: stationLoc(50.0, 11.0)}

	f.Add(a, now)
	f.Add(b, now)

	require.Equal(t, 2, f.OpenCount())
	emitted := f.Sweep(now.Add(2 * time.Minute))
	require.Len(t, emitted, 2)
	for _, e := range emitted {
		assert.Equal(t, 1, e.N())
	}
}

func TestFilter_SequentialTripleMatch_NoConflict(t *testing.T) {
	f := NewFilter(time.Minute)
	now := time.Unix(0, 0)

	a := messages.Hit{Hash: 1, Start: 1_000_000_000, Location: stationLoc(50.0, 10.0)}
	b := messages.Hit{Hash: 2, Start: 1_000_003_700, Location: stationLoc(50.01, 10.0)}
	c := messages.Hit{Hash: 3, Start: 1_000_003_800, Location: stationLoc(50.01, 10.001)}

	f.Add(a, now)
	f.Add(b, now) // merges into the constructor holding a
	f.Add(c, now) // a-b is already one constructor, so c just matches it

	require.Equal(t, 1, f.OpenCount())
	emitted := f.Sweep(now.Add(2 * time.Minute))
	require.Len(t, emitted, 1)
	assert.Equal(t, 3, emitted[0].N())
	assert.False(t, emitted[0].Conflict)
}

func TestFilter_MergesAndFlagsConflictOnMultipleMatch(t *testing.T) {
	f := NewFilter(time.Minute)
	now := time.Unix(0, 0)

	// X and Y sit at the same close-by location (tof floors to 150ns), so a
	// 2000ns gap between them is far outside their own light cone and they
	// open two independent constructors.
	x := messages.Hit{Hash: 1, Start: 0, Location: stationLoc(50.0, 10.0)}
	y := messages.Hit{Hash: 2, Start: 2000, Location: stationLoc(50.0, 10.0)}
	f.Add(x, now)
	f.Add(y, now)
	require.Equal(t, 2, f.OpenCount())

	// Z sits far enough away that its much larger tof comfortably covers a
	// 1000ns gap to both X and Y, even though X and Y don't cover each
	// other - the non-transitive case the merge branch exists for.
	z := messages.Hit{Hash: 3, Start: 1000, Location: stationLoc(50.1, 10.2)}
	f.Add(z, now)

	require.Equal(t, 1, f.OpenCount())
	emitted := f.Sweep(now.Add(2 * time.Minute))
	require.Len(t, emitted, 1)
	assert.Equal(t, 3, emitted[0].N())
	assert.True(t, emitted[0].Conflict)
}

func TestFilter_NoDuplicateStationInOneEvent(t *testing.T) {
	f := NewFilter(time.Minute)
	now := time.Unix(0, 0)

	a := messages.Hit{Hash: 1, Start: 1_000_000_000, Location: stationLoc(50.0, 10.0)}
	aAgain := messages.Hit{Hash: 1, Start: 1_000_000_100, Location: stationLoc(50.0, 10.0)}

	f.Add(a, now)
	f.Add(aAgain, now)

	// The second hit from the same station cannot join the first's
	// constructor, so it opens its own.
	assert.Equal(t, 2, f.OpenCount())
}

func TestFilter_AddEvent_CombinedCandidateMatchesSingleHit(t *testing.T) {
	f := NewFilter(time.Minute)
	now := time.Unix(0, 0)

	// A composite group from one station (two local hits already bundled
	// under a common ingest key) matched against a single hit from another.
	candidate := messages.NewEvent(messages.Hit{Hash: 1, Start: 1_000_000_000, Location: stationLoc(50.0, 10.0)})
	candidate.Emplace(messages.Hit{Hash: 1, Start: 1_000_000_050, Location: stationLoc(50.0, 10.0)})
	f.AddEvent(candidate, now)

	other := messages.Hit{Hash: 2, Start: 1_000_003_700, Location: stationLoc(50.01, 10.0)}
	f.Add(other, now)

	require.Equal(t, 1, f.OpenCount())
	emitted := f.Sweep(now.Add(2 * time.Minute))
	require.Len(t, emitted, 1)
	assert.Equal(t, 3, emitted[0].N())
}

func TestFilter_AddEvent_ExcludedByExistingStation(t *testing.T) {
	f := NewFilter(time.Minute)
	now := time.Unix(0, 0)

	f.Add(messages.Hit{Hash: 1, Start: 1_000_000_000, Location: stationLoc(50.0, 10.0)}, now)

	candidate := messages.NewEvent(messages.Hit{Hash: 1, Start: 1_000_000_050, Location: stationLoc(50.0, 10.0)})
	f.AddEvent(candidate, now)

	// Station 1 already has an open constructor, so the candidate (also
	// from station 1) must open its own rather than merge into it.
	assert.Equal(t, 2, f.OpenCount())
}

func TestFilter_SweepRespectsTimeout(t *testing.T) {
	f := NewFilter(time.Minute)
	now := time.Unix(0, 0)
	f.Add(messages.Hit{Hash: 1, Start: 0}, now)

	assert.Empty(t, f.Sweep(now.Add(30*time.Second)))
	emitted := f.Sweep(now.Add(2 * time.Minute))
	require.Len(t, emitted, 1)
}

func TestFilter_TimebaseLengthensButNeverShortens(t *testing.T) {
	f := NewFilter(time.Minute)
	now := time.Unix(0, 0)
	f.Add(messages.Hit{Hash: 1, Start: 0}, now)

	f.SetTimebase(messages.Timebase{Factor: 0.1, Base: int64(30 * time.Second)}) // would shorten; must be ignored
	assert.False(t, f.open[0].timedOut(now.Add(59*time.Second)))

	f.SetTimebase(messages.Timebase{Factor: 1, Base: int64(5 * time.Minute)})
	assert.False(t, f.open[0].timedOut(now.Add(2*time.Minute)))
	assert.True(t, f.open[0].timedOut(now.Add(6*time.Minute)))
}
