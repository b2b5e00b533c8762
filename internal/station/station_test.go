package station

import (
	"testing"
	"time"

	"github.com/muonpi/clusterproc/internal/geo"
	"github.com/muonpi/clusterproc/internal/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUbloxWrap_HandlesWraparound(t *testing.T) {
	assert.Equal(t, int64(5), ubloxWrap(10, 15))
	assert.Equal(t, int64(65536-65530+5), ubloxWrap(65530, 5))
}

func TestProcessHit_ForwardsOnlyWhenReliableAndAccurate(t *testing.T) {
	now := time.Unix(0, 0)
	st := NewDetectorStation(messages.UserInfo{Username: "a", StationID: "1"}, geo.Location{}, now)
	st.Status = messages.Reliable

	_, forwarded := st.ProcessHit(messages.Hit{TimeAccuracy: 1000, Fix: 1}, now)
	assert.True(t, forwarded)

	_, forwarded = st.ProcessHit(messages.Hit{TimeAccuracy: 1001, Fix: 1}, now)
	assert.False(t, forwarded)

	_, forwarded = st.ProcessHit(messages.Hit{TimeAccuracy: 500, Fix: 0}, now)
	assert.False(t, forwarded)

	st.Status = messages.Unreliable
	_, forwarded = st.ProcessHit(messages.Hit{TimeAccuracy: 500, Fix: 1}, now)
	assert.False(t, forwarded)
}

func TestProcessHit_ExtremeAccuracyMarksUnreliable(t *testing.T) {
	now := time.Unix(0, 0)
	st := NewDetectorStation(messages.UserInfo{Username: "a", StationID: "1"}, geo.Location{}, now)
	st.Status = messages.Reliable

	st.ProcessHit(messages.Hit{TimeAccuracy: 100_001, Fix: 1}, now)
	assert.Equal(t, messages.Unreliable, st.Status)
	assert.Equal(t, messages.ReasonTimeAccuracyExtreme, st.Reason)
}

func TestProcessHit_StampsLocationAndUserInfoOnForward(t *testing.T) {
	now := time.Unix(0, 0)
	loc := geo.Location{Latitude: 50, Longitude: 10}
	u := messages.UserInfo{Username: "a", StationID: "1"}
	st := NewDetectorStation(u, loc, now)
	st.Status = messages.Reliable

	hit, forwarded := st.ProcessHit(messages.Hit{TimeAccuracy: 100, Fix: 1}, now)
	require.True(t, forwarded)
	assert.Equal(t, loc, hit.Location)
	assert.Equal(t, u, hit.UserInfo)
	assert.Equal(t, u.Hash(), hit.Hash)
}

func TestSupervisor_LocationUpdateCreatesStation(t *testing.T) {
	sup := NewSupervisor(DefaultConfig())
	now := time.Unix(0, 0)
	u := messages.UserInfo{Username: "a", StationID: "1"}
	sup.LocationUpdate(u, geo.Location{Latitude: 1}, now)

	st, ok := sup.Station(u.Hash())
	require.True(t, ok)
	assert.Equal(t, messages.Created, st.Status)

	triggers := sup.TakeTriggers()
	require.Len(t, triggers, 1)
	assert.Equal(t, messages.Created, triggers[0].Status)
}

func TestSupervisor_HitDroppedForUnknownStation(t *testing.T) {
	sup := NewSupervisor(DefaultConfig())
	sup.Hit(messages.Hit{Hash: 999}, time.Unix(0, 0))
	assert.Empty(t, sup.TakeForwarded())
}

func TestSupervisor_Step_DeletesAfterMissedInterval(t *testing.T) {
	sup := NewSupervisor(DefaultConfig())
	now := time.Unix(0, 0)
	u := messages.UserInfo{Username: "a", StationID: "1"}
	sup.LocationUpdate(u, geo.Location{}, now)
	sup.TakeTriggers()

	later := now.Add(5 * time.Minute) // > 270s
	sup.Step(later, 5*time.Minute)

	_, ok := sup.Station(u.Hash())
	assert.False(t, ok)

	triggers := sup.TakeTriggers()
	require.Len(t, triggers, 1)
	assert.Equal(t, messages.Deleted, triggers[0].Status)
	assert.Equal(t, messages.ReasonMissedLogInterval, triggers[0].Reason)
}

func TestSupervisor_Step_DemotesAfterSingleMissedInterval(t *testing.T) {
	sup := NewSupervisor(DefaultConfig())
	now := time.Unix(0, 0)
	u := messages.UserInfo{Username: "a", StationID: "1"}
	sup.LocationUpdate(u, geo.Location{}, now)
	st, _ := sup.Station(u.Hash())
	st.Status = messages.Reliable
	sup.TakeTriggers()

	later := now.Add(100 * time.Second) // > 90s, < 270s
	sup.Step(later, 100*time.Second)

	st, ok := sup.Station(u.Hash())
	require.True(t, ok)
	assert.Equal(t, messages.Unreliable, st.Status)
}

func TestSupervisor_GlobalFactorDefaultsToOne(t *testing.T) {
	sup := NewSupervisor(DefaultConfig())
	factor := sup.Step(time.Unix(0, 0), time.Second)
	assert.Equal(t, 1.0, factor)
}

func TestReliability_DemotesOnImpreciseLocation(t *testing.T) {
	st := NewDetectorStation(messages.UserInfo{}, geo.Location{
		DOP: 1, HorizontalAccuracy: 1500, VerticalAccuracy: 0,
	}, time.Unix(0, 0))
	status, reason := st.Recheck(0.15)
	assert.Equal(t, messages.Unreliable, status)
	assert.Equal(t, messages.ReasonLocationPrecision, reason)
}

func TestReliability_PromotesWhenAllFactorsLow(t *testing.T) {
	st := NewDetectorStation(messages.UserInfo{}, geo.Location{
		DOP: 0.1, HorizontalAccuracy: 1, VerticalAccuracy: 1,
	}, time.Unix(0, 0))
	for i := 0; i < 5; i++ {
		st.shortTimeAccuracy.Add(10)
	}
	status, _ := st.Recheck(0.15)
	assert.Equal(t, messages.Reliable, status)
}
