package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairScore_ZeroAtTimeOfFlightEdge(t *testing.T) {
	locA := Location{Latitude: 50.0, Longitude: 10.0, Height: 200}
	locB := Location{Latitude: 50.56, Longitude: 10.0, Height: 200}

	distance := Distance(locA, locB)
	tof := distance / SpeedOfLight * 1e9 // exactly the Δt that makes score 0

	score := PairScore(0, int64(tof), locA, locB)
	assert.InDelta(t, 0.0, score, 1e-6)
}

func TestPairScore_WithinTimeOfFlight_Positive(t *testing.T) {
	locA := Location{Latitude: 50.0, Longitude: 10.0, Height: 200}
	locB := Location{Latitude: 50.01, Longitude: 10.0, Height: 200}

	distance := Distance(locA, locB)
	tof := distance / SpeedOfLight * 1e9

	score := PairScore(0, int64(tof/2), locA, locB)
	assert.Greater(t, score, 0.0)
}

func TestPairScore_BeyondDMax_Invalid(t *testing.T) {
	locA := Location{Latitude: 50.0, Longitude: 10.0, Height: 200}
	locB := Location{Latitude: 50.01, Longitude: 10.0, Height: 200}

	maxDeltaTNanos := (DMax / SpeedOfLight) * 1e9
	score := PairScore(0, int64(maxDeltaTNanos)+1_000_000, locA, locB)
	assert.Equal(t, -1.0, score)
}

func TestPairScore_ZeroDistance_RejectsBelowMinTOF(t *testing.T) {
	loc := Location{Latitude: 50.0, Longitude: 10.0, Height: 200}

	score := PairScore(0, int64(MinTOF)*2, loc, loc)
	assert.Equal(t, -1.0, score)
}

func TestPairScore_ZeroDistance_AcceptsWithinMinTOF(t *testing.T) {
	loc := Location{Latitude: 50.0, Longitude: 10.0, Height: 200}

	score := PairScore(0, int64(MinTOF)/2, loc, loc)
	assert.Greater(t, score, 0.0)
}

func TestPairScore_IdenticalTimestamps(t *testing.T) {
	locA := Location{Latitude: 50.0, Longitude: 10.0, Height: 200}
	locB := Location{Latitude: 50.0, Longitude: 11.0, Height: 200}

	score := PairScore(1_000_000_000, 1_000_000_000, locA, locB)
	assert.Equal(t, 1.0, score)
}

func TestClassify_NoScores(t *testing.T) {
	verdict, weight := Classify(nil)
	assert.Equal(t, Invalid, verdict)
	assert.Equal(t, 0, weight)
}

func TestClassify_MeanBelowThreshold_Invalid(t *testing.T) {
	verdict, weight := Classify([]float64{-0.6, -0.7})
	assert.Equal(t, Invalid, verdict)
	assert.Equal(t, 0, weight)
}

func TestClassify_MeanAboveThresholdAllPositive_Valid(t *testing.T) {
	verdict, weight := Classify([]float64{0.8, 0.9})
	assert.Equal(t, Valid, verdict)
	assert.Equal(t, 2, weight)
}

func TestClassify_HighMeanWithOneNonPositive_Conflicting(t *testing.T) {
	verdict, weight := Classify([]float64{0.95, 0.95, -0.1})
	assert.Equal(t, Conflicting, verdict)
	assert.Equal(t, 2, weight)
}

func TestClassify_SingleZeroScore_Conflicting(t *testing.T) {
	verdict, weight := Classify([]float64{0})
	assert.Equal(t, Conflicting, verdict)
	assert.Equal(t, 0, weight)
}
