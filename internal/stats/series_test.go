package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeries_MeanAndStdDev(t *testing.T) {
	s := NewSeries[float64](4, false)
	for _, v := range []float64{1, 2, 3, 4} {
		s.Add(v)
	}
	assert.InDelta(t, 2.5, s.Mean(), 1e-9)
	assert.InDelta(t, 1.118033988749895, s.StdDev(), 1e-9) // population stddev: sqrt(5/4)
	assert.Equal(t, 4, s.Entries())
	assert.InDelta(t, 4.0, s.Current(), 1e-9)
}

func TestSeries_RingOverwrite(t *testing.T) {
	s := NewSeries[float64](3, false)
	for _, v := range []float64{1, 2, 3, 100} {
		s.Add(v)
	}
	// oldest sample (1) has been evicted
	assert.Equal(t, 3, s.Entries())
	assert.InDelta(t, (2.0+3.0+100.0)/3.0, s.Mean(), 1e-9)
}

func TestSeries_Median(t *testing.T) {
	s := NewSeries[float64](5, false)
	for _, v := range []float64{5, 1, 3, 2, 4} {
		s.Add(v)
	}
	assert.InDelta(t, 3.0, s.Median(), 1e-9)
}

func TestSeries_EmptyIsZero(t *testing.T) {
	s := NewSeries[int64](4, false)
	assert.Equal(t, int64(0), s.Mean())
	assert.Equal(t, int64(0), s.StdDev())
	assert.Equal(t, 0, s.Entries())
}
