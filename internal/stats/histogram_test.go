package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistogram_AddAndIntegral(t *testing.T) {
	h := NewHistogram(10, -5, 5)
	h.Add(0.1)
	h.Add(-4.9)
	h.Add(4.9)
	var sum uint64
	for _, c := range h.Bins() {
		sum += c
	}
	assert.Equal(t, h.Integral(), sum)
	assert.Equal(t, uint64(3), h.Integral())
}

func TestHistogram_ClampsOutOfRange(t *testing.T) {
	h := NewHistogram(4, 0, 4)
	h.Add(-100)
	h.Add(100)
	bins := h.Bins()
	assert.Equal(t, uint64(1), bins[0])
	assert.Equal(t, uint64(1), bins[len(bins)-1])
	assert.Equal(t, uint64(2), h.Integral())
}

func TestHistogram_ResetClearsBins(t *testing.T) {
	h := NewHistogram(4, 0, 4)
	h.Add(1)
	h.Add(2)
	h.Reset()
	assert.Equal(t, uint64(0), h.Integral())
	for _, c := range h.Bins() {
		assert.Equal(t, uint64(0), c)
	}
}

func TestHistogram_Midpoint(t *testing.T) {
	h := NewHistogram(10, 0, 10)
	assert.InDelta(t, 0.5, h.Midpoint(0), 1e-9)
	assert.InDelta(t, 9.5, h.Midpoint(9), 1e-9)
}
