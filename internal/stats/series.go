// Package stats provides the generic running-statistics series, fixed-bin
// histogram, and rate meter shared by the station supervisor and the
// station-pair recorder.
//
// The original C++ source parameterises a data_series<T, N, Sample> template
// per value type and ring size; Go generics give the same shape as a single
// type, following design note §9 ("Generics over numeric types").
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Number constrains the value types a Series can hold.
type Number interface {
	~float32 | ~float64 | ~int32 | ~int64
}

// Series is a fixed-capacity ring buffer of up to N samples, with
// mean/variance/stddev computed via gonum/stat over the buffered window on
// each call.
// When Sample is true, variance/stddev use the sample (N-1) correction,
// otherwise the population correction — matching the original's Sample
// template parameter.
type Series[T Number] struct {
	capacity int
	sample   bool
	buf      []float64
	next     int
	full     bool
}

// NewSeries creates a Series holding up to capacity samples.
func NewSeries[T Number](capacity int, sample bool) *Series[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Series[T]{
		capacity: capacity,
		sample:   sample,
		buf:      make([]float64, capacity),
	}
}

// Add appends value, overwriting the oldest sample once the buffer is full.
func (s *Series[T]) Add(value T) {
	s.buf[s.next] = float64(value)
	s.next = (s.next + 1) % s.capacity
	if s.next == 0 {
		s.full = true
	}
}

// window returns the currently populated samples in storage order, which is
// oldest first only until the ring has wrapped.
func (s *Series[T]) window() []float64 {
	if s.full {
		return s.buf
	}
	return s.buf[:s.next]
}

// Entries returns the number of samples currently buffered.
func (s *Series[T]) Entries() int {
	return len(s.window())
}

// Current returns the most recently added value, or the zero value if
// nothing has been added yet.
func (s *Series[T]) Current() T {
	w := s.window()
	if len(w) == 0 {
		return T(0)
	}
	idx := s.next - 1
	if idx < 0 {
		idx = s.capacity - 1
	}
	return T(s.buf[idx])
}

// Mean returns the arithmetic mean of the buffered samples.
func (s *Series[T]) Mean() T {
	w := s.window()
	if len(w) == 0 {
		return T(0)
	}
	return T(stat.Mean(w, nil))
}

// Variance returns the variance of the buffered samples, sample or
// population corrected depending on how the Series was constructed.
func (s *Series[T]) Variance() T {
	w := s.window()
	if len(w) < 2 {
		return T(0)
	}
	if s.sample {
		return T(stat.Variance(w, nil))
	}
	mean := stat.Mean(w, nil)
	var sum float64
	for _, v := range w {
		d := v - mean
		sum += d * d
	}
	return T(sum / float64(len(w)))
}

// StdDev returns the square root of Variance.
func (s *Series[T]) StdDev() T {
	w := s.window()
	if len(w) < 2 {
		return T(0)
	}
	if s.sample {
		return T(stat.StdDev(w, nil))
	}
	return T(math.Sqrt(float64(s.Variance())))
}

// Median returns the median of the buffered samples.
func (s *Series[T]) Median() T {
	w := s.window()
	if len(w) == 0 {
		return T(0)
	}
	sorted := make([]float64, len(w))
	copy(sorted, w)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return T((sorted[mid-1] + sorted[mid]) / 2)
	}
	return T(sorted[mid])
}
