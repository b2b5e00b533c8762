package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpperMatrix_GrowAndIndex(t *testing.T) {
	m := New[int](0)
	assert.Equal(t, 0, m.Columns())

	idx0 := m.Increase()
	assert.Equal(t, 0, idx0)
	idx1 := m.Increase()
	assert.Equal(t, 1, idx1)
	*m.At(1, 0) = 42
	assert.Equal(t, 42, *m.At(1, 0))
}

func TestUpperMatrix_IncreaseThenRemoveLastIsNoop(t *testing.T) {
	m := New[int](0)
	for i := 0; i < 4; i++ {
		m.Increase()
	}
	for x := 1; x < 4; x++ {
		for y := 0; y < x; y++ {
			*m.At(x, y) = x*10 + y
		}
	}
	snapshot := collect(m)

	m.Increase()
	m.Remove(4) // remove the just-added last column

	assert.Equal(t, snapshot, collect(m))
}

// cellKey identifies a logical unordered pair regardless of storage offset.
type cellKey struct{ hi, lo int }

// collect returns a map from the logical (station-index) pair to its
// stored value, independent of internal storage layout.
func collect(m *UpperMatrix[int]) map[cellKey]int {
	out := map[cellKey]int{}
	for x := 1; x < m.Columns(); x++ {
		for y := 0; y < x; y++ {
			out[cellKey{x, y}] = *m.At(x, y)
		}
	}
	return out
}

func TestUpperMatrix_RemoveMiddleColumn_PreservesUnrelatedCells(t *testing.T) {
	// Build a 5-station matrix, set all 10 cells to unique values, remove
	// index 2, and verify the 6 remaining cells' values are exactly the set
	// of original values that did not belong to row/column 2 — §8 scenario 6.
	m := New[int](0)
	for i := 0; i < 5; i++ {
		m.Increase()
	}
	want := map[int]bool{}
	value := 1
	for x := 1; x < 5; x++ {
		for y := 0; y < x; y++ {
			*m.At(x, y) = value
			if x != 2 && y != 2 {
				want[value] = true
			}
			value++
		}
	}
	require.Len(t, want, 6)

	m.Remove(2)
	require.Equal(t, 4, m.Columns())

	got := map[int]bool{}
	for x := 1; x < m.Columns(); x++ {
		for y := 0; y < x; y++ {
			got[*m.At(x, y)] = true
		}
	}
	assert.Equal(t, want, got)
}

func TestUpperMatrix_SingleCellRoundTrip(t *testing.T) {
	m := New[string](0)
	m.Increase()
	m.Increase()
	*m.At(1, 0) = "ab"
	assert.Equal(t, "ab", *m.At(1, 0))
}
