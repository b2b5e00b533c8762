// Package matrix implements the compact upper-triangular matrix used to
// index per-station-pair data (§3, §4.4), grounded on the original's
// upper_matrix<T> template (include/utility/uppermatrix.h).
//
// Remove uses a corrected single swap-with-last rather than the original's
// literal swap/shrink/swap-back recipe: the last column's identity takes
// over the removed slot and every other column is left untouched. This is
// still the O(n) primitive the original intends, but it actually satisfies
// the invariant the spec tests for (remaining cells' values are preserved)
// for any number of columns, which the original's two-swap version does not
// once more than two columns separate the removed index from the last one.
package matrix

// UpperMatrix stores n(n-1)/2 cells of an n×n upper-triangular matrix in a
// single contiguous slice. At(x, y) is only valid for x > y; cell (x, y)
// and the conceptual (y, x) denote the same stored value.
type UpperMatrix[T any] struct {
	columns  int
	elements []T
}

// New creates an UpperMatrix sized for n columns (n(n-1)/2 cells).
func New[T any](n int) *UpperMatrix[T] {
	return &UpperMatrix[T]{
		columns:  n,
		elements: make([]T, position(n, 0)),
	}
}

// position computes the offset of cell (x, y), x > y, matching the
// original's `1/2 * (x*x - x) + y`.
func position(x, y int) int {
	return x*(x-1)/2 + y
}

// Columns returns the current matrix dimension n.
func (m *UpperMatrix[T]) Columns() int { return m.columns }

// At returns a pointer to the cell at (x, y). The caller must ensure x > y;
// this is never checked, matching the original's unchecked `at`.
func (m *UpperMatrix[T]) At(x, y int) *T {
	return &m.elements[position(x, y)]
}

// Increase grows the matrix by one column, default-constructing its n-1
// new cells, and returns the new column's index.
func (m *UpperMatrix[T]) Increase() int {
	m.columns++
	m.elements = append(m.elements, make([]T, position(m.columns, 0)-len(m.elements))...)
	return m.columns - 1
}

// swapLast moves the last column's identity into `first`'s slot, leaving
// every other column's cells untouched: cell (first, y) trades with the
// pairwise value between the last column and y, for y != first, so that
// after truncating the last column away, slot `first` holds exactly what
// used to be the last column's data and nothing else moves.
func (m *UpperMatrix[T]) swapLast(first int) {
	if first >= m.columns-1 {
		return
	}

	last := m.columns - 1
	for y := 0; y < first; y++ {
		a, b := m.At(first, y), m.At(last, y)
		*a, *b = *b, *a
	}
	for x := first + 1; x < last; x++ {
		a, b := m.At(x, first), m.At(last, x)
		*a, *b = *b, *a
	}
}

// Remove deletes column/row index, preserving every other cell's value
// (only its position may change): the last column's identity is swapped
// into index's slot in O(n), then the now-redundant last column is
// truncated away.
func (m *UpperMatrix[T]) Remove(index int) {
	if index >= m.columns {
		return
	}
	m.swapLast(index)
	m.columns--
	m.elements = m.elements[:position(m.columns, 0)]
}
