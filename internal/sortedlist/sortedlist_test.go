package sortedlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func cmpInt(a, b int) int { return a - b }

func TestInsertSorted(t *testing.T) {
	var s []int
	var changed bool
	for _, v := range []int{5, 1, 3, 5, 1} {
		s, _ = InsertSorted(s, v, cmpInt)
	}
	assert.Equal(t, []int{1, 3, 5}, s)

	s, changed = InsertSorted(s, 3, cmpInt)
	assert.False(t, changed)
	s, changed = InsertSorted(s, 4, cmpInt)
	assert.True(t, changed)
	assert.Equal(t, []int{1, 3, 4, 5}, s)
}

func TestContainsAndRemove(t *testing.T) {
	s := []int{1, 3, 5, 7}
	assert.True(t, ContainsSorted(s, 5, cmpInt))
	assert.False(t, ContainsSorted(s, 4, cmpInt))

	s, changed := RemoveSorted(s, 5, cmpInt)
	assert.True(t, changed)
	assert.Equal(t, []int{1, 3, 7}, s)

	s, changed = RemoveSorted(s, 5, cmpInt)
	assert.False(t, changed)
	assert.Equal(t, []int{1, 3, 7}, s)
}

func TestFindNeighbours(t *testing.T) {
	s := []int{10, 20, 30}

	tests := []struct {
		v      int
		wantGT int
		wantLT int
	}{
		{5, 0, -1},
		{10, 1, -1},
		{15, 1, 0},
		{30, -1, 1},
		{35, -1, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantGT, FindGT(s, tt.v, cmpInt), "FindGT(%d)", tt.v)
		assert.Equal(t, tt.wantLT, FindLT(s, tt.v, cmpInt), "FindLT(%d)", tt.v)
	}
}

func TestSortUnique(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, SortUnique([]int{3, 1, 2, 3, 1}, cmpInt))
	assert.Empty(t, SortUnique([]int{}, cmpInt))
}

func TestSubtractSorted(t *testing.T) {
	s := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 3, 5}, SubtractSorted(s, []int{2, 4, 6}, cmpInt))

	s = []int{1, 2, 3}
	assert.Equal(t, []int{1, 2, 3}, SubtractSorted(s, nil, cmpInt))

	s = []int{1, 2}
	assert.Empty(t, SubtractSorted(s, []int{1, 2}, cmpInt))
}
