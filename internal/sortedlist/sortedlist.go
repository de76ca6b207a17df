// Package sortedlist maintains ascending, duplicate-free slices through
// binary search. The recurrence engine keeps its date and instant lists in
// this form so that membership tests and neighbour lookups stay O(log n).
package sortedlist

import "slices"

// InsertSorted inserts v into s, keeping s sorted ascending and unique.
// It reports whether the slice changed.
func InsertSorted[T any](s []T, v T, cmp func(a, b T) int) ([]T, bool) {
	i, found := slices.BinarySearchFunc(s, v, cmp)
	if found {
		return s, false
	}
	return slices.Insert(s, i, v), true
}

// ContainsSorted reports whether v is present in the sorted slice s.
func ContainsSorted[T any](s []T, v T, cmp func(a, b T) int) bool {
	_, found := slices.BinarySearchFunc(s, v, cmp)
	return found
}

// RemoveSorted removes v from the sorted slice s if present and reports
// whether the slice changed.
func RemoveSorted[T any](s []T, v T, cmp func(a, b T) int) ([]T, bool) {
	i, found := slices.BinarySearchFunc(s, v, cmp)
	if !found {
		return s, false
	}
	return slices.Delete(s, i, i+1), true
}

// FindGT returns the index of the first element strictly greater than v,
// or -1 if no such element exists.
func FindGT[T any](s []T, v T, cmp func(a, b T) int) int {
	i, found := slices.BinarySearchFunc(s, v, cmp)
	if found {
		i++
	}
	if i >= len(s) {
		return -1
	}
	return i
}

// FindLT returns the index of the last element strictly less than v,
// or -1 if no such element exists.
func FindLT[T any](s []T, v T, cmp func(a, b T) int) int {
	i, _ := slices.BinarySearchFunc(s, v, cmp)
	return i - 1
}

// SortUnique sorts s ascending and removes duplicates in place.
func SortUnique[T any](s []T, cmp func(a, b T) int) []T {
	slices.SortFunc(s, cmp)
	return slices.CompactFunc(s, func(a, b T) bool { return cmp(a, b) == 0 })
}

// SubtractSorted removes every element of ex from s. Both slices must be
// sorted ascending; the walk is a single merge pass.
func SubtractSorted[T any](s, ex []T, cmp func(a, b T) int) []T {
	if len(ex) == 0 || len(s) == 0 {
		return s
	}
	out := s[:0]
	j := 0
	for _, v := range s {
		for j < len(ex) && cmp(ex[j], v) < 0 {
			j++
		}
		if j < len(ex) && cmp(ex[j], v) == 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}
