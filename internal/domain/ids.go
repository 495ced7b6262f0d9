package domain

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
)

// SortIDs orders ids ascending by their bytes, which matches Postgres uuid ordering.
func SortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return CompareIDs(ids[i], ids[j]) < 0
	})
}

// CompareIDs compares two ids bytewise.
func CompareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
