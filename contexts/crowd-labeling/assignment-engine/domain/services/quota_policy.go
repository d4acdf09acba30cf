package services

import (
	"sort"

	"crowdlabel/contexts/crowd-labeling/assignment-engine/domain/entities"
)

// IsOpen reports whether a (job, item, criterion) triple still accepts votes.
// Equality with the quota closes the triple.
func IsOpen(tally entities.Tally, quota int) bool {
	if quota <= 0 {
		return false
	}
	return tally.Total() < quota
}

// ExcludeAnswered drops candidates the worker already answered.
func ExcludeAnswered(candidates []int64, answered []int64) []int64 {
	if len(answered) == 0 {
		return append([]int64(nil), candidates...)
	}
	seen := make(map[int64]struct{}, len(answered))
	for _, id := range answered {
		seen[id] = struct{}{}
	}
	items := make([]int64, 0, len(candidates))
	for _, id := range candidates {
		if _, ok := seen[id]; ok {
			continue
		}
		items = append(items, id)
	}
	return items
}

// SortLeastVoted orders candidates by total votes ascending, then by id.
func SortLeastVoted(ids []int64, totals map[int64]int) {
	sort.SliceStable(ids, func(i, j int) bool {
		left, right := totals[ids[i]], totals[ids[j]]
		if left == right {
			return ids[i] < ids[j]
		}
		return left < right
	})
}
