package comps

import (
	"sort"

	"nadlanscope/server/internal/models"
)

// Rank orders comparables by distance ascending (unknown distance last),
// breaking ties by deal date descending (unknown date last), and truncates to
// the first top records. The closest, most recent comparables are the most
// relevant; no deduplication or weighting is applied beyond that.
func Rank(comps []models.ComparableTransaction, top int) []models.ComparableTransaction {
	sort.SliceStable(comps, func(i, j int) bool {
		return rankLess(&comps[i], &comps[j])
	})
	if top > 0 && len(comps) > top {
		comps = comps[:top]
	}
	return comps
}

func rankLess(a, b *models.ComparableTransaction) bool {
	switch {
	case a.DistanceM == nil && b.DistanceM != nil:
		return false
	case a.DistanceM != nil && b.DistanceM == nil:
		return true
	case a.DistanceM != nil && b.DistanceM != nil && *a.DistanceM != *b.DistanceM:
		return *a.DistanceM < *b.DistanceM
	}

	// Equal (or equally unknown) distance: most recent deal first. ISO
	// dates order lexicographically.
	switch {
	case a.DealDate == nil:
		return false
	case b.DealDate == nil:
		return true
	default:
		return *a.DealDate > *b.DealDate
	}
}
