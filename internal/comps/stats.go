package comps

import (
	"sort"

	"nadlanscope/server/internal/models"
)

// Aggregate computes summary statistics over exactly the truncated top-N
// comparables list. Medians and averages consider non-nil values only and
// are nil when every value is nil.
func Aggregate(comps []models.ComparableTransaction, subject models.SubjectLocation) models.CompStats {
	prices := collect(comps, func(c *models.ComparableTransaction) *float64 { return c.Price })
	ppas := collect(comps, func(c *models.ComparableTransaction) *float64 { return c.PricePerArea })
	areas := collect(comps, func(c *models.ComparableTransaction) *float64 { return c.Area })

	return models.CompStats{
		Count:              len(comps),
		MedianPricePerArea: median(ppas),
		AvgPricePerArea:    mean(ppas),
		MedianPrice:        median(prices),
		AvgPrice:           mean(prices),
		MedianArea:         median(areas),
		Subject:            subject,
	}
}

func collect(comps []models.ComparableTransaction, field func(*models.ComparableTransaction) *float64) []float64 {
	var values []float64
	for i := range comps {
		if v := field(&comps[i]); v != nil {
			values = append(values, *v)
		}
	}
	return values
}

// median returns the middle value of the sorted input, averaging the two
// middle values for even-length input, or nil for empty input.
func median(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	var m float64
	if len(sorted)%2 == 1 {
		m = sorted[mid]
	} else {
		m = (sorted[mid-1] + sorted[mid]) / 2
	}
	return &m
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}
