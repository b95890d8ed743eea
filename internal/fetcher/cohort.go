package fetcher

import (
	"sort"

	"github.com/rickgao/yf-price-fetcher/internal/model"
)

// PlanCohorts groups tickers by watermark. Every ticker lands in exactly one
// cohort. Cohorts are ordered with "none" first, then by ascending date, and
// tickers are sorted within each cohort so logs are stable between runs.
func PlanCohorts(watermarks map[string]model.Watermark) []model.Cohort {
	groups := make(map[model.Watermark][]string)
	for ticker, wm := range watermarks {
		groups[wm] = append(groups[wm], ticker)
	}

	cohorts := make([]model.Cohort, 0, len(groups))
	for wm, tickers := range groups {
		sort.Strings(tickers)
		cohorts = append(cohorts, model.Cohort{Watermark: wm, Tickers: tickers})
	}

	sort.Slice(cohorts, func(i, j int) bool {
		a, b := cohorts[i].Watermark, cohorts[j].Watermark
		if a.Valid != b.Valid {
			return !a.Valid
		}
		return a.Date.Before(b.Date)
	})

	return cohorts
}

// Chunk splits tickers into consecutive batches of at most size entries.
func Chunk(tickers []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	batches := make([][]string, 0, (len(tickers)+size-1)/size)
	for start := 0; start < len(tickers); start += size {
		end := min(start+size, len(tickers))
		batches = append(batches, tickers[start:end])
	}
	return batches
}
