package analytics

import (
	"math"
	"slices"
	"time"
)

const (
	// anomalyStdDevs is how many standard deviations above the category mean
	// an amount must sit to be flagged.
	anomalyStdDevs = 2.0
	// anomalyMeanRatio is the minimum amount/mean ratio for a flag.
	anomalyMeanRatio = 1.5
	// minAnomalySample is the smallest category size that is evaluated.
	minAnomalySample = 2
)

// DetectAnomalies flags expense transactions inside the filter window whose
// amount exceeds both mean + 2·stddev and 1.5·mean of their own category in
// the same window. Statistics are population statistics per category name.
// Categories with a single transaction are never evaluated. The result is
// ordered most recent first.
func DetectAnomalies(txs []Transaction, filters AnalyticsFilters) []SpendingAnomaly {
	window := filters.Window()
	var allowed map[string]struct{}
	if len(filters.CategoryIDs) > 0 {
		allowed = categorySet(filters.CategoryIDs)
	}

	eligible := make([]Transaction, 0, len(txs))
	amounts := make(map[string][]float64)
	for _, t := range txs {
		if t.Type != Expense || !window.Contains(t.Date) {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[t.CategoryID]; !ok {
				continue
			}
		}
		name := displayName(t.CategoryName)
		eligible = append(eligible, t)
		amounts[name] = append(amounts[name], t.Amount.InexactFloat64())
	}

	type stats struct{ mean, stddev float64 }
	byCategory := make(map[string]stats, len(amounts))
	for name, values := range amounts {
		if len(values) < minAnomalySample {
			continue
		}
		mean, stddev := meanStdDev(values)
		byCategory[name] = stats{mean: mean, stddev: stddev}
	}

	type flagged struct {
		date    time.Time
		anomaly SpendingAnomaly
	}
	var found []flagged
	for _, t := range eligible {
		name := displayName(t.CategoryName)
		s, ok := byCategory[name]
		if !ok {
			continue
		}
		amount := t.Amount.InexactFloat64()
		if amount <= s.mean+anomalyStdDevs*s.stddev || amount <= s.mean*anomalyMeanRatio {
			continue
		}
		found = append(found, flagged{
			date: t.Date,
			anomaly: SpendingAnomaly{
				Date:                   t.Date.Format(DateLayout),
				CategoryName:           name,
				Amount:                 t.Amount,
				PercentageAboveAverage: (amount - s.mean) / s.mean * 100,
			},
		})
	}

	slices.SortStableFunc(found, func(a, b flagged) int {
		return b.date.Compare(a.date)
	})

	anomalies := make([]SpendingAnomaly, len(found))
	for i, f := range found {
		anomalies[i] = f.anomaly
	}
	return anomalies
}

// meanStdDev returns the population mean and standard deviation of values.
func meanStdDev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
