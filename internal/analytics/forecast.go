package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// ForecastHistoryMonths is the length of the trend series a forecast is
	// extrapolated from, independent of the projection horizon.
	ForecastHistoryMonths = 12
	// MaxForecastMonths bounds the projection horizon.
	MaxForecastMonths = 12
)

var (
	baseConfidence = decimal.RequireFromString("0.7")
	confidenceStep = decimal.RequireFromString("0.1")
)

// ValidateForecastMonths checks a projection horizon.
func ValidateForecastMonths(months int) error {
	if months < 1 || months > MaxForecastMonths {
		return invalid("months", ErrInvalidMonths)
	}
	return nil
}

// ProjectForecast extrapolates monthsAhead months past currentMonth from a
// trend series. The level is the series mean; the trend is the endpoint
// slope (last - first) / (N - 1), zero when the series has fewer than two
// points. Projections are clamped at zero and rounded to cents; confidence is
// 0.7 - 0.1·i and is deliberately not clamped, so it reaches zero at i = 7
// and goes negative beyond.
func ProjectForecast(series []MonthlyTrend, monthsAhead int, currentMonth time.Time) []ForecastProjection {
	avgIncome, avgExpenses := decimal.Zero, decimal.Zero
	slopeIncome, slopeExpenses := decimal.Zero, decimal.Zero

	if n := len(series); n > 0 {
		count := decimal.NewFromInt(int64(n))
		for _, t := range series {
			avgIncome = avgIncome.Add(t.Income)
			avgExpenses = avgExpenses.Add(t.Expenses)
		}
		avgIncome = avgIncome.Div(count)
		avgExpenses = avgExpenses.Div(count)

		if n > 1 {
			steps := decimal.NewFromInt(int64(n - 1))
			first, last := series[0], series[n-1]
			slopeIncome = last.Income.Sub(first.Income).Div(steps)
			slopeExpenses = last.Expenses.Sub(first.Expenses).Div(steps)
		}
	}

	y, m, _ := currentMonth.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)

	projections := make([]ForecastProjection, 0, max(monthsAhead, 0))
	for i := 1; i <= monthsAhead; i++ {
		h := decimal.NewFromInt(int64(i))
		income := nonNegative(avgIncome.Add(slopeIncome.Mul(h))).Round(2)
		expenses := nonNegative(avgExpenses.Add(slopeExpenses.Mul(h))).Round(2)

		projections = append(projections, ForecastProjection{
			Month:             start.AddDate(0, i, 0).Format(MonthLabelLayout),
			ProjectedIncome:   income,
			ProjectedExpenses: expenses,
			ProjectedBalance:  income.Sub(expenses),
			Confidence:        baseConfidence.Sub(confidenceStep.Mul(h)).InexactFloat64(),
		})
	}
	return projections
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
