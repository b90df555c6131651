package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthWindow is one calendar month of a trailing series.
type MonthWindow struct {
	Label string
	Range DateRange
}

// MonthWindows returns the n calendar months ending with the month that
// contains now (as seen in loc), oldest first. The current month is included
// even though it is still in progress.
func MonthWindows(now time.Time, n int, loc *time.Location) []MonthWindow {
	if n <= 0 {
		return []MonthWindow{}
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, _ := now.In(loc).Date()

	windows := make([]MonthWindow, 0, n)
	for i := n - 1; i >= 0; i-- {
		first := time.Date(y, m-time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1)
		windows = append(windows, MonthWindow{
			Label: first.Format(MonthLabelLayout),
			Range: DateRange{Start: first, End: last},
		})
	}
	return windows
}

// Span returns the range covering every window, or false when there are none.
func Span(windows []MonthWindow) (DateRange, bool) {
	if len(windows) == 0 {
		return DateRange{}, false
	}
	return DateRange{Start: windows[0].Range.Start, End: windows[len(windows)-1].Range.End}, true
}

// BuildTrendSeries sums income and expenses of txs into each window
// independently. Transactions outside every window are ignored.
func BuildTrendSeries(txs []Transaction, windows []MonthWindow) []MonthlyTrend {
	type bucket struct{ income, expenses decimal.Decimal }

	buckets := make([]bucket, len(windows))
	index := make(map[monthKey]int, len(windows))
	for i, w := range windows {
		index[keyOf(w.Range.Start)] = i
		buckets[i] = bucket{income: decimal.Zero, expenses: decimal.Zero}
	}

	for _, t := range txs {
		i, ok := index[keyOf(t.Date)]
		if !ok {
			continue
		}
		switch t.Type {
		case Income:
			buckets[i].income = buckets[i].income.Add(t.Amount)
		case Expense:
			buckets[i].expenses = buckets[i].expenses.Add(t.Amount)
		}
	}

	trends := make([]MonthlyTrend, len(windows))
	for i, w := range windows {
		b := buckets[i]
		trends[i] = MonthlyTrend{
			Month:    w.Label,
			Income:   b.income,
			Expenses: b.expenses,
			Net:      b.income.Sub(b.expenses),
		}
	}
	return trends
}

type monthKey struct {
	year  int
	month time.Month
}

func keyOf(t time.Time) monthKey {
	y, m, _ := t.Date()
	return monthKey{year: y, month: m}
}
