package analytics

import (
	"testing"
	"time"
)

func TestMonthWindows(t *testing.T) {
	now := time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC)

	windows := MonthWindows(now, 3, time.UTC)

	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(windows))
	}
	labels := []string{"Dec 2023", "Jan 2024", "Feb 2024"}
	for i, w := range windows {
		if w.Label != labels[i] {
			t.Errorf("window %d: expected %s, got %s", i, labels[i], w.Label)
		}
	}
	if !windows[0].Range.Start.Equal(day("2023-12-01")) || !windows[0].Range.End.Equal(day("2023-12-31")) {
		t.Errorf("unexpected December bounds: %+v", windows[0].Range)
	}
	if !windows[2].Range.End.Equal(day("2024-02-29")) {
		t.Errorf("expected leap-year February to end on the 29th, got %v", windows[2].Range.End)
	}
}

func TestMonthWindows_Location(t *testing.T) {
	// 02:00 UTC on March 1st is still February five hours west of UTC.
	now := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	west := time.FixedZone("UTC-5", -5*3600)

	windows := MonthWindows(now, 1, west)

	if windows[0].Label != "Feb 2024" {
		t.Errorf("expected Feb 2024, got %s", windows[0].Label)
	}
}

func TestMonthWindows_NonPositive(t *testing.T) {
	if got := MonthWindows(time.Now(), 0, time.UTC); len(got) != 0 {
		t.Errorf("expected no windows, got %d", len(got))
	}
	if _, ok := Span(nil); ok {
		t.Error("expected no span for empty windows")
	}
}

func TestBuildTrendSeries(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	windows := MonthWindows(now, 3, time.UTC)
	txs := []Transaction{
		income("1", "3000", "2024-01-01"),
		expense("2", "food", "Food", "120.50", "2024-01-31"),
		expense("3", "rent", "Rent", "1500", "2024-02-01"),
		income("4", "100", "2023-12-31"),
		expense("5", "food", "Food", "10", "2024-03-10"),
	}

	trends := BuildTrendSeries(txs, windows)

	if len(trends) != 3 {
		t.Fatalf("expected 3 months, got %d", len(trends))
	}
	for _, tr := range trends {
		if !tr.Net.Equal(tr.Income.Sub(tr.Expenses)) {
			t.Errorf("%s: net %s != income %s - expenses %s", tr.Month, tr.Net, tr.Income, tr.Expenses)
		}
	}

	assertDecimal(t, "Jan income", trends[0].Income, "3000")
	assertDecimal(t, "Jan expenses", trends[0].Expenses, "120.50")
	assertDecimal(t, "Jan net", trends[0].Net, "2879.50")
	assertDecimal(t, "Feb income", trends[1].Income, "0")
	assertDecimal(t, "Feb net", trends[1].Net, "-1500")
	assertDecimal(t, "Mar expenses", trends[2].Expenses, "10")
}

func TestBuildTrendSeries_LengthMatchesWindows(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, n := range []int{1, 3, 12, 25} {
		trends := BuildTrendSeries(nil, MonthWindows(now, n, time.UTC))
		if len(trends) != n {
			t.Errorf("n=%d: got %d entries", n, len(trends))
		}
		if trends[n-1].Month != "Jun 2024" {
			t.Errorf("n=%d: expected the series to end with the current month, got %s", n, trends[n-1].Month)
		}
	}
}
