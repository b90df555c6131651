package analytics

import (
	"strings"
	"time"
)

// MaxRangeYears bounds the span of an analysis window.
const MaxRangeYears = 30

// Validate checks the ordering and span of an analysis window.
func Validate(startDate, endDate time.Time) error {
	if startDate.IsZero() || endDate.IsZero() {
		return invalid("startDate", ErrMissingDates)
	}
	if startDate.After(endDate) {
		return invalid("startDate", ErrInvalidRange)
	}
	if endDate.After(startDate.AddDate(MaxRangeYears, 0, 0)) {
		return invalid("endDate", ErrRangeTooLarge)
	}
	return nil
}

// Normalize validates the filters and returns a canonical copy: dates reduced
// to calendar dates, an empty type meaning "all", category ids trimmed and
// de-duplicated in first-seen order. An empty category set means no
// restriction.
func (f AnalyticsFilters) Normalize() (AnalyticsFilters, error) {
	if err := Validate(f.StartDate, f.EndDate); err != nil {
		return AnalyticsFilters{}, err
	}

	out := AnalyticsFilters{
		StartDate:       CivilDate(f.StartDate),
		EndDate:         CivilDate(f.EndDate),
		TransactionType: f.TransactionType,
	}

	switch out.TransactionType {
	case "":
		out.TransactionType = TypeAll
	case TypeAll, TypeIncome, TypeExpense:
	default:
		return AnalyticsFilters{}, invalid("transactionType", ErrInvalidTransactionType)
	}

	seen := make(map[string]struct{}, len(f.CategoryIDs))
	for _, id := range f.CategoryIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out.CategoryIDs = append(out.CategoryIDs, id)
	}

	return out, nil
}

// FilterByDateRange keeps transactions dated inside the closed range.
func FilterByDateRange(txs []Transaction, r DateRange) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if r.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out
}

// FilterByCategory keeps transactions in the given categories. An empty set
// keeps everything.
func FilterByCategory(txs []Transaction, categoryIDs []string) []Transaction {
	if len(categoryIDs) == 0 {
		return txs
	}
	allowed := categorySet(categoryIDs)
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if _, ok := allowed[t.CategoryID]; ok {
			out = append(out, t)
		}
	}
	return out
}

// FilterByType keeps transactions matching the type filter.
func FilterByType(txs []Transaction, f TypeFilter) []Transaction {
	if f == "" || f == TypeAll {
		return txs
	}
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if f.Includes(t.Type) {
			out = append(out, t)
		}
	}
	return out
}

// ApplyFilters narrows txs by date window, category set and type.
func ApplyFilters(txs []Transaction, f AnalyticsFilters) []Transaction {
	out := FilterByDateRange(txs, f.Window())
	out = FilterByCategory(out, f.CategoryIDs)
	return FilterByType(out, f.TransactionType)
}

func categorySet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
