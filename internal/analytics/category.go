package analytics

import (
	"slices"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// AggregateCategorySpends groups the expense transactions of txs by category
// id. Entries come back in order of each category's first occurrence in txs;
// use SortCategorySpendsByAmount for presentation order. The display name of
// a category is the one carried by its most recently seen transaction.
func AggregateCategorySpends(txs []Transaction, filters AnalyticsFilters) []CategorySpend {
	var allowed map[string]struct{}
	if len(filters.CategoryIDs) > 0 {
		allowed = categorySet(filters.CategoryIDs)
	}

	index := make(map[string]int)
	spends := make([]CategorySpend, 0)
	for _, t := range txs {
		if t.Type != Expense {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[t.CategoryID]; !ok {
				continue
			}
		}

		i, ok := index[t.CategoryID]
		if !ok {
			i = len(spends)
			index[t.CategoryID] = i
			spends = append(spends, CategorySpend{CategoryID: t.CategoryID, TotalAmount: decimal.Zero})
		}
		spends[i].CategoryName = displayName(t.CategoryName)
		spends[i].TotalAmount = spends[i].TotalAmount.Add(t.Amount)
		spends[i].TransactionCount++
	}

	grandTotal := decimal.Zero
	for _, s := range spends {
		grandTotal = grandTotal.Add(s.TotalAmount)
	}
	if !grandTotal.IsPositive() {
		return spends
	}
	for i := range spends {
		spends[i].Percentage = spends[i].TotalAmount.Div(grandTotal).Mul(hundred).InexactFloat64()
	}
	return spends
}

// SortCategorySpendsByAmount returns a copy of spends ordered by total
// amount, largest first unless ascending is set. Ties keep input order.
func SortCategorySpendsByAmount(spends []CategorySpend, ascending bool) []CategorySpend {
	out := slices.Clone(spends)
	slices.SortStableFunc(out, func(a, b CategorySpend) int {
		if ascending {
			return a.TotalAmount.Cmp(b.TotalAmount)
		}
		return b.TotalAmount.Cmp(a.TotalAmount)
	})
	return out
}

// FilterCategorySpendsByMinAmount drops entries whose total is below min.
func FilterCategorySpendsByMinAmount(spends []CategorySpend, min decimal.Decimal) []CategorySpend {
	out := make([]CategorySpend, 0, len(spends))
	for _, s := range spends {
		if s.TotalAmount.GreaterThanOrEqual(min) {
			out = append(out, s)
		}
	}
	return out
}

// SumAmounts totals the amounts of transactions of the given type.
func SumAmounts(txs []Transaction, typ TransactionType) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Type == typ {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// TopExpenses returns up to k expense transactions, largest amount first.
// Equal amounts keep the order the store returned them in.
func TopExpenses(txs []Transaction, k int) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Type == Expense {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b Transaction) int {
		return b.Amount.Cmp(a.Amount)
	})
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func displayName(name string) string {
	if name == "" {
		return UncategorizedName
	}
	return name
}
