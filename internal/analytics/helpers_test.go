package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func day(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func expense(id, categoryID, categoryName, amount, date string) Transaction {
	return Transaction{
		ID:           id,
		OwnerID:      "owner-1",
		CategoryID:   categoryID,
		CategoryName: categoryName,
		Amount:       dec(amount),
		Type:         Expense,
		Date:         day(date),
	}
}

func income(id, amount, date string) Transaction {
	return Transaction{
		ID:           id,
		OwnerID:      "owner-1",
		CategoryID:   "salary",
		CategoryName: "Salary",
		Amount:       dec(amount),
		Type:         Income,
		Date:         day(date),
	}
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s: expected %s, got %s", name, want, got)
	}
}
