// Package analytics turns a window of financial transactions into category
// breakdowns, monthly trend series, spending anomalies and forecast
// projections.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// TypeFilter restricts an analysis to one transaction direction.
type TypeFilter string

const (
	TypeAll     TypeFilter = "all"
	TypeIncome  TypeFilter = "income"
	TypeExpense TypeFilter = "expense"
)

// UncategorizedName is the display name of transactions without a category.
const UncategorizedName = "Uncategorized"

// DateLayout is the wire format for civil dates.
const DateLayout = "2006-01-02"

// MonthLabelLayout renders month labels such as "Jan 2024".
const MonthLabelLayout = "Jan 2006"

type (
	// Transaction is a read-only snapshot row owned by the transaction store.
	Transaction struct {
		ID           string          `json:"id"`
		OwnerID      string          `json:"owner_id"`
		CategoryID   string          `json:"category_id"`
		CategoryName string          `json:"category_name"`
		Description  string          `json:"description,omitempty"`
		Amount       decimal.Decimal `json:"amount"`
		Type         TransactionType `json:"type"`
		Date         time.Time       `json:"date"`
		CreatedAt    time.Time       `json:"created_at"`
	}

	// AnalyticsFilters is the caller-supplied analysis window.
	AnalyticsFilters struct {
		StartDate       time.Time  `json:"startDate"`
		EndDate         time.Time  `json:"endDate"`
		CategoryIDs     []string   `json:"categoryIds,omitempty"`
		TransactionType TypeFilter `json:"transactionType"`
	}

	// CategorySpend aggregates expenses of a single category.
	CategorySpend struct {
		CategoryID       string          `json:"category_id"`
		CategoryName     string          `json:"category_name"`
		TotalAmount      decimal.Decimal `json:"total_amount"`
		TransactionCount int             `json:"transaction_count"`
		Percentage       float64         `json:"percentage"`
	}

	// MonthlyTrend is one calendar month of the trend series.
	MonthlyTrend struct {
		Month    string          `json:"month"`
		Income   decimal.Decimal `json:"income"`
		Expenses decimal.Decimal `json:"expenses"`
		Net      decimal.Decimal `json:"net"`
	}

	// SpendingAnomaly flags a transaction far above its category's mean.
	SpendingAnomaly struct {
		Date                   string          `json:"date"`
		CategoryName           string          `json:"category_name"`
		Amount                 decimal.Decimal `json:"amount"`
		PercentageAboveAverage float64         `json:"percentageAboveAverage"`
	}

	// ForecastProjection is the extrapolated outlook for a future month.
	ForecastProjection struct {
		Month             string          `json:"month"`
		ProjectedIncome   decimal.Decimal `json:"projected_income"`
		ProjectedExpenses decimal.Decimal `json:"projected_expenses"`
		ProjectedBalance  decimal.Decimal `json:"projected_balance"`
		Confidence        float64         `json:"confidence"`
	}

	// AnalyticsData is the composite result of GetAnalytics.
	AnalyticsData struct {
		CategorySpends []CategorySpend   `json:"categorySpends"`
		MonthlyTrends  []MonthlyTrend    `json:"monthlyTrends"`
		IncomeTotal    decimal.Decimal   `json:"incomeTotal"`
		ExpensesTotal  decimal.Decimal   `json:"expensesTotal"`
		Balance        decimal.Decimal   `json:"balance"`
		TopExpenses    []Transaction     `json:"topExpenses"`
		Anomalies      []SpendingAnomaly `json:"anomalies"`
	}
)

// DateRange is a closed interval of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls on a date inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := CivilDate(t)
	return !d.Before(CivilDate(r.Start)) && !d.After(CivilDate(r.End))
}

// CivilDate drops the clock part of t, keeping its calendar date, in UTC.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Includes reports whether transactions of type t pass the filter.
func (f TypeFilter) Includes(t TransactionType) bool {
	switch f {
	case TypeIncome:
		return t == Income
	case TypeExpense:
		return t == Expense
	default:
		return true
	}
}

// Window returns the filter's date range.
func (f AnalyticsFilters) Window() DateRange {
	return DateRange{Start: f.StartDate, End: f.EndDate}
}
