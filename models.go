package main

import (
	"errors"
	"slices"
	"strings"
	"time"

	"finance-analytics-backend/internal/analytics"
	"finance-analytics-backend/internal/cache"
)

var errInvalidDate = errors.New("dates must be formatted as YYYY-MM-DD or RFC 3339")

// AnalyticsRequest is the JSON body of the analytics endpoints.
type AnalyticsRequest struct {
	StartDate       string   `json:"startDate"`
	EndDate         string   `json:"endDate"`
	CategoryIDs     []string `json:"categoryIds"`
	TransactionType string   `json:"transactionType"`
}

// Filters converts the request into engine filters. Empty dates are left
// zero so the engine reports them as missing.
func (r AnalyticsRequest) Filters() (analytics.AnalyticsFilters, error) {
	start, err := parseDate("startDate", r.StartDate)
	if err != nil {
		return analytics.AnalyticsFilters{}, err
	}
	end, err := parseDate("endDate", r.EndDate)
	if err != nil {
		return analytics.AnalyticsFilters{}, err
	}
	return analytics.AnalyticsFilters{
		StartDate:       start,
		EndDate:         end,
		CategoryIDs:     r.CategoryIDs,
		TransactionType: analytics.TypeFilter(strings.ToLower(strings.TrimSpace(r.TransactionType))),
	}, nil
}

// filtersKey renders filters canonically so equivalent requests share an entry.
func filtersKey(f analytics.AnalyticsFilters) string {
	ids := slices.Clone(f.CategoryIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	typ := string(f.TransactionType)
	if typ == "" {
		typ = string(analytics.TypeAll)
	}
	return cache.Key(
		f.StartDate.Format(analytics.DateLayout),
		f.EndDate.Format(analytics.DateLayout),
		typ,
		strings.Join(ids, ","),
	)
}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(analytics.DateLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, &analytics.ValidationError{Field: field, Err: errInvalidDate}
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Backend    string `json:"backend"`
	Circuit    string `json:"circuit,omitempty"`
	Cache      string `json:"cache"`
	CacheError string `json:"cacheError,omitempty"`
	Error      string `json:"error,omitempty"`
}
