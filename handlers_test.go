package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finance-analytics-backend/internal/analytics"
	"finance-analytics-backend/internal/cache"
	"finance-analytics-backend/internal/events"
	"finance-analytics-backend/internal/logging"
	"finance-analytics-backend/internal/metrics"
	"finance-analytics-backend/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	server *Server
	router *gin.Engine
	store  *store.MemoryStore
	loader *cache.Loader
}

func newFixture(t *testing.T, txs ...analytics.Transaction) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := func() time.Time { return testNow }
	mem := store.NewMemoryStore(txs...)
	resilient := store.NewResilientStore(mem, store.DefaultResilientConfig(), nil, nil)
	engine := analytics.NewEngine(resilient, analytics.WithClock(now))
	loader := cache.NewLoader(cache.NewMemoryCache(now), time.Minute, nil, nil)

	s := &Server{
		engine:    engine,
		store:     resilient,
		loader:    loader,
		logger:    logging.NewNoOpLogger(),
		metrics:   metrics.NoOpCollector{},
		backend:   "memory",
		cacheName: "memory",
		now:       now,
		loc:       time.UTC,
	}
	return &fixture{
		server: s,
		router: newRouter(s, []string{"*"}, nil),
		store:  mem,
		loader: loader,
	}
}

func (f *fixture) do(method, target, owner, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func tx(id, owner, categoryID, categoryName, amount string, typ analytics.TransactionType, date string) analytics.Transaction {
	d, err := time.Parse(analytics.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return analytics.Transaction{
		ID:           id,
		OwnerID:      owner,
		CategoryID:   categoryID,
		CategoryName: categoryName,
		Amount:       decimal.RequireFromString(amount),
		Type:         typ,
		Date:         d,
		CreatedAt:    d,
	}
}

func aliceMarch() []analytics.Transaction {
	return []analytics.Transaction{
		tx("i1", "alice", "salary", "Salary", "1000", analytics.Income, "2024-03-01"),
		tx("e1", "alice", "food", "Food", "60", analytics.Expense, "2024-03-02"),
		tx("e2", "alice", "transport", "Transport", "40", analytics.Expense, "2024-03-03"),
		tx("i0", "alice", "salary", "Salary", "500", analytics.Income, "2024-02-01"),
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

const marchBody = `{"startDate":"2024-03-01","endDate":"2024-03-31"}`

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decode[HealthResponse](t, w)
	if resp.Status != "healthy" || resp.Circuit != "closed" || resp.Backend != "memory" {
		t.Errorf("unexpected health response %+v", resp)
	}
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(ctx context.Context) error { return p.err }

func TestHealthCheck_UnreachableCacheDegrades(t *testing.T) {
	f := newFixture(t)
	f.server.cachePing = failingPinger{err: errors.New("dial tcp: connection refused")}

	w := f.do(http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decode[HealthResponse](t, w)
	if resp.Status != "degraded" || resp.CacheError == "" {
		t.Errorf("unexpected health response %+v", resp)
	}

	f.server.cachePing = failingPinger{}
	resp = decode[HealthResponse](t, f.do(http.MethodGet, "/health", "", ""))
	if resp.Status != "healthy" || resp.CacheError != "" {
		t.Errorf("unexpected health response %+v", resp)
	}
}

func TestGetAnalytics(t *testing.T) {
	f := newFixture(t, aliceMarch()...)

	w := f.do(http.MethodPost, "/api/analytics/data", "alice", marchBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("response carries no request id")
	}

	data := decode[analytics.AnalyticsData](t, w)
	if !data.IncomeTotal.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("incomeTotal = %s, want 1000", data.IncomeTotal)
	}
	if !data.ExpensesTotal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expensesTotal = %s, want 100", data.ExpensesTotal)
	}
	if !data.Balance.Equal(decimal.NewFromInt(900)) {
		t.Errorf("balance = %s, want 900", data.Balance)
	}
	if len(data.CategorySpends) != 2 {
		t.Errorf("got %d category spends, want 2", len(data.CategorySpends))
	}
	if len(data.MonthlyTrends) != analytics.AnalyticsTrendMonths {
		t.Errorf("got %d trend months, want %d", len(data.MonthlyTrends), analytics.AnalyticsTrendMonths)
	}
	if len(data.TopExpenses) == 0 || data.TopExpenses[0].ID != "e1" {
		t.Errorf("top expenses = %+v, want e1 first", data.TopExpenses)
	}
	if data.Anomalies == nil {
		t.Error("anomalies should be an empty list, not null")
	}
}

func TestGetAnalyticsAmountsAreJSONNumbers(t *testing.T) {
	f := newFixture(t, aliceMarch()...)

	w := f.do(http.MethodPost, "/api/analytics/data", "alice", marchBody)
	if !strings.Contains(w.Body.String(), `"incomeTotal":1000`) {
		t.Errorf("expected numeric incomeTotal in %s", w.Body.String())
	}
}

func TestGetAnalyticsOwnerIsolation(t *testing.T) {
	f := newFixture(t, aliceMarch()...)

	w := f.do(http.MethodPost, "/api/analytics/data", "bob", marchBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data := decode[analytics.AnalyticsData](t, w)
	if !data.IncomeTotal.IsZero() || !data.ExpensesTotal.IsZero() || len(data.CategorySpends) != 0 {
		t.Errorf("bob sees alice's data: %+v", data)
	}
}

func TestGetAnalyticsRejections(t *testing.T) {
	tests := []struct {
		name   string
		owner  string
		body   string
		status int
	}{
		{"missing owner", "", marchBody, http.StatusUnauthorized},
		{"blank owner", "   ", marchBody, http.StatusUnauthorized},
		{"start after end", "alice", `{"startDate":"2024-03-31","endDate":"2024-03-01"}`, http.StatusBadRequest},
		{"range over thirty years", "alice", `{"startDate":"1990-01-01","endDate":"2024-03-01"}`, http.StatusBadRequest},
		{"missing dates", "alice", `{}`, http.StatusBadRequest},
		{"malformed date", "alice", `{"startDate":"03/01/2024","endDate":"2024-03-31"}`, http.StatusBadRequest},
		{"unknown type", "alice", `{"startDate":"2024-03-01","endDate":"2024-03-31","transactionType":"transfer"}`, http.StatusBadRequest},
		{"not json", "alice", `nope`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, aliceMarch()...)
			w := f.do(http.MethodPost, "/api/analytics/data", tt.owner, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
			if errorMessage(t, w) == "" {
				t.Error("error body has no message")
			}
		})
	}
}

func TestGetAnalyticsAcceptsRFC3339(t *testing.T) {
	f := newFixture(t, aliceMarch()...)

	body := `{"startDate":"2024-03-01T00:00:00Z","endDate":"2024-03-31T23:59:59Z","transactionType":"expense"}`
	w := f.do(http.MethodPost, "/api/analytics/data", "alice", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	data := decode[analytics.AnalyticsData](t, w)
	if !data.ExpensesTotal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expensesTotal = %s, want 100", data.ExpensesTotal)
	}
}

func TestOwnerFromQueryParameter(t *testing.T) {
	f := newFixture(t, aliceMarch()...)

	w := f.do(http.MethodGet, "/api/analytics/trends?months=2&userId=alice", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	trends := decode[[]analytics.MonthlyTrend](t, w)
	if len(trends) != 2 || !trends[0].Income.Equal(decimal.NewFromInt(500)) {
		t.Errorf("trends = %+v", trends)
	}
}

func TestGetCategorySpends(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		status int
		want   []string
	}{
		{"default descending", "", http.StatusOK, []string{"Food", "Transport"}},
		{"ascending", "?order=asc", http.StatusOK, []string{"Transport", "Food"}},
		{"threshold", "?minAmount=50", http.StatusOK, []string{"Food"}},
		{"threshold is inclusive", "?minAmount=40&order=asc", http.StatusOK, []string{"Transport", "Food"}},
		{"bad order", "?order=sideways", http.StatusBadRequest, nil},
		{"bad threshold", "?minAmount=lots", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, aliceMarch()...)
			w := f.do(http.MethodPost, "/api/analytics/categories"+tt.query, "alice", marchBody)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			spends := decode[[]analytics.CategorySpend](t, w)
			if len(spends) != len(tt.want) {
				t.Fatalf("got %d spends, want %d", len(spends), len(tt.want))
			}
			for i, name := range tt.want {
				if spends[i].CategoryName != name {
					t.Errorf("spends[%d] = %s, want %s", i, spends[i].CategoryName, name)
				}
			}
		})
	}
}

func TestGetMonthlyTrends(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		status int
		length int
	}{
		{"default", "", http.StatusOK, 12},
		{"explicit", "?months=3", http.StatusOK, 3},
		{"unparsable falls back", "?months=abc", http.StatusOK, 12},
		{"zero", "?months=0", http.StatusBadRequest, 0},
		{"negative", "?months=-2", http.StatusBadRequest, 0},
		{"longest", "?months=360", http.StatusOK, 360},
		{"too long", "?months=361", http.StatusBadRequest, 0},
		{"huge", "?months=1125899906842624", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, aliceMarch()...)
			w := f.do(http.MethodGet, "/api/analytics/trends"+tt.query, "alice", "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			trends := decode[[]analytics.MonthlyTrend](t, w)
			if len(trends) != tt.length {
				t.Fatalf("got %d months, want %d", len(trends), tt.length)
			}
			last := trends[len(trends)-1]
			if last.Month != "Mar 2024" {
				t.Errorf("last month = %s, want Mar 2024", last.Month)
			}
			if !last.Net.Equal(decimal.NewFromInt(900)) {
				t.Errorf("March net = %s, want 900", last.Net)
			}
		})
	}
}

func TestGetForecastProjections(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		status int
		length int
	}{
		{"default", "", http.StatusOK, 3},
		{"one", "?months=1", http.StatusOK, 1},
		{"twelve", "?months=12", http.StatusOK, 12},
		{"zero", "?months=0", http.StatusBadRequest, 0},
		{"thirteen", "?months=13", http.StatusBadRequest, 0},
		{"unparsable", "?months=soon", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, aliceMarch()...)
			w := f.do(http.MethodGet, "/api/forecast/projections"+tt.query, "alice", "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				if msg := errorMessage(t, w); msg != analytics.ErrInvalidMonths.Error() {
					t.Errorf("error = %q", msg)
				}
				return
			}
			projections := decode[[]analytics.ForecastProjection](t, w)
			if len(projections) != tt.length {
				t.Fatalf("got %d projections, want %d", len(projections), tt.length)
			}
			if projections[0].Month != "Apr 2024" {
				t.Errorf("first projection = %s, want Apr 2024", projections[0].Month)
			}
		})
	}
}

func TestCachedAnalyticsInvalidatedByEvent(t *testing.T) {
	f := newFixture(t, aliceMarch()...)
	incomeTotal := func() decimal.Decimal {
		w := f.do(http.MethodPost, "/api/analytics/data", "alice", marchBody)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		return decode[analytics.AnalyticsData](t, w).IncomeTotal
	}

	if got := incomeTotal(); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("incomeTotal = %s, want 1000", got)
	}

	f.store.Add(tx("i2", "alice", "salary", "Salary", "250", analytics.Income, "2024-03-10"))
	if got := incomeTotal(); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("cached incomeTotal = %s, want 1000", got)
	}

	handle := invalidateOnChange(f.loader)
	if err := handle(context.Background(), events.NewTransactionsChanged("alice")); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if got := incomeTotal(); !got.Equal(decimal.NewFromInt(1250)) {
		t.Errorf("incomeTotal after invalidation = %s, want 1250", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &analytics.ValidationError{Field: "months", Err: analytics.ErrInvalidMonths}, http.StatusBadRequest},
		{"unauthenticated", analytics.ErrUnauthenticated, http.StatusUnauthorized},
		{"open circuit", &analytics.DataSourceError{Op: "income total", Err: store.ErrCircuitOpen}, http.StatusServiceUnavailable},
		{"store failure", &analytics.DataSourceError{Op: "income total", Err: errors.New("connection reset")}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFiltersKeyIsCanonical(t *testing.T) {
	a := AnalyticsRequest{StartDate: "2024-03-01", EndDate: "2024-03-31", CategoryIDs: []string{"b", "a", "b"}}
	b := AnalyticsRequest{StartDate: "2024-03-01", EndDate: "2024-03-31", CategoryIDs: []string{"a", "b"}, TransactionType: "ALL"}

	fa, err := a.Filters()
	if err != nil {
		t.Fatal(err)
	}
	fb, err := b.Filters()
	if err != nil {
		t.Fatal(err)
	}
	if filtersKey(fa) != filtersKey(fb) {
		t.Errorf("keys differ: %q vs %q", filtersKey(fa), filtersKey(fb))
	}
}
