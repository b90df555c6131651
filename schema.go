package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finance-analytics-backend/internal/analytics"
	"finance-analytics-backend/internal/config"
	"finance-analytics-backend/internal/events"
	"finance-analytics-backend/internal/logging"
	"finance-analytics-backend/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// demoMonths is how many months of history the demo data set covers.
const demoMonths = 12

var defaultCategories = []store.Category{
	{Name: "Groceries", Type: analytics.Expense, Color: "#e74c3c"},
	{Name: "Rent", Type: analytics.Expense, Color: "#e67e22"},
	{Name: "Utilities", Type: analytics.Expense, Color: "#f39c12"},
	{Name: "Transportation", Type: analytics.Expense, Color: "#3498db"},
	{Name: "Entertainment", Type: analytics.Expense, Color: "#9b59b6"},
	{Name: "Salary", Type: analytics.Income, Color: "#27ae60"},
	{Name: "Freelance", Type: analytics.Income, Color: "#16a085"},
}

type demoEntry struct {
	day         int
	description string
	amount      string
	category    string
	typ         analytics.TransactionType
}

// monthlyDemo repeats every month of the demo history.
var monthlyDemo = []demoEntry{
	{1, "Monthly Salary", "3200.00", "Salary", analytics.Income},
	{4, "Freelance: Landing Page", "850.00", "Freelance", analytics.Income},
	{5, "Rent - Apartment", "1500.00", "Rent", analytics.Expense},
	{7, "Utilities - Electricity", "120.45", "Utilities", analytics.Expense},
	{9, "Groceries - Whole Foods", "96.72", "Groceries", analytics.Expense},
	{10, "Subway Pass", "45.00", "Transportation", analytics.Expense},
	{13, "Movie Night", "28.50", "Entertainment", analytics.Expense},
	{15, "Groceries - Trader Joes", "64.11", "Groceries", analytics.Expense},
	{16, "Freelance: Dashboard Charts", "600.00", "Freelance", analytics.Income},
	{18, "Utilities - Internet", "60.00", "Utilities", analytics.Expense},
	{21, "Concert Tickets", "140.00", "Entertainment", analytics.Expense},
	{23, "Groceries - Costco", "132.39", "Groceries", analytics.Expense},
	{25, "Rideshare", "22.30", "Transportation", analytics.Expense},
	{28, "Dinner Out", "54.80", "Entertainment", analytics.Expense},
}

// oneOffDemo entries are placed monthsAgo months back and stand out from
// their category's usual spending.
var oneOffDemo = []struct {
	monthsAgo int
	demoEntry
}{
	{2, demoEntry{19, "Car Repair", "890.00", "Transportation", analytics.Expense}},
	{5, demoEntry{12, "Holiday Groceries", "612.40", "Groceries", analytics.Expense}},
}

// categoryID derives a stable id so seeding stays idempotent across runs and
// databases.
func categoryID(name string, typ analytics.TransactionType) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("category:"+string(typ)+":"+name)).String()
}

func demoCategories() []store.Category {
	out := make([]store.Category, len(defaultCategories))
	for i, c := range defaultCategories {
		c.ID = categoryID(c.Name, c.Type)
		out[i] = c
	}
	return out
}

// demoTransactions builds demoMonths months of history for owner ending with
// the month of now. Entries later than today are left out.
func demoTransactions(owner string, now time.Time) []analytics.Transaction {
	today := analytics.CivilDate(now)
	y, m, _ := today.Date()
	created := now.UTC()

	build := func(monthsAgo int, e demoEntry) (analytics.Transaction, bool) {
		first := time.Date(y, m-time.Month(monthsAgo), 1, 0, 0, 0, 0, time.UTC)
		date := first.AddDate(0, 0, e.day-1)
		if date.After(today) || date.Month() != first.Month() {
			return analytics.Transaction{}, false
		}
		return analytics.Transaction{
			ID:           uuid.NewString(),
			OwnerID:      owner,
			CategoryID:   categoryID(e.category, e.typ),
			CategoryName: e.category,
			Description:  e.description,
			Amount:       decimal.RequireFromString(e.amount),
			Type:         e.typ,
			Date:         date,
			CreatedAt:    created,
		}, true
	}

	var txs []analytics.Transaction
	for monthsAgo := demoMonths - 1; monthsAgo >= 0; monthsAgo-- {
		for _, e := range monthlyDemo {
			if t, ok := build(monthsAgo, e); ok {
				txs = append(txs, t)
			}
		}
		for _, o := range oneOffDemo {
			if o.monthsAgo != monthsAgo {
				continue
			}
			if t, ok := build(monthsAgo, o.demoEntry); ok {
				txs = append(txs, t)
			}
		}
	}
	return txs
}

// seedDemoData migrates the database, inserts the demo data set for the demo
// owner and, when AMQP is configured, announces the change so running
// instances drop their cached analytics. It is idempotent per owner.
func seedDemoData(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	if cfg.DataBackend == "memory" {
		return errors.New("seeding requires the postgres or sqlite backend")
	}
	if err := runMigrations(ctx, cfg, logger); err != nil {
		return err
	}

	db, dialect, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	sqlStore := store.NewSQLStore(db, dialect)
	defer sqlStore.Close()

	txs := demoTransactions(cfg.DemoOwnerID, time.Now().In(cfg.Location()))
	inserted, err := sqlStore.Seed(ctx, demoCategories(), txs)
	if err != nil {
		return fmt.Errorf("seeding demo data: %w", err)
	}
	logger.Info("demo data seeded", logging.Owner(cfg.DemoOwnerID), zap.Int("transactions", inserted))

	if inserted == 0 || cfg.AMQPURL == "" {
		return nil
	}

	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, "", logger)
	if err != nil {
		logger.Warn("could not announce seeded data", zap.Error(err))
		return nil
	}
	defer client.Close()

	if err := client.PublishTransactionsChanged(ctx, cfg.DemoOwnerID); err != nil {
		logger.Warn("could not announce seeded data", zap.Error(err))
	}
	return nil
}
