// Package store provides the transaction sources the analytics engine reads
// from: a SQL store for Postgres and SQLite, an in-memory store, and a
// resilient decorator guarding either behind a circuit breaker.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finance-analytics-backend/internal/analytics"

	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax and migrations.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Category is a row of the categories table.
type Category struct {
	ID    string
	Name  string
	Type  analytics.TransactionType
	Color string
}

const selectTransactions = `
	SELECT t.id, t.owner_id, COALESCE(t.category_id, ''), COALESCE(c.name, '` + analytics.UncategorizedName + `'),
		t.description, t.amount, t.type, t.date, t.created_at
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id
	WHERE t.owner_id = %s AND t.date >= %s AND t.date <= %s`

// SQLStore reads transactions from a database/sql handle.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database. The schema must already be migrated.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// QueryTransactions implements analytics.Store with a single parameterised
// SELECT. Rows come back ordered by date, then creation time.
func (s *SQLStore) QueryTransactions(ctx context.Context, ownerID string, q analytics.Query) ([]analytics.Transaction, error) {
	args := []any{
		ownerID,
		s.dateArg(q.Range.Start),
		s.dateArg(q.Range.End),
	}
	query := fmt.Sprintf(selectTransactions, s.placeholder(1), s.placeholder(2), s.placeholder(3))

	if q.Type != "" {
		args = append(args, string(q.Type))
		query += " AND t.type = " + s.placeholder(len(args))
	}
	if len(q.CategoryIDs) > 0 {
		marks := make([]string, len(q.CategoryIDs))
		for i, id := range q.CategoryIDs {
			args = append(args, id)
			marks[i] = s.placeholder(len(args))
		}
		query += " AND t.category_id IN (" + strings.Join(marks, ", ") + ")"
	}
	query += " ORDER BY t.date, t.created_at, t.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]analytics.Transaction, 0)
	for rows.Next() {
		var (
			t         analytics.Transaction
			typ       string
			date      dbTime
			createdAt dbTime
		)
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.CategoryID, &t.CategoryName,
			&t.Description, &t.Amount, &typ, &date, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = analytics.TransactionType(typ)
		t.Date = analytics.CivilDate(date.Time)
		t.CreatedAt = createdAt.Time
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// Seed inserts categories and transactions in one database transaction.
// Categories that already exist are left alone. Transactions are skipped
// entirely when the owner of the first one already has rows, so seeding is
// idempotent per owner. It returns the number of transactions inserted.
func (s *SQLStore) Seed(ctx context.Context, categories []Category, txs []analytics.Transaction) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insertCategory := fmt.Sprintf(
		`INSERT INTO categories (id, name, type, color) VALUES (%s, %s, %s, %s) ON CONFLICT DO NOTHING`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4))
	for _, c := range categories {
		if _, err := tx.ExecContext(ctx, insertCategory, c.ID, c.Name, string(c.Type), c.Color); err != nil {
			return 0, fmt.Errorf("seeding category %s: %w", c.Name, err)
		}
	}

	if len(txs) > 0 {
		var cnt int
		countQuery := `SELECT COUNT(*) FROM transactions WHERE owner_id = ` + s.placeholder(1)
		if err := tx.QueryRowContext(ctx, countQuery, txs[0].OwnerID).Scan(&cnt); err != nil {
			return 0, fmt.Errorf("checking transactions count: %w", err)
		}
		if cnt > 0 {
			txs = nil
		}
	}

	insertTx := fmt.Sprintf(
		`INSERT INTO transactions (id, owner_id, date, description, amount, category_id, type) VALUES (%s, %s, %s, %s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4),
		s.placeholder(5), s.placeholder(6), s.placeholder(7))
	for _, t := range txs {
		var categoryID any
		if t.CategoryID != "" {
			categoryID = t.CategoryID
		}
		if _, err := tx.ExecContext(ctx, insertTx,
			t.ID, t.OwnerID, s.dateArg(t.Date), t.Description,
			t.Amount.StringFixed(2), categoryID, string(t.Type)); err != nil {
			return 0, fmt.Errorf("seeding transaction %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(txs), nil
}

// dateArg binds a calendar date: a DATE value for Postgres, ISO text for
// SQLite where dates are stored as text and compare lexically.
func (s *SQLStore) dateArg(t time.Time) any {
	if s.dialect == DialectPostgres {
		return analytics.CivilDate(t)
	}
	return t.Format(analytics.DateLayout)
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	analytics.DateLayout,
}

// dbTime scans DATE and TIMESTAMP columns whether the driver hands back a
// time.Time (Postgres) or text (SQLite).
type dbTime struct {
	time.Time
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
}

func (t *dbTime) parse(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("cannot parse %q as time", s)
}

var _ analytics.Store = (*SQLStore)(nil)
