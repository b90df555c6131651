package store

import (
	"context"
	"slices"
	"sync"

	"finance-analytics-backend/internal/analytics"
)

// MemoryStore keeps a transaction snapshot in process. It backs the demo
// backend and tests.
type MemoryStore struct {
	mu  sync.RWMutex
	txs []analytics.Transaction
}

// NewMemoryStore creates a store holding txs.
func NewMemoryStore(txs ...analytics.Transaction) *MemoryStore {
	return &MemoryStore{txs: slices.Clone(txs)}
}

// Add appends transactions to the snapshot.
func (s *MemoryStore) Add(txs ...analytics.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, txs...)
}

// Len returns the number of stored transactions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

// Ping only reports context cancellation.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// QueryTransactions implements analytics.Store. Results are copies in
// insertion order.
func (s *MemoryStore) QueryTransactions(ctx context.Context, ownerID string, q analytics.Query) ([]analytics.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	owned := make([]analytics.Transaction, 0, len(s.txs))
	for _, t := range s.txs {
		if t.OwnerID == ownerID {
			owned = append(owned, t)
		}
	}
	s.mu.RUnlock()

	return analytics.ApplyFilters(owned, analytics.AnalyticsFilters{
		StartDate:       q.Range.Start,
		EndDate:         q.Range.End,
		CategoryIDs:     q.CategoryIDs,
		TransactionType: analytics.TypeFilter(q.Type),
	}), nil
}

var _ analytics.Store = (*MemoryStore)(nil)
