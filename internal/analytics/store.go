package analytics

import "context"

//go:generate mockgen -source=store.go -destination=mock_store_test.go -package=analytics

// Query narrows a transaction read. An empty Type reads both directions and
// an empty CategoryIDs set applies no category restriction.
type Query struct {
	Range       DateRange
	Type        TransactionType
	CategoryIDs []string
}

// Store is the read-only transaction source the engine depends on.
// Implementations must honour ctx cancellation.
type Store interface {
	QueryTransactions(ctx context.Context, ownerID string, q Query) ([]Transaction, error)
}
